package pipeline

import (
	"context"
	"errors"
	"fmt"

	"harvester/internal/config"
	"harvester/internal/credentials"
	"harvester/internal/harvesterr"
	"harvester/internal/logger"
	"harvester/internal/models"
	"harvester/internal/platform"
	"harvester/internal/platform/facebook"
	"harvester/internal/platform/kobo"
	"harvester/internal/platform/telegram"
	"harvester/internal/platform/twitter"
	"harvester/internal/platform/youtube"
)

// Secret names looked up in the credential provider.
const (
	TwitterSecret  = "twitter-secret"
	GoogleSecret   = "google-secret"
	KoboSecret     = "kobo-secret"
	FacebookSecret = "facebook-secret"
	TelegramSecret = "telegram-secret"
)

// SecretFor returns the secret a platform reads and whether the platform
// cannot run without it.
func SecretFor(platformName string) (string, bool) {
	switch platformName {
	case config.Twitter:
		return TwitterSecret, true
	case config.YouTube:
		return GoogleSecret, true
	case config.Kobo:
		return KoboSecret, true
	case config.Facebook:
		return FacebookSecret, true
	default:
		return TelegramSecret, false
	}
}

// Harvester produces the finalized tables of one platform.
type Harvester interface {
	Validate() error
	Harvest(ctx context.Context) ([]*models.Table, error)
}

// BuildFunc constructs the harvester for a platform.
type BuildFunc func(ctx context.Context, name string) (Harvester, error)

// Builder constructs HTTP-backed harvesters from configuration and credentials.
type Builder struct {
	cfg   *config.Config
	creds credentials.Provider
	log   *logger.Logger
}

// NewBuilder returns a Builder.
func NewBuilder(cfg *config.Config, creds credentials.Provider, log *logger.Logger) *Builder {
	if log == nil {
		log = logger.Discard()
	}

	return &Builder{cfg: cfg, creds: creds, log: log}
}

// Build returns the harvester for the named platform. Missing or malformed secrets
// and invalid tracked entities are reported as configuration errors before any
// network call.
func (b *Builder) Build(ctx context.Context, name string) (Harvester, error) {
	switch name {
	case config.Twitter:
		return b.twitter(ctx)
	case config.YouTube:
		return b.youtube(ctx)
	case config.Kobo:
		return b.kobo(ctx)
	case config.Facebook:
		return b.facebook(ctx)
	case config.Telegram:
		return b.telegram(ctx)
	default:
		return nil, fmt.Errorf("unknown platform %q", name)
	}
}

func (b *Builder) secret(ctx context.Context, platformName, name string) ([]byte, error) {
	data, err := b.creds.Secret(ctx, name)
	if err != nil {
		return nil, harvesterr.Configuration(platformName, "secret %s: %v", name, err)
	}

	return data, nil
}

func (b *Builder) client(name, baseURL string, headers, query map[string]string) *platform.Client {
	h := &b.cfg.Harvester

	return platform.NewClient(platform.ClientOptions{
		Logger:    b.log,
		Headers:   headers,
		Query:     query,
		Platform:  name,
		BaseURL:   baseURL,
		Retry:     h.Retry,
		RateLimit: h.RateLimit,
	})
}

func (b *Builder) twitter(ctx context.Context) (Harvester, error) {
	cfg := b.cfg.Harvester.Platforms.Twitter
	opts := twitter.Options{Logger: b.log, MaxPages: b.cfg.Harvester.Pagination.MaxPages}

	// The token exchange is a network call, so check the tracked entities first.
	if err := twitter.New(cfg, nil, opts).Validate(); err != nil {
		return nil, err
	}

	secret, err := b.secret(ctx, config.Twitter, TwitterSecret)
	if err != nil {
		return nil, err
	}

	creds, err := twitter.ParseCredentials(secret)
	if err != nil {
		return nil, err
	}

	tokenURL, err := twitter.TokenURL(cfg.BaseURL)
	if err != nil {
		return nil, harvesterr.Configuration(config.Twitter, "base url: %v", err)
	}

	api, err := twitter.NewHTTPAPI(ctx, b.client(config.Twitter, cfg.BaseURL, nil, nil), creds, tokenURL)
	if err != nil {
		return nil, err
	}

	return twitter.New(cfg, api, opts), nil
}

func (b *Builder) youtube(ctx context.Context) (Harvester, error) {
	cfg := b.cfg.Harvester.Platforms.YouTube

	secret, err := b.secret(ctx, config.YouTube, GoogleSecret)
	if err != nil {
		return nil, err
	}

	creds, err := youtube.ParseCredentials(secret)
	if err != nil {
		return nil, err
	}

	client := b.client(config.YouTube, cfg.BaseURL, nil, map[string]string{"key": creds.APIKey})

	return youtube.New(cfg, youtube.NewHTTPAPI(client), youtube.Options{
		Logger:   b.log,
		MaxPages: b.cfg.Harvester.Pagination.MaxPages,
	}), nil
}

func (b *Builder) kobo(ctx context.Context) (Harvester, error) {
	cfg := b.cfg.Harvester.Platforms.Kobo

	secret, err := b.secret(ctx, config.Kobo, KoboSecret)
	if err != nil {
		return nil, err
	}

	creds, err := kobo.ParseCredentials(secret)
	if err != nil {
		return nil, err
	}

	assets := cfg.Assets
	if len(assets) == 0 && creds.Asset != "" {
		assets = []string{creds.Asset}
	}

	client := b.client(config.Kobo, cfg.BaseURL, kobo.AuthHeaders(creds.Token), nil)

	return kobo.New(assets, kobo.NewHTTPAPI(client), kobo.Options{
		Logger:   b.log,
		MaxPages: b.cfg.Harvester.Pagination.MaxPages,
		PageSize: b.cfg.Harvester.Pagination.PageSize,
	}), nil
}

func (b *Builder) facebook(ctx context.Context) (Harvester, error) {
	cfg := b.cfg.Harvester.Platforms.Facebook

	secret, err := b.secret(ctx, config.Facebook, FacebookSecret)
	if err != nil {
		return nil, err
	}

	creds, err := facebook.ParseCredentials(secret)
	if err != nil {
		return nil, err
	}

	pages := cfg.Pages
	if len(pages) == 0 && creds.Page != "" {
		pages = []string{creds.Page}
	}

	client := b.client(config.Facebook, cfg.BaseURL, nil, map[string]string{"access_token": creds.Token})

	return facebook.New(pages, facebook.NewHTTPAPI(client, b.cfg.Harvester.Pagination.PageSize), facebook.Options{
		Logger:   b.log,
		MaxPages: b.cfg.Harvester.Pagination.MaxPages,
	}), nil
}

func (b *Builder) telegram(ctx context.Context) (Harvester, error) {
	cfg := b.cfg.Harvester.Platforms.Telegram

	// The gateway token is optional.
	var creds telegram.Credentials

	secret, err := b.creds.Secret(ctx, TelegramSecret)
	switch {
	case errors.Is(err, credentials.ErrSecretNotFound):
	case err != nil:
		return nil, harvesterr.Configuration(config.Telegram, "secret %s: %v", TelegramSecret, err)
	default:
		if creds, err = telegram.ParseCredentials(secret); err != nil {
			return nil, err
		}
	}

	client := b.client(config.Telegram, cfg.BaseURL, nil, nil)

	return telegram.New(cfg.Channels, telegram.NewHTTPAPI(client, creds, b.cfg.Harvester.Pagination.PageSize), telegram.Options{
		Logger:      b.log,
		CountryCode: b.cfg.Harvester.CountryCode,
		Window:      b.cfg.Harvester.Window,
		MaxPages:    b.cfg.Harvester.Pagination.MaxPages,
	}), nil
}
