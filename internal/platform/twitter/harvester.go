package twitter

import (
	"context"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/logger"
	"harvester/internal/models"
	"harvester/internal/normalizer"
	"harvester/internal/pagination"
	"harvester/internal/platform"
)

// TableName is the dataset tweets are saved under.
const TableName = "tweets"

// Options tunes a Harvester.
type Options struct {
	Logger   *logger.Logger
	MaxPages int
}

// Harvester collects tweets from tracked users and queries into one table.
type Harvester struct {
	api      API
	log      *logger.Logger
	proc     *normalizer.Processor
	cfg      config.TwitterConfig
	maxPages int
}

// New creates a harvester.
func New(cfg config.TwitterConfig, api API, opts Options) *Harvester {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	log = log.With("platform", config.Twitter)

	return &Harvester{
		api:      api,
		log:      log,
		proc:     normalizer.NewProcessor(normalizer.Options{Logger: log}),
		cfg:      cfg,
		maxPages: opts.MaxPages,
	}
}

// Validate checks the tracked entities without touching the network.
func (h *Harvester) Validate() error {
	if !h.cfg.TrackUsers && !h.cfg.TrackQueries {
		return harvesterr.Configuration(config.Twitter, "neither users nor queries are tracked")
	}

	if h.cfg.TrackUsers {
		if err := platform.RequireEntities(config.Twitter, "twitter user", h.cfg.Users); err != nil {
			return err
		}
	}

	if h.cfg.TrackQueries {
		if err := platform.RequireEntities(config.Twitter, "twitter query", h.cfg.Queries); err != nil {
			return err
		}
	}

	return nil
}

// Harvest walks every tracked user timeline, then every query, and returns the
// deduplicated tweets table. Users come first so their copy of a tweet wins.
func (h *Harvester) Harvest(ctx context.Context) ([]*models.Table, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	builder := models.NewTableBuilder(TableName, config.Twitter, models.NaturalID)

	if h.cfg.TrackUsers {
		parts, err := platform.EachEntity(ctx, h.log, config.Twitter, h.cfg.Users, h.timeline)
		if err != nil {
			return nil, err
		}

		builder.Merge(parts...)
	}

	if h.cfg.TrackQueries {
		parts, err := platform.EachEntity(ctx, h.log, config.Twitter, h.cfg.Queries, h.search)
		if err != nil {
			return nil, err
		}

		builder.Merge(parts...)
	}

	table, stats, err := builder.Build()
	if err != nil {
		return nil, err
	}

	h.log.Info("tweets collected", "records", table.Len(), "duplicates", stats.Duplicates, "dropped", stats.Dropped)

	return []*models.Table{table}, nil
}

func (h *Harvester) timeline(ctx context.Context, user string) ([]models.Record, error) {
	return h.walk(ctx, "timeline "+user, func(ctx context.Context, maxID string) ([]Tweet, error) {
		tweets, err := h.api.UserTimeline(ctx, user, maxID)

		return tweets, platform.Classify(config.Twitter, user, err)
	})
}

func (h *Harvester) search(ctx context.Context, query string) ([]models.Record, error) {
	return h.walk(ctx, "search "+query, func(ctx context.Context, maxID string) ([]Tweet, error) {
		tweets, err := h.api.Search(ctx, query, maxID)

		return tweets, platform.Classify(config.Twitter, query, err)
	})
}

func (h *Harvester) walk(ctx context.Context, name string, fetch func(context.Context, string) ([]Tweet, error)) ([]models.Record, error) {
	res, err := pagination.Walk(ctx,
		func(ctx context.Context, cursor string) (pagination.Page[Tweet], error) {
			tweets, err := fetch(ctx, cursor)
			if err != nil {
				return pagination.Page[Tweet]{}, err
			}

			return pagination.Page[Tweet]{Items: tweets}, nil
		},
		pagination.MaxID(func(t Tweet) int64 { return t.ID }),
		pagination.Options{Logger: h.log, Name: name, MaxPages: h.maxPages},
	)

	records := platform.NormalizeAll(h.log, config.Twitter, res.Items, Normalize)

	return h.proc.Process(records), err
}
