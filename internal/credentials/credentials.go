// Package credentials supplies the per-platform secret bundles.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"harvester/internal/config"
	"harvester/pkg/utils"
)

// ErrSecretNotFound is returned when a provider has no secret under the name.
var ErrSecretNotFound = errors.New("secret not found")

// Provider returns the JSON secret bundle stored under a name such as "twitter-secret".
type Provider interface {
	Secret(ctx context.Context, name string) ([]byte, error)
}

// EnvProvider reads secrets from environment variables, falling back to a .env file.
// The variable for "twitter-secret" is TWITTER_SECRET.
type EnvProvider struct {
	file map[string]string
}

// NewEnvProvider creates a provider. envFile may be empty. A missing envFile is
// not an error; the process environment is used alone.
func NewEnvProvider(envFile string) (*EnvProvider, error) {
	p := &EnvProvider{file: map[string]string{}}

	if envFile == "" {
		return p, nil
	}

	values, err := godotenv.Read(envFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}

		return nil, fmt.Errorf("read env file %s: %w", envFile, err)
	}

	p.file = values

	return p, nil
}

// VarName returns the environment variable holding the named secret.
func VarName(name string) string {
	return utils.NewStringHelper().SnakeUpper(name)
}

// Secret returns the named secret. The process environment wins over the file.
func (p *EnvProvider) Secret(_ context.Context, name string) ([]byte, error) {
	key := VarName(name)

	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v), nil
	}

	if v, ok := p.file[key]; ok && v != "" {
		return []byte(v), nil
	}

	return nil, fmt.Errorf("%w: %s (variable %s)", ErrSecretNotFound, name, key)
}

// DirProvider reads secrets from <dir>/<name>.json.
type DirProvider struct {
	dir string
}

// NewDirProvider creates a provider rooted at dir.
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{dir: dir}
}

// Secret returns the contents of the named secret file.
func (p *DirProvider) Secret(_ context.Context, name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: invalid name %q", ErrSecretNotFound, name)
	}

	path := filepath.Join(p.dir, name+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
		}

		return nil, fmt.Errorf("read secret %s: %w", path, err)
	}

	return data, nil
}

// FromConfig builds the provider selected by cfg.
func FromConfig(cfg config.CredentialsConfig) (Provider, error) {
	switch cfg.Kind {
	case "", "env":
		return NewEnvProvider(cfg.EnvFile)
	case "dir":
		return NewDirProvider(cfg.Dir), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidCredentialsKind, cfg.Kind)
	}
}
