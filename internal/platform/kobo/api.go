// Package kobo harvests form submissions from a KoboToolbox asset.
package kobo

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/platform"
)

// API is the subset of the KoboToolbox v2 API the harvester uses.
type API interface {
	// Submissions returns up to limit submissions of asset starting at offset start.
	Submissions(ctx context.Context, asset string, start, limit int) ([]json.RawMessage, error)
}

// Credentials is the kobo-secret bundle.
type Credentials struct {
	Token string `json:"token"`
	Asset string `json:"asset"`
}

// ParseCredentials decodes a kobo-secret bundle.
func ParseCredentials(secret []byte) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(secret, &c); err != nil {
		return c, harvesterr.Configuration(config.Kobo, "malformed secret: %v", err)
	}

	if c.Token == "" {
		return c, harvesterr.Configuration(config.Kobo, "secret has no token")
	}

	return c, nil
}

// AuthHeaders returns the headers a client needs to read assets with token.
func AuthHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Token " + token}
}

// HTTPAPI implements API over a platform client carrying AuthHeaders.
type HTTPAPI struct {
	client *platform.Client
}

// NewHTTPAPI returns the API.
func NewHTTPAPI(client *platform.Client) *HTTPAPI {
	return &HTTPAPI{client: client}
}

// Submissions reads one page of /api/v2/assets/<asset>/data.json.
func (a *HTTPAPI) Submissions(ctx context.Context, asset string, start, limit int) ([]json.RawMessage, error) {
	q := url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	}

	var resp struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := a.client.GetJSON(ctx, "/api/v2/assets/"+url.PathEscape(asset)+"/data.json", q, &resp); err != nil {
		return nil, err
	}

	return resp.Results, nil
}
