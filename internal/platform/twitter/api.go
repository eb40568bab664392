// Package twitter harvests tracked users' timelines and search queries from the
// Twitter v1.1 REST API.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/platform"
)

// Page sizes accepted by the timeline and search endpoints.
const (
	TimelinePageSize = 200
	SearchPageSize   = 100
)

// API is the subset of the Twitter API the harvester uses. maxID is empty on the
// first request of a walk.
type API interface {
	UserTimeline(ctx context.Context, screenName, maxID string) ([]Tweet, error)
	Search(ctx context.Context, query, maxID string) ([]Tweet, error)
}

// User is the author of a tweet.
type User struct {
	ScreenName string `json:"screen_name"`
}

// Tweet is a status as returned with tweet_mode=extended. Raw keeps the full
// payload for passthrough.
type Tweet struct {
	RetweetCount  *int64          `json:"retweet_count"`
	FavoriteCount *int64          `json:"favorite_count"`
	ReplyCount    *int64          `json:"reply_count"`
	User          User            `json:"user"`
	IDStr         string          `json:"id_str"`
	CreatedAt     string          `json:"created_at"`
	FullText      string          `json:"full_text"`
	Text          string          `json:"text"`
	Lang          string          `json:"lang"`
	Raw           json.RawMessage `json:"-"`
	ID            int64           `json:"id"`
}

// UnmarshalJSON decodes the known fields and keeps a copy of the payload.
func (t *Tweet) UnmarshalJSON(data []byte) error {
	type plain Tweet

	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	*t = Tweet(p)
	t.Raw = append(json.RawMessage(nil), data...)

	return nil
}

// Credentials is the twitter-secret bundle. A bearer token is used as is;
// otherwise the consumer key pair is exchanged for one.
type Credentials struct {
	ConsumerKey    string `json:"CONSUMER_KEY"`
	ConsumerSecret string `json:"CONSUMER_SECRET"`
	AccessToken    string `json:"ACCESS_TOKEN"`
	AccessSecret   string `json:"ACCESS_SECRET"`
	BearerToken    string `json:"BEARER_TOKEN"`
}

// ParseCredentials decodes a twitter-secret bundle.
func ParseCredentials(secret []byte) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(secret, &c); err != nil {
		return c, harvesterr.Configuration(config.Twitter, "malformed secret: %v", err)
	}

	if c.BearerToken == "" && (c.ConsumerKey == "" || c.ConsumerSecret == "") {
		return c, harvesterr.Configuration(config.Twitter, "secret needs BEARER_TOKEN or CONSUMER_KEY and CONSUMER_SECRET")
	}

	return c, nil
}

// TokenURL returns the app-only token endpoint for an API base URL such as
// https://api.twitter.com/1.1.
func TokenURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "", harvesterr.Configuration(config.Twitter, "invalid base_url %q", baseURL)
	}

	return u.Scheme + "://" + u.Host + "/oauth2/token", nil
}

// HTTPAPI implements API over a platform client.
type HTTPAPI struct {
	client *platform.Client
}

// NewHTTPAPI authenticates the client with app-only auth and returns the API.
func NewHTTPAPI(ctx context.Context, client *platform.Client, creds Credentials, tokenURL string) (*HTTPAPI, error) {
	token := creds.BearerToken
	if token == "" {
		var resp struct {
			TokenType   string `json:"token_type"`
			AccessToken string `json:"access_token"`
		}

		form := url.Values{"grant_type": {"client_credentials"}}
		if err := client.PostFormJSON(ctx, tokenURL, form, creds.ConsumerKey, creds.ConsumerSecret, &resp); err != nil {
			return nil, fmt.Errorf("obtain bearer token: %w", err)
		}

		if resp.AccessToken == "" {
			return nil, harvesterr.Configuration(config.Twitter, "token endpoint returned no access token")
		}

		token = resp.AccessToken
	}

	client.SetAuthToken(token)

	return &HTTPAPI{client: client}, nil
}

// UserTimeline returns one page of a user's own tweets, retweets excluded.
func (a *HTTPAPI) UserTimeline(ctx context.Context, screenName, maxID string) ([]Tweet, error) {
	q := url.Values{
		"screen_name": {screenName},
		"count":       {fmt.Sprint(TimelinePageSize)},
		"include_rts": {"false"},
		"tweet_mode":  {"extended"},
	}
	if maxID != "" {
		q.Set("max_id", maxID)
	}

	var tweets []Tweet
	if err := a.client.GetJSON(ctx, "/statuses/user_timeline.json", q, &tweets); err != nil {
		return nil, err
	}

	return tweets, nil
}

// Search returns one page of search results.
func (a *HTTPAPI) Search(ctx context.Context, query, maxID string) ([]Tweet, error) {
	q := url.Values{
		"q":                {query},
		"count":            {fmt.Sprint(SearchPageSize)},
		"tweet_mode":       {"extended"},
		"include_entities": {"true"},
	}
	if maxID != "" {
		q.Set("max_id", maxID)
	}

	var resp struct {
		Statuses []Tweet `json:"statuses"`
	}
	if err := a.client.GetJSON(ctx, "/search/tweets.json", q, &resp); err != nil {
		return nil, err
	}

	return resp.Statuses, nil
}
