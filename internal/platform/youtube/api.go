// Package youtube harvests the videos of tracked channels from the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/pagination"
	"harvester/internal/platform"
)

// SearchPageSize is the largest page search.list accepts.
const SearchPageSize = 50

// API is the subset of the Data API the harvester uses.
type API interface {
	// SearchVideos returns one page of a channel's videos, newest first.
	SearchVideos(ctx context.Context, channelID, pageToken string) (pagination.Page[SearchResult], error)
	// Videos returns details for the given ids. Unknown ids are absent from the result.
	Videos(ctx context.Context, ids []string) ([]Video, error)
}

// Snippet is the descriptive part of a search result or video.
type Snippet struct {
	PublishedAt  string `json:"publishedAt"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	Title        string `json:"title"`
	Description  string `json:"description"`
}

// SearchResult is one search.list item.
type SearchResult struct {
	ID struct {
		Kind    string `json:"kind"`
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet Snippet `json:"snippet"`
}

// Statistics holds the counts as the API reports them: decimal strings, each
// of which may be missing.
type Statistics struct {
	ViewCount    string `json:"viewCount"`
	LikeCount    string `json:"likeCount"`
	DislikeCount string `json:"dislikeCount"`
	CommentCount string `json:"commentCount"`
}

// Video is one videos.list item.
type Video struct {
	ID         string     `json:"id"`
	Snippet    Snippet    `json:"snippet"`
	Statistics Statistics `json:"statistics"`
}

// Credentials is the google-secret bundle.
type Credentials struct {
	APIKey string `json:"api_key"`
}

// ParseCredentials decodes a google-secret bundle.
func ParseCredentials(secret []byte) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(secret, &c); err != nil {
		return c, harvesterr.Configuration(config.YouTube, "malformed secret: %v", err)
	}

	if c.APIKey == "" {
		return c, harvesterr.Configuration(config.YouTube, "secret has no api_key")
	}

	return c, nil
}

// HTTPAPI implements API over a platform client. The client is expected to carry
// the API key as a default query parameter.
type HTTPAPI struct {
	client *platform.Client
}

// NewHTTPAPI returns the API.
func NewHTTPAPI(client *platform.Client) *HTTPAPI {
	return &HTTPAPI{client: client}
}

// SearchVideos calls search.list for one channel.
func (a *HTTPAPI) SearchVideos(ctx context.Context, channelID, pageToken string) (pagination.Page[SearchResult], error) {
	q := url.Values{
		"part":       {"snippet,id"},
		"channelId":  {channelID},
		"maxResults": {"50"},
		"order":      {"date"},
		"type":       {"video"},
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var resp struct {
		NextPageToken string         `json:"nextPageToken"`
		Items         []SearchResult `json:"items"`
	}
	if err := a.client.GetJSON(ctx, "/search", q, &resp); err != nil {
		return pagination.Page[SearchResult]{}, err
	}

	return pagination.Page[SearchResult]{Items: resp.Items, Next: pagination.Next(resp.NextPageToken)}, nil
}

// Videos calls videos.list for up to 50 ids.
func (a *HTTPAPI) Videos(ctx context.Context, ids []string) ([]Video, error) {
	q := url.Values{
		"part": {"snippet,contentDetails,statistics"},
		"id":   {strings.Join(ids, ",")},
	}

	var resp struct {
		Items []Video `json:"items"`
	}
	if err := a.client.GetJSON(ctx, "/videos", q, &resp); err != nil {
		return nil, err
	}

	return resp.Items, nil
}
