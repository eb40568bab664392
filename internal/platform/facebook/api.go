// Package facebook harvests page posts with their comments and replies from the
// Graph API.
package facebook

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/pagination"
	"harvester/internal/platform"
)

// API is the subset of the Graph API the harvester uses. An empty cursor asks for
// the first page; otherwise cursor is the paging.next URL of the previous page.
type API interface {
	Feed(ctx context.Context, pageID, cursor string) (pagination.Page[Post], error)
	Post(ctx context.Context, postID string) (PostDetails, error)
	// Comments lists the comments on a post, or the replies to a comment.
	Comments(ctx context.Context, parentID, cursor string) (pagination.Page[Comment], error)
}

// Post is a feed entry.
type Post struct {
	ID          string `json:"id"`
	CreatedTime string `json:"created_time"`
	UpdatedTime string `json:"updated_time"`
}

// Summary carries an edge total.
type Summary struct {
	TotalCount *int64 `json:"total_count"`
}

// Reactions is the reactions edge requested with summary(true).
type Reactions struct {
	Summary Summary `json:"summary"`
}

// PostDetails holds the fields fetched per post.
type PostDetails struct {
	Shares *struct {
		Count *int64 `json:"count"`
	} `json:"shares"`
	Reactions *Reactions `json:"reactions"`
	Message   string     `json:"message"`
}

// Author identifies who wrote a comment.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is a comment on a post or a reply to a comment.
type Comment struct {
	From         *Author    `json:"from"`
	Reactions    *Reactions `json:"reactions"`
	CommentCount *int64     `json:"comment_count"`
	ID           string     `json:"id"`
	Message      string     `json:"message"`
	CreatedTime  string     `json:"created_time"`
}

// Credentials is the facebook-secret bundle.
type Credentials struct {
	Token string `json:"token"`
	Page  string `json:"page"`
}

// ParseCredentials decodes a facebook-secret bundle.
func ParseCredentials(secret []byte) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(secret, &c); err != nil {
		return c, harvesterr.Configuration(config.Facebook, "malformed secret: %v", err)
	}

	if c.Token == "" {
		return c, harvesterr.Configuration(config.Facebook, "secret has no token")
	}

	return c, nil
}

const (
	postFields    = "message,shares,reactions.summary(true)"
	commentFields = "id,message,created_time,from,comment_count,reactions.summary(true)"
)

// HTTPAPI implements API over a platform client that carries the access_token
// as a default query parameter.
type HTTPAPI struct {
	client   *platform.Client
	pageSize int
}

// NewHTTPAPI returns the API.
func NewHTTPAPI(client *platform.Client, pageSize int) *HTTPAPI {
	return &HTTPAPI{client: client, pageSize: pageSize}
}

type listResponse[T any] struct {
	Paging struct {
		Next *string `json:"next"`
	} `json:"paging"`
	Data []T `json:"data"`
}

func list[T any](ctx context.Context, c *platform.Client, path, cursor string, q url.Values) (pagination.Page[T], error) {
	var resp listResponse[T]

	var err error
	if cursor != "" {
		err = c.GetJSON(ctx, cursor, nil, &resp)
	} else {
		err = c.GetJSON(ctx, path, q, &resp)
	}

	if err != nil {
		return pagination.Page[T]{}, err
	}

	next := resp.Paging.Next
	if next != nil && *next == "" {
		next = nil
	}

	return pagination.Page[T]{Items: resp.Data, Next: next}, nil
}

// Feed lists a page's posts.
func (a *HTTPAPI) Feed(ctx context.Context, pageID, cursor string) (pagination.Page[Post], error) {
	q := url.Values{
		"fields": {"id,created_time,updated_time"},
		"limit":  {strconv.Itoa(a.pageSize)},
	}

	return list[Post](ctx, a.client, "/"+url.PathEscape(pageID)+"/feed", cursor, q)
}

// Post reads the message, shares and reaction total of a post.
func (a *HTTPAPI) Post(ctx context.Context, postID string) (PostDetails, error) {
	var d PostDetails
	err := a.client.GetJSON(ctx, "/"+url.PathEscape(postID), url.Values{"fields": {postFields}}, &d)

	return d, err
}

// Comments lists the comments under parentID.
func (a *HTTPAPI) Comments(ctx context.Context, parentID, cursor string) (pagination.Page[Comment], error) {
	q := url.Values{
		"fields": {commentFields},
		"limit":  {strconv.Itoa(a.pageSize)},
	}

	return list[Comment](ctx, a.client, "/"+url.PathEscape(parentID)+"/comments", cursor, q)
}
