// Package telegram harvests channel messages, their replies and member counts
// through an HTTP gateway in front of the Telegram client API.
//
// Gateway endpoints:
//
//	GET /channels/{channel}                                  channel info
//	GET /channels/{channel}/messages?offset_date=&min_id=    messages, ascending
//	GET /channels/{channel}/messages/{id}/replies?min_id=    replies, ascending
package telegram

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/platform"
)

// API is what the harvester needs from the gateway. afterID is 0 on the first
// request of a walk; results hold messages with a larger id, oldest first.
type API interface {
	Channel(ctx context.Context, channel string) (Channel, error)
	Messages(ctx context.Context, channel string, since time.Time, afterID int64) ([]Message, error)
	Replies(ctx context.Context, channel string, messageID, afterID int64) ([]Message, error)
}

// Channel is the full channel info.
type Channel struct {
	ParticipantsCount *int64 `json:"participants_count"`
	Username          string `json:"username"`
	Title             string `json:"title"`
	ID                int64  `json:"id"`
}

// ReplyInfo summarizes the discussion under a message.
type ReplyInfo struct {
	Replies *int64 `json:"replies"`
}

// Message is a channel post or a reply in its discussion.
type Message struct {
	Replies  *ReplyInfo `json:"replies"`
	Views    *int64     `json:"views"`
	Forwards *int64     `json:"forwards"`
	Date     string     `json:"date"`
	Message  string     `json:"message"`
	ID       int64      `json:"id"`
}

// HasReplies reports whether the message has a non-empty discussion.
func (m Message) HasReplies() bool {
	return m.Replies != nil && m.Replies.Replies != nil && *m.Replies.Replies > 0
}

// Credentials is the telegram-secret bundle.
type Credentials struct {
	GatewayToken string `json:"gateway-token"`
}

// ParseCredentials decodes a telegram-secret bundle. The token is optional.
func ParseCredentials(secret []byte) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(secret, &c); err != nil {
		return c, harvesterr.Configuration(config.Telegram, "malformed secret: %v", err)
	}

	return c, nil
}

// HTTPAPI implements API over a platform client pointed at the gateway.
type HTTPAPI struct {
	client   *platform.Client
	pageSize int
}

// NewHTTPAPI returns the API. A non-empty token is sent as a bearer token.
func NewHTTPAPI(client *platform.Client, creds Credentials, pageSize int) *HTTPAPI {
	if creds.GatewayToken != "" {
		client.SetAuthToken(creds.GatewayToken)
	}

	return &HTTPAPI{client: client, pageSize: pageSize}
}

func channelPath(channel string) string {
	return "/channels/" + url.PathEscape(channel)
}

// Channel reads channel info.
func (a *HTTPAPI) Channel(ctx context.Context, channel string) (Channel, error) {
	var c Channel
	err := a.client.GetJSON(ctx, channelPath(channel), nil, &c)

	return c, err
}

// Messages lists channel messages posted at or after since.
func (a *HTTPAPI) Messages(ctx context.Context, channel string, since time.Time, afterID int64) ([]Message, error) {
	q := url.Values{
		"offset_date": {since.Format(time.RFC3339)},
		"min_id":      {strconv.FormatInt(afterID, 10)},
		"limit":       {strconv.Itoa(a.pageSize)},
		"reverse":     {"true"},
	}

	return a.list(ctx, channelPath(channel)+"/messages", q)
}

// Replies lists the discussion under a message.
func (a *HTTPAPI) Replies(ctx context.Context, channel string, messageID, afterID int64) ([]Message, error) {
	q := url.Values{
		"min_id": {strconv.FormatInt(afterID, 10)},
		"limit":  {strconv.Itoa(a.pageSize)},
	}

	return a.list(ctx, channelPath(channel)+"/messages/"+strconv.FormatInt(messageID, 10)+"/replies", q)
}

func (a *HTTPAPI) list(ctx context.Context, path string, q url.Values) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := a.client.GetJSON(ctx, path, q, &resp); err != nil {
		return nil, err
	}

	return resp.Messages, nil
}
