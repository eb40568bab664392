// Package models defines the normalized record shape shared by every platform.
package models

import "encoding/json"

// Kind identifies what unit of content a record represents.
type Kind string

// Record kinds.
const (
	KindTweet       Kind = "tweet"
	KindVideo       Kind = "video"
	KindSubmission  Kind = "submission"
	KindPost        Kind = "post"
	KindComment     Kind = "comment"
	KindReply       Kind = "reply"
	KindMessage     Kind = "message"
	KindMemberCount Kind = "member_count"
)

// DefaultLang is used when a platform does not report a language.
const DefaultLang = "unknown"

// Metrics holds engagement counts. A nil field means the platform did not report it,
// which is distinct from a reported zero.
type Metrics struct {
	ViewCount     *int64 `json:"view_count"`
	LikeCount     *int64 `json:"like_count"`
	DislikeCount  *int64 `json:"dislike_count"`
	CommentCount  *int64 `json:"comment_count"`
	ReactionCount *int64 `json:"reaction_count"`
	ShareCount    *int64 `json:"share_count"`
	ReplyCount    *int64 `json:"reply_count"`
	ForwardCount  *int64 `json:"forward_count"`
	MemberCount   *int64 `json:"member_count"`
	MessageCount  *int64 `json:"message_count"`
}

// Record is one normalized row.
type Record struct {
	ParentID    *string `json:"parent_id"`
	Date        *string `json:"date"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Kind        Kind    `json:"kind"`
	CreatedAt   string  `json:"created_at"`
	Text        string  `json:"text"`
	Lang        string  `json:"lang"`
	Metrics
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

// Int returns a pointer to v.
func Int(v int64) *int64 {
	return &v
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

// Optional returns nil for an empty string and a pointer to s otherwise.
func Optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// Columns lists the tabular column names in storage order.
var Columns = []string{
	"id", "source", "kind", "parent_id", "created_at", "date", "text", "description", "url", "lang",
	"view_count", "like_count", "dislike_count", "comment_count", "reaction_count",
	"share_count", "reply_count", "forward_count", "member_count", "message_count",
	"attributes",
}

// Values returns the record's column values in Columns order. Absent values are nil.
func (r *Record) Values() []any {
	var attrs any
	if len(r.Attributes) > 0 {
		attrs = string(r.Attributes)
	}

	return []any{
		r.ID, r.Source, string(r.Kind), ptr(r.ParentID), r.CreatedAt, ptr(r.Date), r.Text,
		ptr(r.Description), ptr(r.URL), r.Lang,
		num(r.ViewCount), num(r.LikeCount), num(r.DislikeCount), num(r.CommentCount),
		num(r.ReactionCount), num(r.ShareCount), num(r.ReplyCount), num(r.ForwardCount),
		num(r.MemberCount), num(r.MessageCount),
		attrs,
	}
}

func ptr(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}

func num(v *int64) any {
	if v == nil {
		return nil
	}

	return *v
}
