package facebook

import (
	"encoding/json"

	"harvester/internal/models"
)

// NormalizePost maps a feed entry and its details onto a post record.
func NormalizePost(pageID string, p Post, d PostDetails) models.Record {
	created := p.CreatedTime
	if created == "" {
		created = p.UpdatedTime
	}

	r := models.Record{
		ID:        p.ID,
		Source:    pageID,
		Kind:      models.KindPost,
		CreatedAt: created,
		Text:      d.Message,
	}

	if d.Shares != nil {
		r.ShareCount = d.Shares.Count
	}

	if d.Reactions != nil {
		r.ReactionCount = d.Reactions.Summary.TotalCount
	}

	return r
}

// NormalizeComment maps a comment (kind comment) or a reply (kind reply) onto a
// record pointing at its parent.
func NormalizeComment(pageID, parentID string, kind models.Kind, c Comment) models.Record {
	r := models.Record{
		ID:        c.ID,
		Source:    pageID,
		Kind:      kind,
		ParentID:  models.String(parentID),
		CreatedAt: c.CreatedTime,
		Text:      c.Message,
	}

	if c.Reactions != nil {
		r.ReactionCount = c.Reactions.Summary.TotalCount
	}

	if kind == models.KindComment {
		r.ReplyCount = c.CommentCount
	}

	if c.From != nil {
		if attrs, err := json.Marshal(map[string]*Author{"from": c.From}); err == nil {
			r.Attributes = attrs
		}
	}

	return r
}
