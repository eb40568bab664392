package normalizer

import (
	"errors"
	"fmt"

	"harvester/internal/models"
)

// Validation errors.
var (
	ErrMissingSource  = errors.New("record missing source")
	ErrUnknownKind    = errors.New("record has unknown kind")
	ErrMissingParent  = errors.New("record missing parent id")
	ErrNegativeMetric = errors.New("record has negative metric")
)

var knownKinds = map[models.Kind]bool{
	models.KindTweet:       true,
	models.KindVideo:       true,
	models.KindSubmission:  true,
	models.KindPost:        true,
	models.KindComment:     true,
	models.KindReply:       true,
	models.KindMessage:     true,
	models.KindMemberCount: true,
}

// Validator checks normalized records before they reach a table.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that a record is well formed. The id is not checked here:
// missing ids are the table builder's concern.
func (v *Validator) Validate(r *models.Record) error {
	if r.Source == "" {
		return ErrMissingSource
	}

	if !knownKinds[r.Kind] {
		return fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}

	// Comments and replies hang off something.
	if (r.Kind == models.KindComment || r.Kind == models.KindReply) && models.Deref(r.ParentID) == "" {
		return fmt.Errorf("%w: %s %s", ErrMissingParent, r.Kind, r.ID)
	}

	metrics := map[string]*int64{
		"view_count":     r.ViewCount,
		"like_count":     r.LikeCount,
		"dislike_count":  r.DislikeCount,
		"comment_count":  r.CommentCount,
		"reaction_count": r.ReactionCount,
		"share_count":    r.ShareCount,
		"reply_count":    r.ReplyCount,
		"forward_count":  r.ForwardCount,
		"member_count":   r.MemberCount,
		"message_count":  r.MessageCount,
	}

	for name, m := range metrics {
		if m != nil && *m < 0 {
			return fmt.Errorf("%w: %s=%d", ErrNegativeMetric, name, *m)
		}
	}

	return nil
}
