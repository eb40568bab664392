package kobo

import (
	"encoding/json"
	"errors"
	"fmt"

	"harvester/internal/models"
)

// ErrMissingSubmissionID is returned for submissions without an _id.
var ErrMissingSubmissionID = errors.New("submission without _id")

// Normalize maps a submission onto a record. The submission itself is kept
// verbatim as the record's attributes.
func Normalize(asset string, raw json.RawMessage) ([]models.Record, error) {
	var meta struct {
		ID             json.Number `json:"_id"`
		SubmissionTime string      `json:"_submission_time"`
	}

	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}

	if meta.ID == "" {
		return nil, ErrMissingSubmissionID
	}

	return []models.Record{{
		ID:         meta.ID.String(),
		Source:     asset,
		Kind:       models.KindSubmission,
		CreatedAt:  meta.SubmissionTime,
		Lang:       models.DefaultLang,
		Attributes: raw,
	}}, nil
}
