package platform

import (
	"harvester/internal/logger"
	"harvester/internal/models"
)

// NormalizeAll maps raw items to records in order. An item that cannot be
// normalized is logged as a warning and skipped.
func NormalizeAll[T any](log *logger.Logger, platform string, items []T, fn func(T) ([]models.Record, error)) []models.Record {
	if log == nil {
		log = logger.Discard()
	}

	out := make([]models.Record, 0, len(items))

	for i, item := range items {
		records, err := fn(item)
		if err != nil {
			log.Warn("skipping malformed item", "platform", platform, "index", i, "error", err)

			continue
		}

		out = append(out, records...)
	}

	return out
}
