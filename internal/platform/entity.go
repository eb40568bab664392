package platform

import (
	"context"
	"errors"

	"harvester/internal/harvesterr"
	"harvester/internal/logger"
	"harvester/internal/models"
	"harvester/internal/pagination"
)

// EntityFunc harvests one tracked entity. On error it may still return the records
// gathered before the failure.
type EntityFunc func(ctx context.Context, entity string) ([]models.Record, error)

// EachEntity harvests entities in the given order and returns one partial per entity
// that produced records.
//
// Failures are handled by category. An unavailable entity is logged at error level
// and its records are discarded. Any other failure is logged as a warning and the
// records gathered so far are kept. Only cancellation and configuration errors are
// returned.
func EachEntity(ctx context.Context, log *logger.Logger, platform string, entities []string, fn EntityFunc) ([]models.Partial, error) {
	if log == nil {
		log = logger.Discard()
	}

	parts := make([]models.Partial, 0, len(entities))

	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return parts, err
		}

		records, err := fn(ctx, entity)

		switch {
		case err == nil:
		case ctx.Err() != nil:
			return parts, ctx.Err()
		case harvesterr.IsConfiguration(err):
			return parts, err
		case harvesterr.IsEntityUnavailable(err):
			log.Error("entity unavailable, skipping", "platform", platform, "entity", entity, "error", err)

			continue
		case errors.Is(err, pagination.ErrPageLimit), errors.Is(err, pagination.ErrCycle):
			log.Warn("walk stopped early", "platform", platform, "entity", entity, "records", len(records), "error", err)
		default:
			log.Warn("entity harvested partially", "platform", platform, "entity", entity, "records", len(records), "error", err)
		}

		if len(records) > 0 {
			parts = append(parts, models.Partial{Entity: entity, Records: records})
		}
	}

	return parts, nil
}

// RequireEntities returns a ConfigurationError when a tracked-entity list is empty.
func RequireEntities(platform, what string, entities []string) error {
	for _, e := range entities {
		if e != "" {
			return nil
		}
	}

	return harvesterr.Configuration(platform, "no %s specified", what)
}
