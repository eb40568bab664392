// Package pagination walks paged platform APIs to completion.
//
// Every platform's continuation contract (max-id cursors, numbered search pages,
// next links, ascending offsets) is expressed as a Rule driving one loop, Each.
// The loop is bounded by Options.MaxPages and by cursor cycle detection, and it
// turns single-page failures into warnings when the rule can step past them.
package pagination

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"harvester/internal/harvesterr"
	"harvester/internal/logger"
)

// Walk termination errors.
var (
	ErrPageLimit = errors.New("page limit reached")
	ErrCycle     = errors.New("continuation cursor repeated")
)

// Walk bounds used when Options leaves them unset.
const (
	DefaultMaxPages               = 1000
	DefaultMaxConsecutiveFailures = 3
)

var tracer = otel.Tracer("harvester/pagination")

// Page is one partition of a result set.
type Page[T any] struct {
	// Next is the continuation token. nil means the response carried no continuation
	// key, which link-following rules treat as the terminal signal.
	Next  *string
	Items []T
}

// FetchFunc requests the page at cursor.
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Rule is a continuation contract.
type Rule[T any] interface {
	// Start returns the cursor of the first request.
	Start() string
	// Advance returns the cursor following a fetched page, or false if the page was terminal.
	Advance(cursor string, page Page[T]) (string, bool)
	// Recover returns the cursor to try after a failed page, or false if the walk
	// cannot get past the failure.
	Recover(cursor string) (string, bool)
}

// Options tunes a walk.
type Options struct {
	Logger   *logger.Logger
	Name     string
	MaxPages int
	// MaxConsecutiveFailures ends a walk whose rule skips failed pages once this
	// many pages in a row have failed.
	MaxConsecutiveFailures int
}

// Stats describes a finished walk.
type Stats struct {
	Requests int
	Failed   int
	Items    int
}

// Result holds every item of a walk in page order.
type Result[T any] struct {
	Items []T
	Stats
}

// Walk collects all items reachable from rule.Start().
//
// A non-nil error comes with the items gathered before the walk stopped.
func Walk[T any](ctx context.Context, fetch FetchFunc[T], rule Rule[T], opts Options) (Result[T], error) {
	var items []T

	stats, err := Each(ctx, fetch, rule, opts, func(item T) error {
		items = append(items, item)

		return nil
	})

	return Result[T]{Items: items, Stats: stats}, err
}

// Each calls fn for every item in page order. An error from fn stops the walk and is
// returned unchanged.
//
// Failure handling per page:
//   - EntityUnavailableError or ConfigurationError before any page succeeded: returned as is.
//   - Any other fetch error: logged as a warning. If rule.Recover yields a cursor the walk
//     continues there, otherwise the walk ends with a TransientFetchError. The walk also
//     ends with a TransientFetchError after MaxConsecutiveFailures failed pages in a row.
func Each[T any](ctx context.Context, fetch FetchFunc[T], rule Rule[T], opts Options, fn func(T) error) (stats Stats, err error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	maxFailures := opts.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxConsecutiveFailures
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	ctx, span := tracer.Start(ctx, "pagination.walk")
	span.SetAttributes(attribute.String("walk.name", opts.Name))

	defer func() {
		span.SetAttributes(
			attribute.Int("walk.requests", stats.Requests),
			attribute.Int("walk.failed", stats.Failed),
			attribute.Int("walk.items", stats.Items),
		)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	seen := make(map[string]struct{})
	cursor := rule.Start()
	streak := 0

	for page := 1; ; page++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, ctxErr
		}

		if page > maxPages {
			log.Warn("page limit reached, stopping walk", "walk", opts.Name, "max_pages", maxPages)

			return stats, fmt.Errorf("%s: %w (%d)", opts.Name, ErrPageLimit, maxPages)
		}

		if _, repeated := seen[cursor]; repeated {
			log.Warn("continuation cursor repeated, stopping walk", "walk", opts.Name, "cursor", cursor)

			return stats, fmt.Errorf("%s: %w: %q", opts.Name, ErrCycle, cursor)
		}

		seen[cursor] = struct{}{}
		stats.Requests++

		result, fetchErr := fetch(ctx, cursor)
		if fetchErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}

			firstPage := stats.Requests == 1
			if firstPage && (harvesterr.IsEntityUnavailable(fetchErr) || harvesterr.IsConfiguration(fetchErr)) {
				return stats, fetchErr
			}

			stats.Failed++
			streak++

			if streak >= maxFailures {
				log.Warn("too many failed pages in a row, stopping walk", "walk", opts.Name, "page", page,
					"failures", streak, "error", fetchErr)

				return stats, harvesterr.Transient(opts.Name, page, fetchErr)
			}

			log.Warn("page fetch failed, skipping page", "walk", opts.Name, "page", page, "error", fetchErr)

			next, ok := rule.Recover(cursor)
			if !ok {
				return stats, harvesterr.Transient(opts.Name, page, fetchErr)
			}

			cursor = next

			continue
		}

		streak = 0

		for _, item := range result.Items {
			if fnErr := fn(item); fnErr != nil {
				return stats, fnErr
			}

			stats.Items++
		}

		next, ok := rule.Advance(cursor, result)
		if !ok {
			log.Debug("walk finished", "walk", opts.Name, "requests", stats.Requests, "items", stats.Items)

			return stats, nil
		}

		cursor = next
	}
}
