// Package normalizer holds the record-level steps shared by every platform:
// metric and date conversion, validation, and the processor tying them together.
package normalizer

import (
	"harvester/internal/logger"
	"harvester/internal/models"
)

// Options configures a Processor.
type Options struct {
	Logger *logger.Logger
	// DeriveDate fills Record.Date from CreatedAt.
	DeriveDate bool
}

// Processor applies defaults, derived fields and validation to normalized records.
type Processor struct {
	validator   *Validator
	transformer *Transformer
	log         *logger.Logger
	deriveDate  bool
}

// NewProcessor creates a new processor instance.
func NewProcessor(opts Options) *Processor {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(),
		log:         log,
		deriveDate:  opts.DeriveDate,
	}
}

// Transformer returns the processor's field transformer.
func (p *Processor) Transformer() *Transformer {
	return p.transformer
}

// Process returns the records that pass validation, in input order.
// Rejected records are logged at warning level and dropped.
func (p *Processor) Process(records []models.Record) []models.Record {
	out := make([]models.Record, 0, len(records))

	for i := range records {
		r := records[i]

		if r.Lang == "" {
			r.Lang = models.DefaultLang
		}

		if p.deriveDate && r.Date == nil && r.CreatedAt != "" {
			date, err := p.transformer.Date(r.CreatedAt)
			if err != nil {
				p.log.Warn("cannot derive date", "id", r.ID, "created_at", r.CreatedAt, "error", err)
			} else {
				r.Date = models.String(date)
			}
		}

		if err := p.validator.Validate(&r); err != nil {
			p.log.Warn("dropping invalid record", "id", r.ID, "source", r.Source, "error", err)

			continue
		}

		out = append(out, r)
	}

	return out
}

// Count converts a raw metric string, logging and returning nil when it cannot be parsed.
// An absent value (empty string) is nil without a warning.
func (p *Processor) Count(field, raw string) *int64 {
	if raw == "" {
		return nil
	}

	v, err := p.transformer.Count(raw)
	if err != nil {
		p.log.Warn("unparsable metric", "field", field, "value", raw, "error", err)

		return nil
	}

	return v
}
