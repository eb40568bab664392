package kobo

import (
	"context"
	"encoding/json"
	"strconv"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/logger"
	"harvester/internal/models"
	"harvester/internal/normalizer"
	"harvester/internal/pagination"
	"harvester/internal/platform"
)

// Dataset naming.
const (
	TableName = "form_data"
	IDField   = "_id"
)

// DefaultPageSize is used when Options.PageSize is unset.
const DefaultPageSize = 100

// Options tunes a Harvester.
type Options struct {
	Logger   *logger.Logger
	MaxPages int
	PageSize int
}

// Harvester collects the submissions of the configured assets.
type Harvester struct {
	api      API
	log      *logger.Logger
	proc     *normalizer.Processor
	assets   []string
	maxPages int
	pageSize int
}

// New creates a harvester for assets.
func New(assets []string, api API, opts Options) *Harvester {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	log = log.With("platform", config.Kobo)

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Harvester{
		api:      api,
		log:      log,
		proc:     normalizer.NewProcessor(normalizer.Options{Logger: log}),
		assets:   assets,
		maxPages: opts.MaxPages,
		pageSize: pageSize,
	}
}

// Validate checks the assets without touching the network.
func (h *Harvester) Validate() error {
	return platform.RequireEntities(config.Kobo, "kobo asset", h.assets)
}

// Harvest returns the form data table.
func (h *Harvester) Harvest(ctx context.Context) ([]*models.Table, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	parts, err := platform.EachEntity(ctx, h.log, config.Kobo, h.assets, h.asset)
	if err != nil {
		return nil, err
	}

	builder := models.NewTableBuilder(TableName, config.Kobo, models.NaturalID).WithIDField(IDField)
	builder.Merge(parts...)

	table, stats, err := builder.Build()
	if err != nil {
		return nil, err
	}

	h.log.Info("submissions collected", "records", table.Len(), "duplicates", stats.Duplicates, "dropped", stats.Dropped)

	return []*models.Table{table}, nil
}

// asset walks numbered pages of pageSize submissions. A failed page is skipped
// and the walk goes on with the next offset.
func (h *Harvester) asset(ctx context.Context, asset string) ([]models.Record, error) {
	fetch := func(ctx context.Context, cursor string) (pagination.Page[json.RawMessage], error) {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 1 {
			return pagination.Page[json.RawMessage]{}, harvesterr.Transient("kobo page", 0, err)
		}

		items, err := h.api.Submissions(ctx, asset, (n-1)*h.pageSize, h.pageSize)
		if err != nil {
			return pagination.Page[json.RawMessage]{}, platform.Classify(config.Kobo, asset, err)
		}

		return pagination.Page[json.RawMessage]{Items: items}, nil
	}

	res, err := pagination.Walk(ctx, fetch, pagination.Numbered[json.RawMessage](), pagination.Options{
		Logger:   h.log,
		Name:     "submissions " + asset,
		MaxPages: h.maxPages,
	})

	records := platform.NormalizeAll(h.log, config.Kobo, res.Items, func(raw json.RawMessage) ([]models.Record, error) {
		return Normalize(asset, raw)
	})

	return h.proc.Process(records), err
}
