package youtube

import (
	"context"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/logger"
	"harvester/internal/models"
	"harvester/internal/normalizer"
	"harvester/internal/pagination"
	"harvester/internal/platform"
)

// TableName is the dataset videos are saved under.
const TableName = "videos"

// Options tunes a Harvester.
type Options struct {
	Logger   *logger.Logger
	MaxPages int
}

// Harvester collects the videos of tracked channels.
type Harvester struct {
	api      API
	log      *logger.Logger
	proc     *normalizer.Processor
	cfg      config.YouTubeConfig
	maxPages int
}

// New creates a harvester.
func New(cfg config.YouTubeConfig, api API, opts Options) *Harvester {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	log = log.With("platform", config.YouTube)

	return &Harvester{
		api:      api,
		log:      log,
		proc:     normalizer.NewProcessor(normalizer.Options{Logger: log}),
		cfg:      cfg,
		maxPages: opts.MaxPages,
	}
}

// Validate checks the tracked channels without touching the network.
func (h *Harvester) Validate() error {
	return platform.RequireEntities(config.YouTube, "youtube channel", h.cfg.Channels)
}

// Harvest returns the videos table.
func (h *Harvester) Harvest(ctx context.Context) ([]*models.Table, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	parts, err := platform.EachEntity(ctx, h.log, config.YouTube, h.cfg.Channels, h.channel)
	if err != nil {
		return nil, err
	}

	builder := models.NewTableBuilder(TableName, config.YouTube, models.NaturalID)
	builder.Merge(parts...)

	table, stats, err := builder.Build()
	if err != nil {
		return nil, err
	}

	h.log.Info("videos collected", "records", table.Len(), "duplicates", stats.Duplicates)

	return []*models.Table{table}, nil
}

// channel walks a channel's search pages, then looks up statistics with one
// videos.list call per page worth of ids.
func (h *Harvester) channel(ctx context.Context, channelID string) ([]models.Record, error) {
	fetch := func(ctx context.Context, token string) (pagination.Page[SearchResult], error) {
		page, err := h.api.SearchVideos(ctx, channelID, token)

		return page, platform.Classify(config.YouTube, channelID, err)
	}

	res, err := pagination.Walk(ctx, fetch, pagination.Links[SearchResult](), pagination.Options{
		Logger:   h.log,
		Name:     "search " + channelID,
		MaxPages: h.maxPages,
	})

	videos := h.lookup(ctx, res.Items)

	records := platform.NormalizeAll(h.log, config.YouTube, res.Items, func(item SearchResult) ([]models.Record, error) {
		return Normalize(h.proc, item, videos[item.ID.VideoID])
	})

	return h.proc.Process(records), err
}

// lookup fetches video details in batches of SearchPageSize ids. A failed batch
// is logged and its videos keep nil statistics.
func (h *Harvester) lookup(ctx context.Context, items []SearchResult) map[string]*Video {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}

	byID := make(map[string]*Video, len(ids))

	for start := 0; start < len(ids); start += SearchPageSize {
		batch := ids[start:min(start+SearchPageSize, len(ids))]

		videos, err := h.api.Videos(ctx, batch)
		if err != nil {
			h.log.Warn("video statistics unavailable", "videos", len(batch),
				"error", harvesterr.Transient("videos.list", start/SearchPageSize+1, err))

			continue
		}

		for i := range videos {
			byID[videos[i].ID] = &videos[i]
		}
	}

	return byID
}
