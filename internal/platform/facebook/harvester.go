package facebook

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

// TableName is the dataset posts, comments and replies are saved under.
const TableName = "facebook_posts"

// Options tunes a Harvester.
type Options struct {
	Logger   *logger.Logger
	MaxPages int
}

// Harvester collects the feeds of tracked pages, flattening each post's comment
// tree into rows after the post.
type Harvester struct {
	api      API
	log      *logger.Logger
	proc     *normalizer.Processor
	pages    []string
	maxPages int
}

// New creates a harvester for pages.
func New(pages []string, api API, opts Options) *Harvester {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	log = log.With("platform", config.Facebook)

	return &Harvester{
		api:      api,
		log:      log,
		proc:     normalizer.NewProcessor(normalizer.Options{Logger: log}),
		pages:    pages,
		maxPages: opts.MaxPages,
	}
}

// Validate checks the tracked pages without touching the network.
func (h *Harvester) Validate() error {
	return platform.RequireEntities(config.Facebook, "facebook page", h.pages)
}

// Harvest returns the posts table. Rows without a Graph id get a content hash id.
func (h *Harvester) Harvest(ctx context.Context) ([]*models.Table, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	parts, err := platform.EachEntity(ctx, h.log, config.Facebook, h.pages, h.page)
	if err != nil {
		return nil, err
	}

	builder := models.NewTableBuilder(TableName, config.Facebook, models.ContentHash)
	builder.Merge(parts...)

	table, stats, err := builder.Build()
	if err != nil {
		return nil, err
	}

	h.log.Info("posts collected",
		"records", table.Len(),
		"posts", builder.CountWhere(func(r *models.Record) bool { return r.Kind == models.KindPost }),
		"duplicates", stats.Duplicates)

	return []*models.Table{table}, nil
}

func (h *Harvester) page(ctx context.Context, pageID string) ([]models.Record, error) {
	var records []models.Record

	fetch := func(ctx context.Context, cursor string) (pagination.Page[Post], error) {
		page, err := h.api.Feed(ctx, pageID, cursor)

		return page, platform.Classify(config.Facebook, pageID, err)
	}

	_, err := pagination.Each(ctx, fetch, pagination.Links[Post](), h.walkOptions("feed "+pageID),
		func(post Post) error {
			records = append(records, h.post(ctx, pageID, post)...)

			return ctx.Err()
		})

	return h.proc.Process(records), err
}

// post returns the post record followed by its comments, each comment directly
// followed by its replies.
func (h *Harvester) post(ctx context.Context, pageID string, post Post) []models.Record {
	details, err := h.api.Post(ctx, post.ID)
	if err != nil {
		h.log.Warn("post details unavailable", "post", post.ID, "error", harvesterr.Transient("post "+post.ID, 0, err))
	}

	records := []models.Record{NormalizePost(pageID, post, details)}

	return append(records, h.thread(ctx, pageID, post.ID, models.KindComment)...)
}

// thread walks the comments under parentID. Comments may have replies, replies do not.
func (h *Harvester) thread(ctx context.Context, pageID, parentID string, kind models.Kind) []models.Record {
	var records []models.Record

	fetch := func(ctx context.Context, cursor string) (pagination.Page[Comment], error) {
		return h.api.Comments(ctx, parentID, cursor)
	}

	_, err := pagination.Each(ctx, fetch, pagination.Links[Comment](), h.walkOptions("comments "+parentID),
		func(c Comment) error {
			records = append(records, NormalizeComment(pageID, parentID, kind, c))

			hasReplies := c.CommentCount == nil || *c.CommentCount > 0
			if kind == models.KindComment && c.ID != "" && hasReplies {
				records = append(records, h.thread(ctx, pageID, c.ID, models.KindReply)...)
			}

			return ctx.Err()
		})
	if err != nil && ctx.Err() == nil {
		h.log.Warn("comment thread incomplete", "parent", parentID, "records", len(records), "error", err)
	}

	return records
}

func (h *Harvester) walkOptions(name string) pagination.Options {
	return pagination.Options{Logger: h.log, Name: name, MaxPages: h.maxPages}
}
