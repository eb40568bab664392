package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/logger"
	"harvester/internal/models"
	"harvester/internal/normalizer"
	"harvester/internal/pagination"
	"harvester/internal/platform"
)

// Options tunes a Harvester.
type Options struct {
	Logger      *logger.Logger
	Now         func() time.Time
	CountryCode string
	Window      config.WindowConfig
	MaxPages    int
}

// Harvester collects the recent messages of tracked channels and one member
// count row per channel.
type Harvester struct {
	api      API
	log      *logger.Logger
	proc     *normalizer.Processor
	now      func() time.Time
	country  string
	channels []string
	window   config.WindowConfig
	maxPages int
}

// New creates a harvester for channels.
func New(channels []string, api API, opts Options) *Harvester {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	log = log.With("platform", config.Telegram)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Harvester{
		api:      api,
		log:      log,
		proc:     normalizer.NewProcessor(normalizer.Options{Logger: log, DeriveDate: true}),
		now:      now,
		country:  opts.CountryCode,
		channels: channels,
		window:   opts.Window,
		maxPages: opts.MaxPages,
	}
}

// TableNames returns the messages and member count dataset names for a window.
func TableNames(country string, start, end time.Time) (string, string) {
	span := start.Format(time.DateOnly) + "_" + end.Format(time.DateOnly)

	return fmt.Sprintf("%s_TL_messages_%s", country, span), fmt.Sprintf("%s_TL_membercount_%s", country, span)
}

// Validate checks channels, country code and window without touching the network.
func (h *Harvester) Validate() error {
	if h.country == "" {
		return harvesterr.Configuration(config.Telegram, "no country code specified")
	}

	if h.window.Days < 1 {
		return harvesterr.Configuration(config.Telegram, "window of %d days", h.window.Days)
	}

	return platform.RequireEntities(config.Telegram, "telegram channel", h.channels)
}

// Harvest returns the messages table followed by the member count table.
func (h *Harvester) Harvest(ctx context.Context) ([]*models.Table, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	now := h.now()
	start, end := h.window.Window(now)
	messagesName, membersName := TableNames(h.country, start, end)

	var counts []models.Record

	parts, err := platform.EachEntity(ctx, h.log, config.Telegram, h.channels,
		func(ctx context.Context, channel string) ([]models.Record, error) {
			info, err := h.api.Channel(ctx, channel)
			if err != nil {
				return nil, platform.Classify(config.Telegram, channel, err)
			}

			records, err := h.channel(ctx, channel, start)
			if harvesterr.IsEntityUnavailable(err) {
				return nil, err
			}

			counts = append(counts, MemberCount(channel, info.ParticipantsCount, len(records), end, now))

			return records, err
		})
	if err != nil {
		return nil, err
	}

	messages := models.NewTableBuilder(messagesName, config.Telegram, models.NaturalID)
	messages.Merge(parts...)

	members := models.NewTableBuilder(membersName, config.Telegram, models.Sequence)
	members.AppendAll(h.proc.Process(counts))

	messageTable, stats, err := messages.Build()
	if err != nil {
		return nil, err
	}

	memberTable, _, err := members.Build()
	if err != nil {
		return nil, err
	}

	h.log.Info("messages collected",
		"records", messageTable.Len(),
		"replies", messages.CountWhere(func(r *models.Record) bool { return r.Kind == models.KindReply }),
		"duplicates", stats.Duplicates,
		"channels", memberTable.Len())

	return []*models.Table{messageTable, memberTable}, nil
}

// channel walks messages posted since start in ascending order. Each message with
// a discussion is followed by its replies.
func (h *Harvester) channel(ctx context.Context, channel string, start time.Time) ([]models.Record, error) {
	var records []models.Record

	fetch := func(ctx context.Context, cursor string) (pagination.Page[Message], error) {
		msgs, err := h.api.Messages(ctx, channel, start, parseID(cursor))

		return pagination.Page[Message]{Items: msgs}, platform.Classify(config.Telegram, channel, err)
	}

	_, err := pagination.Each(ctx, fetch, pagination.Offset("", messageKey), h.walkOptions("messages "+channel),
		func(m Message) error {
			records = append(records, NormalizeMessage(channel, m))

			if m.HasReplies() {
				records = append(records, h.replies(ctx, channel, m.ID)...)
			}

			return ctx.Err()
		})

	return h.proc.Process(records), err
}

func (h *Harvester) replies(ctx context.Context, channel string, parent int64) []models.Record {
	fetch := func(ctx context.Context, cursor string) (pagination.Page[Message], error) {
		msgs, err := h.api.Replies(ctx, channel, parent, parseID(cursor))

		return pagination.Page[Message]{Items: msgs}, err
	}

	name := "replies " + MessageID(channel, parent)

	res, err := pagination.Walk(ctx, fetch, pagination.Offset("", messageKey), h.walkOptions(name))
	if err != nil && ctx.Err() == nil {
		h.log.Warn("replies incomplete", "message", MessageID(channel, parent), "replies", len(res.Items), "error", err)
	}

	records := make([]models.Record, 0, len(res.Items))
	for _, m := range res.Items {
		records = append(records, NormalizeReply(channel, parent, m))
	}

	return records
}

func (h *Harvester) walkOptions(name string) pagination.Options {
	return pagination.Options{Logger: h.log, Name: name, MaxPages: h.maxPages}
}

func messageKey(m Message) string {
	return strconv.FormatInt(m.ID, 10)
}

func parseID(cursor string) int64 {
	id, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil {
		return 0
	}

	return id
}
