package telegram

import (
	"strconv"
	"time"

	"harvester/internal/models"
)

// MessageID is the record id of a channel message.
func MessageID(channel string, id int64) string {
	return channel + "/" + strconv.FormatInt(id, 10)
}

// ReplyID is the record id of a reply under parent.
func ReplyID(channel string, parent, id int64) string {
	return MessageID(channel, parent) + "/" + strconv.FormatInt(id, 10)
}

// NormalizeMessage maps a channel message onto a record.
func NormalizeMessage(channel string, m Message) models.Record {
	r := models.Record{
		ID:        MessageID(channel, m.ID),
		Source:    channel,
		Kind:      models.KindMessage,
		CreatedAt: m.Date,
		Text:      m.Message,
		Metrics: models.Metrics{
			ViewCount:    m.Views,
			ForwardCount: m.Forwards,
		},
	}

	if m.Replies != nil {
		r.ReplyCount = m.Replies.Replies
	}

	return r
}

// NormalizeReply maps a reply onto a record tagged with the channel it was posted under.
func NormalizeReply(channel string, parent int64, m Message) models.Record {
	return models.Record{
		ID:        ReplyID(channel, parent, m.ID),
		Source:    channel,
		Kind:      models.KindReply,
		ParentID:  models.String(MessageID(channel, parent)),
		CreatedAt: m.Date,
		Text:      m.Message,
		Metrics: models.Metrics{
			ViewCount:    m.Views,
			ForwardCount: m.Forwards,
		},
	}
}

// MemberCount builds the per-run member count row of a channel.
func MemberCount(channel string, members *int64, messages int, day, at time.Time) models.Record {
	return models.Record{
		Source:    channel,
		Kind:      models.KindMemberCount,
		CreatedAt: at.Format(time.RFC3339),
		Date:      models.String(day.Format(time.DateOnly)),
		Lang:      models.DefaultLang,
		Metrics: models.Metrics{
			MemberCount:  members,
			MessageCount: models.Int(int64(messages)),
		},
	}
}
