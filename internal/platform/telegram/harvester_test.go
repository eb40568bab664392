package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/models"
	"harvester/internal/platform"
)

var today = time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC)

type fakeAPI struct {
	channels map[string]Channel
	messages map[string]map[int64][]Message
	replies  map[int64]map[int64][]Message
	since    []time.Time
}

func (f *fakeAPI) Channel(_ context.Context, channel string) (Channel, error) {
	c, ok := f.channels[channel]
	if !ok {
		return Channel{}, &platform.StatusError{StatusCode: http.StatusNotFound}
	}

	return c, nil
}

func (f *fakeAPI) Messages(_ context.Context, channel string, since time.Time, afterID int64) ([]Message, error) {
	f.since = append(f.since, since)

	return f.messages[channel][afterID], nil
}

func (f *fakeAPI) Replies(_ context.Context, _ string, messageID, afterID int64) ([]Message, error) {
	return f.replies[messageID][afterID], nil
}

func msg(id int64, date string, replies int64) Message {
	return Message{
		ID:      id,
		Date:    date,
		Message: "message",
		Views:   models.Int(100),
		Replies: &ReplyInfo{Replies: models.Int(replies)},
	}
}

func options() Options {
	return Options{
		CountryCode: "RO",
		Window:      config.WindowConfig{Days: 14},
		Now:         func() time.Time { return today },
	}
}

func TestHarvest_MessagesRepliesAndMemberCounts(t *testing.T) {
	api := &fakeAPI{
		channels: map[string]Channel{
			"@crucearosie": {ParticipantsCount: models.Int(5400)},
		},
		messages: map[string]map[int64][]Message{
			"@crucearosie": {
				0:  {msg(10, "2024-03-07T09:00:00Z", 2), msg(11, "2024-03-08T09:00:00Z", 0)},
				11: {msg(12, "2024-03-19T22:30:00Z", 0)},
			},
		},
		replies: map[int64]map[int64][]Message{
			10: {0: {{ID: 500, Date: "2024-03-07T10:00:00Z", Message: "thank you"}}},
		},
	}

	tables, err := New([]string{"@crucearosie", "@gone"}, api, options()).Harvest(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)

	messages, members := tables[0], tables[1]
	require.Equal(t, "RO_TL_messages_2024-03-06_2024-03-20", messages.Name)
	require.Equal(t, "RO_TL_membercount_2024-03-06_2024-03-20", members.Name)

	var ids []string
	for _, r := range messages.Records {
		ids = append(ids, r.ID)
		require.Equal(t, "@crucearosie", r.Source)
	}

	require.Equal(t, []string{"@crucearosie/10", "@crucearosie/10/500", "@crucearosie/11", "@crucearosie/12"}, ids)

	reply := messages.Records[1]
	require.Equal(t, models.KindReply, reply.Kind)
	require.Equal(t, "@crucearosie/10", *reply.ParentID)
	require.Equal(t, "2024-03-07", *reply.Date)
	require.Equal(t, "2024-03-19", *messages.Records[3].Date)
	require.Equal(t, int64(2), *messages.Records[0].ReplyCount)

	require.Len(t, members.Records, 1)

	count := members.Records[0]
	require.Equal(t, "0", count.ID)
	require.Equal(t, int64(5400), *count.MemberCount)
	require.Equal(t, int64(4), *count.MessageCount)
	require.Equal(t, "2024-03-20", *count.Date)

	require.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), api.since[0])
}

func TestHarvest_ConfigurationErrors(t *testing.T) {
	noCountry := options()
	noCountry.CountryCode = ""

	tests := []struct {
		name     string
		channels []string
		opts     Options
	}{
		{name: "no channels", opts: options()},
		{name: "no country", channels: []string{"@a"}, opts: noCountry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}

			_, err := New(tt.channels, api, tt.opts).Harvest(context.Background())
			require.True(t, harvesterr.IsConfiguration(err))
			require.Empty(t, api.since)
		})
	}
}

func TestHasReplies(t *testing.T) {
	require.False(t, Message{}.HasReplies())
	require.False(t, msg(1, "", 0).HasReplies())
	require.True(t, msg(1, "", 3).HasReplies())
}

func TestHTTPAPI(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/channels/news", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gw" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		_, _ = w.Write([]byte(`{"id": 1, "participants_count": 42}`))
	})
	mux.HandleFunc("/channels/news/messages", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("reverse") != "true" || q.Get("offset_date") != "2024-03-06T00:00:00Z" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		if q.Get("min_id") == "0" {
			_, _ = w.Write([]byte(`{"messages": [{"id": 7, "date": "2024-03-10T08:00:00Z", "message": "hello", "replies": {"replies": 1}}]}`))

			return
		}

		_, _ = w.Write([]byte(`{"messages": []}`))
	})
	mux.HandleFunc("/channels/news/messages/7/replies", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("min_id") == "0" {
			_, _ = w.Write([]byte(`{"messages": [{"id": 90, "date": "2024-03-10T09:00:00Z", "message": "hi"}]}`))

			return
		}

		_, _ = w.Write([]byte(`{"messages": []}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := platform.NewClient(platform.ClientOptions{
		Platform: config.Telegram,
		BaseURL:  srv.URL,
		Retry:    config.Default().Harvester.Retry,
	})

	creds, err := ParseCredentials([]byte(`{"gateway-token": "gw"}`))
	require.NoError(t, err)

	tables, err := New([]string{"news"}, NewHTTPAPI(client, creds, 100), options()).Harvest(context.Background())
	require.NoError(t, err)
	require.Len(t, tables[0].Records, 2)
	require.Equal(t, int64(42), *tables[1].Records[0].MemberCount)
	require.Equal(t, int64(2), *tables[1].Records[0].MessageCount)
}
