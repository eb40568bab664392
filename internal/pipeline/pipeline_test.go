package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/credentials"
	"harvester/internal/harvesterr"
	"harvester/internal/models"
	"harvester/internal/sink"
)

// platformServer fakes the Kobo and YouTube APIs on one host and counts any
// request that reaches a Twitter endpoint.
func platformServer(t *testing.T, twitterHits *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v2/assets/a1/data.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)

			return
		}

		switch r.URL.Query().Get("start") {
		case "0":
			fmt.Fprint(w, `{"results":[{"_id":1,"_submission_time":"2024-03-01T10:00:00","q1":"yes"},{"_id":2,"_submission_time":"2024-03-01T11:00:00"}]}`)
		case "2":
			fmt.Fprint(w, `{"results":[{"_id":3,"_submission_time":"2024-03-02T09:00:00"}]}`)
		default:
			fmt.Fprint(w, `{"results":[]}`)
		}
	})

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		assert.Equal(t, "UC1", r.URL.Query().Get("channelId"))

		fmt.Fprint(w, `{"items":[{"id":{"kind":"youtube#video","videoId":"v1"},
			"snippet":{"publishedAt":"2024-03-01T00:00:00Z","channelTitle":"Red Cross","title":"Flood update"}}]}`)
	})

	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "v1", r.URL.Query().Get("id"))

		fmt.Fprint(w, `{"items":[{"id":"v1","statistics":{"viewCount":"1,200","likeCount":"7"}}]}`)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/oauth2") || strings.HasPrefix(r.URL.Path, "/statuses") {
			twitterHits.Add(1)
		}

		http.NotFound(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func writeSecret(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o600))
}

func readTable(t *testing.T, s *sink.FileSink, name string) []models.Record {
	t.Helper()

	records, err := sink.LoadFile(s.Path(name))
	require.NoError(t, err)

	return records
}

func TestPipeline_EndToEnd(t *testing.T) {
	var twitterHits atomic.Int32

	server := platformServer(t, &twitterHits)

	secrets := t.TempDir()
	writeSecret(t, secrets, KoboSecret, `{"token":"tok","asset":"a1"}`)
	writeSecret(t, secrets, GoogleSecret, `{"api_key":"k"}`)

	cfg := enabled("twitter", "youtube", "kobo")
	h := &cfg.Harvester
	h.Retry.MaxAttempts = 1
	h.Pagination.PageSize = 2
	h.Platforms.Twitter.BaseURL = server.URL + "/1.1"
	h.Platforms.Twitter.TrackUsers = true
	h.Platforms.Twitter.Users = []string{"redcross"}
	h.Platforms.YouTube.BaseURL = server.URL
	h.Platforms.YouTube.Channels = []string{"UC1"}
	h.Platforms.Kobo.BaseURL = server.URL

	out, err := sink.NewFileSink(t.TempDir(), nil)
	require.NoError(t, err)

	build := NewBuilder(cfg, credentials.NewDirProvider(secrets), nil).Build

	report, err := NewRunner(cfg, out, build, Options{}).Run(context.Background())
	require.NoError(t, err)

	// Twitter has no secret: a configuration error before any request.
	require.Equal(t, []string{"twitter"}, report.Failed())
	require.True(t, harvesterr.IsConfiguration(report.Platforms[0].Err))
	require.Zero(t, twitterHits.Load())

	forms := readTable(t, out, "form_data")
	require.Len(t, forms, 3)
	require.Equal(t, "1", forms[0].ID)
	require.Equal(t, "3", forms[2].ID)
	require.Equal(t, "a1", forms[0].Source)
	require.JSONEq(t, `{"_id":1,"_submission_time":"2024-03-01T10:00:00","q1":"yes"}`, string(forms[0].Attributes))

	videos := readTable(t, out, "videos")
	require.Len(t, videos, 1)
	require.Equal(t, "Red Cross", videos[0].Source)
	require.Equal(t, int64(1200), *videos[0].ViewCount)
	require.Equal(t, int64(7), *videos[0].LikeCount)
	require.Nil(t, videos[0].DislikeCount)
	require.Equal(t, "https://www.youtube.com/watch?v=v1", *videos[0].URL)

	require.Equal(t, 4, report.Records())
}

func TestBuilder_KoboWithoutAssetIsConfigurationError(t *testing.T) {
	secrets := t.TempDir()
	writeSecret(t, secrets, KoboSecret, `{"token":"tok"}`)

	cfg := enabled("kobo")

	h, err := NewBuilder(cfg, credentials.NewDirProvider(secrets), nil).Build(context.Background(), "kobo")
	require.NoError(t, err)
	require.True(t, harvesterr.IsConfiguration(h.Validate()))
}

func TestBuilder_MalformedSecret(t *testing.T) {
	secrets := t.TempDir()
	writeSecret(t, secrets, FacebookSecret, `{"token":`)

	_, err := NewBuilder(enabled("facebook"), credentials.NewDirProvider(secrets), nil).Build(context.Background(), "facebook")
	require.True(t, harvesterr.IsConfiguration(err))
}

func TestBuilder_TelegramSecretIsOptional(t *testing.T) {
	cfg := enabled("telegram")
	cfg.Harvester.CountryCode = "RO"
	cfg.Harvester.Platforms.Telegram.Channels = []string{"@news"}

	h, err := NewBuilder(cfg, credentials.NewDirProvider(t.TempDir()), nil).Build(context.Background(), "telegram")
	require.NoError(t, err)
	require.NoError(t, h.Validate())
}

func TestBuilder_UnknownPlatform(t *testing.T) {
	_, err := NewBuilder(enabled(), credentials.NewDirProvider(t.TempDir()), nil).Build(context.Background(), "myspace")
	require.ErrorContains(t, err, "unknown platform")
}
