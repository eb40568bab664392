package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/logger"
	"harvester/internal/models"
	"harvester/internal/platform"
)

type call struct {
	entity string
	maxID  string
}

// fakeAPI serves tweets keyed by entity and max id.
type fakeAPI struct {
	pages map[string]map[string][]Tweet
	errs  map[string]error
	calls []call
}

func (f *fakeAPI) page(entity, maxID string) ([]Tweet, error) {
	f.calls = append(f.calls, call{entity: entity, maxID: maxID})

	if err, ok := f.errs[entity]; ok {
		return nil, err
	}

	return f.pages[entity][maxID], nil
}

func (f *fakeAPI) UserTimeline(_ context.Context, screenName, maxID string) ([]Tweet, error) {
	return f.page(screenName, maxID)
}

func (f *fakeAPI) Search(_ context.Context, query, maxID string) ([]Tweet, error) {
	return f.page(query, maxID)
}

func tweet(user string, id int64) Tweet {
	return Tweet{
		ID:            id,
		IDStr:         strconv.FormatInt(id, 10),
		User:          User{ScreenName: user},
		FullText:      "tweet " + strconv.FormatInt(id, 10),
		CreatedAt:     "Wed Mar 20 08:15:00 +0000 2024",
		Lang:          "en",
		FavoriteCount: models.Int(1),
	}
}

func TestHarvest_TimelineWalksByMaxID(t *testing.T) {
	api := &fakeAPI{pages: map[string]map[string][]Tweet{
		"redcross": {
			"":    {tweet("redcross", 350), tweet("redcross", 300)},
			"299": {tweet("redcross", 250), tweet("redcross", 200)},
			"199": {tweet("redcross", 100)},
		},
	}}

	h := New(config.TwitterConfig{TrackUsers: true, Users: []string{"redcross"}}, api, Options{})

	tables, err := h.Harvest(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)

	want := []call{{"redcross", ""}, {"redcross", "299"}, {"redcross", "199"}, {"redcross", "99"}}
	if diff := cmp.Diff(want, api.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}

	table := tables[0]
	require.Equal(t, TableName, table.Name)
	require.Equal(t, "id", table.IDField)

	var ids []string
	for _, r := range table.Records {
		ids = append(ids, r.ID)
	}

	require.Equal(t, []string{"350", "300", "250", "200", "100"}, ids)
}

func TestHarvest_UsersBeforeQueriesAndDedup(t *testing.T) {
	fromSearch := tweet("redcross", 300)
	fromSearch.FullText = "copy seen by search"

	api := &fakeAPI{pages: map[string]map[string][]Tweet{
		"redcross":     {"": {tweet("redcross", 300)}},
		"flood relief": {"": {fromSearch, tweet("someone", 42)}},
	}}

	h := New(config.TwitterConfig{
		TrackUsers: true, Users: []string{"redcross"},
		TrackQueries: true, Queries: []string{"flood relief"},
	}, api, Options{})

	tables, err := h.Harvest(context.Background())
	require.NoError(t, err)

	records := tables[0].Records
	require.Len(t, records, 2)
	require.Equal(t, "tweet 300", records[0].Text)
	require.Equal(t, "42", records[1].ID)
	require.Equal(t, "someone", records[1].Source)
}

func TestHarvest_ConfigurationErrorBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TwitterConfig
	}{
		{name: "nothing tracked", cfg: config.TwitterConfig{}},
		{name: "no users", cfg: config.TwitterConfig{TrackUsers: true}},
		{name: "no queries", cfg: config.TwitterConfig{TrackUsers: true, Users: []string{"a"}, TrackQueries: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}

			_, err := New(tt.cfg, api, Options{}).Harvest(context.Background())
			require.True(t, harvesterr.IsConfiguration(err))
			require.Empty(t, api.calls)
		})
	}
}

func TestHarvest_UnavailableUserIsSkipped(t *testing.T) {
	var buf bytes.Buffer

	api := &fakeAPI{
		pages: map[string]map[string][]Tweet{"ifrc": {"": {tweet("ifrc", 7)}}},
		errs:  map[string]error{"suspended": &platform.StatusError{StatusCode: http.StatusNotFound}},
	}

	h := New(config.TwitterConfig{TrackUsers: true, Users: []string{"suspended", "ifrc"}}, api, Options{
		Logger: logger.New(&buf, "info", "text"),
	})

	tables, err := h.Harvest(context.Background())
	require.NoError(t, err)
	require.Len(t, tables[0].Records, 1)
	require.Contains(t, buf.String(), "level=ERROR")
	require.Contains(t, buf.String(), "suspended")
}

func TestHarvest_FailedSearchPageKeepsEarlierPages(t *testing.T) {
	var buf bytes.Buffer

	api := &flakySearch{fakeAPI: fakeAPI{pages: map[string]map[string][]Tweet{
		"aid": {"": {tweet("a", 50)}},
	}}, failAt: "49"}

	h := New(config.TwitterConfig{TrackQueries: true, Queries: []string{"aid"}}, api, Options{
		Logger: logger.New(&buf, "warn", "text"),
	})

	tables, err := h.Harvest(context.Background())
	require.NoError(t, err)
	require.Len(t, tables[0].Records, 1)
	require.Contains(t, buf.String(), "page fetch failed")
}

type flakySearch struct {
	fakeAPI
	failAt string
}

func (f *flakySearch) Search(ctx context.Context, query, maxID string) ([]Tweet, error) {
	if maxID == f.failAt {
		return nil, errors.New("connection reset")
	}

	return f.fakeAPI.Search(ctx, query, maxID)
}

func TestNormalize(t *testing.T) {
	var tw Tweet
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 1234, "id_str": "1234", "created_at": "Wed Mar 20 08:15:00 +0000 2024",
		"full_text": "Flood warning for the Danube", "lang": "ro",
		"retweet_count": 0, "user": {"screen_name": "crucearosie"}, "extra": [1, 2]
	}`), &tw))

	records, err := Normalize(tw)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	require.Equal(t, "1234", r.ID)
	require.Equal(t, "crucearosie", r.Source)
	require.Equal(t, "Flood warning for the Danube", r.Text)
	require.Equal(t, "https://twitter.com/crucearosie/status/1234", *r.URL)
	require.Equal(t, int64(0), *r.ShareCount)
	require.Nil(t, r.LikeCount)
	require.Contains(t, string(r.Attributes), `"extra"`)

	_, err = Normalize(Tweet{})
	require.ErrorIs(t, err, ErrMissingTweetID)
}

func TestHTTPAPI_ExchangesConsumerKeyAndPagesTimeline(t *testing.T) {
	var maxIDs []string

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if user, _, _ := r.BasicAuth(); user != "ck" {
			w.WriteHeader(http.StatusForbidden)

			return
		}

		_, _ = w.Write([]byte(`{"token_type":"bearer","access_token":"app-token"}`))
	})
	mux.HandleFunc("/1.1/statuses/user_timeline.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer app-token" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		q := r.URL.Query()
		if q.Get("count") != "200" || q.Get("include_rts") != "false" || q.Get("tweet_mode") != "extended" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		maxIDs = append(maxIDs, q.Get("max_id"))

		if q.Get("max_id") == "" {
			_, _ = w.Write([]byte(`[{"id": 10, "id_str": "10", "user": {"screen_name": "u"}}]`))

			return
		}

		_, _ = w.Write([]byte(`[]`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	retry := config.Default().Harvester.Retry
	client := platform.NewClient(platform.ClientOptions{Platform: config.Twitter, BaseURL: srv.URL + "/1.1", Retry: retry})

	tokenURL, err := TokenURL(srv.URL + "/1.1")
	require.NoError(t, err)

	creds, err := ParseCredentials([]byte(`{"CONSUMER_KEY":"ck","CONSUMER_SECRET":"cs"}`))
	require.NoError(t, err)

	api, err := NewHTTPAPI(context.Background(), client, creds, tokenURL)
	require.NoError(t, err)

	tables, err := New(config.TwitterConfig{TrackUsers: true, Users: []string{"u"}}, api, Options{}).Harvest(context.Background())
	require.NoError(t, err)
	require.Len(t, tables[0].Records, 1)
	require.Equal(t, []string{"", "9"}, maxIDs)
}

func TestParseCredentials(t *testing.T) {
	_, err := ParseCredentials([]byte(`{"ACCESS_TOKEN":"x"}`))
	require.True(t, harvesterr.IsConfiguration(err))

	_, err = ParseCredentials([]byte(`not json`))
	require.True(t, harvesterr.IsConfiguration(err))

	c, err := ParseCredentials([]byte(`{"BEARER_TOKEN":"b"}`))
	require.NoError(t, err)
	require.Equal(t, "b", c.BearerToken)
}
