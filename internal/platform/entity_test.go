package platform

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"harvester/internal/harvesterr"
	"harvester/internal/logger"
	"harvester/internal/models"
	"harvester/internal/pagination"
)

func TestEachEntity_CategoriesDecideWhatIsKept(t *testing.T) {
	var buf bytes.Buffer

	log := logger.New(&buf, "debug", "text")

	results := map[string]struct {
		records []models.Record
		err     error
	}{
		"ok":      {records: []models.Record{{ID: "1"}}},
		"gone":    {records: []models.Record{{ID: "2"}}, err: harvesterr.Unavailable("telegram", "gone", errors.New("404"))},
		"flaky":   {records: []models.Record{{ID: "3"}}, err: harvesterr.Transient("messages", 2, errors.New("503"))},
		"endless": {records: []models.Record{{ID: "4"}}, err: pagination.ErrPageLimit},
		"empty":   {},
	}

	parts, err := EachEntity(context.Background(), log, "telegram",
		[]string{"ok", "gone", "flaky", "endless", "empty"},
		func(_ context.Context, entity string) ([]models.Record, error) {
			r := results[entity]

			return r.records, r.err
		})
	require.NoError(t, err)

	var entities []string
	for _, p := range parts {
		entities = append(entities, p.Entity)
	}

	require.Equal(t, []string{"ok", "flaky", "endless"}, entities)
	require.Contains(t, buf.String(), "level=ERROR msg=\"entity unavailable, skipping\"")
	require.Contains(t, buf.String(), "level=WARN msg=\"entity harvested partially\"")
	require.Contains(t, buf.String(), "walk stopped early")
}

func TestEachEntity_ConfigurationErrorAborts(t *testing.T) {
	calls := 0

	_, err := EachEntity(context.Background(), nil, "kobo", []string{"a", "b"},
		func(context.Context, string) ([]models.Record, error) {
			calls++

			return nil, harvesterr.Configuration("kobo", "missing token")
		})
	require.True(t, harvesterr.IsConfiguration(err))
	require.Equal(t, 1, calls)
}

func TestEachEntity_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	_, err := EachEntity(ctx, nil, "youtube", []string{"a", "b"},
		func(context.Context, string) ([]models.Record, error) {
			cancel()

			return nil, context.Canceled
		})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRequireEntities(t *testing.T) {
	require.NoError(t, RequireEntities("twitter", "users", []string{"redcross"}))

	err := RequireEntities("twitter", "users", []string{"", ""})
	require.True(t, harvesterr.IsConfiguration(err))
	require.EqualError(t, err, "twitter: invalid configuration: no users specified")

	require.Error(t, RequireEntities("youtube", "channels", nil))
}

func TestNormalizeAll_SkipsMalformed(t *testing.T) {
	var buf bytes.Buffer

	out := NormalizeAll(logger.New(&buf, "warn", "text"), "kobo", []int{1, -1, 2},
		func(v int) ([]models.Record, error) {
			if v < 0 {
				return nil, errors.New("negative")
			}

			return []models.Record{{ID: "a"}, {ID: "b"}}, nil
		})

	require.Len(t, out, 4)
	require.Contains(t, buf.String(), "skipping malformed item")
}
