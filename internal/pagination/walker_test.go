package pagination

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"harvester/internal/harvesterr"
	"harvester/internal/logger"
)

var errFlaky = errors.New("503 from upstream")

// scripted serves pages keyed by cursor and records every cursor requested.
type scripted struct {
	pages   map[string]Page[int]
	fail    map[string]error
	cursors []string
}

func (s *scripted) fetch(_ context.Context, cursor string) (Page[int], error) {
	s.cursors = append(s.cursors, cursor)

	if err, ok := s.fail[cursor]; ok {
		return Page[int]{}, err
	}

	return s.pages[cursor], nil
}

func link(s string) *string {
	return &s
}

func TestWalk_NumberedYieldsAllPagesInOrder(t *testing.T) {
	s := &scripted{pages: map[string]Page[int]{
		"1": {Items: []int{1, 2}},
		"2": {Items: []int{3}},
		"3": {Items: []int{4, 5, 6}},
		"4": {},
	}}

	res, err := Walk(context.Background(), s.fetch, Numbered[int](), Options{Name: "search"})
	require.NoError(t, err)

	if diff := cmp.Diff([]int{1, 2, 3, 4, 5, 6}, res.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, []string{"1", "2", "3", "4"}, s.cursors)
	require.Equal(t, Stats{Requests: 4, Items: 6}, res.Stats)
}

func TestWalk_MaxIDTimeline(t *testing.T) {
	// Three pages whose oldest ids are 300, 200 and 100, then an empty page.
	s := &scripted{pages: map[string]Page[int]{
		"":    {Items: []int{350, 320, 300}},
		"299": {Items: []int{250, 200}},
		"199": {Items: []int{180, 100}},
		"99":  {},
	}}

	rule := MaxID(func(v int) int64 { return int64(v) })

	res, err := Walk(context.Background(), s.fetch, rule, Options{Name: "timeline"})
	require.NoError(t, err)
	require.Equal(t, []int{350, 320, 300, 250, 200, 180, 100}, res.Items)
	require.Equal(t, []string{"", "299", "199", "99"}, s.cursors)
}

func TestWalk_MaxIDUsesSmallestID(t *testing.T) {
	s := &scripted{pages: map[string]Page[int]{
		"":  {Items: []int{10, 5, 8}},
		"4": {},
	}}

	_, err := Walk(context.Background(), s.fetch, MaxID(func(v int) int64 { return int64(v) }), Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"", "4"}, s.cursors)
}

func TestWalk_LinksStopOnlyWhenNextAbsent(t *testing.T) {
	s := &scripted{pages: map[string]Page[int]{
		"":  {Items: []int{1}, Next: link("b")},
		"b": {Items: nil, Next: link("c")},
		"c": {Items: []int{2}},
	}}

	res, err := Walk(context.Background(), s.fetch, Links[int](), Options{Name: "feed"})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, res.Items)
	require.Equal(t, []string{"", "b", "c"}, s.cursors)
}

func TestWalk_LinksCycleIsBounded(t *testing.T) {
	s := &scripted{pages: map[string]Page[int]{
		"":  {Items: []int{1}, Next: link("a")},
		"a": {Items: []int{2}, Next: link("b")},
		"b": {Items: []int{3}, Next: link("a")},
	}}

	res, err := Walk(context.Background(), s.fetch, Links[int](), Options{Name: "comments"})
	require.ErrorIs(t, err, ErrCycle)
	require.Equal(t, []int{1, 2, 3}, res.Items)
	require.Len(t, s.cursors, 3)
}

func TestWalk_PageLimit(t *testing.T) {
	endless := func(_ context.Context, cursor string) (Page[int], error) {
		n, _ := strconv.Atoi(cursor)

		return Page[int]{Items: []int{n}, Next: link(strconv.Itoa(n + 1))}, nil
	}

	res, err := Walk(context.Background(), endless, Links[int](), Options{MaxPages: 5})
	require.ErrorIs(t, err, ErrPageLimit)
	require.Equal(t, 5, res.Requests)
	require.Len(t, res.Items, 5)
}

func TestWalk_FailedMiddlePageIsSkipped(t *testing.T) {
	var buf bytes.Buffer

	s := &scripted{
		pages: map[string]Page[int]{
			"1": {Items: []int{1, 2}},
			"3": {},
		},
		fail: map[string]error{"2": errFlaky},
	}

	res, err := Walk(context.Background(), s.fetch, Numbered[int](), Options{
		Name:   "search",
		Logger: logger.New(&buf, "warn", "text"),
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, res.Items)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, []string{"1", "2", "3"}, s.cursors)
	require.Contains(t, buf.String(), "page fetch failed")
	require.Contains(t, buf.String(), "level=WARN")
}

// failingAfterFirst serves one item on page 1 and fails every later page.
type failingAfterFirst struct {
	calls int
}

func (f *failingAfterFirst) fetch(_ context.Context, cursor string) (Page[int], error) {
	f.calls++

	if cursor == "1" {
		return Page[int]{Items: []int{1}}, nil
	}

	return Page[int]{}, errFlaky
}

func TestWalk_ConsecutiveFailuresEndWalk(t *testing.T) {
	var buf bytes.Buffer

	f := &failingAfterFirst{}

	res, err := Walk(context.Background(), f.fetch, Numbered[int](), Options{
		Name:   "submissions",
		Logger: logger.New(&buf, "warn", "text"),
	})
	require.True(t, harvesterr.IsTransient(err))
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, []int{1}, res.Items)
	require.Equal(t, 1+DefaultMaxConsecutiveFailures, f.calls)
	require.Equal(t, DefaultMaxConsecutiveFailures, res.Failed)
	require.Contains(t, buf.String(), "too many failed pages in a row")
}

func TestWalk_SuccessResetsFailureStreak(t *testing.T) {
	s := &scripted{
		pages: map[string]Page[int]{
			"1": {Items: []int{1}},
			"3": {Items: []int{3}},
			"5": {Items: []int{5}},
			"6": {},
		},
		fail: map[string]error{"2": errFlaky, "4": errFlaky},
	}

	res, err := Walk(context.Background(), s.fetch, Numbered[int](), Options{MaxConsecutiveFailures: 2})
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, 5}, res.Items)
	require.Equal(t, 2, res.Failed)
}

func TestWalk_FailedLinkPageEndsWalkAsTransient(t *testing.T) {
	s := &scripted{
		pages: map[string]Page[int]{
			"": {Items: []int{1}, Next: link("b")},
		},
		fail: map[string]error{"b": errFlaky},
	}

	res, err := Walk(context.Background(), s.fetch, Links[int](), Options{Name: "feed"})
	require.True(t, harvesterr.IsTransient(err))
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, []int{1}, res.Items)
}

func TestWalk_FirstPageUnavailable(t *testing.T) {
	gone := harvesterr.Unavailable("telegram", "@closed", errors.New("404"))
	s := &scripted{fail: map[string]error{"": gone}}

	_, err := Walk(context.Background(), s.fetch, Links[int](), Options{})
	require.True(t, harvesterr.IsEntityUnavailable(err))
	require.False(t, harvesterr.IsTransient(err))
}

func TestWalk_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &scripted{}

	_, err := Walk(ctx, s.fetch, Numbered[int](), Options{})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, s.cursors)
}

func TestEach_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	s := &scripted{pages: map[string]Page[int]{
		"1": {Items: []int{1, 2, 3}},
		"2": {Items: []int{4}},
	}}

	var got []int

	stats, err := Each(context.Background(), s.fetch, Numbered[int](), Options{}, func(v int) error {
		if v == 2 {
			return stop
		}

		got = append(got, v)

		return nil
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, []int{1}, got)
	require.Equal(t, 1, stats.Items)
}

func TestWalk_OffsetAscending(t *testing.T) {
	s := &scripted{pages: map[string]Page[int]{
		"start": {Items: []int{11, 12}},
		"12":    {Items: []int{13}},
		"13":    {},
	}}

	rule := Offset("start", func(v int) string { return strconv.Itoa(v) })

	res, err := Walk(context.Background(), s.fetch, rule, Options{})
	require.NoError(t, err)
	require.Equal(t, []int{11, 12, 13}, res.Items)
	require.Equal(t, []string{"start", "12", "13"}, s.cursors)
}

func TestNext(t *testing.T) {
	require.Nil(t, Next(""))
	require.Equal(t, "tok", *Next("tok"))
}
