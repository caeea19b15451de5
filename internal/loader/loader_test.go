package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/window"
)

var now = time.Date(2024, time.August, 14, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[int][]strava.Activity
	failPage int
	requests []int
	perPage  int
	filter   string
}

func (f *fakeFetcher) FetchActivityPage(_ context.Context, _ string, page, perPage int, typeFilter string) ([]strava.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, page)
	f.perPage = perPage
	f.filter = typeFilter
	if page == f.failPage {
		return nil, &strava.UpstreamError{Op: "list_activities", StatusCode: 500, Err: errors.New("boom")}
	}
	return f.pages[page], nil
}

func run(id int64, daysAgo int) strava.Activity {
	return strava.Activity{
		ID:             id,
		Type:           strava.TypeRun,
		Distance:       5000,
		StartDateLocal: now.AddDate(0, 0, -daysAgo),
	}
}

func TestLoadStopsAfterPageCrossingWindowStart(t *testing.T) {
	t.Parallel()

	w, err := window.Resolve(window.ThreeMonths, 0, now)
	require.NoError(t, err)

	f := &fakeFetcher{pages: map[int][]strava.Activity{
		1: {run(1, 1), run(2, 10)},
		2: {run(3, 60), run(4, 200)},
		3: {run(5, 300)},
	}}

	got, err := New(f).Load(context.Background(), "token", w)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, f.requests, "page 3 must not be requested")
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 3}, ids(got))
	assert.Equal(t, DefaultPageSize, f.perPage)
	assert.Equal(t, strava.TypeRun, f.filter)
}

func TestLoadAllNeverEarlyStops(t *testing.T) {
	t.Parallel()

	w, err := window.Resolve(window.All, 0, now)
	require.NoError(t, err)

	pages := map[int][]strava.Activity{}
	for p := 1; p <= 25; p++ {
		// Everything after page 1 is far older than any bounded window.
		pages[p] = []strava.Activity{run(int64(p), p*400)}
	}
	f := &fakeFetcher{pages: pages}

	got, err := New(f).Load(context.Background(), "token", w)
	require.NoError(t, err)

	assert.Len(t, f.requests, w.MaxPages)
	// Records before the 2000 floor are dropped even though paging continues.
	for _, a := range got {
		assert.False(t, a.StartDateLocal.Before(window.Floor))
	}
}

func TestLoadStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	w, err := window.Resolve(window.LastYear, 0, now)
	require.NoError(t, err)

	f := &fakeFetcher{pages: map[int][]strava.Activity{
		1: {run(1, 1)},
		2: {run(2, 30)},
	}}

	got, err := New(f).Load(context.Background(), "token", w)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, f.requests)
	assert.Len(t, got, 2)
}

func TestLoadRespectsMaxPages(t *testing.T) {
	t.Parallel()

	w, err := window.Resolve(window.LastMonth, 0, now)
	require.NoError(t, err)

	f := &fakeFetcher{pages: map[int][]strava.Activity{
		1: {run(1, 1), run(2, 2)},
		2: {run(3, 3)},
	}}

	got, err := New(f).Load(context.Background(), "token", w)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, f.requests)
	assert.Len(t, got, 2)
}

func TestLoadFiltersToWindowOnOffset(t *testing.T) {
	t.Parallel()

	// 28..56 days ago
	w, err := window.Resolve(window.LastMonth, 1, now)
	require.NoError(t, err)
	w.MaxPages = 3

	f := &fakeFetcher{pages: map[int][]strava.Activity{
		1: {run(1, 2), run(2, 20)},
		2: {run(3, 30), run(4, 50)},
		3: {run(5, 70)},
	}}

	got, err := New(f).Load(context.Background(), "token", w)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids(got))
	assert.Equal(t, []int{1, 2, 3}, f.requests)
}

func TestLoadIncludesBoundaries(t *testing.T) {
	t.Parallel()

	w, err := window.Resolve(window.LastMonth, 0, now)
	require.NoError(t, err)

	f := &fakeFetcher{pages: map[int][]strava.Activity{
		1: {
			{ID: 1, StartDateLocal: w.End},
			{ID: 2, StartDateLocal: w.Start},
			{ID: 3, StartDateLocal: w.Start.Add(-time.Millisecond)},
		},
	}}

	got, err := New(f).Load(context.Background(), "token", w)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(got))
}

func TestLoadAbortsOnError(t *testing.T) {
	t.Parallel()

	w, err := window.Resolve(window.SixMonths, 0, now)
	require.NoError(t, err)

	f := &fakeFetcher{
		pages:    map[int][]strava.Activity{1: {run(1, 1)}},
		failPage: 2,
	}

	got, err := New(f).Load(context.Background(), "token", w)
	require.Error(t, err)
	assert.Nil(t, got, "no partial result on failure")

	var upErr *strava.UpstreamError
	assert.ErrorAs(t, err, &upErr)
}

func TestLoadHonorsCancellation(t *testing.T) {
	t.Parallel()

	w, err := window.Resolve(window.SixMonths, 0, now)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{pages: map[int][]strava.Activity{1: {run(1, 1)}, 2: {run(2, 2)}}}

	l := New(f, WithProgress(func(p Progress) {
		if p.Page == 1 {
			cancel()
		}
	}))

	_, err = l.Load(ctx, "token", w)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1}, f.requests)
}

func TestLoadOptionsAndProgress(t *testing.T) {
	t.Parallel()

	w, err := window.Resolve(window.ThreeMonths, 0, now)
	require.NoError(t, err)

	f := &fakeFetcher{pages: map[int][]strava.Activity{
		1: {run(1, 1), run(2, 400)},
	}}

	var progress []Progress
	l := New(f, WithPageSize(50), WithTypeFilter(""), WithProgress(func(p Progress) {
		progress = append(progress, p)
	}))

	_, err = l.Load(context.Background(), "token", w)
	require.NoError(t, err)
	assert.Equal(t, 50, f.perPage)
	assert.Equal(t, "", f.filter)
	assert.Equal(t, []Progress{{Page: 1, Fetched: 2, Kept: 1, Total: 1}}, progress)
}

func ids(as []strava.Activity) []int64 {
	out := make([]int64, 0, len(as))
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}
