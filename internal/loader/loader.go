// Package loader pages through the athlete's activity history for one
// resolved window.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/metrics"
	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/window"
)

// DefaultPageSize is the number of activities requested per page.
const DefaultPageSize = 200

// PageFetcher returns one page of activities, newest first. *strava.Client
// satisfies it.
type PageFetcher interface {
	FetchActivityPage(ctx context.Context, accessToken string, page, perPage int, typeFilter string) ([]strava.Activity, error)
}

// Progress is reported after each page.
type Progress struct {
	Page    int // page just fetched
	Fetched int // records on that page
	Kept    int // records on that page inside the window
	Total   int // records kept so far
}

// ProgressFunc receives per-page progress.
type ProgressFunc func(Progress)

// Option configures a Loader.
type Option func(*Loader)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) Option {
	return func(l *Loader) { l.pageSize = n }
}

// WithTypeFilter sets the activity type requested from the source. An empty
// string loads every type.
func WithTypeFilter(t string) Option {
	return func(l *Loader) { l.typeFilter = t }
}

// WithProgress installs a per-page progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(l *Loader) { l.progress = fn }
}

// Loader fetches the activities inside a window.
type Loader struct {
	fetcher    PageFetcher
	pageSize   int
	typeFilter string
	progress   ProgressFunc
}

// New returns a Loader that loads runs, DefaultPageSize per page.
func New(fetcher PageFetcher, opts ...Option) *Loader {
	l := &Loader{
		fetcher:    fetcher,
		pageSize:   DefaultPageSize,
		typeFilter: strava.TypeRun,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns every activity whose local start time lies within w, in the
// order the pages delivered them. Pages are requested one at a time from
// page 1 up to w.MaxPages. Loading stops at the first empty page and, except
// for the "all" window, after the first page holding anything older than
// w.Start: the source is newest first, so later pages can only be older.
//
// Any fetch error aborts the load and nothing is returned.
func (l *Loader) Load(ctx context.Context, accessToken string, w window.Window) ([]strava.Activity, error) {
	log := logging.Logger.With().
		Str("period", string(w.Period)).
		Int("offset", w.Offset).
		Logger()

	start := time.Now()
	var kept []strava.Activity

	for page := 1; page <= w.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, err := l.fetcher.FetchActivityPage(ctx, accessToken, page, l.pageSize, l.typeFilter)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", page, err)
		}
		metrics.UpstreamPagesTotal.Inc()

		if len(records) == 0 {
			log.Debug().Int("page", page).Msg("empty page, history exhausted")
			break
		}

		pageKept := 0
		crossedStart := false
		for _, a := range records {
			local := window.Wall(a.StartDateLocal)
			if local.Before(w.Start) {
				crossedStart = true
			}
			if w.Contains(local) {
				kept = append(kept, a)
				pageKept++
			}
		}

		log.Debug().
			Int("page", page).
			Int("fetched", len(records)).
			Int("kept", pageKept).
			Int("total", len(kept)).
			Msg("loaded activity page")

		if l.progress != nil {
			l.progress(Progress{Page: page, Fetched: len(records), Kept: pageKept, Total: len(kept)})
		}

		if crossedStart && w.Period != window.All {
			break
		}
	}

	log.Info().
		Int("activities", len(kept)).
		Dur("elapsed", time.Since(start)).
		Msg("window loaded")

	return kept, nil
}
