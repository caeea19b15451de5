package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshdurbin/runtracker/internal/auth"
	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/metrics"
	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/weekly"
	"github.com/joshdurbin/runtracker/internal/window"
)

var (
	// ErrNotAuthenticated is returned when a load is requested while nobody
	// is signed in.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStopped is returned once Run has returned.
	ErrStopped = errors.New("dashboard stopped")
)

// TokenSource hands out access tokens and owns the stored credentials.
type TokenSource interface {
	Credentials(ctx context.Context) (*auth.Credentials, error)
	AccessToken(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

// ActivityLoader loads the activities of one time window.
type ActivityLoader interface {
	Load(ctx context.Context, accessToken string, w window.Window) ([]strava.Activity, error)
}

// Result is one loaded and aggregated window.
type Result struct {
	Window     window.Window
	Activities []strava.Activity
	Weeks      []weekly.Week
	Summary    weekly.Summary
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller applies messages to the dashboard state from a single
// goroutine. Loads run in their own goroutines and report back through the
// same update channel.
type Controller struct {
	tokens TokenSource
	loader ActivityLoader
	now    func() time.Time

	updates chan Msg
	done    chan struct{}
	state   atomic.Pointer[State]
	nextID  atomic.Uint64
}

// New returns a Controller in the unauthenticated state with the default
// selection. Nothing happens until Run is called.
func New(tokens TokenSource, loader ActivityLoader, opts ...Option) *Controller {
	c := &Controller{
		tokens:  tokens,
		loader:  loader,
		now:     time.Now,
		updates: make(chan Msg, 16),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	initial := State{Status: StatusUnauthenticated, Selection: DefaultSelection()}
	c.state.Store(&initial)
	return c
}

// Snapshot returns the last published state.
func (c *Controller) Snapshot() State {
	return *c.state.Load()
}

// Run restores a stored session, then applies messages until ctx is done.
// It waits for in-flight loads before returning.
func (c *Controller) Run(ctx context.Context) error {
	log := logging.Component("dashboard")
	defer close(c.done)

	var loads sync.WaitGroup
	defer loads.Wait()

	if creds, err := c.tokens.Credentials(ctx); err == nil {
		log.Info().Str("athlete", creds.Athlete.DisplayName()).Msg("restored stored session")
		c.apply(ctx, AuthSucceeded{Athlete: creds.Athlete}, &loads)
		c.apply(ctx, LoadRequested{ID: c.nextID.Add(1), Selection: c.Snapshot().Selection}, &loads)
	} else if !errors.Is(err, auth.ErrNoCredentials) {
		log.Warn().Err(err).Msg("could not read stored credentials")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-c.updates:
			c.apply(ctx, m, &loads)
		}
	}
}

func (c *Controller) apply(ctx context.Context, m Msg, loads *sync.WaitGroup) {
	prev := c.Snapshot()
	if !Accepts(prev, m) {
		switch m.(type) {
		case LoadSucceeded, LoadFailed:
			metrics.StaleResponsesTotal.Inc()
			metrics.LoadsTotal.WithLabelValues(metrics.ResultStale).Inc()
			logging.Logger.Debug().Uint64("current", prev.RequestID).Msg("discarding stale load response")
		}
		return
	}

	next := Reduce(prev, m)
	c.state.Store(&next)

	switch m := m.(type) {
	case LoadRequested:
		loads.Add(1)
		go func() {
			defer loads.Done()
			c.load(ctx, m.ID, m.Selection)
		}()
	case LoadSucceeded:
		metrics.LoadsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		metrics.LoadedActivities.Set(float64(len(m.Activities)))
	case LoadFailed:
		metrics.LoadsTotal.WithLabelValues(metrics.ResultFailure).Inc()
	case LoggedOut:
		metrics.LoadedActivities.Set(0)
	}
}

// load runs one request and posts its outcome.
func (c *Controller) load(ctx context.Context, id uint64, sel Selection) {
	log := logging.Component("dashboard").With().Uint64("request", id).Logger()

	start := time.Now()
	res, err := c.fetch(ctx, sel)
	metrics.LoadDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		c.post(ctx, LoadSucceeded{
			ID:         id,
			Window:     res.Window,
			Activities: res.Activities,
			Weeks:      res.Weeks,
			At:         c.now(),
		})
	case ctx.Err() != nil:
	case errors.Is(err, auth.ErrNoCredentials), errors.Is(err, auth.ErrReauthRequired):
		log.Warn().Err(err).Msg("session ended while loading")
		c.post(ctx, LoggedOut{})
	default:
		log.Error().Err(err).Msg("load failed")
		c.post(ctx, LoadFailed{ID: id, Message: LoadFailedMessage})
	}
}

func (c *Controller) post(ctx context.Context, m Msg) {
	select {
	case c.updates <- m:
	case <-ctx.Done():
	}
}

// send queues m for Run.
func (c *Controller) send(m Msg) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.updates <- m:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// Fetch resolves, loads and aggregates sel without touching the loaded
// data. The access token is refreshed first when it is about to expire. If
// the session turns out to be gone, the dashboard is signed out as well.
func (c *Controller) Fetch(ctx context.Context, sel Selection) (Result, error) {
	res, err := c.fetch(ctx, sel)
	if errors.Is(err, auth.ErrNoCredentials) || errors.Is(err, auth.ErrReauthRequired) {
		if lerr := c.ForceLogout(); lerr != nil && !errors.Is(lerr, ErrStopped) {
			log := logging.Component("dashboard")
			log.Error().Err(lerr).Msg("signing out after session ended")
		}
	}
	return res, err
}

func (c *Controller) fetch(ctx context.Context, sel Selection) (Result, error) {
	now := c.now()
	w, err := window.Resolve(sel.Period, sel.Offset, now)
	if err != nil {
		return Result{}, err
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return Result{}, err
	}

	activities, err := c.loader.Load(ctx, token, w)
	if err != nil {
		return Result{}, fmt.Errorf("loading %s: %w", w.Period, err)
	}

	weeks, err := weekly.Aggregate(activities, w, now)
	if err != nil {
		return Result{}, fmt.Errorf("aggregating %s: %w", w.Period, err)
	}

	return Result{
		Window:     w,
		Activities: activities,
		Weeks:      weeks,
		Summary:    weekly.Summarize(weeks),
	}, nil
}

// Select starts loading the given period and offset and returns the request
// id. Data already on screen stays there until the load completes.
func (c *Controller) Select(period window.Period, offset int) (uint64, error) {
	if _, err := window.Resolve(period, offset, c.now()); err != nil {
		return 0, err
	}
	if !c.Snapshot().Authenticated() {
		return 0, ErrNotAuthenticated
	}

	id := c.nextID.Add(1)
	if err := c.send(LoadRequested{ID: id, Selection: Selection{Period: period, Offset: offset}}); err != nil {
		return 0, err
	}
	return id, nil
}

// Retry reissues the most recent selection.
func (c *Controller) Retry() (uint64, error) {
	sel := c.Snapshot().Selection
	return c.Select(sel.Period, sel.Offset)
}

// BeginAuth marks an authorization as in progress.
func (c *Controller) BeginAuth() error {
	return c.send(AuthStarted{})
}

// SignedIn records a completed authorization and loads the current
// selection.
func (c *Controller) SignedIn(athlete strava.Athlete) (uint64, error) {
	if err := c.send(AuthSucceeded{Athlete: athlete}); err != nil {
		return 0, err
	}
	id := c.nextID.Add(1)
	if err := c.send(LoadRequested{ID: id, Selection: c.Snapshot().Selection}); err != nil {
		return 0, err
	}
	return id, nil
}

// SignInFailed records a failed authorization.
func (c *Controller) SignInFailed(message string) error {
	return c.send(AuthFailed{Message: message})
}

// Logout removes the stored credentials and resets the dashboard.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.tokens.Logout(ctx); err != nil {
		return err
	}
	return c.send(LoggedOut{})
}

// ForceLogout resets the dashboard after the credentials were removed
// elsewhere, such as a rejected refresh. It leaves a signed-out or
// authorizing dashboard alone.
func (c *Controller) ForceLogout() error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	if !c.Snapshot().Authenticated() {
		return nil
	}
	return c.send(LoggedOut{})
}
