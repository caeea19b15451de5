package workers

import (
	"context"
	"errors"
	"time"

	"github.com/joshdurbin/runtracker/internal/auth"
	"github.com/joshdurbin/runtracker/internal/dashboard"
	"github.com/joshdurbin/runtracker/internal/logging"
)

// RefreshWindow is how close to expiry a token has to be before the
// refresher replaces it.
const RefreshWindow = 10 * time.Minute

// Refresher refreshes stored credentials.
type Refresher interface {
	RefreshIfExpiring(ctx context.Context, within time.Duration) (bool, error)
}

// SessionEnder resets the dashboard once the credentials are gone.
type SessionEnder interface {
	ForceLogout() error
}

// TokenRefresher keeps auth tokens up to date
type TokenRefresher struct {
	session  Refresher
	dash     SessionEnder
	interval time.Duration
}

// NewTokenRefresher creates a new token refresher worker
func NewTokenRefresher(session Refresher, dash SessionEnder, interval time.Duration) *TokenRefresher {
	return &TokenRefresher{
		session:  session,
		dash:     dash,
		interval: interval,
	}
}

// Run starts the token refresh worker
func (t *TokenRefresher) Run(ctx context.Context) {
	log := logging.Logger
	log.Info().Dur("interval", t.interval).Msg("token refresher started")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// Do an initial check
	t.checkAndRefresh(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("token refresher stopped")
			return
		case <-ticker.C:
			t.checkAndRefresh(ctx)
		}
	}
}

func (t *TokenRefresher) checkAndRefresh(ctx context.Context) {
	log := logging.Logger
	log.Debug().Msg("checking token validity")

	refreshed, err := t.session.RefreshIfExpiring(ctx, RefreshWindow)
	switch {
	case err == nil && refreshed:
		log.Info().Msg("token refreshed successfully")
	case err == nil:
		log.Debug().Msg("token still valid")
	case errors.Is(err, auth.ErrNoCredentials):
		// Credentials can be dropped by a refresh on another path.
		log.Debug().Msg("no stored credentials, nothing to refresh")
		t.signOut()
	case errors.Is(err, auth.ErrReauthRequired):
		log.Warn().Err(err).Msg("token refresh rejected, signing out")
		t.signOut()
	case ctx.Err() != nil:
	default:
		log.Error().Err(err).Msg("failed to refresh token")
	}
}

func (t *TokenRefresher) signOut() {
	if err := t.dash.ForceLogout(); err != nil && !errors.Is(err, dashboard.ErrStopped) {
		logging.Logger.Error().Err(err).Msg("failed to reset dashboard after refresh failure")
	}
}

// Reloader re-issues the dashboard's current selection.
type Reloader interface {
	Snapshot() dashboard.State
	Retry() (uint64, error)
}

// AutoReloader periodically reloads the selected window so new activities
// show up without user action.
type AutoReloader struct {
	dash     Reloader
	interval time.Duration
}

// NewAutoReloader creates a reload worker. A zero interval disables it.
func NewAutoReloader(dash Reloader, interval time.Duration) *AutoReloader {
	return &AutoReloader{
		dash:     dash,
		interval: interval,
	}
}

// Run starts the reload worker. The dashboard loads on its own at startup,
// so the first reload waits a full interval.
func (a *AutoReloader) Run(ctx context.Context) {
	log := logging.Logger
	if a.interval <= 0 {
		log.Info().Msg("auto reload disabled")
		return
	}
	log.Info().Dur("interval", a.interval).Msg("auto reloader started")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("auto reloader stopped")
			return
		case <-ticker.C:
			a.reload()
		}
	}
}

// reload retries the selection when the dashboard is signed in and not
// already loading. It reports whether a load was issued.
func (a *AutoReloader) reload() bool {
	log := logging.Logger

	st := a.dash.Snapshot()
	if st.Status != dashboard.StatusReady && st.Status != dashboard.StatusError {
		log.Debug().Str("status", st.Status.String()).Msg("skipping auto reload")
		return false
	}

	id, err := a.dash.Retry()
	if err != nil {
		if !errors.Is(err, dashboard.ErrStopped) {
			log.Warn().Err(err).Msg("auto reload failed")
		}
		return false
	}
	log.Debug().
		Uint64("request", id).
		Str("period", string(st.Selection.Period)).
		Int("offset", st.Selection.Offset).
		Msg("auto reload issued")
	return true
}
