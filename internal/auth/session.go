package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/metrics"
	"github.com/joshdurbin/runtracker/internal/strava"
)

// ErrReauthRequired is returned when the refresh token was rejected. The
// stored credentials have been removed by the time it is returned.
var ErrReauthRequired = errors.New("re-authentication required")

// AthleteFetcher loads the athlete profile when the token response lacks it.
type AthleteFetcher interface {
	GetAthlete(ctx context.Context, accessToken string) (strava.Athlete, error)
}

// Session ties the OAuth config, the signed state and the credential store
// together. Refreshes are serialized so concurrent callers share one.
type Session struct {
	cfg      *oauth2.Config
	store    *Store
	states   *StateSigner
	athletes AthleteFetcher

	mu sync.Mutex
}

// NewSession returns a Session. athletes may be nil.
func NewSession(cfg *oauth2.Config, store *Store, states *StateSigner, athletes AthleteFetcher) *Session {
	return &Session{cfg: cfg, store: store, states: states, athletes: athletes}
}

// AuthURL returns the Strava authorization page URL with a fresh state.
func (s *Session) AuthURL() (string, error) {
	state, err := s.states.Issue()
	if err != nil {
		return "", err
	}
	return s.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force")), nil
}

// Complete finishes the authorization-code flow and stores the result.
func (s *Session) Complete(ctx context.Context, code, state string) (*Credentials, error) {
	if err := s.states.Verify(state); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, errors.New("no authorization code received")
	}

	start := time.Now()
	creds, err := exchange(ctx, s.cfg, code)
	if err != nil {
		metrics.ObserveStravaCall(metrics.OpExchangeCode, 0, time.Since(start))
		return nil, err
	}
	metrics.ObserveStravaCall(metrics.OpExchangeCode, 200, time.Since(start))

	if creds.Athlete.ID == 0 && s.athletes != nil {
		athlete, err := s.athletes.GetAthlete(ctx, creds.AccessToken)
		if err != nil {
			logging.Logger.Warn().Err(err).Msg("could not load athlete profile")
		} else {
			creds.Athlete = athlete
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(ctx, creds); err != nil {
		return nil, err
	}

	logging.Logger.Info().
		Int64("athlete_id", creds.Athlete.ID).
		Time("expires_at", time.Unix(creds.ExpiresAt, 0)).
		Msg("authenticated with Strava")
	return creds, nil
}

// Credentials returns the stored credentials without refreshing them.
func (s *Session) Credentials(ctx context.Context) (*Credentials, error) {
	return s.store.Load(ctx)
}

// AccessToken returns a usable access token, refreshing it first when it
// is about to expire. A rejected refresh logs the athlete out.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	creds, err := s.ensureFresh(ctx, expirySkew)
	if err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

// RefreshIfExpiring refreshes the token when less than within remains. It
// reports whether a refresh happened.
func (s *Session) RefreshIfExpiring(ctx context.Context, within time.Duration) (bool, error) {
	before, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}
	after, err := s.ensureFresh(ctx, within)
	if err != nil {
		return false, err
	}
	return after.AccessToken != before.AccessToken, nil
}

func (s *Session) ensureFresh(ctx context.Context, within time.Duration) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if time.Until(time.Unix(creds.ExpiresAt, 0)) > within {
		return creds, nil
	}

	log := logging.Logger
	log.Info().Time("expires_at", time.Unix(creds.ExpiresAt, 0)).Msg("refreshing access token")

	start := time.Now()
	fresh, err := refresh(ctx, s.cfg, creds)
	if err != nil {
		metrics.ObserveStravaCall(metrics.OpRefreshToken, 0, time.Since(start))
		metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Warn().Err(err).Msg("token refresh rejected, clearing credentials")
		if delErr := s.store.Delete(ctx); delErr != nil {
			log.Error().Err(delErr).Msg("failed to clear credentials")
		}
		return nil, fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	metrics.ObserveStravaCall(metrics.OpRefreshToken, 200, time.Since(start))
	metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultSuccess).Inc()

	if err := s.store.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("saving refreshed credentials: %w", err)
	}
	log.Info().Time("expires_at", time.Unix(fresh.ExpiresAt, 0)).Msg("access token refreshed")
	return fresh, nil
}

// Logout removes the stored credentials.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx)
}
