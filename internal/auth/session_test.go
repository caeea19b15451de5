package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joshdurbin/runtracker/internal/db"
	"github.com/joshdurbin/runtracker/internal/strava"
)

// setupTestDB opens a migrated SQLite database in a temp dir.
func setupTestDB(t *testing.T) *db.Queries {
	t.Helper()

	sqlDB, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db.New(sqlDB)
}

type tokenServer struct {
	*httptest.Server
	refreshCalls  atomic.Int32
	exchangeCalls atomic.Int32
	rejectRefresh bool
	withAthlete   bool
}

func newTokenServer(t *testing.T) *tokenServer {
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if r.Form.Get("client_id") != "id" || r.Form.Get("client_secret") != "secret" {
			t.Errorf("client credentials not sent in params: %v", r.Form)
		}

		resp := map[string]interface{}{
			"token_type": "Bearer",
			"expires_in": 21600,
		}
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			ts.exchangeCalls.Add(1)
			if r.Form.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			resp["access_token"] = "access-1"
			resp["refresh_token"] = "refresh-1"
			if ts.withAthlete {
				resp["athlete"] = map[string]interface{}{"id": 7, "firstname": "Ada"}
			}
		case "refresh_token":
			ts.refreshCalls.Add(1)
			if ts.rejectRefresh {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			resp["access_token"] = "access-2"
			resp["refresh_token"] = "refresh-2"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts
}

type fakeAthletes struct{ calls atomic.Int32 }

func (f *fakeAthletes) GetAthlete(context.Context, string) (strava.Athlete, error) {
	f.calls.Add(1)
	return strava.Athlete{ID: 99, Firstname: "Fetched"}, nil
}

func newTestSession(t *testing.T, ts *tokenServer, athletes AthleteFetcher) (*Session, *Store) {
	t.Helper()

	cfg := StravaOAuthConfig("id", "secret", "http://localhost:8089/auth/callback")
	cfg.Endpoint.TokenURL = ts.URL + "/oauth/token"
	states, err := NewStateSigner("test-secret")
	if err != nil {
		t.Fatalf("NewStateSigner: %v", err)
	}
	store := NewStore(setupTestDB(t))
	return NewSession(cfg, store, states, athletes), store
}

func stateFrom(t *testing.T, s *Session) string {
	t.Helper()
	authURL, err := s.AuthURL()
	if err != nil {
		t.Fatalf("AuthURL: %v", err)
	}
	u, _ := url.Parse(authURL)
	return u.Query().Get("state")
}

func TestStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(setupTestDB(t))
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	want := &Credentials{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    1700000000,
		Athlete:      strava.Athlete{ID: 5, Firstname: "Ada"},
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}

	if err := store.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials after delete, got %v", err)
	}
}

func TestStoreDiscardsMalformedBlob(t *testing.T) {
	t.Parallel()

	for name, blob := range map[string]string{
		"not json":        "{{{",
		"no access token": `{"refresh_token":"r"}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			q := setupTestDB(t)
			ctx := context.Background()
			if err := q.PutBlob(ctx, credentialsKey, []byte(blob)); err != nil {
				t.Fatalf("PutBlob: %v", err)
			}

			if _, err := NewStore(q).Load(ctx); !errors.Is(err, ErrNoCredentials) {
				t.Fatalf("expected ErrNoCredentials, got %v", err)
			}
			if _, err := q.GetBlob(ctx, credentialsKey); !errors.Is(err, db.ErrNotFound) {
				t.Errorf("malformed blob should be deleted, got %v", err)
			}
		})
	}
}

func TestSessionComplete(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t)
	ts.withAthlete = true
	athletes := &fakeAthletes{}
	s, store := newTestSession(t, ts, athletes)
	ctx := context.Background()

	creds, err := s.Complete(ctx, "good-code", stateFrom(t, s))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if creds.AccessToken != "access-1" || creds.Athlete.ID != 7 {
		t.Errorf("unexpected credentials %+v", creds)
	}
	if athletes.calls.Load() != 0 {
		t.Error("athlete should come from the token response")
	}

	stored, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stored.RefreshToken != "refresh-1" {
		t.Errorf("stored refresh token = %q", stored.RefreshToken)
	}
	if stored.Expired() {
		t.Error("fresh token should not be expired")
	}
}

func TestSessionCompleteFetchesAthlete(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t)
	athletes := &fakeAthletes{}
	s, _ := newTestSession(t, ts, athletes)

	creds, err := s.Complete(context.Background(), "good-code", stateFrom(t, s))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if creds.Athlete.ID != 99 || athletes.calls.Load() != 1 {
		t.Errorf("expected athlete from GetAthlete, got %+v", creds.Athlete)
	}
}

func TestSessionCompleteRejectsBadState(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t)
	s, _ := newTestSession(t, ts, nil)

	if _, err := s.Complete(context.Background(), "good-code", "forged"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	if ts.exchangeCalls.Load() != 0 {
		t.Error("code must not be exchanged with an invalid state")
	}
}

func TestSessionCompleteBadCode(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t)
	s, store := newTestSession(t, ts, nil)

	if _, err := s.Complete(context.Background(), "bad-code", stateFrom(t, s)); err == nil {
		t.Fatal("expected exchange error")
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("nothing should be stored, got %v", err)
	}
}

func TestSessionAccessTokenValid(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t)
	s, store := newTestSession(t, ts, nil)
	ctx := context.Background()

	store.Save(ctx, &Credentials{AccessToken: "current", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).Unix()})

	token, err := s.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "current" || ts.refreshCalls.Load() != 0 {
		t.Errorf("valid token should be returned as is, got %q with %d refreshes", token, ts.refreshCalls.Load())
	}
}

func TestSessionAccessTokenRefreshes(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t)
	s, store := newTestSession(t, ts, nil)
	ctx := context.Background()

	store.Save(ctx, &Credentials{
		AccessToken:  "old",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Minute).Unix(),
		Athlete:      strava.Athlete{ID: 3},
	})

	token, err := s.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "access-2" {
		t.Errorf("token = %q, want access-2", token)
	}

	stored, _ := store.Load(ctx)
	if stored.RefreshToken != "refresh-2" || stored.Athlete.ID != 3 {
		t.Errorf("refreshed credentials not saved with athlete: %+v", stored)
	}
}

func TestSessionRefreshFailureLogsOut(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t)
	ts.rejectRefresh = true
	s, store := newTestSession(t, ts, nil)
	ctx := context.Background()

	store.Save(ctx, &Credentials{AccessToken: "old", RefreshToken: "revoked", ExpiresAt: time.Now().Add(-time.Hour).Unix()})

	if _, err := s.AccessToken(ctx); !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("credentials should be cleared, got %v", err)
	}
	if ts.refreshCalls.Load() != 1 {
		t.Errorf("expected exactly one refresh attempt, got %d", ts.refreshCalls.Load())
	}
}

func TestSessionRefreshIfExpiring(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t)
	s, store := newTestSession(t, ts, nil)
	ctx := context.Background()

	store.Save(ctx, &Credentials{AccessToken: "old", RefreshToken: "r", ExpiresAt: time.Now().Add(8 * time.Minute).Unix()})

	refreshed, err := s.RefreshIfExpiring(ctx, 5*time.Minute)
	if err != nil || refreshed {
		t.Fatalf("8 minutes left with a 5 minute threshold: refreshed=%v err=%v", refreshed, err)
	}

	refreshed, err = s.RefreshIfExpiring(ctx, 10*time.Minute)
	if err != nil || !refreshed {
		t.Fatalf("8 minutes left with a 10 minute threshold: refreshed=%v err=%v", refreshed, err)
	}
}

func TestSessionLogout(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t)
	s, store := newTestSession(t, ts, nil)
	ctx := context.Background()

	store.Save(ctx, &Credentials{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour).Unix()})
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := s.Credentials(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
}
