package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joshdurbin/runtracker/internal/db"
	"github.com/joshdurbin/runtracker/internal/logging"
)

// credentialsKey is the kv key holding the credential blob.
const credentialsKey = "strava_auth"

// ErrNoCredentials is returned when no usable credentials are stored.
var ErrNoCredentials = errors.New("not authenticated")

// Store persists the credential blob.
type Store struct {
	queries *db.Queries
}

// NewStore returns a Store backed by queries.
func NewStore(queries *db.Queries) *Store {
	return &Store{queries: queries}
}

// Load returns the stored credentials. A blob that cannot be decoded or
// lacks an access token is deleted and reported as ErrNoCredentials.
func (s *Store) Load(ctx context.Context) (*Credentials, error) {
	raw, err := s.queries.GetBlob(ctx, credentialsKey)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil || creds.AccessToken == "" {
		logging.Logger.Warn().Err(err).Msg("discarding malformed stored credentials")
		if delErr := s.queries.DeleteBlob(ctx, credentialsKey); delErr != nil {
			return nil, fmt.Errorf("discarding malformed credentials: %w", delErr)
		}
		return nil, ErrNoCredentials
	}
	return &creds, nil
}

// Save replaces the stored credentials.
func (s *Store) Save(ctx context.Context, creds *Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := s.queries.PutBlob(ctx, credentialsKey, raw); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

// Delete removes the stored credentials.
func (s *Store) Delete(ctx context.Context) error {
	if err := s.queries.DeleteBlob(ctx, credentialsKey); err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	return nil
}
