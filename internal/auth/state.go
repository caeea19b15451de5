package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	stateIssuer = "runtracker"
	stateTTL    = 10 * time.Minute
)

// ErrInvalidState is returned when the OAuth state parameter is missing,
// forged or expired.
var ErrInvalidState = errors.New("invalid oauth state")

// StateSigner issues and verifies the OAuth state parameter as a short-lived
// HS256 token, so the callback needs no server-side bookkeeping.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner returns a signer keyed by secret. An empty secret gets a
// random per-process key, which invalidates pending logins on restart.
func NewStateSigner(secret string) (*StateSigner, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating state key: %w", err)
		}
	}
	return &StateSigner{secret: key, ttl: stateTTL, now: time.Now}, nil
}

// Issue returns a new signed state value.
func (s *StateSigner) Issue() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing state: %w", err)
	}
	return signed, nil
}

// Verify checks a state value returned by the authorization server.
func (s *StateSigner) Verify(state string) error {
	if state == "" {
		return fmt.Errorf("%w: missing", ErrInvalidState)
	}

	_, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithIssuer(stateIssuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}
