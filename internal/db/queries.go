package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("not found")

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs runtracker's statements against a DBTX.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getBlob = `SELECT value FROM kv WHERE key = ?`

// GetBlob returns the value stored under key, or ErrNotFound.
func (q *Queries) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := q.db.QueryRowContext(ctx, getBlob, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %q: %w", key, err)
	}
	return value, nil
}

const putBlob = `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

// PutBlob stores value under key, replacing any previous value.
func (q *Queries) PutBlob(ctx context.Context, key string, value []byte) error {
	if _, err := q.db.ExecContext(ctx, putBlob, key, value); err != nil {
		return fmt.Errorf("putting %q: %w", key, err)
	}
	return nil
}

const deleteBlob = `DELETE FROM kv WHERE key = ?`

// DeleteBlob removes key. Deleting a missing key is not an error.
func (q *Queries) DeleteBlob(ctx context.Context, key string) error {
	if _, err := q.db.ExecContext(ctx, deleteBlob, key); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}
