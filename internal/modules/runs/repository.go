// Package runs caches finished x-ray runs in cache.db.
// Payloads are msgpack blobs with expiration timestamps for cache-first behavior.
package runs

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/xray/internal/modules/xray"
	"github.com/aristath/xray/internal/utils"
)

// Repository provides cache operations for analysis runs. It implements xray.RunStore.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

var _ xray.RunStore = (*Repository)(nil)

// NewRepository creates a new run cache repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
		now: time.Now,
	}
}

// encodeRun serialises a run with its JSON field names so that stored
// payloads and API responses share one schema.
func encodeRun(run *xray.Run) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(run); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRun(data []byte) (*xray.Run, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var run xray.Run
	if err := dec.Decode(&run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Save stores a run, replacing any run with the same ID.
// A zero ExpiresAt falls back to DefaultTTL.
func (r *Repository) Save(ctx context.Context, run *xray.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run must have an ID")
	}

	payload, err := encodeRun(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	expiresAt := run.ExpiresAt
	if expiresAt.IsZero() || !expiresAt.After(createdAt) {
		expiresAt = createdAt.Add(DefaultTTL)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO xray_runs (id, fingerprint, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Fingerprint, payload, createdAt.Unix(), expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", run.ID, err)
	}

	return nil
}

// Get returns the run only if it has not expired, nil otherwise.
func (r *Repository) Get(ctx context.Context, id string) (*xray.Run, error) {
	return r.queryOne(ctx, "SELECT payload FROM xray_runs WHERE id = ? AND expires_at > ?", id)
}

// FindByFingerprint returns the newest unexpired run with the fingerprint, or nil.
func (r *Repository) FindByFingerprint(ctx context.Context, fingerprint string) (*xray.Run, error) {
	return r.queryOne(ctx, `
		SELECT payload FROM xray_runs
		WHERE fingerprint = ? AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1
	`, fingerprint)
}

func (r *Repository) queryOne(ctx context.Context, query, key string) (*xray.Run, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, key, r.now().Unix()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", key, err)
	}

	run, err := decodeRun(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", key, err)
	}
	return run, nil
}

// Delete removes a run and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM xray_runs WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for run %s: %w", id, err)
	}
	return deleted > 0, nil
}

// DeleteExpired removes all runs where expires_at <= now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(ctx context.Context) (int64, error) {
	done := utils.MeasureDBQuery("delete_expired_runs", r.log)

	result, err := r.db.ExecContext(ctx, "DELETE FROM xray_runs WHERE expires_at <= ?", r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired runs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	done(deleted)
	return deleted, nil
}

// Count returns the number of stored runs, expired or not.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM xray_runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}
