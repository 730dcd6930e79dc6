// Package postgres persists pending-verification entries and error events
// to Postgres via pgx, with the same schema-mismatch self-heal the teacher
// uses for its ingest-state table: a missing column or table drops and
// recreates rather than failing the run.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barad1tos/reconciler/internal/model"
)

// Store holds the connection pool backing both the pending-verification
// table and the error-event table.
type Store struct {
	pool *pgxpool.Pool
}

// Connect connects to Postgres using dsn and returns a Store.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const pendingVerificationSchema = `
CREATE TABLE pending_verification (
    key_hash  TEXT        PRIMARY KEY,
    artist    TEXT        NOT NULL,
    album     TEXT        NOT NULL,
    reason    TEXT        NOT NULL,
    metadata  JSONB,
    timestamp TIMESTAMPTZ NOT NULL
)`

// isSchemaMismatch reports whether err is a Postgres undefined_column
// (42703) or undefined_table (42P01) error — the two SQLSTATEs a stale
// or missing table surfaces as.
func isSchemaMismatch(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "42703" || pgErr.Code == "42P01")
}

// LoadPendingVerifications returns every pending-verification entry keyed
// by its key hash. If the table's schema doesn't match (after an upgrade,
// say), it is dropped and recreated, and an empty map is returned — every
// album is re-evaluated fresh on this run, matching the ingest-state
// recovery behavior.
func (s *Store) LoadPendingVerifications(ctx context.Context) (map[string]model.PendingVerificationEntry, error) {
	const q = `SELECT key_hash, artist, album, reason, metadata, timestamp FROM pending_verification`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		if isSchemaMismatch(err) {
			if _, err2 := s.pool.Exec(ctx, `DROP TABLE IF EXISTS pending_verification`); err2 != nil {
				return nil, fmt.Errorf("drop stale pending_verification: %w", err2)
			}
			if _, err2 := s.pool.Exec(ctx, pendingVerificationSchema); err2 != nil {
				return nil, fmt.Errorf("recreate pending_verification: %w", err2)
			}
			return map[string]model.PendingVerificationEntry{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]model.PendingVerificationEntry)
	for rows.Next() {
		var keyHash string
		var entry model.PendingVerificationEntry
		var metadataRaw []byte
		if err := rows.Scan(&keyHash, &entry.Artist, &entry.Album, &entry.Reason, &metadataRaw, &entry.Timestamp); err != nil {
			return nil, err
		}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal pending_verification metadata: %w", err)
			}
		}
		out[keyHash] = entry
	}
	return out, rows.Err()
}

// UpsertPendingVerification records (or updates) one pending-verification
// entry under keyHash.
func (s *Store) UpsertPendingVerification(ctx context.Context, keyHash string, entry model.PendingVerificationEntry) error {
	metadataRaw, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal pending_verification metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO pending_verification (key_hash, artist, album, reason, metadata, timestamp)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (key_hash) DO UPDATE
    SET artist = EXCLUDED.artist, album = EXCLUDED.album, reason = EXCLUDED.reason,
        metadata = EXCLUDED.metadata, timestamp = EXCLUDED.timestamp`,
		keyHash, entry.Artist, entry.Album, string(entry.Reason), metadataRaw, entry.Timestamp)
	return err
}

// DeletePendingVerification removes one entry, e.g. once it has been
// resolved by a subsequent run.
func (s *Store) DeletePendingVerification(ctx context.Context, keyHash string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM pending_verification WHERE key_hash = $1`, keyHash)
	return err
}

const errorEventSchema = `
CREATE TABLE error_events (
    signature      TEXT        NOT NULL,
    exception_type TEXT        NOT NULL,
    category       TEXT        NOT NULL,
    severity       TEXT        NOT NULL,
    message        TEXT        NOT NULL,
    stack_trace    TEXT,
    source_module  TEXT,
    error_code     TEXT,
    user_id        TEXT,
    context        JSONB,
    timestamp      TIMESTAMPTZ NOT NULL
)`

// InsertErrorEvent appends one error event to the error_events table, self
// healing the same way LoadPendingVerifications does on schema mismatch.
func (s *Store) InsertErrorEvent(ctx context.Context, event model.ErrorEvent) error {
	contextRaw, err := json.Marshal(event.Context)
	if err != nil {
		return fmt.Errorf("marshal error event context: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO error_events
    (signature, exception_type, category, severity, message, stack_trace, source_module, error_code, user_id, context, timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.Signature, event.ExceptionType, string(event.Category), string(event.Severity),
		event.Message, event.StackTrace, event.SourceModule, event.ErrorCode, event.UserID,
		contextRaw, event.Timestamp)
	if err != nil {
		if isSchemaMismatch(err) {
			if _, err2 := s.pool.Exec(ctx, `DROP TABLE IF EXISTS error_events`); err2 != nil {
				return fmt.Errorf("drop stale error_events: %w", err2)
			}
			if _, err2 := s.pool.Exec(ctx, errorEventSchema); err2 != nil {
				return fmt.Errorf("recreate error_events: %w", err2)
			}
			return s.InsertErrorEvent(ctx, event)
		}
		return err
	}
	return nil
}

// ErrorEventsSince returns every error event recorded at or after since,
// most recent first, for dashboards and post-mortem review.
func (s *Store) ErrorEventsSince(ctx context.Context, since time.Time) ([]model.ErrorEvent, error) {
	rows, err := s.pool.Query(ctx, `
SELECT signature, exception_type, category, severity, message, stack_trace, source_module, error_code, user_id, context, timestamp
FROM error_events
WHERE timestamp >= $1
ORDER BY timestamp DESC`, since)
	if err != nil {
		if isSchemaMismatch(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var out []model.ErrorEvent
	for rows.Next() {
		var e model.ErrorEvent
		var category, severity string
		var contextRaw []byte
		if err := rows.Scan(&e.Signature, &e.ExceptionType, &category, &severity, &e.Message,
			&e.StackTrace, &e.SourceModule, &e.ErrorCode, &e.UserID, &contextRaw, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Category = model.ErrorCategory(category)
		e.Severity = model.ErrorSeverity(severity)
		if len(contextRaw) > 0 {
			if err := json.Unmarshal(contextRaw, &e.Context); err != nil {
				return nil, fmt.Errorf("unmarshal error event context: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
