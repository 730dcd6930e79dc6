// Package updateexec implements the track-update executor (spec §4.10):
// validation, a dry-run journal, an optional batch attempt, per-field
// individual updates with a three-outcome distinction, and a cache-notify
// step on any real change.
package updateexec

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/barad1tos/reconciler/internal/cache"
	"github.com/barad1tos/reconciler/internal/model"
	"github.com/barad1tos/reconciler/internal/scriptrunner"
)

// FieldUpdate is one (field, value) write requested for a track.
type FieldUpdate struct {
	Field string
	Value string
}

// Config holds the executor's tunables, sourced from internal/config.
type Config struct {
	DryRun                bool
	BatchUpdatesEnabled   bool
	MaxBatchSize          int
	BatchTimeoutSeconds   float64 // applescript_timeouts.batch_update; 0 = unset
	DefaultTimeoutSeconds float64 // applescript_timeout_seconds
}

// JournalEntry is one dry-run record: an action that would have been
// performed, had dry_run been false.
type JournalEntry struct {
	Action    string
	TrackID   string
	Updates   []FieldUpdate
	Timestamp time.Time
}

// Journal accumulates dry-run entries in memory for later inspection or
// serialization by the caller.
type Journal struct {
	mu      sync.Mutex
	entries []JournalEntry
}

// Append adds one entry to the journal.
func (j *Journal) Append(e JournalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

// Entries returns a copy of every journal entry recorded so far.
func (j *Journal) Entries() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]JournalEntry(nil), j.entries...)
}

// Executor runs update_track/update_artist against an external script
// runner, honoring dry-run, batch, and cache-invalidation policy.
type Executor struct {
	runner       scriptrunner.Runner
	orchestrator *cache.Orchestrator
	journal      *Journal
	cfg          Config
	logger       *slog.Logger
}

// New builds an Executor. logger may be nil (defaults to slog.Default()).
func New(runner scriptrunner.Runner, orchestrator *cache.Orchestrator, cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		runner:       runner,
		orchestrator: orchestrator,
		journal:      &Journal{},
		cfg:          cfg,
		logger:       logger,
	}
}

// Journal exposes the executor's dry-run journal.
func (e *Executor) Journal() *Journal { return e.journal }

// resolveBatchTimeout implements the §4.10 resolution chain:
// applescript_timeouts.batch_update → applescript_timeout_seconds → 60s.
// A value explicitly configured non-positive is a configuration error; an
// unset (zero) value falls through to the next step in the chain.
func resolveBatchTimeout(cfg Config) (time.Duration, error) {
	if cfg.BatchTimeoutSeconds != 0 {
		if cfg.BatchTimeoutSeconds < 0 {
			return 0, fmt.Errorf("updateexec: applescript_timeouts.batch_update must be positive, got %v", cfg.BatchTimeoutSeconds)
		}
		return secondsToDuration(cfg.BatchTimeoutSeconds), nil
	}
	if cfg.DefaultTimeoutSeconds != 0 {
		if cfg.DefaultTimeoutSeconds < 0 {
			return 0, fmt.Errorf("updateexec: applescript_timeout_seconds must be positive, got %v", cfg.DefaultTimeoutSeconds)
		}
		return secondsToDuration(cfg.DefaultTimeoutSeconds), nil
	}
	return 60 * time.Second, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// UpdateTrack applies updates to track, honoring read-only statuses,
// validation, dry-run, optional batching, and cache notification. changed
// reports whether any field actually changed value (vs. already equal).
func (e *Executor) UpdateTrack(ctx context.Context, track model.Track, updates []FieldUpdate) (changed bool, err error) {
	if !track.Status.CanEditMetadata() {
		e.logger.Debug("refusing update on read-only track", "track_id", track.ID, "status", track.Status.String())
		return false, nil
	}

	validated := make([]FieldUpdate, 0, len(updates))
	for _, u := range updates {
		normalized, ok := validateFieldValue(u.Value)
		if !ok {
			e.logger.Warn("rejected update: failed security validation", "track_id", track.ID, "field", u.Field)
			return false, nil
		}
		validated = append(validated, FieldUpdate{Field: u.Field, Value: normalized})
	}
	if len(validated) == 0 {
		return false, nil
	}

	if e.cfg.DryRun {
		e.journal.Append(JournalEntry{Action: "update_track", TrackID: track.ID, Updates: validated, Timestamp: timeNow()})
		return true, nil
	}

	if e.cfg.BatchUpdatesEnabled && len(validated) > 1 && len(validated) <= e.cfg.MaxBatchSize {
		ok, batchErr := e.tryBatch(ctx, track.ID, validated)
		if batchErr == nil && ok {
			if err := e.orchestrator.InvalidateForTrack(track); err != nil {
				return true, fmt.Errorf("updateexec: cache invalidate after batch update: %w", err)
			}
			return true, nil
		}
		// Batch failed or returned a non-success sentinel: fall through to
		// individual updates rather than giving up.
		if batchErr != nil {
			e.logger.Warn("batch update failed, falling back to individual updates", "track_id", track.ID, "err", batchErr)
		}
	}

	anyChange := false
	for _, u := range validated {
		outcome, runErr := e.runOne(ctx, track.ID, u)
		if runErr != nil {
			return anyChange, fmt.Errorf("updateexec: update %s.%s: %w", track.ID, u.Field, runErr)
		}
		if outcome == scriptrunner.OutcomeSuccess {
			anyChange = true
		}
	}

	if anyChange {
		if err := e.orchestrator.InvalidateForTrack(track); err != nil {
			return true, fmt.Errorf("updateexec: cache invalidate after update: %w", err)
		}
	}
	return anyChange, nil
}

// UpdateArtist updates a track's artist, optionally cascading to
// album_artist when the existing album-artist equals the old or new
// artist name (a confirmed sync case, not a blind overwrite).
func (e *Executor) UpdateArtist(ctx context.Context, track model.Track, newArtist string, updateAlbumArtist bool) (changed bool, err error) {
	updates := []FieldUpdate{{Field: "artist", Value: newArtist}}

	if updateAlbumArtist && (track.AlbumArtist == track.Artist || track.AlbumArtist == newArtist) {
		updates = append(updates, FieldUpdate{Field: "album_artist", Value: newArtist})
	}

	return e.UpdateTrack(ctx, track, updates)
}

func (e *Executor) tryBatch(ctx context.Context, trackID string, updates []FieldUpdate) (bool, error) {
	timeout, err := resolveBatchTimeout(e.cfg)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	triples := make([][3]string, len(updates))
	for i, u := range updates {
		triples[i] = [3]string{trackID, u.Field, u.Value}
	}
	command := scriptrunner.JoinBatchCommand(triples)

	stdout, err := e.runner.Run(ctx, "batch_update_tracks.applescript", []string{command})
	if err != nil {
		return false, err
	}
	return scriptrunner.ParseUpdateOutcome(stdout) == scriptrunner.OutcomeSuccess, nil
}

func (e *Executor) runOne(ctx context.Context, trackID string, update FieldUpdate) (scriptrunner.UpdateOutcome, error) {
	stdout, err := e.runner.Run(ctx, "update_property.applescript", []string{trackID, update.Field, update.Value})
	if err != nil {
		return scriptrunner.OutcomeError, err
	}
	return scriptrunner.ParseUpdateOutcome(stdout), nil
}

var timeNow = time.Now
