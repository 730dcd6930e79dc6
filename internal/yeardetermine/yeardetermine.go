// Package yeardetermine implements the per-album year determination
// pipeline (spec §4.9): pre-checks, cache probe, catalog-API fan-out with
// scoring, and the write/pending decision rules.
package yeardetermine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/barad1tos/reconciler/internal/catalogapi"
	"github.com/barad1tos/reconciler/internal/model"
	"github.com/barad1tos/reconciler/internal/scorer"
)

// SkipReason is a closed variant for why an album's year determination was
// skipped before reaching the API fan-out.
type SkipReason string

const (
	ReasonAlreadyProcessed SkipReason = "already_processed"
	ReasonRecentlyRejected SkipReason = "recently_rejected"
	ReasonYearConsistent   SkipReason = "year_consistent"
)

// Decision is the pipeline's outcome for one (artist, album).
type Decision struct {
	Skip         bool
	SkipReason   string // SkipReason, optionally suffixed ":<pending reason>"
	Write        bool
	Year         string
	Confidence   int
	Pending      bool
	PendingWhy   model.PendingVerificationReason
	BestScore    int
	BestSource   string
}

// AlbumYearCache is the subset of internal/cache.AlbumYearCache the
// determinator needs.
type AlbumYearCache interface {
	Get(artist, album string) (string, bool)
	GetEntry(artist, album string) (model.AlbumYearEntry, bool)
	Store(artist, album, year string, confidence int) error
}

// PendingStore persists deferred year-write decisions (spec §6.3).
type PendingStore interface {
	Get(artist, album string) (model.PendingVerificationEntry, bool)
	Set(entry model.PendingVerificationEntry) error
	Delete(artist, album string) error
	// ReapExpired removes entries older than maxAge and returns how many
	// were removed (§12 supplement: the pending store otherwise grows
	// without bound).
	ReapExpired(maxAge time.Duration) (int, error)
}

// Config bundles the tunables from spec §6.4's year_retrieval.* keys.
type Config struct {
	Weights             scorer.Weights
	DefinitiveThreshold int
	SuspiciousDelta     int
	VerificationPeriod  time.Duration
	Sources             []catalogapi.Provider // in priority order
}

// Determinator runs the §4.9 pipeline for one album at a time.
type Determinator struct {
	cfg     Config
	cache   AlbumYearCache
	pending PendingStore
	logger  *slog.Logger
}

// New builds a Determinator. logger may be nil (defaults to slog.Default()).
func New(cfg Config, cache AlbumYearCache, pending PendingStore, logger *slog.Logger) *Determinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Determinator{cfg: cfg, cache: cache, pending: pending, logger: logger}
}

// Determine runs the full pipeline for one album's current track set.
// period is the artist's activity-period context for contextual scoring;
// it may be zero-valued if unknown. now is the caller-supplied wall clock,
// threaded through explicitly since pure scheduling decisions must not call
// time.Now() themselves (keeps replay/testing deterministic).
func (d *Determinator) Determine(ctx context.Context, artist, album string, tracks []model.Track, period scorer.ActivityPeriod, force bool, now time.Time) (Decision, error) {
	if len(tracks) == 0 {
		return Decision{}, fmt.Errorf("yeardetermine: no tracks for %s/%s", artist, album)
	}

	if !force {
		if reason, skip := d.precheckAlreadyProcessed(tracks[0]); skip {
			return Decision{Skip: true, SkipReason: reason}, nil
		}
	}

	if reason, skip := d.precheckRecentlyRejected(artist, album, now); skip {
		return Decision{Skip: true, SkipReason: reason}, nil
	}

	if reason, skip := precheckYearConsistent(tracks, d.cfg.Weights.MinValidYear); skip {
		return Decision{Skip: true, SkipReason: reason}, nil
	}

	if entry, hit := d.cache.GetEntry(artist, album); hit && entry.Confidence >= d.cfg.DefinitiveThreshold {
		return Decision{Write: true, Year: entry.Year, Confidence: entry.Confidence, BestSource: entry.SourceTag}, nil
	}

	best, err := d.fanOutAndScore(ctx, artist, album, period, now)
	if err != nil {
		return Decision{}, err
	}

	existingYear := tracks[0].Year
	return d.decide(artist, album, best, existingYear, tracks, now), nil
}

func (d *Determinator) precheckAlreadyProcessed(first model.Track) (string, bool) {
	// An empty year_set_by_mgu means "this system has never written a year
	// here" — never treated as a match even if Year also happens to be
	// empty (see DESIGN.md Open Question decisions).
	if first.YearSetByMGU != "" && first.YearSetByMGU == first.Year {
		return string(ReasonAlreadyProcessed), true
	}
	return "", false
}

func (d *Determinator) precheckRecentlyRejected(artist, album string, now time.Time) (string, bool) {
	entry, ok := d.pending.Get(artist, album)
	if !ok {
		return "", false
	}
	switch entry.Reason {
	case model.ReasonSuspiciousYearChange, model.ReasonNoYearFound, model.ReasonAPIDisagreement:
	default:
		return "", false
	}
	if now.Sub(entry.Timestamp) >= d.cfg.VerificationPeriod {
		return "", false
	}
	return fmt.Sprintf("%s:%s", ReasonRecentlyRejected, entry.Reason), true
}

func precheckYearConsistent(tracks []model.Track, minValidYear int) (string, bool) {
	first := tracks[0].Year
	if !scorer.IsValidYear(first, minValidYear) {
		return "", false
	}
	for _, t := range tracks[1:] {
		if t.Year != first {
			return "", false
		}
	}
	return string(ReasonYearConsistent), true
}

type scoredCandidate struct {
	candidate scorer.Candidate
	score     int
	priority  int
}

func (d *Determinator) fanOutAndScore(ctx context.Context, artist, album string, period scorer.ActivityPeriod, now time.Time) (*scoredCandidate, error) {
	var scored []scoredCandidate
	for priority, provider := range d.cfg.Sources {
		releases, err := provider.SearchReleases(ctx, artist, album)
		if err != nil {
			d.logger.Warn("catalog provider search failed", "provider", provider.Name(), "artist", artist, "album", album, "err", err)
			continue
		}
		for _, r := range releases {
			c := r.ToCandidate()
			s := scorer.Score(d.cfg.Weights, c, artist, album, period, now, d.logger)
			if s <= 0 {
				continue
			}
			scored = append(scored, scoredCandidate{candidate: c, score: s, priority: priority})
		}
	}
	if len(scored) == 0 {
		return nil, nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].priority != scored[j].priority {
			return scored[i].priority < scored[j].priority
		}
		yi, _ := strconv.Atoi(scored[i].candidate.Year)
		yj, _ := strconv.Atoi(scored[j].candidate.Year)
		return yi < yj
	})
	return &scored[0], nil
}

func (d *Determinator) decide(artist, album string, best *scoredCandidate, existingYear string, tracks []model.Track, now time.Time) Decision {
	if best != nil && best.score >= d.cfg.DefinitiveThreshold {
		confidence := best.score
		if confidence > 100 {
			confidence = 100
		}
		if err := d.cache.Store(artist, album, best.candidate.Year, confidence); err != nil {
			d.logger.Warn("album-year cache store failed", "artist", artist, "album", album, "err", err)
		}
		_ = d.pending.Delete(artist, album)
		return Decision{Write: true, Year: best.candidate.Year, Confidence: confidence, BestScore: best.score, BestSource: best.candidate.Source}
	}

	if best != nil && existingYear != "" {
		existing, err := strconv.Atoi(existingYear)
		candidate, cErr := strconv.Atoi(best.candidate.Year)
		if err == nil && cErr == nil {
			delta := existing - candidate
			if delta < 0 {
				delta = -delta
			}
			if delta > d.cfg.SuspiciousDelta {
				d.markPending(artist, album, model.ReasonSuspiciousYearChange, now)
				return Decision{Pending: true, PendingWhy: model.ReasonSuspiciousYearChange, BestScore: best.score, BestSource: best.candidate.Source}
			}
		}
	}

	if best == nil {
		if year, ok := DominantYear(tracks, d.cfg.Weights.MinValidYear); ok {
			confidence := int(fallbackDominanceMinShare * 100)
			if err := d.cache.Store(artist, album, year, confidence); err != nil {
				d.logger.Warn("album-year cache store failed", "artist", artist, "album", album, "err", err)
			}
			_ = d.pending.Delete(artist, album)
			return Decision{Write: true, Year: year, Confidence: confidence, BestSource: "dominant_fallback"}
		}
		d.markPending(artist, album, model.ReasonNoYearFound, now)
		return Decision{Pending: true, PendingWhy: model.ReasonNoYearFound}
	}

	// A non-zero, sub-definitive score with no suspicious delta is not
	// actionable on its own; defer for a human to confirm rather than
	// writing a low-confidence guess.
	d.markPending(artist, album, model.ReasonAPIDisagreement, now)
	return Decision{Pending: true, PendingWhy: model.ReasonAPIDisagreement, BestScore: best.score, BestSource: best.candidate.Source}
}

func (d *Determinator) markPending(artist, album string, reason model.PendingVerificationReason, now time.Time) {
	entry := model.PendingVerificationEntry{Artist: artist, Album: album, Reason: reason, Timestamp: now}
	if err := d.pending.Set(entry); err != nil {
		d.logger.Warn("pending-verification store failed", "artist", artist, "album", album, "reason", reason, "err", err)
	}
}
