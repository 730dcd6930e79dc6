// Package model holds the core data types shared across the reconciliation
// pipeline: tracks, fingerprints, change sets, and the persisted cache/metrics
// records.
package model

import "time"

// TrackStatus is a closed variant describing whether a track's metadata can
// be mutated by the update executor.
type TrackStatus int

const (
	// StatusEditable is a normal, locally-owned track.
	StatusEditable TrackStatus = iota
	// StatusPrerelease is a pre-release track the library app refuses to edit.
	StatusPrerelease
	// StatusSubscription is a streaming-subscription track with no local file.
	StatusSubscription
	// StatusMatched is an Apple-Music-matched track; metadata is server-owned.
	StatusMatched
)

func (s TrackStatus) String() string {
	switch s {
	case StatusEditable:
		return "editable"
	case StatusPrerelease:
		return "prerelease"
	case StatusSubscription:
		return "subscription"
	case StatusMatched:
		return "matched"
	default:
		return "unknown"
	}
}

// CanEditMetadata reports whether the update executor is allowed to mutate
// a track with this status.
func (s TrackStatus) CanEditMetadata() bool {
	return s == StatusEditable
}

// Track is a single library track and the bookkeeping fields the
// reconciliation core needs to track its own prior writes.
type Track struct {
	ID           string
	Name         string
	Artist       string
	AlbumArtist  string
	Album        string
	Genre        string
	Year         string
	DateAdded    string
	Status       TrackStatus
	YearBeforeMGU string // write-once: the year found on first mutation this system ever made
	YearSetByMGU  string // the year this system last wrote; "" means not set (see DESIGN.md Open Questions)

	// Fields feeding the fingerprint generator (see internal/fingerprint).
	PersistentID string
	Location     string
	FileSize     float64
	Duration     float64
	DateModified string
}

// ChangeType is a closed variant for what kind of field changed on a track.
type ChangeType int

const (
	ChangeGenre ChangeType = iota
	ChangeYear
	ChangeName
	ChangeOther
)

func (c ChangeType) String() string {
	switch c {
	case ChangeGenre:
		return "genre"
	case ChangeYear:
		return "year"
	case ChangeName:
		return "name"
	default:
		return "other"
	}
}

// ChangeSet is the result of diffing two library states: three pairwise
// disjoint sets of track ids.
type ChangeSet struct {
	Added    map[string]struct{}
	Modified map[string]struct{}
	Deleted  map[string]struct{}
}

// NewChangeSet returns an empty ChangeSet with initialized maps.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Added:    make(map[string]struct{}),
		Modified: make(map[string]struct{}),
		Deleted:  make(map[string]struct{}),
	}
}

// AlbumYearEntry is a persisted (artist, album) -> year decision.
type AlbumYearEntry struct {
	Artist     string    `json:"artist"`
	Album      string    `json:"album"`
	Year       string    `json:"year"`
	Confidence int       `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	SourceTag  string    `json:"source_tag,omitempty"`
}

// CachedAPIResult is a persisted raw answer from one catalog API source.
type CachedAPIResult struct {
	Artist      string         `json:"artist"`
	Album       string         `json:"album"`
	Source      string         `json:"source"`
	Year        string         `json:"year,omitempty"`
	Success     bool           `json:"success"`
	APIResponse map[string]any `json:"api_response,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// PendingVerificationReason is a closed variant for why an album's year
// write was deferred.
type PendingVerificationReason string

const (
	ReasonSuspiciousYearChange PendingVerificationReason = "suspicious_year_change"
	ReasonNoYearFound          PendingVerificationReason = "no_year_found"
	ReasonAPIDisagreement      PendingVerificationReason = "api_disagreement"
)

// PendingVerificationEntry is a persisted record of a deferred year write.
type PendingVerificationEntry struct {
	Artist    string                    `json:"artist"`
	Album     string                    `json:"album"`
	Reason    PendingVerificationReason `json:"reason"`
	Timestamp time.Time                 `json:"timestamp"`
	Metadata  map[string]any            `json:"metadata,omitempty"`
}

// RetryPolicy configures the retry handler (see internal/retry).
type RetryPolicy struct {
	MaxRetries           int
	BaseDelaySeconds     float64
	MaxDelaySeconds      float64
	ExponentialBase      float64
	JitterRange          float64
	OperationTimeoutSecs float64
}

// DefaultRetryPolicy mirrors the Python original's DatabaseRetryHandler
// defaults (retry_handler.py), not the weaker dataclass default.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           5,
		BaseDelaySeconds:     1.0,
		MaxDelaySeconds:      30.0,
		ExponentialBase:      2.0,
		JitterRange:          0.2,
		OperationTimeoutSecs: 300.0,
	}
}

// RetryOperationContext tracks one retry_operation invocation.
type RetryOperationContext struct {
	OperationID  string
	Policy       RetryPolicy
	StartTime    time.Time
	AttemptCount int
	LastError    error
	Metadata     map[string]any
}

// Elapsed returns time since StartTime, relative to now.
func (c *RetryOperationContext) Elapsed(now time.Time) time.Duration {
	return now.Sub(c.StartTime)
}

// ExceededDeadline reports whether the operation timeout has passed.
func (c *RetryOperationContext) ExceededDeadline(now time.Time) bool {
	if c.Policy.OperationTimeoutSecs <= 0 {
		return false
	}
	return c.Elapsed(now).Seconds() > c.Policy.OperationTimeoutSecs
}
