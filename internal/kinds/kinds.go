// Package kinds defines the closed set of sentinel error kinds the
// reconciliation core distinguishes with errors.Is, per the "exception-heavy
// flow to result types" migration guidance: fallible pure operations return
// one of these rather than an ad hoc error string.
package kinds

import "errors"

var (
	// ErrDeadlineExceeded is returned by the retry handler when an
	// operation's context has exceeded its configured timeout.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrMissingRequired is returned by the fingerprint generator when a
	// required track attribute is absent or blank.
	ErrMissingRequired = errors.New("missing required property")

	// ErrHighFailureRate is returned by the library-state manager when more
	// than 10% of tracks fail to fingerprint during build_state.
	ErrHighFailureRate = errors.New("fingerprint failure rate too high")

	// ErrPossibleCorruption is returned by diff when the proportion of
	// changed ids versus the old state size crosses the corruption guard.
	ErrPossibleCorruption = errors.New("possible library corruption")

	// ErrLibraryRebuild signals an intentional bulk replacement (same size,
	// almost everything changed) rather than corruption.
	ErrLibraryRebuild = errors.New("library rebuild detected")

	// ErrCriticalInvalidationFailure is returned when an Immediate-tier
	// cache invalidation fails; lower tiers tolerate failure.
	ErrCriticalInvalidationFailure = errors.New("critical invalidation failure")
)
