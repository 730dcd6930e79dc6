package report

import "fmt"

// RunSummary tallies the outcome of one reconciliation run, per the
// counts named in spec §6.4's user-visible behavior.
type RunSummary struct {
	Processed               int
	SkippedAlreadyProcessed int
	SkippedRecentRejection  int
	SkippedConsistent       int
	Updated                 int
	PendingVerification     int
	Errors                  int
}

// String renders the summary as a single human-readable line, suitable for
// stdout or a log record.
func (s RunSummary) String() string {
	return fmt.Sprintf(
		"processed=%d skipped_already_processed=%d skipped_recent_rejection=%d "+
			"skipped_consistent=%d updated=%d pending_verification=%d errors=%d",
		s.Processed, s.SkippedAlreadyProcessed, s.SkippedRecentRejection,
		s.SkippedConsistent, s.Updated, s.PendingVerification, s.Errors,
	)
}
