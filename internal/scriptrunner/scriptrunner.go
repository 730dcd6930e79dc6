// Package scriptrunner defines the external-script surface contract
// (spec §6.1) and the record-separator helpers for it. It does not launch
// subprocesses itself — the platform-specific library-control surface
// (AppleScript/osascript or an equivalent) is explicitly out of scope;
// internal/updateexec depends only on the Runner interface here, never on
// a concrete implementation.
package scriptrunner

import "context"

// Field and record separators used by every script in the contract: ASCII
// unit/group separators, chosen because they never collide with user
// metadata.
const (
	FieldSeparator  = "\x1e" // U+001E, between fields within one record
	RecordSeparator = "\x1d" // U+001D, between records
)

// Runner launches a named external script with arguments and a timeout,
// returning its stdout, or an error. A nil string with a nil error means
// the script produced no output (callers treat this the same as an empty
// string).
type Runner interface {
	Run(ctx context.Context, name string, args []string) (string, error)
}

// TrackFieldOrder is the 11-field per-track order used by the fetch
// scripts. A 10-field form (pre-year_set_by_mgu) is also accepted by
// ParseTrackRecords.
var TrackFieldOrder = []string{
	"id", "name", "artist", "album_artist", "album", "genre",
	"date_added", "track_status", "year", "release_year", "year_set_by_mgu",
}

// JoinBatchCommand builds the single command string batch_update_tracks
// expects: per-track (id, field, value) triples joined by FieldSeparator,
// triples joined by RecordSeparator.
func JoinBatchCommand(updates [][3]string) string {
	records := make([]string, len(updates))
	for i, u := range updates {
		records[i] = u[0] + FieldSeparator + u[1] + FieldSeparator + u[2]
	}
	return joinWith(records, RecordSeparator)
}

func joinWith(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += sep + p
	}
	return out
}
