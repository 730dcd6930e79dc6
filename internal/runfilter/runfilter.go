// Package runfilter selects the subset of a library snapshot that one
// reconciliation run should actually process: tracks unchanged since the
// last scan are skipped without touching the API fan-out or scorer, and a
// development-only artist allowlist can narrow a run further for testing.
package runfilter

import (
	"strings"

	"github.com/barad1tos/reconciler/internal/model"
)

// ScanState is the last-seen (mtime, size) for one track's backing file,
// mirroring the stat-only fast path a full library scan uses to avoid
// re-reading unchanged files.
type ScanState struct {
	MtimeUnix int64
	FileSize  int64
}

// Filter narrows the tracks a run processes to those that changed since the
// last scan, optionally restricted to a fixed artist allowlist.
type Filter struct {
	lastScan    map[string]ScanState
	testArtists map[string]struct{}
}

// New builds a Filter. lastScan may be nil (treat every track as new).
// testArtists, when non-empty, restricts NeedsProcessing to only those
// artists (case-insensitive), per development.test_artists.
func New(lastScan map[string]ScanState, testArtists []string) *Filter {
	f := &Filter{lastScan: lastScan}
	if len(testArtists) > 0 {
		f.testArtists = make(map[string]struct{}, len(testArtists))
		for _, a := range testArtists {
			f.testArtists[strings.ToLower(a)] = struct{}{}
		}
	}
	return f
}

// NeedsProcessing reports whether track should be included in this run: its
// backing file state differs from the last scan (or there is no prior
// state), and it passes the development artist allowlist, if one is set.
func (f *Filter) NeedsProcessing(t model.Track, current ScanState) bool {
	if !f.passesTestArtistFilter(t) {
		return false
	}
	if f.lastScan == nil {
		return true
	}
	prior, ok := f.lastScan[t.ID]
	if !ok {
		return true
	}
	return prior.MtimeUnix != current.MtimeUnix || prior.FileSize != current.FileSize
}

func (f *Filter) passesTestArtistFilter(t model.Track) bool {
	if f.testArtists == nil {
		return true
	}
	_, ok := f.testArtists[strings.ToLower(t.Artist)]
	return ok
}

// Apply filters tracks down to the subset NeedsProcessing accepts, given the
// current on-disk scan state for each track id.
func (f *Filter) Apply(tracks []model.Track, current map[string]ScanState) []model.Track {
	out := make([]model.Track, 0, len(tracks))
	for _, t := range tracks {
		if f.NeedsProcessing(t, current[t.ID]) {
			out = append(out, t)
		}
	}
	return out
}
