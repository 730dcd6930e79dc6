// Package libstate persists the library's track-id -> fingerprint map and
// computes change sets between scans (spec §4.2).
package libstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/barad1tos/reconciler/internal/fingerprint"
	"github.com/barad1tos/reconciler/internal/kinds"
	"github.com/barad1tos/reconciler/internal/model"
)

// maxFingerprintFailureRate is the tolerated fraction of per-track
// fingerprint failures before BuildState gives up.
const maxFingerprintFailureRate = 0.10

// corruptionMinOldSize and corruptionChangedRatio gate the diff corruption
// guard: only suspect corruption once the library is large enough that a
// near-total rewrite is implausible as an ordinary edit.
const (
	corruptionMinOldSize    = 50
	corruptionChangedRatio  = 0.9
)

// State is the persisted library snapshot.
type State struct {
	Timestamp         time.Time         `json:"timestamp"`
	LibraryPath       string            `json:"library_path,omitempty"`
	TrackCount        int               `json:"track_count"`
	TrackFingerprints map[string]string `json:"track_fingerprints"`
}

// Manager owns the on-disk library state file and its single backup slot.
type Manager struct {
	path string
}

// NewManager returns a Manager persisting to path (and path+".backup").
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// BuildState fingerprints every track, tolerating up to a 10% per-track
// failure rate. Above that it fails with kinds.ErrHighFailureRate.
func BuildState(tracks []model.Track) (map[string]string, error) {
	out := make(map[string]string, len(tracks))
	if len(tracks) == 0 {
		return out, nil
	}

	var failures *multierror.Error
	failCount := 0
	for _, t := range tracks {
		fp, err := fingerprint.Generate(fingerprint.Attrs{
			"persistent_id": t.PersistentID,
			"location":      t.Location,
			"file_size":     t.FileSize,
			"duration":      t.Duration,
			"date_modified": t.DateModified,
			"date_added":    t.DateAdded,
		})
		if err != nil {
			failCount++
			failures = multierror.Append(failures, fmt.Errorf("track %s: %w", t.ID, err))
			continue
		}
		out[t.ID] = fp
	}

	rate := float64(failCount) / float64(len(tracks))
	if rate > maxFingerprintFailureRate {
		return nil, fmt.Errorf("%w: %d/%d tracks failed (%.1f%%): %w",
			kinds.ErrHighFailureRate, failCount, len(tracks), rate*100, failures.ErrorOrNil())
	}
	return out, nil
}

// Save atomically writes state: if a previous state file exists, it is
// copied to the single backup slot first, then the new state is written to
// a temp file and renamed into place.
func (m *Manager) Save(state State) error {
	if _, err := os.Stat(m.path); err == nil {
		if err := copyFile(m.path, m.path+".backup"); err != nil {
			return fmt.Errorf("backup previous state: %w", err)
		}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, ".libstate-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp state file: %w", err)
	}
	return nil
}

// Load returns the persisted state. On corrupt JSON it attempts backup
// recovery; if the backup is also unreadable, it returns an empty state.
func (m *Manager) Load() State {
	if state, err := readState(m.path); err == nil {
		return state
	}
	if state, err := readState(m.path + ".backup"); err == nil {
		return state
	}
	return State{TrackFingerprints: map[string]string{}}
}

func readState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	if state.TrackFingerprints == nil {
		state.TrackFingerprints = map[string]string{}
	}
	return state, nil
}

// NeedsRefresh reports whether the cached state is missing or stale
// relative to libraryModTime.
func (m *Manager) NeedsRefresh(libraryModTime *time.Time) bool {
	state, err := readState(m.path)
	if err != nil {
		return true
	}
	if libraryModTime == nil {
		return false
	}
	return libraryModTime.After(state.Timestamp)
}

// Diff computes the ChangeSet between two fingerprint maps, applying the
// corruption guard: if the old state is large and almost everything
// changed, it signals PossibleCorruption unless the sizes are equal (in
// which case it's an intentional LibraryRebuild).
func Diff(old, newState map[string]string) (*model.ChangeSet, error) {
	cs := model.NewChangeSet()

	for id := range old {
		if _, ok := newState[id]; !ok {
			cs.Deleted[id] = struct{}{}
		}
	}
	for id, fp := range newState {
		oldFP, ok := old[id]
		if !ok {
			cs.Added[id] = struct{}{}
			continue
		}
		if oldFP != fp {
			cs.Modified[id] = struct{}{}
		}
	}

	changed := len(cs.Added) + len(cs.Modified) + len(cs.Deleted)
	if len(old) >= corruptionMinOldSize && float64(changed)/float64(len(old)) > corruptionChangedRatio {
		if len(newState) == len(old) {
			return cs, kinds.ErrLibraryRebuild
		}
		return cs, kinds.ErrPossibleCorruption
	}

	return cs, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
