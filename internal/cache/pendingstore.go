package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/barad1tos/reconciler/internal/model"
)

// PendingStoreVersion is the on-disk envelope version for the pending-
// verification file (spec §6.3: "JSON map key_hash -> {...}").
const PendingStoreVersion = 1

// JSONPendingStore is the default, file-backed implementation of
// yeardetermine.PendingStore. Entries are keyed by AlbumYearKey(artist,
// album) so they share the same normalization as the album-year cache.
type JSONPendingStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]model.PendingVerificationEntry
}

type pendingStoreFile struct {
	Version int                                       `json:"version"`
	Entries map[string]model.PendingVerificationEntry `json:"entries"`
}

// NewJSONPendingStore loads path if it exists, or starts empty if it
// doesn't. path is also where Set, Delete and ReapExpired write back to.
func NewJSONPendingStore(path string) (*JSONPendingStore, error) {
	s := &JSONPendingStore{path: path, entries: make(map[string]model.PendingVerificationEntry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("cache: load pending store %s: %w", path, err)
	}
	var file pendingStoreFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("cache: parse pending store %s: %w", path, err)
	}
	if file.Entries != nil {
		s.entries = file.Entries
	}
	return s, nil
}

// Get returns the pending entry for (artist, album), if any.
func (s *JSONPendingStore) Get(artist, album string) (model.PendingVerificationEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[AlbumYearKey(artist, album)]
	return entry, ok
}

// Set records or replaces the pending entry for entry.Artist/entry.Album,
// then flushes to disk so a crash doesn't lose the deferral.
func (s *JSONPendingStore) Set(entry model.PendingVerificationEntry) error {
	s.mu.Lock()
	s.entries[AlbumYearKey(entry.Artist, entry.Album)] = entry
	s.mu.Unlock()
	return s.flush()
}

// Delete removes the pending entry for (artist, album), if present.
func (s *JSONPendingStore) Delete(artist, album string) error {
	s.mu.Lock()
	delete(s.entries, AlbumYearKey(artist, album))
	s.mu.Unlock()
	return s.flush()
}

// ReapExpired removes every entry older than maxAge, returning the count
// removed. Without this the store grows unbounded across runs, since a
// rejected or no-year-found album is never retried on its own.
func (s *JSONPendingStore) ReapExpired(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	removed := 0
	for key, entry := range s.entries {
		if entry.Timestamp.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()
	if removed == 0 {
		return 0, nil
	}
	return removed, s.flush()
}

// flush persists the store. Caller must not hold s.mu.
func (s *JSONPendingStore) flush() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(pendingStoreFile{Version: PendingStoreVersion, Entries: s.entries}, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("cache: marshal pending store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("cache: write pending store %s: %w", s.path, err)
	}
	return nil
}
