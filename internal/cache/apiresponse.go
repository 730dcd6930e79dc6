package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/barad1tos/reconciler/internal/model"
)

// APIResponseKey returns the canonical key for a cached API call:
// SHA256("api_request" + source + url + canonical(params)).
func APIResponseKey(source, url string, params map[string]string) string {
	var b strings.Builder
	b.WriteString("api_request")
	b.WriteString(source)
	b.WriteString(url)
	b.WriteString(canonicalParams(params))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func canonicalParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
		b.WriteString("&")
	}
	return b.String()
}

// apiResponseStore is the storage contract shared by the JSON-file and
// Redis-backed API-response cache implementations.
type apiResponseStore interface {
	get(key string) (model.CachedAPIResult, bool, error)
	set(key string, result model.CachedAPIResult, failedTTL time.Duration) error
	delete(key string) error
	keysForAlbum(artist, album string) ([]string, error)
	cleanupExpiredFailed() (int, error)
}

// APIResponseCache is the persistent (artist, album, source) -> raw answer
// cache (spec §4.6): successful results never expire, failed ones expire
// after failedTTL.
type APIResponseCache struct {
	store     apiResponseStore
	failedTTL time.Duration
}

// NewAPIResponseCache wraps store with the eternal-on-success /
// short-TTL-on-failure policy.
func NewAPIResponseCache(store apiResponseStore, failedTTL time.Duration) *APIResponseCache {
	return &APIResponseCache{store: store, failedTTL: failedTTL}
}

// Get returns the stored result for key. On a type-mismatched or otherwise
// corrupt entry, it is evicted silently (self-healing) and a miss reported.
func (c *APIResponseCache) Get(key string) (model.CachedAPIResult, bool) {
	result, ok, err := c.store.get(key)
	if err != nil {
		_ = c.store.delete(key)
		return model.CachedAPIResult{}, false
	}
	return result, ok
}

// Set stores result under key. Successful (year-bearing) results are
// stored with no expiry; failures get failedTTL.
func (c *APIResponseCache) Set(key string, result model.CachedAPIResult) error {
	return c.store.set(key, result, c.failedTTL)
}

// InvalidateForAlbum removes every cached source result for (artist, album).
func (c *APIResponseCache) InvalidateForAlbum(artist, album string) error {
	keys, err := c.store.keysForAlbum(artist, album)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := c.store.delete(k); err != nil {
			return err
		}
	}
	return nil
}

// CleanupExpiredFailed removes expired failed entries only; successful
// results are never swept.
func (c *APIResponseCache) CleanupExpiredFailed() (int, error) {
	return c.store.cleanupExpiredFailed()
}

// jsonFileStore is the default apiResponseStore: a single JSON file.
type jsonFileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]fileEntry
}

type fileEntry struct {
	Result model.CachedAPIResult `json:"result"`
	Expiry time.Time             `json:"expiry,omitempty"`
}

// NewJSONFileAPIResponseStore opens (or creates) a JSON-file-backed store.
func NewJSONFileAPIResponseStore(path string) (*jsonFileStore, error) {
	s := &jsonFileStore{path: path, entries: map[string]fileEntry{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *jsonFileStore) persist() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *jsonFileStore) get(key string) (model.CachedAPIResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return model.CachedAPIResult{}, false, nil
	}
	if !entry.Expiry.IsZero() && entry.Expiry.Before(time.Now()) {
		return model.CachedAPIResult{}, false, nil
	}
	return entry.Result, true, nil
}

func (s *jsonFileStore) set(key string, result model.CachedAPIResult, failedTTL time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := fileEntry{Result: result}
	if !result.Success {
		entry.Expiry = time.Now().Add(failedTTL)
	}
	s.entries[key] = entry
	return s.persist()
}

func (s *jsonFileStore) delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return s.persist()
}

func (s *jsonFileStore) keysForAlbum(artist, album string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k, entry := range s.entries {
		if entry.Result.Artist == artist && entry.Result.Album == album {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *jsonFileStore) cleanupExpiredFailed() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for k, entry := range s.entries {
		if !entry.Result.Success && !entry.Expiry.IsZero() && entry.Expiry.Before(now) {
			delete(s.entries, k)
			removed++
		}
	}
	if removed > 0 {
		return removed, s.persist()
	}
	return 0, nil
}
