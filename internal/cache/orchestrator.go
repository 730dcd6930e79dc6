package cache

import (
	"fmt"

	"github.com/barad1tos/reconciler/internal/model"
)

// Orchestrator is the single façade downstream callers hold a reference to
// (spec §4.7). It owns the three caches exclusively; all mutation goes
// through it, and cache services never hold a reference back to it —
// communication flows outward only through Bus events.
type Orchestrator struct {
	TTL       *TTLCache
	AlbumYear *AlbumYearCache
	API       *APIResponseCache
	Bus       *Bus
}

// NewOrchestrator wires the three caches and the bus into one façade.
func NewOrchestrator(ttl *TTLCache, albumYear *AlbumYearCache, api *APIResponseCache, bus *Bus) *Orchestrator {
	return &Orchestrator{TTL: ttl, AlbumYear: albumYear, API: api, Bus: bus}
}

// Invalidate implements invalidate.Cache: it resolves a generic key against
// whichever underlying cache it names. Keys are namespaced by the producer
// (invalidate.trackKey, invalidate.processedKey, or the "ALL" sentinel);
// track/processed keys evict from the generic TTL cache, and "ALL" is
// treated as a broad aggregate-query invalidation.
func (o *Orchestrator) Invalidate(key string) error {
	if key == "ALL" {
		// Aggregate queries have no single cache entry; nothing further to
		// evict here beyond what per-track invalidation already covers.
		return nil
	}
	o.TTL.Delete(key)
	return nil
}

// InvalidateForTrack evicts every cache entry derived from a track's
// current fields and publishes a TrackModified event.
func (o *Orchestrator) InvalidateForTrack(t model.Track) error {
	o.TTL.Delete("track:" + t.ID)
	o.TTL.Delete("processed_track:" + t.ID)
	if err := o.API.InvalidateForAlbum(t.Artist, t.Album); err != nil {
		return fmt.Errorf("invalidate api cache for album: %w", err)
	}
	o.Bus.Publish(Event{Type: TrackModified, TrackID: t.ID, Artist: t.Artist, Album: t.Album})
	return nil
}

// InvalidateForRemovedTrack evicts a deleted track's cache entries and
// publishes a TrackRemoved event.
func (o *Orchestrator) InvalidateForRemovedTrack(trackID string) {
	o.TTL.Delete("track:" + trackID)
	o.TTL.Delete("processed_track:" + trackID)
	o.Bus.Publish(Event{Type: TrackRemoved, TrackID: trackID})
}

// FlushAll persists the album-year cache and the generic TTL cache to the
// given paths. The API-response cache persists itself on every write.
func (o *Orchestrator) FlushAll(albumYearPath, ttlPath string) error {
	if err := o.AlbumYear.Flush(albumYearPath); err != nil {
		return fmt.Errorf("flush album-year cache: %w", err)
	}
	if err := o.TTL.Save(ttlPath); err != nil {
		return fmt.Errorf("flush ttl cache: %w", err)
	}
	return nil
}
