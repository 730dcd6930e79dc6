package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/barad1tos/reconciler/internal/model"
)

// redisKeyPrefix namespaces every API-response entry this reconciler writes
// into a shared Redis instance.
const redisKeyPrefix = "reconciler:api:"

// redisAlbumIndexKey indexes keys by (artist, album) so InvalidateForAlbum
// doesn't need a full KEYS scan.
func redisAlbumIndexKey(artist, album string) string {
	return "reconciler:api:album:" + AlbumYearKey(artist, album)
}

// redisStore is an apiResponseStore backed by Redis/Valkey, for deployments
// that want the API-response cache shared across processes (mirrors the
// teacher's services/api/internal/queue write-through pattern).
type redisStore struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisAPIResponseStore wraps an existing *redis.Client.
func NewRedisAPIResponseStore(client *redis.Client) *redisStore {
	return &redisStore{client: client, ctx: context.Background()}
}

func (s *redisStore) get(key string) (model.CachedAPIResult, bool, error) {
	raw, err := s.client.Get(s.ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return model.CachedAPIResult{}, false, nil
	}
	if err != nil {
		return model.CachedAPIResult{}, false, err
	}
	var result model.CachedAPIResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Type-mismatched/corrupt entry: report as an error so the caller
		// evicts it, per the self-healing contract.
		return model.CachedAPIResult{}, false, err
	}
	return result, true, nil
}

func (s *redisStore) set(key string, result model.CachedAPIResult, failedTTL time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	ttl := time.Duration(0) // 0 == no expiry in go-redis
	if !result.Success {
		ttl = failedTTL
	}
	if err := s.client.Set(s.ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return err
	}
	return s.client.SAdd(s.ctx, redisAlbumIndexKey(result.Artist, result.Album), key).Err()
}

func (s *redisStore) delete(key string) error {
	return s.client.Del(s.ctx, redisKeyPrefix+key).Err()
}

func (s *redisStore) keysForAlbum(artist, album string) ([]string, error) {
	members, err := s.client.SMembers(s.ctx, redisAlbumIndexKey(artist, album)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	return members, nil
}

// cleanupExpiredFailed is a no-op: Redis expires failed entries itself via
// their TTL, so there is nothing to sweep manually.
func (s *redisStore) cleanupExpiredFailed() (int, error) {
	return 0, nil
}
