package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultStoreTTL = 10 * time.Minute

// Store keeps the last known good copy of upstream responses so the edge
// can serve stale data while the upstream is down. Values live in redis
// when a client is configured and fall back to process memory otherwise.
type Store struct {
	client *redis.Client
	local  Cache[string, []byte]
	ttl    time.Duration
	log    *zap.Logger
}

func NewStore(client *redis.Client, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		client: client,
		local:  NewTTLCache[string, []byte](),
		ttl:    defaultStoreTTL,
		log:    log,
	}
}

// Get unmarshals the cached value for key into out. A miss, an expired
// entry, or a decode failure all report false.
func (s *Store) Get(ctx context.Context, key string, out any) bool {
	if s == nil {
		return false
	}

	var raw []byte
	if s.client != nil {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
			}
			return false
		}
		raw = data
	} else {
		data, ok := s.local.Get(key)
		if !ok {
			return false
		}
		raw = data
	}

	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores value under key for the store's TTL. Failures are logged and
// swallowed; caching is best effort.
func (s *Store) Set(ctx context.Context, key string, value any) {
	if s == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	if s.client != nil {
		if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	s.local.Set(key, raw, s.ttl)
}
