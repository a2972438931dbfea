// Package dedup drops redelivered inbound events by gateway message id.
package dedup

import (
	"context"
	"fmt"
	"time"

	"dispatch_bot_backend/platform/config"
	"dispatch_bot_backend/platform/logger"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "dispatch:inbound:"
	defaultTTL = 10 * time.Minute
)

// Store remembers message ids for a TTL. Redis is shared across replicas; the
// in-process cache covers a missing or failing Redis.
type Store struct {
	rdb   redis.UniversalClient
	local *cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// New connects to Redis when a URL is configured.
func New(cfg config.DedupConfig, log *logger.Logger) (*Store, error) {
	var rdb redis.UniversalClient
	if url := cfg.GetRedisURL(); url != "" {
		opt, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
	}
	return NewWithClient(rdb, cfg.GetDedupTTL(), log), nil
}

// NewWithClient builds a store over an existing client. rdb may be nil.
func NewWithClient(rdb redis.UniversalClient, ttl time.Duration, log *logger.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		rdb:   rdb,
		local: cache.New(ttl, ttl),
		ttl:   ttl,
		log:   log,
	}
}

// Seen records id and reports whether it had already been recorded.
func (s *Store) Seen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	if s.rdb != nil {
		fresh, err := s.rdb.SetNX(ctx, keyPrefix+id, 1, s.ttl).Result()
		if err == nil {
			return !fresh, nil
		}
		s.log.WithContext(ctx).Warn("redis dedup unavailable, using local cache", "error", err)
	}
	if err := s.local.Add(id, struct{}{}, cache.DefaultExpiration); err != nil {
		return true, nil
	}
	return false, nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
