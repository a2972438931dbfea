package dedup

import (
	"context"
	"testing"
	"time"

	"dispatch_bot_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewWithClient(rdb, time.Minute, logger.Discard())
	defer s.Close()
	ctx := context.Background()

	dup, err := s.Seen(ctx, "wamid.1")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = s.Seen(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, dup)

	assert.True(t, mr.Exists(keyPrefix+"wamid.1"))
	mr.FastForward(2 * time.Minute)

	dup, err = s.Seen(ctx, "wamid.1")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestSeenFallsBackToLocalCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := NewWithClient(rdb, time.Minute, logger.Discard())
	mr.Close()
	ctx := context.Background()

	dup, err := s.Seen(ctx, "wamid.2")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = s.Seen(ctx, "wamid.2")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestSeenWithoutRedis(t *testing.T) {
	s := NewWithClient(nil, 0, logger.Discard())
	ctx := context.Background()

	dup, _ := s.Seen(ctx, "a")
	assert.False(t, dup)
	dup, _ = s.Seen(ctx, "b")
	assert.False(t, dup)
	dup, _ = s.Seen(ctx, "a")
	assert.True(t, dup)

	dup, _ = s.Seen(ctx, "")
	assert.False(t, dup)
	assert.NoError(t, s.Close())
}
