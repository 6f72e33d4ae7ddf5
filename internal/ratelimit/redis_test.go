package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only when QUOTEGW_TEST_REDIS_ADDR points at a disposable Redis.
func TestRedisStoreFixedWindow(t *testing.T) {
	addr := os.Getenv("QUOTEGW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("QUOTEGW_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	prefix := "rl:test:" + time.Now().Format("150405.000") + ":"
	s := NewRedisStore(rdb, Options{KeyPrefix: prefix, Window: 2 * time.Second})

	for i := 1; i <= 5; i++ {
		d, err := s.Allow(ctx, "client")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, i, d.Count)
	}
	d, err := s.Allow(ctx, "client")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 5, d.Count)

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "client", entries[0].Key)

	ok, err := s.Reset(ctx, "client")
	require.NoError(t, err)
	assert.True(t, ok)

	d, err = s.Allow(ctx, "client")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	_, _ = s.Reset(ctx, "client")
}
