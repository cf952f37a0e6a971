package cache

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Интеграционный тест: LEVELBUILDER_TEST_REDIS=127.0.0.1:6379
func TestRedisCacheIntegration(t *testing.T) {
	addr := os.Getenv("LEVELBUILDER_TEST_REDIS")
	if addr == "" {
		t.Skip("LEVELBUILDER_TEST_REDIS not set")
	}

	cold := newMockColdStorage()
	cold.data["level:cold"] = []byte("from-cold")
	inv := &mockInvalidator{}

	c, err := NewRedisCache(CacheConfig{
		RedisURL:  addr,
		KeyPrefix: "sks-test-" + uuid.NewString() + ":",
	}, cold, inv)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "level:a", []byte("a"), 0))
	val, err := c.Get(ctx, "level:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), val)

	val, err = c.Get(ctx, "level:cold")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-cold"), val)

	require.NoError(t, c.Invalidate(ctx, "level:a"))
	ok, err := c.Exists(ctx, "level:a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"level:a"}, inv.published)

	n, err := c.Warm(ctx, []string{"level:cold", "level:none"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m := c.GetMetrics()
	assert.Equal(t, int64(1), m.TotalKeys)
	assert.Equal(t, int64(1), m.ColdLoads)
}
