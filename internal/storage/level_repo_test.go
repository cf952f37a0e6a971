package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/sks-levelbuilder/internal/cache"
	"github.com/annel0/sks-levelbuilder/internal/level"
)

func setupCachedRepo(t *testing.T, withColdStorage bool) (*CachedLevelRepo, *cache.MemoryCache) {
	t.Helper()

	storage, err := NewInMemoryLevelStorage()
	require.NoError(t, err)

	var cold cache.ColdStorage
	if withColdStorage {
		cold = storage
	}
	c := cache.NewMemoryCache(cache.CacheConfig{}, cold, nil)
	repo := NewCachedLevelRepo(storage, c)
	t.Cleanup(func() { repo.Close() })
	return repo, c
}

func TestCachedRepoLoadPopulatesCache(t *testing.T) {
	for _, cold := range []bool{false, true} {
		repo, c := setupCachedRepo(t, cold)
		ctx := context.Background()
		g := sampleLevel(t)

		require.NoError(t, repo.SaveLevel(ctx, "intro", g))
		ok, _ := c.Exists(ctx, LevelKey("intro"))
		assert.False(t, ok, "save must invalidate the cache")

		loaded, err := repo.LoadLevel(ctx, "intro")
		require.NoError(t, err)
		assert.True(t, g.Equal(loaded))

		ok, _ = c.Exists(ctx, LevelKey("intro"))
		assert.True(t, ok)

		loaded, err = repo.LoadLevel(ctx, "intro")
		require.NoError(t, err)
		assert.True(t, g.Equal(loaded))
		assert.GreaterOrEqual(t, c.GetMetrics().CacheHits, int64(1))
	}
}

func TestCachedRepoSaveReplacesCachedVersion(t *testing.T) {
	repo, _ := setupCachedRepo(t, false)
	ctx := context.Background()

	require.NoError(t, repo.SaveLevel(ctx, "lvl", level.NewGrid()))
	_, err := repo.LoadLevel(ctx, "lvl")
	require.NoError(t, err)

	updated := sampleLevel(t)
	require.NoError(t, repo.SaveLevel(ctx, "lvl", updated))

	loaded, err := repo.LoadLevel(ctx, "lvl")
	require.NoError(t, err)
	assert.True(t, updated.Equal(loaded))
}

func TestCachedRepoCorruptCacheFallsBack(t *testing.T) {
	repo, c := setupCachedRepo(t, false)
	ctx := context.Background()
	g := sampleLevel(t)

	require.NoError(t, repo.SaveLevel(ctx, "lvl", g))
	require.NoError(t, c.Set(ctx, LevelKey("lvl"), []byte("junk"), 0))

	loaded, err := repo.LoadLevel(ctx, "lvl")
	require.NoError(t, err)
	assert.True(t, g.Equal(loaded))
}

func TestCachedRepoDeleteAndMissing(t *testing.T) {
	repo, c := setupCachedRepo(t, true)
	ctx := context.Background()

	require.NoError(t, repo.SaveLevel(ctx, "gone", level.NewGrid()))
	_, err := repo.LoadLevel(ctx, "gone")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteLevel(ctx, "gone"))
	ok, _ := c.Exists(ctx, LevelKey("gone"))
	assert.False(t, ok)

	_, err = repo.LoadLevel(ctx, "gone")
	assert.ErrorIs(t, err, ErrLevelNotFound)
	assert.ErrorIs(t, repo.DeleteLevel(ctx, "gone"), ErrLevelNotFound)

	names, err := repo.ListLevels(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	var _ LevelRepo = repo
	var _ LevelRepo = (*LevelStorage)(nil)
}
