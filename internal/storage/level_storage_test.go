package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/sks-levelbuilder/internal/cache"
	"github.com/annel0/sks-levelbuilder/internal/level"
)

func setupTestStorage(t *testing.T) *LevelStorage {
	t.Helper()

	storage, err := NewLevelStorage(t.TempDir())
	require.NoError(t, err, "Не удалось создать хранилище")
	t.Cleanup(func() { storage.Close() })
	return storage
}

func sampleLevel(t *testing.T) *level.Grid {
	t.Helper()

	g := level.NewGrid()
	require.NoError(t, g.Set(0, level.NewBlock(level.KindBlock)))
	require.NoError(t, g.Set(33, level.NewBlock(level.KindOneWayRight)))
	require.NoError(t, g.Set(200, level.NewNote("mind the gap")))
	g.SetDark(true)
	g.SetNumber(level.NumberLevel(12))
	return g
}

func TestSaveAndLoadLevel(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	g := sampleLevel(t)

	require.NoError(t, storage.SaveLevel(ctx, "intro", g))

	loaded, err := storage.LoadLevel(ctx, "intro")
	require.NoError(t, err)
	assert.True(t, g.Equal(loaded), "загруженный уровень отличается от сохранённого")
}

func TestLoadMissingLevel(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.LoadLevel(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrLevelNotFound)
}

func TestLevelNameValidation(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	for _, name := range []string{"", "a/b", "with space", "level:1"} {
		assert.ErrorIs(t, storage.SaveLevel(ctx, name, level.NewGrid()), ErrInvalidName, name)
	}
	assert.NoError(t, ValidateName("world-1_2.v3"))
}

func TestListAndDeleteLevels(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, storage.SaveLevel(ctx, name, level.NewGrid()))
	}
	// Посторонние ключи не попадают в список
	require.NoError(t, storage.Store(ctx, "other:x", []byte("x")))

	names, err := storage.ListLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	require.NoError(t, storage.DeleteLevel(ctx, "b"))
	assert.ErrorIs(t, storage.DeleteLevel(ctx, "b"), ErrLevelNotFound)

	names, err = storage.ListLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestUnencodableLevelIsRejected(t *testing.T) {
	storage := setupTestStorage(t)
	g := level.NewGrid()
	require.NoError(t, g.Set(4, level.ParseBlock("mystery")))

	assert.ErrorIs(t, storage.SaveLevel(context.Background(), "bad", g), level.ErrDecode)
}

func TestCorruptedLevel(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	require.NoError(t, storage.Store(ctx, LevelKey("broken"), []byte("LBLgarbage")))

	_, err := storage.LoadLevel(ctx, "broken")
	assert.ErrorIs(t, err, level.ErrDecode)
}

func TestColdStorageBatch(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.BatchStore(ctx, map[string][]byte{
		"k1": []byte("v1"),
		"k2": []byte("v2"),
	}))

	got, err := storage.BatchLoad(ctx, []string{"k1", "k2", "k3"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"k1": []byte("v1"), "k2": []byte("v2")}, got)

	var _ cache.ColdStorage = storage
}

func TestClosedStorage(t *testing.T) {
	storage, err := NewInMemoryLevelStorage()
	require.NoError(t, err)
	require.NoError(t, storage.Close())
	require.NoError(t, storage.Close())

	_, err = storage.Load(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	g := sampleLevel(t)

	first, err := NewLevelStorage(dir)
	require.NoError(t, err)
	require.NoError(t, first.SaveLevel(ctx, "keep", g))
	require.NoError(t, first.Close())

	second, err := NewLevelStorage(dir)
	require.NoError(t, err)
	defer second.Close()

	loaded, err := second.LoadLevel(ctx, "keep")
	require.NoError(t, err)
	assert.True(t, g.Equal(loaded))
}
