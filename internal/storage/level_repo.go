package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/sks-levelbuilder/internal/cache"
	"github.com/annel0/sks-levelbuilder/internal/codec"
	"github.com/annel0/sks-levelbuilder/internal/level"
	"github.com/annel0/sks-levelbuilder/internal/logging"
)

// LevelRepo определяет интерфейс хранения именованных уровней.
type LevelRepo interface {
	// SaveLevel сохраняет уровень под именем name (перезаписывает).
	SaveLevel(ctx context.Context, name string, g *level.Grid) error

	// LoadLevel загружает уровень. Отсутствующий уровень: ErrLevelNotFound.
	LoadLevel(ctx context.Context, name string) (*level.Grid, error)

	// DeleteLevel удаляет уровень.
	DeleteLevel(ctx context.Context, name string) error

	// ListLevels возвращает отсортированные имена уровней.
	ListLevels(ctx context.Context) ([]string, error)

	Close() error
}

// CachedLevelRepo ставит горячий кеш перед LevelStorage.
// Запись идёт сразу в хранилище, затем ключ в кеше инвалидируется,
// чтобы другие узлы не отдали старую версию.
type CachedLevelRepo struct {
	storage *LevelStorage
	cache   cache.CacheRepo
	logger  *logging.Logger
}

// NewCachedLevelRepo создаёт репозиторий с кешем
func NewCachedLevelRepo(storage *LevelStorage, c cache.CacheRepo) *CachedLevelRepo {
	return &CachedLevelRepo{
		storage: storage,
		cache:   c,
		logger:  logging.GetStorageLogger(),
	}
}

// SaveLevel пишет в хранилище и инвалидирует кеш
func (r *CachedLevelRepo) SaveLevel(ctx context.Context, name string, g *level.Grid) error {
	if err := r.storage.SaveLevel(ctx, name, g); err != nil {
		return err
	}
	if err := r.cache.Invalidate(ctx, LevelKey(name)); err != nil {
		// Хранилище уже обновлено, кеш догонит по TTL
		r.logger.Warn("Не удалось инвалидировать кеш уровня %s: %v", name, err)
	}
	return nil
}

// LoadLevel читает из кеша, при промахе из хранилища
func (r *CachedLevelRepo) LoadLevel(ctx context.Context, name string) (*level.Grid, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	key := LevelKey(name)

	data, err := r.cache.Get(ctx, key)
	if err == nil {
		g, decErr := codec.DecodeLBL(data)
		if decErr == nil {
			return g, nil
		}
		r.logger.Warn("Битая запись кеша для %s: %v", name, decErr)
		_ = r.cache.Delete(ctx, key)
	} else if !cache.IsCacheMiss(err) {
		r.logger.Warn("Ошибка кеша для %s: %v", name, err)
	}

	g, err := r.storage.LoadLevel(ctx, name)
	if err != nil {
		return nil, err
	}

	if data, encErr := codec.EncodeLBL(g); encErr == nil {
		if setErr := r.cache.Set(ctx, key, data, 0); setErr != nil {
			r.logger.Debug("Не удалось закешировать %s: %v", name, setErr)
		}
	}
	return g, nil
}

// DeleteLevel удаляет из хранилища и кеша
func (r *CachedLevelRepo) DeleteLevel(ctx context.Context, name string) error {
	err := r.storage.DeleteLevel(ctx, name)
	if err != nil && !errors.Is(err, ErrLevelNotFound) {
		return err
	}
	if invErr := r.cache.Invalidate(ctx, LevelKey(name)); invErr != nil {
		r.logger.Warn("Не удалось инвалидировать кеш уровня %s: %v", name, invErr)
	}
	return err
}

// CacheMetrics метрики кеша перед хранилищем
func (r *CachedLevelRepo) CacheMetrics() *cache.CacheMetrics {
	return r.cache.GetMetrics()
}

// ListLevels список всегда из хранилища
func (r *CachedLevelRepo) ListLevels(ctx context.Context) ([]string, error) {
	return r.storage.ListLevels(ctx)
}

// Close закрывает кеш и хранилище
func (r *CachedLevelRepo) Close() error {
	cacheErr := r.cache.Close()
	storageErr := r.storage.Close()
	if storageErr != nil {
		return storageErr
	}
	if cacheErr != nil {
		return fmt.Errorf("close cache: %w", cacheErr)
	}
	return nil
}
