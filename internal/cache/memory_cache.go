package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/sks-levelbuilder/internal/logging"
)

// MemoryCache реализует CacheRepo в памяти процесса.
// Используется, когда Redis не настроен, и в тестах.
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	closed bool

	config      CacheConfig
	coldStorage ColdStorage
	invalidator CacheInvalidator
	stats       stats

	now func() time.Time
}

type memoryItem struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache создаёт кеш в памяти. coldStorage и invalidator могут быть nil.
func NewMemoryCache(config CacheConfig, coldStorage ColdStorage, invalidator CacheInvalidator) *MemoryCache {
	return &MemoryCache{
		items:       make(map[string]memoryItem),
		config:      config.withDefaults(),
		coldStorage: coldStorage,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// Get возвращает значение; при промахе читает из ColdStorage
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	item, ok := m.items[key]
	m.mu.RUnlock()

	if ok && m.now().Before(item.expires) {
		m.stats.hit()
		return append([]byte(nil), item.value...), nil
	}
	m.stats.miss()

	if m.coldStorage == nil {
		return nil, ErrCacheMiss
	}

	val, err := m.coldStorage.Load(ctx, key)
	if err != nil {
		logging.Debug("Cold storage miss for key %s: %v", key, err)
		return nil, fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}
	m.stats.coldLoad()

	if err := m.Set(ctx, key, val, 0); err != nil {
		return nil, err
	}
	return val, nil
}

// Set сохраняет копию значения
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.items[key] = memoryItem{
		value:   append([]byte(nil), value...),
		expires: m.now().Add(m.config.ttlFor(ttl)),
	}
	return nil
}

// Delete удаляет ключ локально
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Exists проверяет наличие живого ключа
func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[key]
	return ok && m.now().Before(item.expires), nil
}

// Invalidate удаляет ключ и уведомляет другие узлы
func (m *MemoryCache) Invalidate(ctx context.Context, key string) error {
	if err := m.Delete(ctx, key); err != nil {
		return err
	}
	m.stats.invalidated()

	if m.invalidator != nil {
		if err := m.invalidator.PublishInvalidation(ctx, key); err != nil {
			return fmt.Errorf("publish invalidation %s: %w", key, err)
		}
	}
	return nil
}

// HandleInvalidation обработчик для CacheInvalidator: удаляет ключ без
// повторной рассылки
func (m *MemoryCache) HandleInvalidation(key string) error {
	m.stats.invalidated()
	return m.Delete(context.Background(), key)
}

// Close очищает кеш
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.items = make(map[string]memoryItem)
	return nil
}

// GetMetrics возвращает снимок метрик
func (m *MemoryCache) GetMetrics() *CacheMetrics {
	m.mu.RLock()
	keys := int64(len(m.items))
	m.mu.RUnlock()

	return m.stats.snapshot(keys)
}
