package cache

import (
	"context"
	"errors"
	"time"
)

// CacheRepo горячий кеш закодированных уровней перед постоянным хранилищем.
//
// Использование:
//
//	c := NewMemoryCache(cfg, coldStorage, nil)
//	data, err := c.Get(ctx, "level:intro")
//	err = c.Set(ctx, "level:intro", data, 0)
//	err = c.Invalidate(ctx, "level:intro")
type CacheRepo interface {
	// Get получает значение по ключу. При промахе пробует ColdStorage
	// (read-through), иначе возвращает ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение с TTL. TTL = 0: DefaultTTL из конфигурации.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет ключ только локально.
	Delete(ctx context.Context, key string) error

	// Exists проверяет наличие ключа в кеше (без read-through).
	Exists(ctx context.Context, key string) (bool, error)

	// Invalidate удаляет ключ и рассылает уведомление другим узлам.
	Invalidate(ctx context.Context, key string) error

	// Close закрывает соединение с кешем.
	Close() error

	// GetMetrics возвращает снимок метрик.
	GetMetrics() *CacheMetrics
}

// ColdStorage постоянное хранилище, из которого кеш подгружает промахи.
type ColdStorage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, value []byte) error
	BatchLoad(ctx context.Context, keys []string) (map[string][]byte, error)
	BatchStore(ctx context.Context, items map[string][]byte) error
	Close() error
}

// CacheInvalidator рассылает инвалидации между узлами редактора.
type CacheInvalidator interface {
	// PublishInvalidation отправляет уведомление об инвалидации.
	PublishInvalidation(ctx context.Context, key string) error

	// SubscribeInvalidations подписывается на уведомления других узлов.
	SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error

	Close() error
}

// InvalidationHandler обрабатывает уведомление об инвалидации ключа.
type InvalidationHandler func(key string) error

// CacheMetrics снимок метрик кеша.
type CacheMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	ColdLoads     int64   `json:"cold_loads"`
	Invalidations int64   `json:"invalidations"`
	HitRatio      float64 `json:"hit_ratio"`

	TotalKeys  int64     `json:"total_keys"`
	LastUpdate time.Time `json:"last_update"`
}

// CacheConfig конфигурация кеша уровней.
type CacheConfig struct {
	// Backend "memory" или "redis"
	Backend string `yaml:"backend"`

	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`

	DefaultTTL time.Duration `yaml:"default_ttl"`
	MaxTTL     time.Duration `yaml:"max_ttl"`

	MaxConnections int           `yaml:"max_connections"`
	PoolTimeout    time.Duration `yaml:"pool_timeout"`
}

// withDefaults заполняет незаданные поля
func (c CacheConfig) withDefaults() CacheConfig {
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 10 * time.Minute
	}
	if c.MaxTTL == 0 {
		c.MaxTTL = time.Hour
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 10
	}
	if c.PoolTimeout == 0 {
		c.PoolTimeout = 30 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "sks:"
	}
	return c
}

// ttlFor приводит TTL к границам конфигурации
func (c CacheConfig) ttlFor(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = c.DefaultTTL
	}
	if ttl > c.MaxTTL {
		ttl = c.MaxTTL
	}
	return ttl
}

// Ошибки кеша
var (
	ErrCacheMiss  = NewCacheError("cache miss")
	ErrInvalidKey = NewCacheError("invalid key")
	ErrClosed     = NewCacheError("cache closed")
)

// CacheError ошибка кеша.
type CacheError struct {
	Message string
}

func (e *CacheError) Error() string {
	return e.Message
}

func NewCacheError(message string) *CacheError {
	return &CacheError{Message: message}
}

// IsCacheMiss проверяет, является ли ошибка промахом кеша.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
