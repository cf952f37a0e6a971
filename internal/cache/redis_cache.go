package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/annel0/sks-levelbuilder/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisCache реализует CacheRepo поверх Redis.
// Ключи хранятся с префиксом CacheConfig.KeyPrefix, чтобы несколько
// редакторов могли делить один Redis.
type RedisCache struct {
	client      *redis.Client
	config      CacheConfig
	coldStorage ColdStorage
	invalidator CacheInvalidator
	stats       stats
}

// NewRedisCache подключается к Redis и проверяет соединение.
// coldStorage и invalidator могут быть nil.
func NewRedisCache(config CacheConfig, coldStorage ColdStorage, invalidator CacheInvalidator) (*RedisCache, error) {
	config = config.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		PoolSize:     config.MaxConnections,
		PoolTimeout:  config.PoolTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis level cache initialized: %s (prefix %q)", config.RedisURL, config.KeyPrefix)
	return &RedisCache{
		client:      rdb,
		config:      config,
		coldStorage: coldStorage,
		invalidator: invalidator,
	}, nil
}

func (r *RedisCache) redisKey(key string) string {
	return r.config.KeyPrefix + key
}

// Get читает значение из Redis; при промахе читает из ColdStorage
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	val, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err == nil {
		r.stats.hit()
		return val, nil
	}
	r.stats.miss()

	if !errors.Is(err, redis.Nil) {
		logging.Error("Redis Get error for key %s: %v", key, err)
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	if r.coldStorage == nil {
		return nil, ErrCacheMiss
	}

	val, err = r.coldStorage.Load(ctx, key)
	if err != nil {
		logging.Debug("Cold storage miss for key %s: %v", key, err)
		return nil, fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}
	r.stats.coldLoad()

	if err := r.Set(ctx, key, val, 0); err != nil {
		logging.Warn("Failed to populate cache for key %s: %v", key, err)
	}
	return val, nil
}

// Set записывает значение в Redis
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	if err := r.client.Set(ctx, r.redisKey(key), value, r.config.ttlFor(ttl)).Err(); err != nil {
		logging.Error("Redis Set error for key %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete удаляет ключ из Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		logging.Error("Redis Delete error for key %s: %v", key, err)
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Exists проверяет наличие ключа в Redis
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, r.redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return count > 0, nil
}

// Invalidate удаляет ключ и уведомляет другие узлы
func (r *RedisCache) Invalidate(ctx context.Context, key string) error {
	if err := r.Delete(ctx, key); err != nil {
		return err
	}
	r.stats.invalidated()

	if r.invalidator != nil {
		if err := r.invalidator.PublishInvalidation(ctx, key); err != nil {
			logging.Error("Failed to publish invalidation for key %s: %v", key, err)
			return fmt.Errorf("publish invalidation %s: %w", key, err)
		}
	}
	return nil
}

// HandleInvalidation обработчик для CacheInvalidator
func (r *RedisCache) HandleInvalidation(key string) error {
	r.stats.invalidated()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Delete(ctx, key)
}

// Warm загружает ключи из ColdStorage в Redis одним pipeline
func (r *RedisCache) Warm(ctx context.Context, keys []string) (int, error) {
	if r.coldStorage == nil || len(keys) == 0 {
		return 0, nil
	}

	items, err := r.coldStorage.BatchLoad(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("warm cache: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	ttl := r.config.ttlFor(0)
	for key, value := range items {
		pipe.Set(ctx, r.redisKey(key), value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis warm pipeline error: %w", err)
	}

	logging.Debug("Redis cache warmed with %d keys", len(items))
	return len(items), nil
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	if err := r.client.Close(); err != nil {
		logging.Error("Error closing Redis connection: %v", err)
		return err
	}
	logging.Info("Redis cache closed")
	return nil
}

// GetMetrics возвращает снимок метрик; TotalKeys считается по префиксу
func (r *RedisCache) GetMetrics() *CacheMetrics {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var keys int64
	iter := r.client.Scan(ctx, 0, r.config.KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if strings.HasPrefix(iter.Val(), r.config.KeyPrefix) {
			keys++
		}
	}
	if err := iter.Err(); err != nil {
		logging.Debug("Redis scan error: %v", err)
	}

	return r.stats.snapshot(keys)
}
