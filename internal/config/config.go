package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации редактора уровней.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Cache        CacheConfig        `yaml:"cache"`
	Invalidation InvalidationConfig `yaml:"invalidation"`
	EventBus     EventBusConfig     `yaml:"eventbus"`
	Builder      BuilderConfig      `yaml:"builder"`
	Logging      LoggingConfig      `yaml:"logging"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	RESTPort       int           `yaml:"rest_port"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	MaxSessions    int           `yaml:"max_sessions"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// GetRESTPort возвращает REST порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "LEVELBUILDER_REST_PORT", 8090)
}

// Addr адрес для http.Server
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GetRESTPort())
}

type StorageConfig struct {
	// DataPath каталог BadgerDB; пустая строка: хранилище в памяти
	DataPath string `yaml:"data_path"`
}

type CacheConfig struct {
	// Backend "memory" (по умолчанию) или "redis"
	Backend       string        `yaml:"backend"`
	RedisURL      string        `yaml:"redis_url"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	KeyPrefix     string        `yaml:"key_prefix"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	MaxTTL        time.Duration `yaml:"max_ttl"`
}

type InvalidationConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	NodeID  string `yaml:"node_id"`
}

type EventBusConfig struct {
	// Backend "memory" (по умолчанию) или "jetstream"
	Backend   string `yaml:"backend"`
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type BuilderConfig struct {
	// DarkInvalidates смена тёмного режима сбрасывает кеш изображения
	DarkInvalidates *bool   `yaml:"dark_invalidates"`
	DarkFactor      float64 `yaml:"dark_factor"`
}

// GetDarkInvalidates значение политики с умолчанием true
func (b *BuilderConfig) GetDarkInvalidates() bool {
	if b.DarkInvalidates == nil {
		return true
	}
	return *b.DarkInvalidates
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	FileDir string `yaml:"file_dir"`
	// ToFile писать ли логи компонентов в файлы
	ToFile bool `yaml:"to_file"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
}

// Default конфигурация без внешних сервисов: badger в памяти, кеш в памяти,
// шина событий в памяти
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			SessionTTL:     30 * time.Minute,
			MaxSessions:    1024,
			MaxUploadBytes: 1 << 20,
		},
		Cache:    CacheConfig{Backend: "memory"},
		EventBus: EventBusConfig{Backend: "memory", Buffer: 256, Retention: 24},
		Logging:  LoggingConfig{Level: "info", FileDir: "logs"},
		Telemetry: TelemetryConfig{
			ServiceName: "sks-levelbuilder",
		},
	}
}

// Validate проверяет согласованность секций
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch c.EventBus.Backend {
	case "", "memory":
	case "jetstream":
		if c.EventBus.URL == "" {
			return fmt.Errorf("eventbus.url is required for jetstream backend")
		}
	default:
		return fmt.Errorf("unknown eventbus backend %q", c.EventBus.Backend)
	}

	if c.Invalidation.Enabled && c.Invalidation.NATSURL == "" {
		return fmt.Errorf("invalidation.nats_url is required when invalidation is enabled")
	}
	if c.Builder.DarkFactor < 0 || c.Builder.DarkFactor > 1 {
		return fmt.Errorf("builder.dark_factor must be within [0,1], got %v", c.Builder.DarkFactor)
	}
	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("server.max_sessions must not be negative")
	}
	return nil
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", берётся ENV LEVELBUILDER_CONFIG; если и он пуст,
// возвращаются значения по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("LEVELBUILDER_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}
