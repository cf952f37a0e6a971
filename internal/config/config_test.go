package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutPath(t *testing.T) {
	t.Setenv("LEVELBUILDER_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.True(t, cfg.Builder.GetDarkInvalidates())
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  rest_port: 9001
  session_ttl: 5m
storage:
  data_path: /tmp/levels
cache:
  backend: redis
  redis_url: localhost:6379
  default_ttl: 90s
builder:
  dark_invalidates: false
  dark_factor: 0.3
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.GetRESTPort())
	assert.Equal(t, 5*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, "/tmp/levels", cfg.Storage.DataPath)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Cache.DefaultTTL)
	assert.False(t, cfg.Builder.GetDarkInvalidates())
	assert.InDelta(t, 0.3, cfg.Builder.DarkFactor, 1e-9)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Не указанные секции сохраняют значения по умолчанию
	assert.Equal(t, "memory", cfg.EventBus.Backend)
	assert.Equal(t, 1024, cfg.Server.MaxSessions)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  rest_port: 7000\n")
	t.Setenv("LEVELBUILDER_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.GetRESTPort())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"redis without url":     "cache:\n  backend: redis\n",
		"unknown cache":         "cache:\n  backend: memcached\n",
		"jetstream without url": "eventbus:\n  backend: jetstream\n",
		"dark factor":           "builder:\n  dark_factor: 2\n",
		"invalidation":          "invalidation:\n  enabled: true\n",
		"broken yaml":           "server: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRESTPortFallback(t *testing.T) {
	s := ServerConfig{}

	t.Setenv("LEVELBUILDER_REST_PORT", "")
	assert.Equal(t, 8090, s.GetRESTPort())

	t.Setenv("LEVELBUILDER_REST_PORT", "9100")
	assert.Equal(t, 9100, s.GetRESTPort())

	t.Setenv("LEVELBUILDER_REST_PORT", "nope")
	assert.Equal(t, 8090, s.GetRESTPort())

	s.Host = "127.0.0.1"
	s.RESTPort = 8181
	assert.Equal(t, "127.0.0.1:8181", s.Addr())
}
