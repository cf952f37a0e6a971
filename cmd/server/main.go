package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/sks-levelbuilder/internal/api"
	"github.com/annel0/sks-levelbuilder/internal/builder"
	"github.com/annel0/sks-levelbuilder/internal/cache"
	"github.com/annel0/sks-levelbuilder/internal/config"
	"github.com/annel0/sks-levelbuilder/internal/eventbus"
	"github.com/annel0/sks-levelbuilder/internal/logging"
	"github.com/annel0/sks-levelbuilder/internal/observability"
	"github.com/annel0/sks-levelbuilder/internal/render"
	"github.com/annel0/sks-levelbuilder/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или LEVELBUILDER_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Logging.FileDir != "" {
		logging.LogDir = cfg.Logging.FileDir
	}
	if cfg.Logging.ToFile {
		if err := logging.InitDefaultLogger("levelbuilder"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
		defer logging.CloseDefaultLogger()
		logging.EnableFileOutput(true)
		defer logging.CloseAll()
	}
	logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	gin.SetMode(gin.ReleaseMode)

	logging.Info("🧱 Запуск редактора уровней, REST API=%s", cfg.Server.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ТРАССИРОВКА ===
	if cfg.Telemetry.Enabled {
		shutdownTracing, err := observability.InitTelemetry(ctx, observability.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logging.Warn("Трассировка отключена: %v", err)
		} else {
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer scancel()
				_ = shutdownTracing(sctx)
			}()
		}
	}

	// === ХРАНИЛИЩЕ ===
	var levels *storage.LevelStorage
	if cfg.Storage.DataPath == "" {
		logging.Info("Хранилище уровней в памяти (storage.data_path не задан)")
		levels, err = storage.NewInMemoryLevelStorage()
	} else {
		levels, err = storage.NewLevelStorage(cfg.Storage.DataPath)
	}
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища: %v", err)
	}

	// === КЕШ ===
	var invalidator cache.CacheInvalidator
	if cfg.Invalidation.Enabled {
		ni, err := cache.NewNATSInvalidator(cache.InvalidatorConfig{
			NATSURL: cfg.Invalidation.NATSURL,
			Subject: cfg.Invalidation.Subject,
		}, cfg.Invalidation.NodeID)
		if err != nil {
			log.Fatalf("❌ Ошибка подключения к NATS: %v", err)
		}
		defer ni.Close()
		invalidator = ni
	}

	cacheCfg := cache.CacheConfig{
		Backend:       cfg.Cache.Backend,
		RedisURL:      cfg.Cache.RedisURL,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
		KeyPrefix:     cfg.Cache.KeyPrefix,
		DefaultTTL:    cfg.Cache.DefaultTTL,
		MaxTTL:        cfg.Cache.MaxTTL,
	}

	var (
		levelCache cache.CacheRepo
		onInvalid  cache.InvalidationHandler
	)
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(cacheCfg, levels, invalidator)
		if err != nil {
			log.Fatalf("❌ Ошибка подключения к Redis: %v", err)
		}
		levelCache, onInvalid = rc, rc.HandleInvalidation
	default:
		mc := cache.NewMemoryCache(cacheCfg, levels, invalidator)
		levelCache, onInvalid = mc, mc.HandleInvalidation
	}
	if invalidator != nil {
		if err := invalidator.SubscribeInvalidations(ctx, onInvalid); err != nil {
			log.Fatalf("❌ Ошибка подписки на инвалидации: %v", err)
		}
	}

	repo := storage.NewCachedLevelRepo(levels, levelCache)
	defer repo.Close()

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	switch cfg.EventBus.Backend {
	case "jetstream":
		js, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream,
			time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			log.Fatalf("❌ Ошибка подключения к JetStream: %v", err)
		}
		bus = js
	default:
		bus = eventbus.NewMemoryBus(cfg.EventBus.Buffer)
	}
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(bus, logging.GetComponentLogger("events")); err != nil {
		logging.Warn("Логирование событий недоступно: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
	exporter.Start(10 * time.Second)
	defer exporter.Stop()

	// === СЕССИИ ===
	rasterizer := render.NewPaletteRasterizer()
	if cfg.Builder.DarkFactor > 0 {
		rasterizer.DarkFactor = cfg.Builder.DarkFactor
	}
	opts := builder.DefaultOptions()
	opts.Rasterizer = rasterizer
	opts.DarkInvalidates = cfg.Builder.GetDarkInvalidates()
	opts.Metrics = render.NewMetrics(prometheus.DefaultRegisterer)
	opts.Logger = logging.GetBuilderLogger()

	sessions := api.NewSessionManager(opts, cfg.Server.SessionTTL, cfg.Server.MaxSessions)
	sessions.StartJanitor(ctx, time.Minute, func(id string) {
		logging.Info("Сессия %s закрыта по таймауту", id)
		if ev, err := eventbus.NewEnvelope("levelbuilder", eventbus.EventSessionClosed, id, nil); err == nil {
			_ = bus.Publish(ctx, ev)
		}
	})

	// === REST API ===
	server := api.NewRestServer(api.Config{
		Addr:           cfg.Server.Addr(),
		Sessions:       sessions,
		Repo:           repo,
		Bus:            bus,
		Registry:       prometheus.DefaultRegisterer,
		Gatherer:       prometheus.DefaultGatherer,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logging.Info("✅ Редактор готов")
	logging.Info("   ❤️  Health check: http://%s/health", cfg.Server.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
	case err := <-errCh:
		if err != nil {
			logging.Error("❌ REST API остановлен: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}

	logging.Info("👋 Сервер остановлен")
}
