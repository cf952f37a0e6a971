package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/annel0/sks-levelbuilder/internal/cache"
	"github.com/annel0/sks-levelbuilder/internal/codec"
	"github.com/annel0/sks-levelbuilder/internal/eventbus"
	"github.com/annel0/sks-levelbuilder/internal/level"
	"github.com/annel0/sks-levelbuilder/internal/logging"
	"github.com/annel0/sks-levelbuilder/internal/middleware"
	"github.com/annel0/sks-levelbuilder/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	eventSource = "levelbuilder-api"
	sessionKey  = "session"
)

// RestServer REST API редактора уровней
type RestServer struct {
	router     *gin.Engine
	httpServer *http.Server
	sessions   *SessionManager
	repo       storage.LevelRepo
	bus        eventbus.EventBus
	metrics    *ServerMetrics
	logger     *logging.Logger
	maxUpload  int64
}

// Config зависимости REST сервера
type Config struct {
	Addr     string          // адрес для запуска сервера, ":8090"
	Sessions *SessionManager // обязателен
	Repo     storage.LevelRepo
	Bus      eventbus.EventBus // может быть nil
	// Registry куда регистрируются HTTP-метрики; nil: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
	// Gatherer источник для /metrics; nil: prometheus.DefaultGatherer
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
	Logger         *logging.Logger
}

// GenericResponse общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает REST сервер и настраивает маршруты
func NewRestServer(config Config) *RestServer {
	if config.Addr == "" {
		config.Addr = ":8090"
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 1 << 20
	}
	if config.Logger == nil {
		config.Logger = logging.GetAPILogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(otelgin.Middleware("levelbuilder"))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("levelbuilder", config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	rs := &RestServer{
		router:    router,
		sessions:  config.Sessions,
		repo:      config.Repo,
		bus:       config.Bus,
		metrics:   NewServerMetrics(),
		logger:    config.Logger,
		maxUpload: config.MaxUploadBytes,
		httpServer: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.GET("/stats", rs.handleStats)
	api.GET("/catalog", rs.handleCatalog)

	levels := api.Group("/levels")
	{
		levels.GET("", rs.handleListLevels)
		levels.DELETE("/:name", rs.handleDeleteLevel)
	}

	api.POST("/sessions", rs.handleCreateSession)

	session := api.Group("/sessions/:id")
	session.Use(rs.sessionMiddleware())
	{
		session.DELETE("", rs.handleCloseSession)
		session.GET("/level", rs.handleGetLevel)
		session.PUT("/blocks/:index", rs.handlePutBlock)
		session.PUT("/patch", rs.handlePutPatch)
		session.PUT("/dark", rs.handleSetDark)
		session.PUT("/grid", rs.handleSetGrid)
		session.PUT("/number", rs.handleSetNumber)
		session.GET("/image", rs.handleImage)
		session.POST("/dirty/clear", rs.handleClearDirty)
		session.GET("/export", rs.handleExport)
		session.POST("/import", rs.handleImport)
		session.POST("/generate", rs.handleGenerate)
		session.POST("/clear", rs.handleClear)
		session.POST("/save/:name", rs.handleSave)
		session.POST("/load/:name", rs.handleLoad)
	}
}

// Handler http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает сервер; блокируется до Shutdown
func (rs *RestServer) Start() error {
	rs.logger.Info("REST API слушает %s", rs.httpServer.Addr)
	err := rs.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown корректно останавливает сервер
func (rs *RestServer) Shutdown(ctx context.Context) error {
	return rs.httpServer.Shutdown(ctx)
}

// sessionMiddleware находит сессию по :id
func (rs *RestServer) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := rs.sessions.Get(c.Param("id"))
		if err != nil {
			rs.fail(c, err)
			c.Abort()
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *Session {
	return c.MustGet(sessionKey).(*Session)
}

// statusFor сопоставляет ошибку HTTP статусу
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, storage.ErrLevelNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManySessions):
		return http.StatusServiceUnavailable
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, level.ErrInvalidIndex),
		errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, codec.ErrUnknownFormat),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, level.ErrInvalidLevelData), errors.Is(err, level.ErrDecode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// fail пишет ошибку в ответ
func (rs *RestServer) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}

func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: message, Data: data})
}

// publish отправляет событие в шину; ошибки шины только логируются
func (rs *RestServer) publish(c *gin.Context, eventType, sessionID string, payload interface{}) {
	if rs.bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(eventSource, eventType, sessionID, payload)
	if err != nil {
		rs.logger.Warn("event %s: %v", eventType, err)
		return
	}
	if traceID, ok := c.Get(middleware.TraceIDKey); ok {
		ev.Metadata = map[string]string{"trace_id": traceID.(string)}
	}
	if err := rs.bus.Publish(c.Request.Context(), ev); err != nil {
		rs.logger.Warn("publish %s: %v", eventType, err)
	}
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"time":     time.Now().Unix(),
		"sessions": rs.sessions.Count(),
	})
}

// handleStats статистика процесса и сессий
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := map[string]interface{}{
		"server":   rs.metrics.Snapshot(),
		"sessions": rs.sessions.Count(),
	}
	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}
	if cached, isCached := rs.repo.(interface{ CacheMetrics() *cache.CacheMetrics }); isCached {
		stats["cache"] = cached.CacheMetrics()
	}
	ok(c, "Статистика получена", stats)
}
