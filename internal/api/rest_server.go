// Package api реализует отладочный REST API сервера агентов: список и управление
// агентами, урон, телепорт, отладочные маршруты, позы и статистика.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/mmo-npc/internal/arena"
	"github.com/annel0/mmo-npc/internal/auth"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/middleware"
	"github.com/annel0/mmo-npc/internal/npc"
	"github.com/annel0/mmo-npc/internal/render"
	"github.com/annel0/mmo-npc/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// EventHistory: источник истории событий агента (архив MongoDB)
type EventHistory interface {
	History(ctx context.Context, agentID string, limit int64) ([]storage.ArchivedEvent, error)
}

// RestServer представляет REST API сервер
type RestServer struct {
	router    *gin.Engine
	handler   http.Handler
	http      *http.Server
	manager   *npc.Manager
	bridge    *render.Bridge
	poses     storage.PoseRepo
	target    *arena.Target
	operators *auth.Operators
	history   EventHistory
	metrics   *ServerMetrics
	noAuth    bool
	log       *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port         string           // адрес для запуска сервера (":8088")
	Manager      *npc.Manager     // менеджер агентов
	Bridge       *render.Bridge   // мост рендера (маршруты, цифры урона)
	Poses        storage.PoseRepo // хранилище поз
	Target       *arena.Target    // скриптовая цель; при nil эндпоинты цели недоступны
	Operators    *auth.Operators  // nil вместе с AuthDisabled=false запрещает защищённые маршруты
	History      EventHistory     // архив событий; при nil история недоступна
	AuthDisabled bool
	Registerer   prometheus.Registerer
	Gatherer     prometheus.Gatherer
	Logger       *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Logger == nil {
		config.Logger = logging.GetServerLogger()
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("npc_api"))

	loggerMw := middleware.NewRequestLogger(config.Logger)
	router.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("npc_api", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	server := &RestServer{
		router:    router,
		manager:   config.Manager,
		bridge:    config.Bridge,
		poses:     config.Poses,
		target:    config.Target,
		operators: config.Operators,
		history:   config.History,
		metrics:   NewServerMetrics(),
		noAuth:    config.AuthDisabled,
		log:       config.Logger,
	}
	// Ответы сжимаются gzip, если клиент это поддерживает
	server.handler = gzhttp.GzipHandler(router)
	server.http = &http.Server{
		Addr:              config.Port,
		Handler:           server.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Настраиваем маршруты
	server.setupRoutes()

	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")

	// Эндпоинт для аутентификации (без JWT защиты)
	api.POST("/auth/login", rs.handleLogin)

	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.GET("/agents", rs.handleListAgents)
		protected.POST("/agents", rs.handleSpawn)
		protected.GET("/agents/:id", rs.handleGetAgent)
		protected.DELETE("/agents/:id", rs.handleDispose)
		protected.POST("/agents/:id/damage", rs.handleDamage)
		protected.PUT("/agents/:id/position", rs.handleSetPosition)
		protected.PUT("/agents/:id/rotation", rs.handleSetRotation)
		protected.GET("/agents/:id/history", rs.handleHistory)

		protected.GET("/debug", rs.handleGetDebug)
		protected.PUT("/debug", rs.handleSetDebug)
		protected.GET("/debug/paths", rs.handleDebugPaths)

		protected.GET("/poses", rs.handlePoses)
		protected.GET("/popups", rs.handlePopups)

		protected.PUT("/target", rs.handlePinTarget)
		protected.DELETE("/target", rs.handleReleaseTarget)

		protected.GET("/stats", rs.handleStats)
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler сервера (используется тестами)
func (rs *RestServer) Handler() http.Handler {
	return rs.handler
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Start запускает REST сервер и блокируется до остановки
func (rs *RestServer) Start() error {
	rs.log.Info("🌐 REST API слушает %s", rs.http.Addr)
	if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop корректно останавливает сервер, дожидаясь текущих запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.http.Shutdown(ctx)
}
