package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/henjicc/henji-server/cmd/server/docs" // swagger docs
	"github.com/henjicc/henji-server/internal/infra/config"
	"github.com/henjicc/henji-server/internal/shared/logger"
	"github.com/henjicc/henji-server/internal/utils/middleware"
)

// App represents the application.
type App struct {
	deps    *Dependencies
	config  *config.Config
	router  *gin.Engine
	cleanup func()

	logger    *logger.Logger
	zapLogger *zap.Logger
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	deps, cleanup, err := InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("init dependencies: %w", err)
	}
	return NewWithDependencies(deps, cleanup), nil
}

// NewWithDependencies creates an application from already built dependencies.
func NewWithDependencies(deps *Dependencies, cleanup func()) *App {
	if cleanup == nil {
		cleanup = func() {}
	}
	a := &App{
		deps:      deps,
		config:    deps.Config,
		cleanup:   cleanup,
		logger:    deps.Logger,
		zapLogger: deps.ZapLogger.Named("app"),
	}
	a.router = a.setupRouter()
	a.registerRoutes()
	return a
}

// Dependencies returns the injected dependencies.
func (a *App) Dependencies() *Dependencies {
	return a.deps
}

// Start loads persisted state. Presets and credentials are loaded before the scheduler
// restores its history so the asset manager sees every owner.
func (a *App) Start(ctx context.Context) error {
	if err := a.deps.Credentials.Load(ctx); err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if err := a.deps.Presets.Load(ctx); err != nil {
		return fmt.Errorf("load presets: %w", err)
	}
	if err := a.deps.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// Watch applies live config changes. Only the log level and the history bound are
// reloadable; everything else needs a restart.
func (a *App) Watch(loader *config.Loader) {
	if loader == nil {
		return
	}
	loader.Watch(a.Reload, a.zapLogger)
}

// Reload applies the reloadable parts of cfg.
func (a *App) Reload(cfg *config.Config) {
	a.logger.SetLevel(cfg.Log.Level)
	if logger.SetLevel(a.deps.LogLevel, cfg.Log.Level) {
		a.zapLogger.Info("log level changed", zap.String("level", cfg.Log.Level))
	}
	a.deps.Scheduler.SetMaxHistory(cfg.Scheduler.MaxHistory)
}

// Server creates the HTTP server for the router.
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:              a.config.Server.Address,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.config.Server.ReadTimeout,
		WriteTimeout:      a.config.Server.WriteTimeout,
		IdleTimeout:       a.config.Server.IdleTimeout,
	}
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	switch a.config.Server.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(a.config.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(otelgin.Middleware(a.config.Tracing.ServiceName))
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.CORS(middleware.NewCORSConfig(a.config.Server.CORSOrigins)))
	r.Use(middleware.Metrics(a.deps.Metrics))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		depth, busy := a.deps.Scheduler.QueueDepth()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "queued": depth, "busy": busy})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.deps.Registry, promhttp.HandlerOpts{})))

	// Swagger documentation endpoint
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	return r
}

// registerRoutes registers all HTTP routes.
func (a *App) registerRoutes() {
	v1 := a.router.Group("/api/v1")

	// Stored files are content addressed and loaded by <img> and <video> tags, so
	// they stay outside the bearer check.
	v1.GET("/files/*path", a.deps.FileHandler.ServeFile)

	protected := v1.Group("")
	if a.config.Auth.JWTSecret != "" {
		protected.Use(middleware.RequireAuth(a.deps.Tokens))
	} else {
		a.zapLogger.Warn("auth.jwt_secret is empty, API is unauthenticated")
	}

	submit := []gin.HandlerFunc{
		middleware.RateLimit(a.deps.RateLimiter, middleware.RateLimitConfig{
			Limit:  a.config.Server.SubmitRateLimit,
			Window: time.Minute,
		}),
		middleware.Idempotency(a.deps.Redis, middleware.DefaultIdempotencyConfig()),
	}

	// Tasks
	tasks := a.deps.TaskHandler
	protected.POST("/tasks", append(submit, tasks.SubmitTask)...)
	protected.GET("/tasks", tasks.ListTasks)
	protected.DELETE("/tasks", tasks.DeleteTasks)
	protected.GET("/tasks/:id", tasks.GetTask)
	protected.DELETE("/tasks/:id", tasks.DeleteTask)
	protected.POST("/tasks/:id/resume", tasks.ResumeTask)

	// Events
	protected.GET("/events", a.deps.EventHandler.StreamEvents)

	// Presets
	presets := a.deps.PresetHandler
	protected.POST("/presets", append(submit, presets.CreatePreset)...)
	protected.GET("/presets", presets.ListPresets)
	protected.GET("/presets/:id", presets.GetPreset)
	protected.DELETE("/presets/:id", presets.DeletePreset)

	// Models
	protected.GET("/models", a.deps.ModelHandler.ListModels)
	protected.GET("/models/*id", a.deps.ModelHandler.GetModel)

	// Credentials
	credentials := a.deps.CredentialHandler
	protected.GET("/credentials", credentials.ListCredentials)
	protected.PUT("/credentials/:provider", credentials.SetCredential)
	protected.DELETE("/credentials/:provider", credentials.ClearCredential)
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop stops the scheduler and releases resources.
func (a *App) Stop() {
	a.deps.Scheduler.Stop()
	a.cleanup()
}
