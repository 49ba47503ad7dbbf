// Package server assembles the HTTP API and owns its process lifetime.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"planner/backend/internal/assistant"
	"planner/backend/internal/cache"
	"planner/backend/internal/config"
	"planner/backend/internal/database"
	"planner/backend/internal/export"
	"planner/backend/internal/handlers"
	"planner/backend/internal/middleware"
	"planner/backend/internal/models"
	"planner/backend/internal/monitoring"
	"planner/backend/internal/providers"
	"planner/backend/internal/providers/google"
	"planner/backend/internal/providers/outlook"
	"planner/backend/internal/repositories"
	"planner/backend/internal/services"
	"planner/backend/internal/syncer"
	"planner/backend/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups the API handlers mounted under /api.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Register      *handlers.RegisterHandler
	Tasks         *handlers.TaskHandler
	Events        *handlers.EventHandler
	Notifications *handlers.NotificationHandler
	CalendarSync  *handlers.CalendarSyncHandler
	Assistant     *handlers.AssistantHandler
	Export        *handlers.ExportHandler
}

type Server struct {
	Engine  *gin.Engine
	Config  *config.Config
	Monitor *monitoring.Monitor

	logger  *slog.Logger
	pool    *database.DatabasePool
	redis   *redis.Client
	worker  *worker.Worker
	workers int
}

// NewRouter builds the gin engine. Public routes are /api/auth and the
// probe endpoints; everything else under /api requires a bearer token.
func NewRouter(cfg *config.Config, logger *slog.Logger, monitor *monitoring.Monitor, h Handlers) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RecoveryWithLog(logger),
		middleware.RequestLogger(logger),
		monitor.Middleware(),
		cors.New(corsConfig(cfg.Server.AllowedOrigins)),
	)
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize, cfg.RateLimit.CleanupInterval)
		r.Use(middleware.RateLimit(limiter))
	}

	monitor.Register(r)

	api := r.Group("/api")
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Register.Registration)
		auth.POST("/login", h.Auth.Login)
	}

	authorized := api.Group("")
	authorized.Use(middleware.AuthzMiddleware(middleware.AuthzConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
	}))
	h.Tasks.Register(authorized.Group("/tasks"))
	h.Events.Register(authorized.Group("/events"))
	h.Notifications.Register(authorized.Group("/notifications"))
	h.CalendarSync.Register(authorized.Group("/calendarsync"))
	h.Assistant.Register(authorized.Group("/assistant"))
	h.Export.Register(authorized.Group("/export"))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.HeaderRequestID)
	cfg.ExposeHeaders = []string{middleware.HeaderRequestID, "Retry-After"}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// Init connects to the database and Redis and wires every component.
func Init(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	pool, err := database.NewDatabasePool(database.PoolConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Migrate(); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	redisClient := cache.NewRedisClient(cfg.Redis)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable at startup", "addr", cfg.GetRedisAddr(), "error", err)
	}
	return Wire(cfg, logger, pool, redisClient), nil
}

// Wire builds the repositories, services and handlers over an open database
// and Redis client. The server takes ownership of both.
func Wire(cfg *config.Config, logger *slog.Logger, pool *database.DatabasePool, redisClient *redis.Client) *Server {
	responses := cache.NewRedisCache(redisClient)
	db := pool.DB
	taskRepo := repositories.NewTaskRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	shadowRepo := repositories.NewCalendarRepository(db)
	statusRepo := repositories.NewSyncStatusRepository(db)

	notifications := services.NewNotificationScheduler(notificationRepo, logger)
	lifecycle := services.NewLifecycle(services.NewConflictDetector(taskRepo, eventRepo, logger), notifications)

	registry := providers.NewRegistry(repositories.NewTokenRepository(db), providerBuilders(cfg), logger)
	reconciler := syncer.New(registry, syncer.Stores{
		Tasks:   taskRepo,
		Events:  eventRepo,
		Links:   repositories.NewSyncLinkRepository(db),
		Shadows: shadowRepo,
		Status:  statusRepo,
	}, lifecycle, logger, cfg.Sync.EventWindow)

	assistantService := assistant.NewService(assistant.Options{
		Interactions: repositories.NewInteractionRepository(db),
		Builder:      assistant.NewContextBuilder(taskRepo, eventRepo, cfg.Assistant.ContextDays),
		Client:       assistant.NewAnthropicClient(cfg.Assistant),
		Limiter:      cache.NewFixedWindowLimiter(redisClient, "assistant:ratelimit", cfg.Assistant.WindowLimit, cfg.Assistant.Window),
		Responses:    responses,
		Breaker: cache.NewCircuitBreaker(&cache.CircuitBreakerConfig{
			MaxFailures: cfg.Assistant.BreakerTrips,
			Timeout:     30 * time.Second,
		}),
		CacheTTL: cfg.Assistant.CacheTTL,
		Logger:   logger,
	})

	calendarSync := handlers.NewCalendarSyncHandler(registry, reconciler, statusRepo, shadowRepo)
	var (
		syncWorker *worker.Worker
		jobs       *worker.JobQueue
	)
	if cfg.Sync.Workers > 0 {
		jobs = worker.NewJobQueue(redisClient, cfg.Sync.MaxAttempts)
		syncWorker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  redisClient,
			PollInterval: cfg.Sync.PollInterval,
			Logger:       logger,
		})
		syncWorker.RegisterHandler(worker.JobTypeCalendarSync, worker.SyncHandler(
			func(ctx context.Context, userID uint, provider models.Provider) error {
				_, err := reconciler.Sync(ctx, userID, provider)
				return err
			}))
		calendarSync.WithQueue(jobs)
	}

	monitor := monitoring.New()
	monitor.RegisterHealthCheck("database", pool.Health)
	monitor.RegisterHealthCheck("redis", responses.Health)
	monitor.RegisterStats("database", func() any { return pool.Stats() })
	monitor.RegisterStats("cache", func() any { return responses.Stats() })
	if jobs != nil {
		monitor.RegisterStats("jobs", func() any {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			sizes, err := jobs.Sizes(ctx)
			if err != nil {
				return map[string]string{"error": err.Error()}
			}
			return sizes
		})
	}

	h := Handlers{
		Auth:          handlers.NewAuthHandler(services.NewAuthService(userRepo, cfg.Auth)),
		Register:      handlers.NewRegisterHandler(services.NewRegisterService(userRepo, cfg.Auth)),
		Tasks:         handlers.NewTaskHandler(services.NewTaskService(taskRepo, lifecycle, logger)),
		Events:        handlers.NewEventHandler(services.NewEventService(eventRepo, lifecycle, logger)),
		Notifications: handlers.NewNotificationHandler(notifications),
		CalendarSync:  calendarSync,
		Assistant:     handlers.NewAssistantHandler(assistantService),
		Export:        handlers.NewExportHandler(export.NewExporter(taskRepo, eventRepo, shadowRepo)),
	}

	return &Server{
		Engine:  NewRouter(cfg, logger, monitor, h),
		Config:  cfg,
		Monitor: monitor,
		logger:  logger,
		pool:    pool,
		redis:   redisClient,
		worker:  syncWorker,
		workers: cfg.Sync.Workers,
	}
}

// providerBuilders registers a provider only when its OAuth client is configured.
func providerBuilders(cfg *config.Config) map[models.Provider]providers.Builder {
	builders := make(map[models.Provider]providers.Builder)
	if cfg.Google.ClientID != "" {
		builders[models.ProviderGoogle] = google.Builder(cfg.Google)
	}
	if cfg.Outlook.ClientID != "" {
		builders[models.ProviderOutlook] = outlook.Builder(cfg.Outlook)
	}
	return builders
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.Config.GetServerAddr(),
		Handler:      s.Engine,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
		IdleTimeout:  s.Config.Server.IdleTimeout,
	}

	if s.worker != nil {
		s.worker.Start(ctx, s.workers)
		defer s.worker.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server exited")
	return nil
}

func (s *Server) Close() error {
	return errors.Join(s.redis.Close(), s.pool.Close())
}
