package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duotask/internal/config"
	"duotask/internal/database"
	"duotask/internal/engine"
	"duotask/internal/handlers"
	"duotask/internal/middleware"
	"duotask/internal/monitoring"
	"duotask/internal/notify"
	"duotask/internal/realtime"
	"duotask/internal/services"
	"duotask/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"
)

var _ handlers.TaskAPI = (*engine.Engine)(nil)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.IsProduction() {
		log = log.Level(zerolog.DebugLevel)
	}

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        logger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	bus := realtime.NewRedisBus(&realtime.BusConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, log)
	defer bus.Close()

	tasks := store.NewGormTaskStore(pool.DB, bus, log)
	profiles := store.NewGormProfileStore(pool.DB)
	notifier := notify.NewLogNotifier(log)

	sessions := services.NewSessionManager(services.SessionConfig{
		Store:         tasks,
		Bus:           bus,
		Notifier:      notifier,
		WeekStart:     cfg.Milestone.WeekStart,
		SweepInterval: cfg.Watchdog.SweepInterval,
		DueSoonWindow: cfg.Watchdog.DueSoonWindow,
		Logger:        log,
	})
	defer sessions.CloseAll()

	auth := services.NewAuthService(profiles, cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.BCryptCost)
	pairing := services.NewPairingService(profiles, cfg.Auth.InviteTTL, cfg.Auth.BCryptCost)

	resolve := func(ctx context.Context, userID uuid.UUID) (handlers.TaskAPI, error) {
		profile, err := profiles.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		session, err := sessions.Open(ctx, profile)
		if err != nil {
			return nil, err
		}
		return session.Engine, nil
	}

	registry := monitoring.NewRegistry()
	registry.RegisterHealthCheck("database", func(ctx context.Context) error { return pool.Health() })
	registry.RegisterHealthCheck("realtime", func(ctx context.Context) error { return bus.Health() })

	router := buildRouter(cfg, registry, auth, pairing, sessions, profiles, resolve)

	server := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("duotaskd listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

func buildRouter(
	cfg *config.Config,
	registry *monitoring.Registry,
	auth services.AuthService,
	pairing *services.PairingService,
	sessions *services.SessionManager,
	profiles store.ProfileStore,
	resolve handlers.ResolveSession,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithLog())
	router.Use(registry.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSec, cfg.RateLimit.BurstSize)
		router.Use(limiter.Middleware())
	}

	router.GET("/healthz", registry.HealthHandler())
	router.GET("/metrics", registry.MetricsHandler())

	authHandler := handlers.NewAuthHandler(auth, sessions, profiles)
	pairingHandler := handlers.NewPairingHandler(pairing, sessions)
	taskHandler := handlers.NewTaskHandler(resolve)

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	authed := router.Group("/", middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.GET("/me", authHandler.Me)

		authed.POST("/pair/invite", pairingHandler.CreateInvite)
		authed.POST("/pair/accept", pairingHandler.AcceptInvite)

		authed.GET("/tasks", taskHandler.ListTasks)
		authed.GET("/tasks/tags", taskHandler.ListTags)
		authed.GET("/tasks/celebrations", taskHandler.Celebrations)
		authed.POST("/tasks", taskHandler.CreateTask)
		authed.PATCH("/tasks/:id", taskHandler.UpdateTask)
		authed.POST("/tasks/:id/toggle", taskHandler.ToggleCompletion)
		authed.POST("/tasks/:id/checklist/:item_id/toggle", taskHandler.ToggleChecklistItem)
		authed.POST("/tasks/:id/nudge", taskHandler.NudgePartner)
		authed.DELETE("/tasks/:id", taskHandler.DeleteTask)
	}

	return router
}
