package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shashankxrm/deskdrop/internal/cache"
	"github.com/shashankxrm/deskdrop/internal/config"
	"github.com/shashankxrm/deskdrop/internal/handlers"
	"github.com/shashankxrm/deskdrop/internal/handlers/ws"
	"github.com/shashankxrm/deskdrop/internal/logging"
	"github.com/shashankxrm/deskdrop/internal/queue"
	"github.com/shashankxrm/deskdrop/internal/repository"
	"github.com/shashankxrm/deskdrop/internal/service"
	"github.com/shashankxrm/deskdrop/internal/session"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger config comes from cfg; fall back to a bare one.
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		zap.NewExample().Fatal("init logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	// Initialize database connection
	db, err := repository.InitDB(cfg.DB.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database handle", zap.Error(err))
	}

	// Redis holds the delivery queue, so it is required.
	redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisCache.Ping(pingCtx)
	cancel()
	if err != nil {
		log.Fatal("Redis connection failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

	linkCache := cache.NewLinkCache(redisCache, cfg.LinkHistoryTTL)
	store := queue.NewRedisStore(redisCache.Client(), log.Named("queue"))
	sessions := session.NewManager(log.Named("session"))

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	linkRepo := repository.NewLinkRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, refreshTokenRepo, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.PasswordMinLength)
	reconciler := service.NewReconciler(deviceRepo, linkRepo, sessions, store, linkCache, log.Named("reconciler"))
	linkService := service.NewLinkService(linkRepo, deviceRepo, sessions, store, reconciler, linkCache, log.Named("links"))
	presenceService := service.NewPresenceService(deviceRepo, sessions, reconciler, log.Named("presence"))
	deviceService := service.NewDeviceService(deviceRepo, sessions, reconciler, log.Named("devices"))

	// Initialize handlers
	h := routeHandlers{
		auth:   handlers.NewAuthHandler(authService, cfg.CookieSecure),
		links:  handlers.NewLinkHandler(linkService, log.Named("http")),
		device: handlers.NewDeviceHandler(deviceService),
		ws: handlers.NewWebSocketHandler(deviceService, presenceService, ws.Options{
			PingInterval: cfg.WS.PingInterval,
			PongTimeout:  cfg.WS.PongTimeout,
			WriteTimeout: cfg.WS.WriteTimeout,
		}, log.Named("ws")),
		health: handlers.NewHealthHandler(sessions, map[string]handlers.Check{
			"postgres": sqlDB.PingContext,
			"redis":    redisCache.Ping,
		}, log.Named("health")),
	}

	app := fiber.New(fiber.Config{
		AppName:   "DeskDrop Backend",
		BodyLimit: 64 * 1024,
	})
	registerRoutes(app, cfg, log, h)

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down", zap.Int("live_devices", sessions.Count()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	closed := presenceService.DisconnectAll(shutdownCtx)
	cancel()
	log.Info("Closed device channels", zap.Int("count", closed))
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Server shutdown", zap.Error(err))
	}
	if err := redisCache.Close(); err != nil {
		log.Warn("Close redis", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("Close database", zap.Error(err))
	}
}
