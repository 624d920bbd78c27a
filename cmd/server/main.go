package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"geonote/internal/api"
	"geonote/internal/cache"
	"geonote/internal/config"
	"geonote/internal/db"
	"geonote/internal/middleware"
	"geonote/internal/observ"
	"geonote/internal/repository/postgres"
	"geonote/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// The spatial index has to exist before the first proximity query,
	// so the schema is ensured before any route is registered.
	if err := database.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	inboxCache, err := cache.New(context.Background(), cfg.RedisURL, cfg.InboxCacheTTL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer inboxCache.Close()

	pool := database.Pool()
	messageRepo := postgres.NewMessageStore(pool)
	userRepo := postgres.NewUserStore(pool)

	messages := service.NewMessageService(messageRepo, inboxCache, cfg.NearbyRadiusMeters, logger)

	messageHandler := api.NewMessageHandler(messages, logger)
	userHandler := api.NewUserHandler(userRepo, logger)
	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, cfg.JWTTTL, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	root := srv.Group("/api")

	root.GET("/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	root.POST("/auth/signup", authHandler.Signup)
	root.POST("/auth/login", authHandler.Login)
	root.GET("/auth/me", middleware.AuthMiddleware(cfg.JWTSecret), authHandler.Me)

	root.GET("/messages", messageHandler.List)
	root.POST("/messages", messageHandler.Create)
	root.DELETE("/messages", messageHandler.DeleteAll)
	root.GET("/messages/:id", messageHandler.Get)
	root.PUT("/messages/:id", messageHandler.Update)
	root.DELETE("/messages/:id", messageHandler.Delete)
	root.GET("/messages/to/:id", messageHandler.Nearby)
	root.GET("/messages/to/all/:id", messageHandler.InboxAll)

	root.GET("/users", userHandler.List)
	root.POST("/users", userHandler.Create)
	root.GET("/users/:id", userHandler.Get)
	root.PUT("/users/:id", middleware.AuthMiddleware(cfg.JWTSecret), userHandler.Update)
	root.DELETE("/users/:id", middleware.AuthMiddleware(cfg.JWTSecret), userHandler.Delete)
	root.GET("/users/:id/friends", userHandler.Friends)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 5 * time.Second,
	}

	// Graceful shutdown: let in-flight requests drain before the pool
	// and cache connections are torn down by the deferred closes.
	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	logger.Info("starting geonote",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.Float64("nearby_radius_m", cfg.NearbyRadiusMeters),
	)

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	<-idleConnsClosed

	return nil
}
