// Command todo-devserver runs the to-do API locally so the client can be
// exercised end to end. Settings come from gotodo.yaml and GOTODO_*
// variables; set GOTODO_REDIS_ADDR=mini to run without a Redis server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/goTodo/internal/config"
	"github.com/MrEthical07/goTodo/internal/devapi"
	"github.com/MrEthical07/goTodo/internal/logger"
	"github.com/MrEthical07/goTodo/internal/rate"
	"github.com/MrEthical07/goTodo/jwt"
	"go.uber.org/zap"
)

const devSecret = "gotodo-development-secret-change-me"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.Mode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	secret := cfg.Server.JWTSecret
	if secret == "" {
		if cfg.Mode == "release" {
			appLogger.Fatal("server.jwt_secret is required in release mode")
		}
		appLogger.Warn("server.jwt_secret not set, using the development secret")
		secret = devSecret
	}
	manager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.Server.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(secret),
		Issuer:        "gotodo-dev",
	})
	if err != nil {
		appLogger.Fatal("Failed to build token manager", zap.Error(err))
	}

	rdb, closeRedis, err := cfg.OpenRedis(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer closeRedis()

	api, err := devapi.New(devapi.Config{
		JWT:          manager,
		Redis:        rdb,
		RefreshTTL:   cfg.Server.RefreshTTL,
		CommonLimit:  cfg.Server.CommonLimit,
		AllowOrigins: cfg.Server.AllowOrigins,
		Release:      cfg.Mode == "release",
		Limits: rate.Config{
			MaxSignInAttempts:  5,
			SignInCooldown:     15 * time.Minute,
			EnableIPThrottle:   true,
			MaxRefreshAttempts: 60,
			RefreshCooldown:    time.Minute,
		},
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Fatal("Failed to build API", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	appLogger.Info("Server exiting")
}
