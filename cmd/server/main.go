package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"userhub/docs"
	"userhub/internal/auth"
	"userhub/internal/cache"
	"userhub/internal/config"
	"userhub/internal/db"
	"userhub/internal/handler"
	"userhub/internal/logging"
	"userhub/internal/repository"
	"userhub/internal/router"
	"userhub/internal/service"
)

// @title User Accounts API
// @version 1.0
// @description User registration, authentication, retrieval and update with a cache-aside read path.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info").Error(context.Background(), "load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(os.Stdout, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.SlogLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JWTSecret == "change-me" {
		log.Warn(ctx, "JWT_SECRET is the development default")
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN, log.Slog())
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if cfg.ResetDB {
		log.Warn(ctx, "RESET_DB=true detected, dropping users table")
	}
	if err := db.Migrate(gormDB, cfg.ResetDB); err != nil {
		return err
	}

	redisRepo := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		if !cfg.CacheFailOpen {
			return err
		}
		log.Warn(ctx, "redis unreachable, continuing without cache", "error", err)
	}

	var cacheRepo cache.Repository = redisRepo
	if cfg.CacheFailOpen {
		cacheRepo = cache.FailOpen(redisRepo, log.With("component", "cache"))
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	userRepo := repository.NewUserRepository(gormDB)
	userService := service.NewUserService(userRepo, cacheRepo, jwtService, log.With("component", "users"))
	userHandler := handler.NewUserHandler(userService, log)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, log, jwtService, userHandler)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
	}
	log.Info(ctx, "swagger documentation available", "url", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html")

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		log.Info(ctx, "server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
