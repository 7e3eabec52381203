package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"userhub/internal/auth"
	"userhub/internal/cache"
	"userhub/internal/config"
	"userhub/internal/db"
	apperrors "userhub/internal/errors"
	"userhub/internal/logging"
	"userhub/internal/model"
	"userhub/internal/repository"
	"userhub/internal/service"
)

// seed creates the first administrator so that protected update routes can
// be used. Running it again is harmless.
func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info").Error(ctx, "load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(os.Stdout, cfg.LogLevel)
	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logging.SlogLogger) error {
	if cfg.Seed.AdminPassword == "" {
		return errors.New("SEED_ADMIN_PASSWORD is required")
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN, log.Slog())
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if err := db.Migrate(gormDB, false); err != nil {
		return err
	}
	log.Info(ctx, "database migrations completed")

	redisRepo := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer redisRepo.Close()

	svc := service.NewUserService(
		repository.NewUserRepository(gormDB),
		redisRepo,
		auth.NewJWTService(cfg.JWTSecret),
		log,
	)

	res, err := seedAdmin(ctx, svc, cfg.Seed)
	if errors.Is(err, apperrors.ErrConflict) {
		log.Info(ctx, "admin already exists", "email", cfg.Seed.AdminEmail)
		return nil
	}
	if err != nil {
		return err
	}

	log.Info(ctx, "admin created", "id", res.User.ID, "email", res.User.Email)
	fmt.Println(res.Token)
	return nil
}

func seedAdmin(ctx context.Context, svc service.UserService, cfg config.SeedConfig) (*service.AuthResult, error) {
	return svc.Register(ctx, service.RegisterInput{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Role:     model.RoleAdmin,
		Name:     cfg.AdminName,
	})
}
