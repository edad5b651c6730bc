package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/logiflow/logiflow/internal/api"
	"github.com/logiflow/logiflow/internal/api/middleware"
	"github.com/logiflow/logiflow/internal/core/service"
	"github.com/logiflow/logiflow/internal/infrastructure/config"
	mongostore "github.com/logiflow/logiflow/internal/infrastructure/db/mongo"
	redisstore "github.com/logiflow/logiflow/internal/infrastructure/db/redis"
	httpserver "github.com/logiflow/logiflow/internal/infrastructure/http"
	"github.com/logiflow/logiflow/internal/infrastructure/http/handlers"
	"github.com/logiflow/logiflow/internal/infrastructure/session"
	"github.com/logiflow/logiflow/pkg/logger"
)

const disconnectTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server. Configuration is read from the environment
(PORT, MONGO_URI, REDIS_ADDR, JWT_SECRET, CSRF_SECRET, ...).`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: api.ServiceName,
		Version: version,
	})

	var (
		mongoClient *mongo.Client
		db          *mongo.Database
	)
	err = withRetry(ctx, defaultBackoff, log, "mongodb", func(ctx context.Context) error {
		var err error
		mongoClient, db, err = mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		return err
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()

	var rdb *redis.Client
	err = withRetry(ctx, defaultBackoff, log, "redis", func(ctx context.Context) error {
		var err error
		rdb, err = redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		return err
	})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	users := mongostore.NewUserRepository(db, mongostore.NewSequenceGenerator(db))
	if err := mongostore.EnsureIndexes(ctx, users); err != nil {
		return err
	}

	passwords := service.NewPasswordService(cfg.Auth.PasswordCost)
	tokens := service.NewTokenService(service.TokenConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    cfg.Auth.TokenTTL,
	})
	strategy := service.NewSessionStrategy(users, passwords, logger.Component("strategy"))
	authService := service.NewAuthService(users, passwords, tokens, logger.Component("auth"))

	sessions := session.NewManager(redisstore.NewSessionStore(rdb), session.Options{
		CookieName: cfg.Auth.SessionCookieName,
		Lifetime:   cfg.Auth.SessionLifetime,
		Secure:     cfg.Auth.SecureCookies,
	})

	router, err := api.NewRouter(api.Deps{
		Log:      logger.Component("http"),
		Auth:     authService,
		Strategy: strategy,
		Users:    strategy,
		Tokens:   tokens,
		Sessions: sessions,
		CSRF: middleware.CSRFOptions{
			Secret:         []byte(cfg.Auth.CSRFSecret),
			Secure:         cfg.Auth.SecureCookies,
			TrustedOrigins: cfg.Auth.CSRFTrustedOrigins,
		},
		Readiness: map[string]handlers.PingFunc{
			"mongodb": handlers.MongoPing(db),
			"redis":   handlers.RedisPing(rdb),
		},
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	log.Info().Str("env", cfg.Env).Msg("starting logiflow")
	return httpserver.Serve(ctx, router.Echo, httpserver.ServerConfig{Addr: ":" + cfg.Port}, log)
}
