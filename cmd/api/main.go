package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/cache"
	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/db"
	"github.com/geocoder89/accounts/internal/domain/user"
	httpx "github.com/geocoder89/accounts/internal/http"
	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/geocoder89/accounts/internal/redisclient"
	"github.com/geocoder89/accounts/internal/repo/postgres"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	shutdownTracer, err := observability.InitTracer(rootCtx, observability.TracerConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: "accounts",
		Env:         cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	reg := observability.NewRegistry()
	prom := observability.NewProm(reg)

	// database
	startCtx, cancelStart := context.WithTimeout(rootCtx, 30*time.Second)
	defer cancelStart()

	pool, err := db.NewPool(startCtx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(startCtx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	usersRepo := postgres.NewUsersRepo(pool, prom)
	tokensRepo := postgres.NewTokensRepo(pool, prom)
	accounts := user.NewManager(usersRepo)

	created, err := db.EnsureSuperuser(startCtx, accounts, cfg)
	if err != nil {
		return err
	}
	if created {
		log.Info("superuser created", "email", cfg.AdminEmail)
	}

	checks := []handlers.Pinger{{Name: "db", Ping: pool.Ping}}

	// token cache: Redis when configured so replicas agree on revocations
	var (
		tokenCache auth.TokenCache
		rdb        redis.UniversalClient
	)

	if cfg.RedisAddr != "" {
		rc, err := redisclient.Connect(startCtx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rc.Close()

		rdb = rc.Raw()
		tokenCache = cache.NewRedisCache(rc.Raw(), "accounts:", cfg.TokenCacheTTL())
		checks = append(checks, handlers.Pinger{Name: "redis", Ping: rc.Ping})
	} else {
		mem := cache.New(cfg.TokenCacheTTL())
		go mem.RunJanitor(rootCtx, time.Minute)
		tokenCache = mem
	}

	var issuer auth.Issuer
	switch cfg.TokenBackend {
	case config.TokenBackendJWT:
		issuer = auth.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTTL(), usersRepo, tokenCache)
	default:
		issuer = auth.NewKeyIssuer(tokensRepo, usersRepo, tokenCache, cfg.TokenCacheTTL())
	}

	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Users:    accounts,
		Creds:    auth.NewBackend(usersRepo),
		Tokens:   issuer,
		Prom:     prom,
		Gatherer: reg,
		Checks:   checks,
		Redis:    rdb,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "token_backend", issuer.Name())

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-stop:
	}

	log.Info("server shutting down")
	stopRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
