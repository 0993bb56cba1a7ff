package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

// Deps is everything the router needs from the outside world.
type Deps struct {
	Users  handlers.AccountManager
	Creds  handlers.Authenticator
	Tokens auth.Issuer

	// optional
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   []handlers.Pinger
	Redis    redis.UniversalClient
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := handlers.RegisterValidators(); err != nil {
		// a mismatched gin build; nothing can be validated
		panic(err)
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("accounts"))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(cfg.Env == "prod"))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	}

	// health
	h := handlers.NewHealthHandler(deps.Checks...)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(observability.MetricsHandler(deps.Gatherer)))
	}

	usersHandler := handlers.NewUsersHandler(deps.Users, deps.Prom)
	tokensHandler := handlers.NewTokensHandler(deps.Creds, deps.Tokens, deps.Prom)
	authMw := middlewares.NewAuthMiddleware(deps.Tokens, deps.Prom)

	api := r.Group("/api/user")
	api.Use(middlewares.MaxBodyBytes(maxBodyBytes), middlewares.RequireJSON())

	// credential guessing is throttled per client
	loginLimit := tokenRateLimit(log, cfg, deps)

	api.POST("/create", loginLimit, usersHandler.Create)
	api.POST("/token", loginLimit, tokensHandler.Create)

	authed := api.Group("")
	authed.Use(authMw.RequireAuth())
	{
		authed.DELETE("/token", tokensHandler.Revoke)
		authed.GET("/me", usersHandler.Me)
		authed.PATCH("/me", usersHandler.UpdateMe)
	}

	return r
}

func tokenRateLimit(log *slog.Logger, cfg config.Config, deps Deps) gin.HandlerFunc {
	if cfg.TokenRateLimitPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	if deps.Redis != nil {
		return middlewares.NewRedisRateLimiter(deps.Redis, cfg.TokenRateLimitPerMinute, "accounts:ratelimit:", log).
			Middleware(middlewares.KeyByIP)
	}

	return middlewares.NewRateLimiter(cfg.TokenRateLimitPerMinute, time.Minute).Middleware(middlewares.KeyByIP)
}
