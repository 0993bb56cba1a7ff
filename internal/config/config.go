package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TokenBackendKey = "key"
	TokenBackendJWT = "jwt"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TokenBackend         string
	JWTSecret            string
	JWTTTLMinutes        int
	TokenCacheTTLSeconds int

	AdminEmail    string
	AdminPassword string
	AdminName     string

	CORSAllowedOrigins      []string
	TokenRateLimitPerMinute int

	OTelEnabled  bool
	OTelEndpoint string
}

// Load reads .env (when present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "config: could not read .env:", err)
	}

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		TokenBackend:         strings.ToLower(getEnv("TOKEN_BACKEND", TokenBackendKey)),
		JWTSecret:            getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTTTLMinutes:        getEnvInt("JWT_TTL_MINUTES", 60*24),
		TokenCacheTTLSeconds: getEnvInt("TOKEN_CACHE_TTL_SECONDS", 300),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		CORSAllowedOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		TokenRateLimitPerMinute: getEnvInt("RATE_LIMIT_TOKEN_PER_MINUTE", 20),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.TokenBackend {
	case TokenBackendKey, TokenBackendJWT:
	default:
		return fmt.Errorf("unknown TOKEN_BACKEND %q (want %q or %q)", c.TokenBackend, TokenBackendKey, TokenBackendJWT)
	}

	if c.TokenBackend == TokenBackendJWT && len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 bytes when TOKEN_BACKEND=jwt")
	}

	if c.Env == "prod" && c.JWTSecret == "dev-secret-change-me" {
		return errors.New("JWT_SECRET must be set in prod")
	}

	return nil
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

func (c Config) TokenCacheTTL() time.Duration {
	return time.Duration(c.TokenCacheTTLSeconds) * time.Second
}

func buildDBURL() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "accounts")
	pass := getEnv("DB_PASSWORD", "accounts")
	name := getEnv("DB_NAME", "accounts")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not an integer, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
