// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Token signing (single shared-secret scheme)
	JWTSecret string
	Issuer    string
	Audience  string
	TokenTTL  time.Duration

	// Routing table file; empty -> built-in env-based table
	RoutesFile string

	// Forwarding deadline per upstream call
	UpstreamTimeout time.Duration

	// Login throttle (disabled when RedisURL is empty)
	LoginMaxAttempts int
	LoginWindow      time.Duration

	CORSOrigins []string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:              env("PARAPET_ENV", "dev"),
		HTTPAddr:         env("PARAPET_HTTP_ADDR", ":8080"),
		JWTSecret:        env("JWT_SECRET", ""),
		Issuer:           env("JWT_ISSUER", "auth-service"),
		Audience:         env("JWT_AUDIENCE", "polyglot-platform"),
		TokenTTL:         envDur("JWT_TTL_SEC", 3600),
		RoutesFile:       env("ROUTES_FILE", ""),
		UpstreamTimeout:  envDur("UPSTREAM_TIMEOUT_SEC", 15),
		LoginMaxAttempts: envInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:      envDur("LOGIN_WINDOW_SEC", 300),
		CORSOrigins:      envList("CORS_ORIGINS"),
		RedisURL:         env("REDIS_URL", ""),
		DatabaseURL:      env("DATABASE_URL", ""),
	}
	if cfg.JWTSecret == "" {
		if cfg.Env == "dev" {
			cfg.JWTSecret = "supersecretkey"
			log.Println("[WARN] JWT_SECRET not set — using dev default")
		} else {
			log.Fatal("JWT_SECRET is required outside dev")
		}
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory credential store for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envDur(k string, defSec int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return time.Duration(defSec) * time.Second
}

func envList(k string) []string {
	v := os.Getenv(k)
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
