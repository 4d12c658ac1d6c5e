package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	Env           string
	DatabaseURL   string
	RedisURL      string
	JWTSecret     string
	SessionTTL    time.Duration
	CookieDomain  string
	CookieSecure  bool
	AllowedOrigin string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// Load reads .env.local / .env when present, then the environment.
func Load() Config {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	ttlHours, err := strconv.Atoi(getenv("SESSION_TTL_HOURS", "24"))
	if err != nil || ttlHours <= 0 {
		ttlHours = 24
	}

	env := getenv("APP_ENV", "dev")

	return Config{
		Port:          getenv("PORT", "8080"),
		Env:           env,
		DatabaseURL:   getenv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=pairchat port=5432 sslmode=disable TimeZone=UTC"),
		RedisURL:      getenv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:     getenv("JWT_SECRET", "dev-secret-change-me"),
		SessionTTL:    time.Duration(ttlHours) * time.Hour,
		CookieDomain:  getenv("COOKIE_DOMAIN", ""),
		CookieSecure:  env != "dev",
		AllowedOrigin: getenv("ALLOWED_ORIGIN", ""),
	}
}
