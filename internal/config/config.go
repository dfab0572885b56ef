package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
// Every field has an explicit default; malformed values fall back with a
// logged warning rather than failing startup.
type App struct {
	Env                string
	HTTPPort           string
	RedisAddr          string
	BusBackend         string
	RateLimitPerMin    int
	ShareBaseURL       string
	DefaultDurationMin int
	DefaultMode        string
	RecentLimit        int
	GeoServiceURL      string
	GeoSkip            bool
	GeoTimeout         time.Duration
}

// Load returns application config populated from environment variables with
// sensible defaults.
func Load() App {
	return App{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPPort:           getEnv("HTTP_PORT", "8081"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		BusBackend:         getEnv("BUS_BACKEND", "memory"),
		RateLimitPerMin:    intEnv("RATE_LIMIT_PER_MIN", 120),
		ShareBaseURL:       getEnv("SHARE_BASE_URL", "http://localhost:8081"),
		DefaultDurationMin: intEnv("DEFAULT_DURATION_MIN", 30),
		DefaultMode:        getEnv("DEFAULT_MODE", "in-person"),
		RecentLimit:        intEnv("RECENT_LIMIT", 20),
		GeoServiceURL:      getEnv("GEO_SERVICE_URL", "http://localhost:8000"),
		GeoSkip:            boolEnv("GEO_SKIP", true),
		GeoTimeout:         durationEnv("GEO_TIMEOUT", 4*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
