package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr       string
	BackendURL     string
	SessionBackend string
	StateFile      string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CookieSecret   string
	CookieIssuer   string
	CookieTTL      time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
	LoginRoute     string
	DefaultRoute   string
	LoginRate      float64
	LoginBurst     int
}

func Load() Config {
	return Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8090"),
		BackendURL:     getenv("BACKEND_URL", "http://127.0.0.1:8000"),
		SessionBackend: getenv("SESSION_BACKEND", "file"),
		StateFile:      getenv("STATE_FILE", "omega-session.json"),
		RedisAddr:      getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		RedisDB:        getenvInt("REDIS_DB", 0),
		CookieSecret:   getenv("COOKIE_SECRET", ""),
		CookieIssuer:   getenv("COOKIE_ISSUER", "omega-gateway"),
		CookieTTL:      getenvDuration("COOKIE_TTL", 12*time.Hour),
		PollInterval:   getenvDuration("POLL_INTERVAL", 30*time.Second),
		RequestTimeout: getenvDuration("REQUEST_TIMEOUT", 15*time.Second),
		LoginRoute:     getenv("LOGIN_ROUTE", "/login"),
		DefaultRoute:   getenv("DEFAULT_ROUTE", "/"),
		LoginRate:      getenvFloat("LOGIN_RATE", 0.5),
		LoginBurst:     getenvInt("LOGIN_BURST", 5),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
