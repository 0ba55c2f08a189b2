package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type RateLimit struct {
	Capacity int
	Window   time.Duration
}

type Config struct {
	ListenAddr      string
	PostgresDSN     string
	RedisAddr       string
	KafkaBrokers    []string
	SecurityTopic   string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	LoginLimit      RateLimit
	RegisterLimit   RateLimit
	RefreshLimit    RateLimit
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		PostgresDSN:     getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=auth sslmode=disable"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		KafkaBrokers:    []string{getEnv("KAFKA_BROKER", "localhost:9092")},
		SecurityTopic:   getEnv("SECURITY_EVENTS_TOPIC", "security-events"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  getEnvSeconds("ACCESS_TOKEN_TTL_SECONDS", 900),
		RefreshTokenTTL: getEnvSeconds("REFRESH_TOKEN_TTL_SECONDS", 14*24*3600),
		LoginLimit: RateLimit{
			Capacity: getEnvInt("LOGIN_RATE_CAPACITY", 5),
			Window:   getEnvSeconds("LOGIN_RATE_WINDOW_SECONDS", 300),
		},
		RegisterLimit: RateLimit{
			Capacity: getEnvInt("REGISTER_RATE_CAPACITY", 3),
			Window:   getEnvSeconds("REGISTER_RATE_WINDOW_SECONDS", 3600),
		},
		RefreshLimit: RateLimit{
			Capacity: getEnvInt("REFRESH_RATE_CAPACITY", 10),
			Window:   getEnvSeconds("REFRESH_RATE_WINDOW_SECONDS", 300),
		},
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "supersecret"
		slog.Warn("JWT_SECRET not set, using insecure default")
	}

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"access_ttl", cfg.AccessTokenTTL,
		"refresh_ttl", cfg.RefreshTokenTTL)
	return cfg
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer env value, using fallback", "key", key, "value", val)
		return fallback
	}
	return parsed
}

func getEnvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}
