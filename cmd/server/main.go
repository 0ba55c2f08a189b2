package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hirewire/auth-service/internal/api"
	"github.com/hirewire/auth-service/internal/config"
	"github.com/hirewire/auth-service/internal/infrastructure/kafka"
	"github.com/hirewire/auth-service/internal/infrastructure/redis"
	"github.com/hirewire/auth-service/internal/observability"
	"github.com/hirewire/auth-service/internal/ratelimit"
	core "github.com/hirewire/auth-service/internal/repository/postgres"
	"github.com/hirewire/auth-service/internal/security"
	service "github.com/hirewire/auth-service/internal/services"
	"github.com/hirewire/auth-service/internal/token"
	_ "github.com/lib/pq"
)

func main() {
	shutdown, metricsHandler := observability.Setup("auth-service")
	defer shutdown(context.Background())

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	userRepo := core.NewPostgresUserRepository(db)
	refreshRepo := core.NewPostgresRefreshTokenRepository(db)

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()
	events := security.NewKafkaSink(producer, cfg.SecurityTopic)

	// With REDIS_ADDR set the window counters are shared across instances;
	// otherwise each instance accounts in process.
	var redisClient redis.RedisClient
	if cfg.RedisAddr != "" {
		client := redis.NewClient(cfg.RedisAddr)
		defer client.Close()
		redisClient = client
	}

	janitorCtx, stopJanitors := context.WithCancel(context.Background())
	defer stopJanitors()

	loginLimiter := buildLimiter(janitorCtx, redisClient, "login", cfg.LoginLimit)
	registerLimiter := buildLimiter(janitorCtx, redisClient, "register", cfg.RegisterLimit)
	refreshLimiter := buildLimiter(janitorCtx, redisClient, "refresh", cfg.RefreshLimit)

	codec := token.NewCodec(cfg.JWTSecret)
	refreshTokens := service.NewRefreshTokenService(refreshRepo, codec, cfg.RefreshTokenTTL)
	svc := service.NewAuthService(
		userRepo,
		refreshTokens,
		codec,
		cfg.AccessTokenTTL,
		loginLimiter,
		registerLimiter,
		refreshLimiter,
		events,
	)

	router := api.SetupRouter(svc, events, metricsHandler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}

func buildLimiter(ctx context.Context, redisClient redis.RedisClient, operation string, rl config.RateLimit) ratelimit.Limiter {
	cfg := ratelimit.Config{Capacity: rl.Capacity, Window: rl.Window}
	if redisClient != nil {
		return ratelimit.NewRedisLimiter(redisClient, operation, cfg)
	}
	limiter := ratelimit.NewMemoryLimiter(cfg)
	limiter.StartJanitor(ctx, rl.Window)
	return limiter
}
