package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hudsor01/tenant-flow-sub013/internal/app"
	"github.com/hudsor01/tenant-flow-sub013/internal/config"
	"github.com/hudsor01/tenant-flow-sub013/internal/coordination"
	"github.com/hudsor01/tenant-flow-sub013/internal/database"
	"github.com/hudsor01/tenant-flow-sub013/internal/platform/logging"
	"github.com/hudsor01/tenant-flow-sub013/internal/platform/retry"
	"github.com/hudsor01/tenant-flow-sub013/internal/platform/version"
	"github.com/hudsor01/tenant-flow-sub013/internal/realtime"
	"github.com/hudsor01/tenant-flow-sub013/internal/redis"
	"github.com/hudsor01/tenant-flow-sub013/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Database connection failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	pool, err := retry.Do(ctx, policy, func() (*pgxpool.Pool, error) {
		return database.Connect(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, broadcaster *realtime.Broadcaster, cancelCoordination context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()
		cancelCoordination()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	broadcaster := realtime.NewBroadcaster(realtime.Options{
		Admission: realtime.AdmissionPolicy{
			MaxTotal:   cfg.MaxTotalConnections,
			MaxPerUser: cfg.MaxConnectionsPerUser,
		},
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, clock)

	instanceID := fmt.Sprintf("%s-%s", hostname(), uuid.NewString()[:8])
	instances := coordination.NewInstanceRegistry(
		redisClient, instanceID, version.Version, cfg.InstanceHeartbeatInterval, broadcaster, clock)

	coordinationCtx, cancelCoordination := context.WithCancel(context.Background())
	go instances.Start(coordinationCtx)

	tenantRepo := database.NewTenantRepository(pool)
	paymentRepo := database.NewPaymentRepository(pool)
	appSvc := app.NewService(tenantRepo, paymentRepo, broadcaster, clock)

	srv := server.NewServer(cfg, broadcaster, appSvc, instances, pool, redisClient)

	done := runGracefulShutdown(srv, broadcaster, cancelCoordination)

	slog.Info("Server starting", "port", cfg.Port, "instance_id", instanceID)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
