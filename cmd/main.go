// alumnet-engagement-service
//
// Internship and mentorship engagement lifecycle.
// Exposes a REST API (echo) and a gRPC API used by the gateway to implement:
//   - listings: create, update, soft-delete, toggle active
//   - offers and applications: create, accept, reject, withdraw
//   - engagements: read the relationships created by accepts
//
// Accept creates the engagement, flips the proposal and consumes a slot in
// one transaction. Publishes EVENT_PROPOSAL_* to Redis for the gateway SSE
// forward when REDIS_URL is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"alumnet/engagement-service/internal/auth"
	"alumnet/engagement-service/internal/config"
	"alumnet/engagement-service/internal/db"
	"alumnet/engagement-service/internal/events"
	"alumnet/engagement-service/internal/grpcserver"
	"alumnet/engagement-service/internal/httpapi"
	"alumnet/engagement-service/internal/lifecycle"
	"alumnet/engagement-service/internal/logger"
	"alumnet/engagement-service/internal/metrics"
	"alumnet/engagement-service/internal/ratelimit"
	"alumnet/engagement-service/internal/scheduler"
	"alumnet/engagement-service/internal/store"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "[engagement-service] %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env, "engagement-service")
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck
	zap.ReplaceGlobals(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Storage ─────────────────────────────────────────────────────────────
	var (
		st    lifecycle.Store
		ready []func(context.Context) error
	)
	switch cfg.StorageDriver {
	case config.DriverMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		st = store.NewMemory()
	default:
		log.Info("connecting to PostgreSQL")
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		log.Info("PostgreSQL connected")
		st = store.NewPostgres(pool)
		ready = append(ready, pool.Ping)
	}

	// ── Redis (optional) ─────────────────────────────────────────────────────
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		log.Info("connecting to Redis")
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		log.Info("Redis connected")
		ready = append(ready, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		log.Warn("REDIS_URL not set; events and rate limiting disabled")
	}

	// ── Service ─────────────────────────────────────────────────────────────
	m := metrics.New()
	opts := []lifecycle.Option{
		lifecycle.WithLogger(log.Named("lifecycle")),
		lifecycle.WithRecorder(m),
		lifecycle.WithStrictCapacity(cfg.StrictCapacity),
	}
	var limiter *ratelimit.Limiter
	if rdb != nil {
		opts = append(opts, lifecycle.WithPublisher(events.NewRedisPublisher(rdb, "")))
		log.Info("publishing lifecycle events", zap.Strings("channels", events.Channels("")))
		limiter = ratelimit.New(rdb, cfg.RateLimitPerMinute, time.Minute)
	}
	svc := lifecycle.NewService(st, opts...)

	// ── Capacity audit ───────────────────────────────────────────────────────
	sched := scheduler.New(st, m, log.Named("scheduler"), cfg.CapacityAuditInterval)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	e := httpapi.NewServer(httpapi.Config{
		Service: svc,
		Issuer:  auth.NewIssuer(cfg.JWTSigningKey, cfg.JWTTTL),
		Limiter: limiter,
		Metrics: m,
		Logger:  log.Named("http"),
		Version: version,
		Ready: func(ctx context.Context) error {
			for _, check := range ready {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP listening", zap.String("version", version), zap.String("port", cfg.HTTPPort))
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("gRPC listen: %w", err)
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcserver.LoggingInterceptor(log.Named("grpc"))))
	grpcserver.Register(gs, grpcserver.NewServer(svc, log.Named("grpc")))
	go func() {
		log.Info("gRPC listening", zap.String("port", cfg.GRPCPort))
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		log.Error("server failed", zap.Error(err))
	}

	log.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", zap.Error(err))
	}
	gs.GracefulStop()
	log.Info("stopped")
	return nil
}
