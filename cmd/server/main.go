package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"manifest-route-service/internal/adapters/cache"
	"manifest-route-service/internal/adapters/lock"
	"manifest-route-service/internal/adapters/ors"
	"manifest-route-service/internal/adapters/repositories"
	"manifest-route-service/internal/api"
	"manifest-route-service/internal/config"
	"manifest-route-service/internal/platform/db"
	"manifest-route-service/internal/platform/obs"
	"manifest-route-service/internal/ports"
	"manifest-route-service/internal/services"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// main is the application composition root.
// It wires concrete adapters (SQL store, ORS, Redis) behind ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	if err := run(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := obs.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBDriver == db.DriverSQLite {
		if dir := filepath.Dir(cfg.DatabaseURL); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	conn, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Apply schema on startup so local runs need no separate migrate step.
	applied, err := db.Migrate(ctx, conn)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "count", len(applied))

	locker, closeLocker, err := newLocker(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer closeLocker()

	orsClient := ors.NewClient(ors.Options{
		BaseURL:     cfg.ORSBaseURL,
		Profile:     cfg.ORSProfile,
		Country:     cfg.GeocodeCountry,
		Timeout:     cfg.ProviderTimeout,
		MaxAttempts: cfg.ProviderMaxAttempts,

		// Every HTTP attempt is paced, retries included. Cache hits never
		// reach the client.
		GeocodeInterval: cfg.GeocodeInterval,
		SolveInterval:   cfg.SolveInterval,
		Logger:          logger,
	})

	geocoder := cache.NewCachingGeocoder(orsClient, cache.NewSQLGeocodeCache(conn), logger)

	var solver ports.RouteSolver = orsClient
	if cfg.Solver == "nearest" {
		solver = services.NearestNeighborSolver{}
	}

	repo := repositories.NewSQLStopRepository(conn)
	svc := services.NewRouteService(services.RouteServiceDeps{
		Stops:       repo,
		Keys:        repo,
		Credentials: services.NewCredentialResolver(repo, cfg.ORSAPIKey),
		Geocoder:    geocoder,
		Solver:      solver,
		Locker:      locker,
		LeaseTTL:    cfg.RunLeaseTTL,
		Logger:      logger,
	})

	router := api.NewRouter(svc, api.RouterOptions{
		Logger:      logger,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	})

	// A geocode batch is 25 throttled provider calls, so writes get a long deadline.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "solver", solver.Algorithm(), "db_driver", cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLocker(ctx context.Context, redisURL string) (ports.RouteLocker, func(), error) {
	if redisURL == "" {
		slog.Warn("REDIS_URL not set, route leases are process-local")
		return lock.NewMemoryLocker(), func() {}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	return lock.NewRedisLocker(client), func() { _ = client.Close() }, nil
}
