// Package app wires the identity service together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/pharmacontrol/identity-service/internal/api"
	"github.com/pharmacontrol/identity-service/internal/api/rpc"
	"github.com/pharmacontrol/identity-service/internal/core/ports"
	"github.com/pharmacontrol/identity-service/internal/core/service"
	"github.com/pharmacontrol/identity-service/internal/infrastructure/auth"
	"github.com/pharmacontrol/identity-service/internal/infrastructure/config"
	"github.com/pharmacontrol/identity-service/internal/infrastructure/db/postgres"
	"github.com/pharmacontrol/identity-service/internal/infrastructure/db/redis"
	"github.com/pharmacontrol/identity-service/internal/infrastructure/queue"
	"github.com/pharmacontrol/identity-service/internal/pkg/metrics"
)

const poolMetricsInterval = 15 * time.Second

// App represents the running service.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	db         *pgxpool.Pool
	rdb        *goredis.Client
	dispatcher *queue.Dispatcher

	health     *health.Server
	grpcServer *grpc.Server
	httpServer *echo.Echo

	workerCancel context.CancelFunc
}

// New connects to the backing stores and builds both servers. Everything
// opened so far is released when a later step fails.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Postgres.URL,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		ConnectAttempts: cfg.Postgres.ConnectAttempts,
		ConnectTimeout:  cfg.Postgres.ConnectTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.db = db

	if cfg.Postgres.MigrateOnStart {
		if err := postgres.Migrate(cfg.Postgres.URL, log); err != nil {
			a.release()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	var failures ports.LoginFailureRecorder
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			// Failure counting is advisory; run without it.
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, login failure tracking disabled")
		} else {
			a.rdb = rdb
			failures = redis.NewAttemptTracker(rdb, cfg.Security.LockoutDuration)
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	a.workerCancel = workerCancel

	a.dispatcher = queue.NewDispatcher(cfg.Security.HashWorkers, log)
	a.dispatcher.Start(workerCtx)

	codec, err := auth.NewJWTCodec(auth.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		AccessTTL:     cfg.JWT.AccessExpiry,
		RefreshTTL:    cfg.JWT.RefreshExpiry,
	})
	if err != nil {
		a.release()
		return nil, fmt.Errorf("token codec: %w", err)
	}

	svc := service.NewIdentityService(
		postgres.NewAuthRepository(db),
		auth.NewBcryptHasher(cfg.Security.BcryptRounds, a.dispatcher),
		codec,
		failures,
		service.IdentityOptions{
			DefaultRole:      cfg.Security.DefaultRole,
			MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
		},
		log,
	)

	a.health = health.NewServer()
	a.grpcServer = rpc.NewGRPCServer(svc, a.health, rpc.GRPCOptions{
		MaxMessageBytes: cfg.GRPC.MaxMessageBytes,
	}, log)

	a.httpServer = api.NewRouter(api.RouterDeps{
		Service:  svc,
		Verifier: codec,
		Peeker:   codec,
		Postgres: db,
		Redis:    a.rdb,
	}, log)

	go a.collectDBMetrics(workerCtx)

	return a, nil
}

// Run serves gRPC and HTTP until ctx is cancelled or a server fails, then
// shuts everything down.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.GRPCAddr())
	if err != nil {
		a.release()
		return fmt.Errorf("listen %s: %w", a.cfg.GRPCAddr(), err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", a.cfg.GRPCAddr()).Msg("grpc server listening")
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.cfg.HTTPAddr()).Msg("http server listening")
		if err := a.httpServer.Start(a.cfg.HTTPAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown drains in-flight calls, then releases the stores. gRPC calls still
// running when ctx expires are cut off.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info().Msg("shutting down")

	a.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		a.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		a.log.Warn().Msg("graceful stop timed out, forcing")
		a.grpcServer.Stop()
	}

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}

	a.release()
	a.log.Info().Msg("shutdown complete")
	return errors.Join(errs...)
}

// release stops the workers and closes the store connections.
func (a *App) release() {
	if a.workerCancel != nil {
		a.workerCancel()
	}
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(poolMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}
