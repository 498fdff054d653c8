package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rtbecker76/universal-electronics2/internal/admin"
	"github.com/rtbecker76/universal-electronics2/internal/cache"
	"github.com/rtbecker76/universal-electronics2/internal/cart"
	"github.com/rtbecker76/universal-electronics2/internal/catalog"
	"github.com/rtbecker76/universal-electronics2/internal/charts"
	"github.com/rtbecker76/universal-electronics2/internal/config"
	"github.com/rtbecker76/universal-electronics2/internal/history"
	h "github.com/rtbecker76/universal-electronics2/internal/http"
	"github.com/rtbecker76/universal-electronics2/internal/logger"
	"github.com/rtbecker76/universal-electronics2/internal/metrics"
	"github.com/rtbecker76/universal-electronics2/internal/poller"
	"github.com/rtbecker76/universal-electronics2/internal/publisher"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
	"github.com/rtbecker76/universal-electronics2/internal/session"
	"github.com/rtbecker76/universal-electronics2/internal/surface"
	"github.com/rtbecker76/universal-electronics2/internal/telemetry"
)

const serviceName = "storefront"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer lg.Sync()
	zap.ReplaceGlobals(lg)

	if err := run(cfg, lg); err != nil {
		lg.Fatal("storefront stopped with error", zap.Error(err))
	}
	lg.Info("storefront stopped")
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracerProvider(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			lg.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	backend, sqlStore, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer backend.Close()

	store := recordstore.WithBreaker(backend, recordstore.BreakerSettings{
		Name:                string(cfg.Store),
		ConsecutiveFailures: cfg.BreakerFailures,
		OpenTimeout:         cfg.BreakerTimeout,
	}, lg)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	m := metrics.New()
	redisCache := cache.NewRedisCache(rdb, cfg.CacheTTL)

	products := catalog.New(store, cache.Instrumented(redisCache, "catalog", m), lg)
	orders := history.New(store, cache.Instrumented(redisCache, "history", m), lg)
	chartSvc := charts.New(store, cache.Instrumented(redisCache, "charts", m), lg)
	records := admin.New(store, products, chartSvc, lg)

	sessions := session.Provider{}
	carts := cart.NewRegistry(func(userID string) *cart.Manager {
		return cart.NewManager(cart.Deps{
			Store:    store,
			Catalog:  products,
			Sessions: sessions,
			Surface:  surface.NewSnapshot(),
			History:  orders,
			Recorder: m,
			Log:      lg.With(zap.String("user_id", userID)),
		})
	}, cart.WithEvictHook(orders.Forget))

	revoker := session.NewRedisRevoker(rdb)
	limiter := h.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	router := h.NewRouter(h.Handlers{
		Products: h.NewProductHandler(products, cfg.RequestTimeout, lg),
		Cart:     h.NewCartHandler(carts, cfg.RequestTimeout, lg),
		Orders:   h.NewOrdersHandler(orders, cfg.RequestTimeout, lg),
		Admin:    h.NewAdminHandler(records, chartSvc, cfg.RequestTimeout, lg),
		Session:  h.NewSessionHandler(revoker, carts, lg),
	}, h.RouterConfig{
		Tokens:             session.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer),
		Revoker:            revoker,
		Metrics:            m,
		Limiter:            limiter,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Log:                lg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)
	healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	var wg sync.WaitGroup
	workers, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	wg.Add(1)
	go func() {
		defer wg.Done()
		limiter.Sweep(workers, time.Minute)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		carts.Sweep(workers, time.Minute)
	}()

	var consumer *poller.Poller
	if len(cfg.KafkaBrokers) > 0 {
		if sqlStore != nil {
			writer := publisher.NewWriter(cfg.OrderEventsTopic, cfg.KafkaBrokers...)
			defer writer.Close()
			outbox := publisher.NewOutboxPoller(sqlStore, writer, m, lg)
			wg.Add(1)
			go func() {
				defer wg.Done()
				outbox.Run(workers)
			}()
		} else {
			lg.Info("outbox publisher disabled for store backend", zap.String("store", string(cfg.Store)))
		}

		consumer = poller.NewPoller(
			poller.NewReader(cfg.OrderEventsTopic, cfg.ConsumerGroup, cfg.KafkaBrokers...),
			orders, chartSvc, lg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(workers)
		}()
	}

	errCh := make(chan error, 2)
	go func() {
		lg.Info("http server listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		lg.Info("grpc server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		lg.Info("shutting down")
	case runErr = <-errCh:
		lg.Error("server failed, shutting down", zap.Error(runErr))
	}

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	cancelWorkers()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		lg.Info("workers stopped cleanly")
	case <-shutdownCtx.Done():
		lg.Warn("workers didn't stop in time")
	}
	if consumer != nil {
		consumer.Close()
	}
	return runErr
}

// openStore connects the configured backend. The SQL store is also returned when the
// backend has an outbox.
func openStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (recordstore.Store, *recordstore.SQLStore, error) {
	switch cfg.Store {
	case config.BackendPostgres:
		s, err := recordstore.NewPostgresStore(&recordstore.Credentials{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			DBName:   cfg.PostgresDB,
		}, lg)
		if err != nil {
			return nil, nil, err
		}
		if err := recordstore.RunPostgresMigrations(s.DB()); err != nil {
			s.Close()
			return nil, nil, err
		}
		lg.Info("database migrations completed")
		return s, s, nil

	case config.BackendSQLite:
		s, err := recordstore.NewSQLiteStore(cfg.SQLitePath, lg)
		if err != nil {
			return nil, nil, err
		}
		if err := recordstore.RunSQLiteMigrations(s.DB()); err != nil {
			s.Close()
			return nil, nil, err
		}
		lg.Info("database migrations completed")
		return s, s, nil

	case config.BackendMongo:
		s, err := recordstore.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB, lg)
		if err != nil {
			return nil, nil, err
		}
		if err := s.CreateIndexes(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}
