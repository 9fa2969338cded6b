package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/shop-orders/internal/clock"
	"github.com/ariefcatur/shop-orders/internal/config"
	"github.com/ariefcatur/shop-orders/internal/httpx"
	kafkax "github.com/ariefcatur/shop-orders/internal/kafka"
	"github.com/ariefcatur/shop-orders/internal/logx"
	"github.com/ariefcatur/shop-orders/internal/memstore"
	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/ariefcatur/shop-orders/internal/postgres"
	"github.com/ariefcatur/shop-orders/internal/postgres/migrations"
	"github.com/ariefcatur/shop-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logx.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.NewSystem()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := orders.ManagerDeps{
		Store:        store,
		Numbers:      orders.NewNumberGenerator(cfg.OrderNumberPrefix, clk),
		Clock:        clk,
		Logger:       logger,
		MaxAttempts:  cfg.TxMaxAttempts,
		RetryBackoff: cfg.TxRetryBackoff,
	}

	// Redis only accelerates status reads and numbering; the API runs without it.
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.Warn("redis unavailable, using local status cache and no order sequence", zap.Error(err))
		deps.Cache = memstore.NewStatusCache()
	} else {
		deps.Cache = redisx.NewStatusCache(rdb)
		deps.Sequence = redisx.NewSequence(rdb, clk)
	}

	var prod *kafkax.Producer
	if cfg.EventsEnabled {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
		prod.Start()
		deps.Events = kafkax.NewEventPublisher(prod, cfg.ServiceName)
	}

	mgr := orders.NewManager(deps)
	catalog := orders.NewCatalog(store, clk, logger, orders.RetryPolicy{MaxAttempts: cfg.TxMaxAttempts, Backoff: cfg.TxRetryBackoff})

	router := httpx.NewRouter(logger)
	(&httpx.OrdersHandler{Orders: mgr, Logger: logger}).Register(router)
	(&httpx.ProductsHandler{Products: catalog, Logger: logger}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info("shutting down", zap.String("signal", s.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if prod != nil {
		prod.Close() // flush queued events and close the writer
		prod.WaitClosed()
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (orders.Store, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), func() {}, nil
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, 0)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.Apply(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
