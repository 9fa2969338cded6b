package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/shop-orders/internal/config"
	kafkax "github.com/ariefcatur/shop-orders/internal/kafka"
	"github.com/ariefcatur/shop-orders/internal/logx"
	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/ariefcatur/shop-orders/internal/projector"
	"github.com/ariefcatur/shop-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logx.New(cfg.LogLevel, cfg.ServiceName+"-projector")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("projector exited", zap.Error(err))
	}
	logger.Info("projector stopped")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		return err
	}

	svc := &projector.Service{
		Cache:  redisx.NewStatusCache(rdb),
		Dedup:  redisx.NewDedup(rdb, "projector"),
		Logger: logger,
	}

	// One reader per topic, all in the same consumer group.
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range orders.Topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, []string{topic}, cfg.ProjectorWorkers, logger)
		g.Go(func() error {
			logger.Info("projector consumer started",
				zap.String("group", cfg.ProjectorGroup), zap.String("topic", topic), zap.Int("workers", cfg.ProjectorWorkers))
			if err := cons.Start(gctx, svc.HandleEvent); err != nil {
				return fmt.Errorf("consumer %s: %w", topic, err)
			}
			return nil
		})
	}

	return g.Wait()
}
