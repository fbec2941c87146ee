package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"EventGate/config"
	"EventGate/internal/queue"
	"EventGate/pkg/logger"
	"EventGate/pkg/snowflake"
	"EventGate/storage"
)

func main() {
	config.Load()

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	logger.Logger.Info("Worker service starting",
		zap.String("service", "eventgate-worker"),
		zap.String("environment", config.Cfg.Environment),
	)

	// 消费签到结果事件，折算实时计数器和动态流
	go func() {
		if err := queue.StartOutcomeConsumer(); err != nil {
			logger.Logger.Error("Outcome consumer exited", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Logger.Info("Worker service shutting down gracefully")
}
