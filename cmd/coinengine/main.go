package main

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/coinengine/internal/graceful"
	"github.com/vultisig/coinengine/internal/metrics"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	cfg, err := newConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("failed to parse log level: %v", err)
	}
	logger.SetLevel(level)

	ctx, cancel := graceful.Context(context.Background(), logger)

	if cfg.Metrics.Port != "" {
		metrics.RegisterMetrics([]string{"send"}, logger)
		metricsServer := metrics.StartMetricsServer(cfg.Metrics.Port, logger)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				logger.Errorf("failed to stop metrics server: %v", err)
			}
		}()
	}

	root := newRootCmd(cfg, logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		cancel()
		os.Exit(1)
	}
	cancel()
}
