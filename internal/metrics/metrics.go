package metrics

// Package metrics provides Prometheus metrics for the send pipeline.
//
// This package includes:
// - build, signature, assembly and broadcast counters per chain
// - signer latency histogram
// - metrics HTTP server on a configurable port
//
// Usage:
//   import "github.com/vultisig/coinengine/internal/metrics"
//
//   metrics.RegisterMetrics([]string{"send"}, logger)
//   metricsServer := metrics.StartMetricsServer("9090", logger)
//   defer metricsServer.Stop(context.Background())
