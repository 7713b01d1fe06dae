package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// RegisterMetrics registers metrics for the specified services
func RegisterMetrics(services []string, logger logrus.FieldLogger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)

	for _, service := range services {
		switch service {
		case "send":
			registerSendMetrics(logger)
		default:
			logger.Warnf("Unknown service type for metrics registration: %s", service)
		}
	}
}

// registerIfNotExists registers a collector if it's not already registered
func registerIfNotExists(collector prometheus.Collector, name string, logger logrus.FieldLogger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debugf("%s already registered", name)
		} else {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}

func registerSendMetrics(logger logrus.FieldLogger) {
	registerIfNotExists(sendBuildsTotal, "send_builds_total", logger)
	registerIfNotExists(sendSignaturesTotal, "send_signatures_total", logger)
	registerIfNotExists(sendSignDuration, "send_sign_duration", logger)
	registerIfNotExists(sendAssembleFailuresTotal, "send_assemble_failures_total", logger)
	registerIfNotExists(sendBroadcastsTotal, "send_broadcasts_total", logger)
	registerIfNotExists(sendLastBroadcastTimestamp, "send_last_broadcast_timestamp", logger)
}
