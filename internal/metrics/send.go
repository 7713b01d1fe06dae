package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Unsigned transaction builds
	sendBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinengine",
			Subsystem: "send",
			Name:      "builds_total",
			Help:      "Total number of unsigned transaction builds",
		},
		[]string{"chain", "status"}, // success, error
	)

	// Card signing requests
	sendSignaturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinengine",
			Subsystem: "send",
			Name:      "signatures_total",
			Help:      "Total number of signer calls",
		},
		[]string{"chain", "method", "status"},
	)

	sendSignDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coinengine",
			Subsystem: "send",
			Name:      "sign_duration_seconds",
			Help:      "Time the signer took to return signatures",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"chain"},
	)

	// Signed payload assembly failures by reason
	sendAssembleFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinengine",
			Subsystem: "send",
			Name:      "assemble_failures_total",
			Help:      "Total number of signed transaction assembly failures",
		},
		[]string{"chain", "reason"},
	)

	sendBroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinengine",
			Subsystem: "send",
			Name:      "broadcasts_total",
			Help:      "Total number of broadcasts",
		},
		[]string{"chain", "status"},
	)

	sendLastBroadcastTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coinengine",
			Subsystem: "send",
			Name:      "last_broadcast_timestamp",
			Help:      "Timestamp of the last successful broadcast",
		},
	)
)

// SendMetrics provides methods to update send pipeline metrics
type SendMetrics struct{}

// NewSendMetrics creates a new instance of SendMetrics
func NewSendMetrics() *SendMetrics {
	return &SendMetrics{}
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordBuild records an unsigned transaction build
func (sm *SendMetrics) RecordBuild(chain string, success bool) {
	sendBuildsTotal.WithLabelValues(chain, status(success)).Inc()
}

// RecordSign records a signer call and its latency
func (sm *SendMetrics) RecordSign(chain, method string, success bool, duration time.Duration) {
	sendSignaturesTotal.WithLabelValues(chain, method, status(success)).Inc()
	sendSignDuration.WithLabelValues(chain).Observe(duration.Seconds())
}

// RecordAssembleFailure records why a signed payload could not be assembled
func (sm *SendMetrics) RecordAssembleFailure(chain, reason string) {
	sendAssembleFailuresTotal.WithLabelValues(chain, reason).Inc()
}

// RecordBroadcast records a broadcast attempt
func (sm *SendMetrics) RecordBroadcast(chain string, success bool) {
	sendBroadcastsTotal.WithLabelValues(chain, status(success)).Inc()
	if success {
		sendLastBroadcastTimestamp.Set(float64(time.Now().Unix()))
	}
}

// Assembly failure reasons for consistent labeling
const (
	ReasonRecoveryID      = "recovery_id"
	ReasonSignature       = "signature_mismatch"
	ReasonSignatureLength = "signature_length"
	ReasonState           = "invalid_state"
	ReasonOther           = "other"
)
