package payout

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	payoutOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extrashifty",
			Name:      "payout_operations_total",
			Help:      "Total payout engine operations by type.",
		},
		[]string{"type"},
	)

	payoutOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extrashifty",
			Name:      "payout_operation_duration_seconds",
			Help:      "Payout engine operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(payoutOpsTotal, payoutOpDuration)
}

func observeOp(opType string) func() {
	payoutOpsTotal.WithLabelValues(opType).Inc()
	start := time.Now()
	return func() {
		payoutOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	}
}
