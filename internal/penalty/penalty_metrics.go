package penalty

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	penaltyOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extrashifty",
			Name:      "penalty_operations_total",
			Help:      "Total penalty engine operations by type.",
		},
		[]string{"type"},
	)

	penaltyOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extrashifty",
			Name:      "penalty_operation_duration_seconds",
			Help:      "Penalty engine operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)

	strikesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "extrashifty",
			Name:      "strikes_issued_total",
			Help:      "Total strikes issued to users.",
		},
	)

	suspensionsIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "extrashifty",
			Name:      "user_suspensions_issued_total",
			Help:      "Total 30-day suspensions issued by the penalty engine.",
		},
	)
)

func init() {
	prometheus.MustRegister(penaltyOpsTotal, penaltyOpDuration, strikesIssuedTotal, suspensionsIssuedTotal)
}

func observeOp(opType string) func() {
	penaltyOpsTotal.WithLabelValues(opType).Inc()
	start := time.Now()
	return func() {
		penaltyOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	}
}
