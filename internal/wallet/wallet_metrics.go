package wallet

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// walletOpsTotal counts wallet ledger operations by type.
	walletOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extrashifty",
			Name:      "wallet_operations_total",
			Help:      "Total wallet ledger operations by type.",
		},
		[]string{"type"},
	)

	// walletOpDuration observes operation latency by type.
	walletOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extrashifty",
			Name:      "wallet_operation_duration_seconds",
			Help:      "Wallet ledger operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)

	// walletSuspensionsTotal counts wallets moved into suspended status.
	walletSuspensionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "extrashifty",
			Name:      "wallet_suspensions_total",
			Help:      "Total wallets moved to suspended status.",
		},
	)
)

func init() {
	prometheus.MustRegister(walletOpsTotal, walletOpDuration, walletSuspensionsTotal)
}

// observeOp increments the operation counter and returns a function to
// observe duration, the same pattern the ledger package uses.
func observeOp(opType string) func() {
	walletOpsTotal.WithLabelValues(opType).Inc()
	start := time.Now()
	return func() {
		walletOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	}
}
