package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extrashifty",
			Name:      "scheduler_job_runs_total",
			Help:      "Total scheduler task executions by task name.",
		},
		[]string{"task"},
	)

	jobErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extrashifty",
			Name:      "scheduler_job_errors_total",
			Help:      "Total scheduler task executions that returned an error.",
		},
		[]string{"task"},
	)

	jobPanicsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extrashifty",
			Name:      "scheduler_job_panics_total",
			Help:      "Total scheduler task executions that recovered from a panic.",
		},
		[]string{"task"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extrashifty",
			Name:      "scheduler_job_duration_seconds",
			Help:      "Scheduler task execution duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"task"},
	)
)

func init() {
	prometheus.MustRegister(jobRunsTotal, jobErrorsTotal, jobPanicsTotal, jobDuration)
}

func observeJob(task string) func() {
	jobRunsTotal.WithLabelValues(task).Inc()
	start := time.Now()
	return func() {
		jobDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
	}
}
