package queue

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	metricsOnce sync.Once
)

func initQueueMetrics() {
	metricsOnce.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecore_queue_jobs_total",
				Help: "Queued jobs by type and result (ok, retry, dead)",
			},
			[]string{"type", "result"},
		)
		jobDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecore_queue_job_seconds",
				Help:    "Job handling time",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		)
	})
}

func observeJob(msgType, result string, d time.Duration) {
	if jobsTotal == nil {
		return
	}
	jobsTotal.WithLabelValues(msgType, result).Inc()
	jobDuration.WithLabelValues(msgType).Observe(d.Seconds())
}
