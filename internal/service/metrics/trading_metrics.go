package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "signals",
			Name:      "generated_total",
			Help:      "Composite signals by verdict and status",
		},
		[]string{"signal", "status"},
	)

	CollaboratorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tradecore",
			Subsystem: "collaborators",
			Name:      "latency_seconds",
			Help:      "Latency of indicator, regime, brain and ticker calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"call"},
	)

	CollaboratorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "collaborators",
			Name:      "errors_total",
			Help:      "Failed collaborator calls",
		},
		[]string{"call"},
	)

	RouteSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "router",
			Name:      "selections_total",
			Help:      "Routes chosen by the bandit",
		},
		[]string{"route"},
	)

	BanditUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "router",
			Name:      "updates_total",
			Help:      "Realized outcomes applied to the bandit",
		},
		[]string{"route", "outcome"},
	)

	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "paper",
			Name:      "orders_total",
			Help:      "Paper orders by side and result",
		},
		[]string{"side", "result"},
	)

	AccountValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "paper",
			Name:      "balance_usd",
			Help:      "Cash balance of the paper account",
		},
		[]string{"kind"},
	)

	GuardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "evolution",
			Name:      "guard_decisions_total",
			Help:      "Evolution guard outcomes",
		},
		[]string{"guard", "result"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Trading events by sink and result",
		},
		[]string{"sink", "result"},
	)
)

// Register adds the trading collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			SignalsTotal,
			CollaboratorLatency,
			CollaboratorErrors,
			RouteSelections,
			BanditUpdates,
			OrdersTotal,
			AccountValue,
			GuardDecisions,
			EventsPublished,
		)
	})
}
