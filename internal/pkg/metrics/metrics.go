// Package metrics declares the Prometheus collectors of the client.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PollsTotal counts state polls by kind and outcome (ok, error, skipped).
	PollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "earn",
		Name:      "state_polls_total",
		Help:      "State polls by snapshot kind and outcome.",
	}, []string{"kind", "outcome"})

	// TransactionsTotal counts orchestrated transactions by method and outcome.
	TransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "earn",
		Name:      "transactions_total",
		Help:      "Transactions by method and classified outcome.",
	}, []string{"method", "outcome"})

	// ConfirmationSeconds observes submit-to-receipt latency.
	ConfirmationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "earn",
		Name:      "transaction_confirmation_seconds",
		Help:      "Time from submission to on-chain confirmation.",
		Buckets:   []float64{1, 2, 5, 10, 20, 40, 80, 160, 320},
	}, []string{"method"})

	// ContractEventsTotal counts relayed contract events.
	ContractEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "earn",
		Name:      "contract_events_total",
		Help:      "Relayed yield contract events by kind.",
	}, []string{"kind"})

	registerOnce sync.Once
)

// MustRegisterMetrics registers every collector with the default registry once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(PollsTotal, TransactionsTotal, ConfirmationSeconds, ContractEventsTotal)
	})
}
