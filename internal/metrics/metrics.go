// Package metrics exposes Prometheus instrumentation for the ledger.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors shared across the engine.
type Metrics struct {
	// Transaction outcomes
	TransactionsCommitted  prometheus.Counter
	TransactionsRolledBack prometheus.Counter
	TransactionDuration    prometheus.Histogram

	// Connection pool
	PoolAcquires  prometheus.Counter
	PoolExhausted prometheus.Counter
	PoolInUse     prometheus.Gauge

	// Facade cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// Default is the process-wide metrics instance, registered against the
// default Prometheus registry at init.
var Default = New("bank")

// New creates collectors under the given namespace. Collectors register
// globally, so New must be called at most once per namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		TransactionsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_committed_total",
			Help:      "Ledger transactions that committed",
		}),
		TransactionsRolledBack: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_rolled_back_total",
			Help:      "Ledger transactions that rolled back",
		}),
		TransactionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Wall time per ledger transaction",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		PoolAcquires: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_acquires_total",
			Help:      "Successful connection acquisitions",
		}),
		PoolExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_exhausted_total",
			Help:      "Acquisitions rejected because no connection was free",
		}),
		PoolInUse: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_in_use",
			Help:      "Connections currently held by callers",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Facade cache lookups served from memory",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Facade cache lookups that fell through to the store",
		}),
	}
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
