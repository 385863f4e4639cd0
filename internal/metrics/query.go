package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Collectors groups the metrics of region queries and of the MOC store. A
// nil *Collectors records nothing.
type Collectors struct {
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryCells    *prometheus.HistogramVec
	cache         *prometheus.CounterVec
	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
}

func NewCollectors() *Collectors {
	return &Collectors{
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healpix_region_queries_total",
				Help: "Region queries by region kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healpix_region_query_duration_seconds",
				Help:    "Duration of region coverage computations.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
			},
			[]string{"kind"},
		),
		queryCells: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healpix_region_query_cells",
				Help:    "Number of cells in the MOC of a region query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 12),
			},
			[]string{"kind"},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moc_query_cache_total",
				Help: "Query cache lookups by outcome.",
			},
			[]string{"outcome"},
		),
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moc_store_ops_total",
				Help: "MOC store operations by result.",
			},
			[]string{"op", "result"},
		),
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moc_store_op_duration_seconds",
				Help:    "Duration of MOC store operations.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"op"},
		),
	}
}

// MustRegister registers every collector on the provider registry.
func (c *Collectors) MustRegister(p *Provider) {
	p.Register(c.queries, c.queryDuration, c.queryCells, c.cache, c.storeOps, c.storeDuration)
}

func (c *Collectors) ObserveQuery(kind, outcome string, took time.Duration, cells int) {
	if c == nil {
		return
	}
	c.queries.WithLabelValues(kind, outcome).Inc()
	if outcome != OutcomeOK {
		return
	}
	c.queryDuration.WithLabelValues(kind).Observe(took.Seconds())
	c.queryCells.WithLabelValues(kind).Observe(float64(cells))
}

func (c *Collectors) CacheHit() {
	if c != nil {
		c.cache.WithLabelValues("hit").Inc()
	}
}

func (c *Collectors) CacheMiss() {
	if c != nil {
		c.cache.WithLabelValues("miss").Inc()
	}
}

// ObserveStoreOp records a store operation; result is "ok", "miss" or
// "error".
func (c *Collectors) ObserveStoreOp(op, result string, took time.Duration) {
	if c == nil {
		return
	}
	c.storeOps.WithLabelValues(op, result).Inc()
	c.storeDuration.WithLabelValues(op).Observe(took.Seconds())
}
