// Package metrics bundles Prometheus collectors for the crawler.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry          *prometheus.Registry
	PagesHarvested    prometheus.Counter
	ListingsValidated prometheus.Counter
	ListingsRejected  prometheus.Counter
	RecordsCollected  prometheus.Counter
	OracleCalls       *prometheus.CounterVec
	SessionDuration   prometheus.Histogram
	ErrorsTotal       *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pagesHarvested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_pages_harvested_total",
		Help: "Total page snapshots produced by the harvester.",
	})
	listingsValidated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_listings_validated_total",
		Help: "Total listing candidates that matched the target catalog.",
	})
	listingsRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_listings_rejected_total",
		Help: "Total listing candidates discarded during validation.",
	})
	recordsCollected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_records_collected_total",
		Help: "Total deduplicated inventory records accumulated.",
	})
	oracleCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_oracle_calls_total",
		Help: "Total oracle calls by outcome.",
	}, []string{"outcome"})
	sessionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crawler_session_duration_seconds",
		Help:    "Wall time of one retailer crawl session.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_errors_total",
		Help: "Total crawler errors by type.",
	}, []string{"error_type"})

	registry.MustRegister(pagesHarvested, listingsValidated, listingsRejected,
		recordsCollected, oracleCalls, sessionDuration, errorsTotal)

	return &Metrics{
		Registry:          registry,
		PagesHarvested:    pagesHarvested,
		ListingsValidated: listingsValidated,
		ListingsRejected:  listingsRejected,
		RecordsCollected:  recordsCollected,
		OracleCalls:       oracleCalls,
		SessionDuration:   sessionDuration,
		ErrorsTotal:       errorsTotal,
	}
}

// IncPages increments harvested pages; nil-safe like every helper here so
// components can run without metrics wired.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesHarvested.Inc()
}

func (m *Metrics) AddValidated(n int) {
	if m == nil {
		return
	}
	m.ListingsValidated.Add(float64(n))
}

func (m *Metrics) AddRejected(n int) {
	if m == nil {
		return
	}
	m.ListingsRejected.Add(float64(n))
}

func (m *Metrics) AddRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsCollected.Add(float64(n))
}

func (m *Metrics) IncOracle(outcome string) {
	if m == nil {
		return
	}
	m.OracleCalls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSession(d time.Duration) {
	if m == nil {
		return
	}
	m.SessionDuration.Observe(d.Seconds())
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
