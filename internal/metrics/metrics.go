// Package metrics exposes harvest and HTTP counters on a dedicated
// prometheus registry.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkoziy/biomed-miners/internal/harvest"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	Registry *prometheus.Registry

	fetched  *prometheus.CounterVec
	created  *prometheus.CounterVec
	linked   *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	runs     *prometheus.CounterVec
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		fetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biominer_records_fetched_total",
			Help: "Records returned by source APIs.",
		}, []string{"source"}),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biominer_records_created_total",
			Help: "Records stored through the full mapping path.",
		}, []string{"source"}),
		linked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biominer_records_linked_total",
			Help: "Known records re-linked to a search term.",
		}, []string{"source"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biominer_records_skipped_total",
			Help: "Records dropped for mapping faults.",
		}, []string{"source"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biominer_harvests_total",
			Help: "Harvest calls by final state.",
		}, []string{"source", "status"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biominer_http_attempts_total",
			Help: "HTTP attempts by outcome.",
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "biominer_harvest_duration_seconds",
			Help:    "Wall time of harvest calls.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"source"}),
	}

	m.Registry.MustRegister(m.fetched, m.created, m.linked, m.skipped, m.runs, m.attempts, m.duration)
	return m
}

// ObserveHarvest implements harvest.Recorder.
func (m *Metrics) ObserveHarvest(source string, rep harvest.Report, elapsed time.Duration) {
	m.fetched.WithLabelValues(source).Add(float64(rep.Fetched))
	m.created.WithLabelValues(source).Add(float64(rep.Created))
	m.linked.WithLabelValues(source).Add(float64(rep.Linked))
	m.skipped.WithLabelValues(source).Add(float64(rep.Skipped))
	m.runs.WithLabelValues(source, rep.State.String()).Inc()
	m.duration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// AttemptObserver returns a callback counting HTTP attempts for source.
func (m *Metrics) AttemptObserver(source string) func(outcome string) {
	return func(outcome string) {
		m.attempts.WithLabelValues(source, outcome).Inc()
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// WriteFile writes the registry to path for the node exporter textfile
// collector.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
