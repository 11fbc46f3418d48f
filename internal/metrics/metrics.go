// Package metrics provides Prometheus metrics for query resolution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/staquery/internal/qerr"
)

// Metrics holds the Prometheus collectors of a service.
type Metrics struct {
	ValidationsTotal      *prometheus.CounterVec
	ValidationErrorsTotal *prometheus.CounterVec
	ExpandDepth           prometheus.Histogram
	RowsFetchedTotal      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ValidationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staquery_validations_total",
				Help: "Total number of query validations",
			},
			[]string{"entity_type", "outcome"},
		),
		ValidationErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staquery_validation_errors_total",
				Help: "Total number of failed query validations by error kind",
			},
			[]string{"kind"},
		),
		ExpandDepth: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "staquery_expand_depth",
				Help:    "Nesting depth of the $expand tree of validated queries",
				Buckets: []float64{0, 1, 2, 3, 4, 6, 8},
			},
		),
		RowsFetchedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staquery_rows_fetched_total",
				Help: "Total number of entities read from the store",
			},
			[]string{"entity_type"},
		),
	}
}

// RecordValidation counts one validation of a query on entityType.
func (m *Metrics) RecordValidation(entityType string, depth int, err error) {
	if err != nil {
		m.ValidationsTotal.WithLabelValues(entityType, "error").Inc()
		kind := string(qerr.KindOf(err))
		if kind == "" {
			kind = "internal"
		}
		m.ValidationErrorsTotal.WithLabelValues(kind).Inc()
		return
	}
	m.ValidationsTotal.WithLabelValues(entityType, "ok").Inc()
	m.ExpandDepth.Observe(float64(depth))
}

// RecordRows counts entities read from the store.
func (m *Metrics) RecordRows(entityType string, n int) {
	m.RowsFetchedTotal.WithLabelValues(entityType).Add(float64(n))
}
