// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A load is a short-lived batch job, so instead of exposing a scrape endpoint
// the collected metrics are pushed to a Pushgateway on Flush, grouped by job
// name and run id.
package prompush

import (
	"fmt"

	"socrata2sql/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Config holds Pushgateway backend configuration.
type Config struct {
	// GatewayURL is the Pushgateway base URL, e.g. http://pushgateway:9091.
	GatewayURL string
	// Job is the Pushgateway "job" group. Defaults to "socrata2sql".
	Job string
	// RunID, when set, is added as a grouping key so concurrent loads do not
	// overwrite each other's metrics.
	RunID string
}

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	cfg Config
	reg *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.SummaryVec
	rowsCounter  *prometheus.CounterVec
	pagesCounter *prometheus.CounterVec
}

// NewBackend constructs a Prometheus Pushgateway backend.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if cfg.Job == "" {
		cfg.Job = "socrata2sql"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Load step executions, partitioned by dataset, step and status.",
		},
		[]string{"dataset", "step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Duration of load steps in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"dataset", "step", "status"},
	)
	rowsCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows per kind (fetched, loaded, coerce_warnings).",
		},
		[]string{"dataset", "kind"},
	)
	pagesCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.PagesTotal,
			Help: "Pages fetched and inserted.",
		},
		[]string{"dataset"},
	)

	for _, c := range []prometheus.Collector{stepCounter, stepDuration, rowsCounter, pagesCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		cfg:          cfg,
		reg:          reg,
		stepCounter:  stepCounter,
		stepDuration: stepDuration,
		rowsCounter:  rowsCounter,
		pagesCounter: pagesCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["dataset"], labels["step"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		if b.rowsCounter == nil {
			return
		}
		b.rowsCounter.WithLabelValues(labels["dataset"], labels["kind"]).Add(delta)
	case metrics.PagesTotal:
		if b.pagesCounter == nil {
			return
		}
		b.pagesCounter.WithLabelValues(labels["dataset"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["dataset"], labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	p := push.New(b.cfg.GatewayURL, b.cfg.Job).Gatherer(b.reg)
	if b.cfg.RunID != "" {
		p = p.Grouping("run_id", b.cfg.RunID)
	}
	return p.Push()
}
