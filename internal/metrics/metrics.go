// Package metrics records operational metrics for dataset loads.
//
// Callers use the package-level helpers (RecordStep, RecordRows, RecordPages);
// they go to a global, pluggable Backend that defaults to a no-op, so
// instrumentation is always safe even when no metrics system is configured.
// Concrete systems live in subpackages (prompush, datadog).
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal           = "socrata2sql_step_total"
	StepDurationSeconds = "socrata2sql_step_duration_seconds"
	RowsTotal           = "socrata2sql_rows_total"
	PagesTotal          = "socrata2sql_pages_total"
)

// Row kinds reported through RecordRows.
const (
	RowsFetched       = "fetched"
	RowsLoaded        = "loaded"
	RowsCoerceWarning = "coerce_warnings"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep measures latency and outcome of one load step, e.g. "metadata",
// "create_table", "fetch_page", "insert_page".
func RecordStep(dataset, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"dataset": dataset,
		"step":    step,
		"status":  status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRows increments the row counter for kind (RowsFetched, RowsLoaded,
// RowsCoerceWarning). Non-positive deltas are ignored.
func RecordRows(dataset, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"dataset": dataset,
		"kind":    kind,
	})
}

// RecordPages increments the page counter for dataset.
func RecordPages(dataset string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(PagesTotal, float64(delta), Labels{
		"dataset": dataset,
	})
}
