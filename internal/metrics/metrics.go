// Package metrics records operational metrics for statement extraction behind
// a small, backend-agnostic interface.
//
// A global backend defaults to a no-op, so callers may record metrics
// unconditionally. Concrete systems (Prometheus Pushgateway, Datadog) live in
// subpackages and are installed once at startup with SetBackend.
package metrics

import (
	"strconv"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal           = "ferc_step_total"
	StepDurationSeconds = "ferc_step_duration_seconds"
	RecordsTotal        = "ferc_records_total"
)

// Record kinds used with RecordRow.
const (
	KindRows          = "rows"
	KindMissingFields = "missing_fields"
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

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
// It is meant to be called once from main before any extraction starts.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one service call and observes its latency. step is
// "extract" or "extract_all"; form is the FERC form number.
func RecordStep(form int, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"form":   strconv.Itoa(form),
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta to the record counter of one statement. Non-positive
// deltas are ignored.
func RecordRow(statement, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"statement": statement,
		"kind":      kind,
	})
}
