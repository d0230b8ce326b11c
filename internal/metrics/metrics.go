// Package metrics records lifecycle operation metrics and exports them in
// the Prometheus text format for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "k8tenant"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Recorder holds a private registry and the collectors registered in it.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	archivesTotal     *prometheus.CounterVec
	entities          *prometheus.GaugeVec
	probesTotal       *prometheus.CounterVec
	storeConflicts    *prometheus.CounterVec
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "operations_total",
				Help:      "Total number of lifecycle operations by variant, operation and result",
			},
			[]string{"variant", "operation", "result"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "operation_duration_seconds",
				Help:      "Duration of lifecycle operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"variant", "operation"},
		),

		archivesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "archive",
				Name:      "bundles_total",
				Help:      "Total number of archive bundles by variant and result",
			},
			[]string{"variant", "result"},
		),

		entities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "entities",
				Help:      "Number of entities by variant and health, as seen by the last list",
			},
			[]string{"variant", "health"},
		),

		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "check",
				Name:      "probes_total",
				Help:      "Total number of credential probes by variant and result",
			},
			[]string{"variant", "result"},
		),

		storeConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "conflicts_total",
				Help:      "Total number of document write conflicts by document",
			},
			[]string{"document"},
		),
	}

	r.registry.MustRegister(
		r.operationsTotal,
		r.operationDuration,
		r.archivesTotal,
		r.entities,
		r.probesTotal,
		r.storeConflicts,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordOperation records a finished lifecycle operation.
func (r *Recorder) RecordOperation(variant, operation string, err error, duration time.Duration) {
	if r == nil {
		return
	}
	r.operationsTotal.WithLabelValues(variant, operation, result(err)).Inc()
	r.operationDuration.WithLabelValues(variant, operation).Observe(duration.Seconds())
}

// RecordArchive records an archive attempt.
func (r *Recorder) RecordArchive(variant string, err error) {
	if r == nil {
		return
	}
	r.archivesTotal.WithLabelValues(variant, result(err)).Inc()
}

// RecordEntities sets the entity gauge for one variant.
func (r *Recorder) RecordEntities(variant string, byHealth map[string]int) {
	if r == nil {
		return
	}
	r.entities.DeletePartialMatch(prometheus.Labels{"variant": variant})
	for health, n := range byHealth {
		r.entities.WithLabelValues(variant, health).Set(float64(n))
	}
}

// RecordProbe records a credential probe.
func (r *Recorder) RecordProbe(variant string, err error) {
	if r == nil {
		return
	}
	r.probesTotal.WithLabelValues(variant, result(err)).Inc()
}

// RecordConflict records a lost compare-and-swap.
func (r *Recorder) RecordConflict(document string) {
	if r == nil {
		return
	}
	r.storeConflicts.WithLabelValues(document).Inc()
}

// WriteTextfile atomically writes the registry to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
