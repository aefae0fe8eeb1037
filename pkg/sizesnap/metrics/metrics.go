// Package metrics exports chunk sizes in the Prometheus text format for
// node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/output"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gauges of one run. Each run uses its own registry.
type Metrics struct {
	registry *prometheus.Registry

	chunkBytes       *prometheus.GaugeVec
	violations       *prometheus.GaugeVec
	failures         prometheus.Gauge
	runDuration      prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
}

// New creates and registers the gauges.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		chunkBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sizesnap_chunk_bytes",
				Help: "Size of a chunk facet in bytes",
			},
			[]string{"chunk", "facet"},
		),
		violations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sizesnap_threshold_violations",
				Help: "Number of facets of a chunk that exceeded the snapshot threshold",
			},
			[]string{"chunk"},
		),
		failures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sizesnap_failed_chunks",
			Help: "Number of chunks that failed measurement or matching",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sizesnap_run_duration_seconds",
			Help: "Wall time of the measurement run",
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sizesnap_last_run_timestamp_seconds",
			Help: "Unix time the run finished",
		}),
	}
}

// Record sets the gauges from a run result. Facet labels use the dotted
// field paths of the size record.
func (m *Metrics) Record(r *output.Result, finished time.Time) {
	for _, c := range r.Chunks {
		if c.Record != nil {
			for _, f := range c.Record.Fields() {
				m.chunkBytes.WithLabelValues(c.Name, f.Path).Set(float64(f.Value))
			}
		}
		m.violations.WithLabelValues(c.Name).Set(float64(len(c.Violations)))
	}
	m.failures.Set(float64(r.Failures))
	m.runDuration.Set(r.Duration.Seconds())
	m.lastRunTimestamp.Set(float64(finished.Unix()))
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
