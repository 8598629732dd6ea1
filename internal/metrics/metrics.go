// Package metrics collects per-run counters for treetool and writes them
// in the Prometheus text exposition format, for node_exporter's textfile
// collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "phonetree"

// Record statuses.
const (
	StatusDone    = "done"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Run holds the metrics of a single tool invocation. Each Run owns its
// registry so tests and repeated invocations never collide.
type Run struct {
	tool     string
	start    time.Time
	registry *prometheus.Registry

	// Records counts processed archive records by status.
	Records *prometheus.CounterVec
	// Leaves reports tree sizes by stage (before, after).
	Leaves *prometheus.GaugeVec
	// Duration is the wall time of the run, set by Finish.
	Duration prometheus.Gauge
}

// NewRun registers the metrics for tool.
func NewRun(tool string) *Run {
	labels := prometheus.Labels{"tool": tool}
	r := &Run{
		tool:     tool,
		start:    time.Now(),
		registry: prometheus.NewRegistry(),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "records_total",
			Help:        "Archive records processed, by status.",
			ConstLabels: labels,
		}, []string{"status"}),
		Leaves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "leaves",
			Help:        "Number of tree leaves, by stage.",
			ConstLabels: labels,
		}, []string{"stage"}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_duration_seconds",
			Help:        "Wall time of the last run.",
			ConstLabels: labels,
		}),
	}
	r.registry.MustRegister(r.Records, r.Leaves, r.Duration)
	return r
}

// Tool returns the tool name the run was created for.
func (r *Run) Tool() string { return r.tool }

// Done, Skipped and Failed count one record each.
func (r *Run) Done()    { r.Records.WithLabelValues(StatusDone).Inc() }
func (r *Run) Skipped() { r.Records.WithLabelValues(StatusSkipped).Inc() }
func (r *Run) Failed()  { r.Records.WithLabelValues(StatusFailed).Inc() }

// Registry exposes the underlying registry.
func (r *Run) Registry() *prometheus.Registry { return r.registry }

// Finish stamps the run duration and, when path is non-empty, writes the
// registry to path atomically.
func (r *Run) Finish(path string) error {
	r.Duration.Set(time.Since(r.start).Seconds())
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
