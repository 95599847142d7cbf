// Package metrics records rewrite statistics in a dedicated Prometheus
// registry and writes them out in the text exposition format, for batch
// runs picked up by a node exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/specialistvlad/opgraph/internal/rewrite"
)

// Recorder holds the rewrite metrics of one run.
type Recorder struct {
	registry *prometheus.Registry

	matchesTotal  *prometheus.CounterVec
	appliedTotal  *prometheus.CounterVec
	skippedTotal  *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	ruleDuration  *prometheus.HistogramVec
	graphNodes    *prometheus.GaugeVec
	graphVars     *prometheus.GaugeVec
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		matchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opgraph_rule_matches_total",
				Help: "Total number of subgraphs matched by a rule",
			},
			[]string{"rule"},
		),
		appliedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opgraph_rule_applied_total",
				Help: "Total number of subgraphs replaced by a rule",
			},
			[]string{"rule"},
		),
		skippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opgraph_rule_skipped_total",
				Help: "Total number of matches skipped because an earlier match removed their nodes",
			},
			[]string{"rule"},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opgraph_rule_failures_total",
				Help: "Total number of failed rule passes",
			},
			[]string{"rule"},
		),
		ruleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opgraph_rule_duration_seconds",
				Help:    "Duration of one rule pass in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"rule"},
		),
		graphNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "opgraph_graph_nodes",
				Help: "Number of nodes in the graph at a pipeline stage",
			},
			[]string{"stage"},
		),
		graphVars: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "opgraph_graph_variables",
				Help: "Number of variables in the graph at a pipeline stage",
			},
			[]string{"stage"},
		),
	}
	r.registry.MustRegister(
		r.matchesTotal,
		r.appliedTotal,
		r.skippedTotal,
		r.failuresTotal,
		r.ruleDuration,
		r.graphNodes,
		r.graphVars,
	)
	return r
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRule records the outcome of one rule pass.
func (r *Recorder) ObserveRule(rule string, res rewrite.Result, elapsed time.Duration, err error) {
	r.matchesTotal.WithLabelValues(rule).Add(float64(res.Matched))
	r.appliedTotal.WithLabelValues(rule).Add(float64(res.Applied))
	r.skippedTotal.WithLabelValues(rule).Add(float64(res.Skipped))
	if err != nil {
		r.failuresTotal.WithLabelValues(rule).Inc()
	}
	r.ruleDuration.WithLabelValues(rule).Observe(elapsed.Seconds())
}

// ObserveGraph records the graph size at a named stage such as "input" or
// "output".
func (r *Recorder) ObserveGraph(stage string, nodes, variables int) {
	r.graphNodes.WithLabelValues(stage).Set(float64(nodes))
	r.graphVars.WithLabelValues(stage).Set(float64(variables))
}

// WriteFile atomically writes all metrics to path in the text format.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
