package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// StageDuration is a histogram that records how long each pipeline stage takes.
	// Labels: pipeline (preflight, deploy), stage.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "releasegate",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stage execution in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"pipeline", "stage"},
	)

	// StageResults counts stage outcomes.
	// Labels: pipeline, stage, result (passed, failed), kind (failure kind, empty on success).
	StageResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "releasegate",
			Name:      "stage_results_total",
			Help:      "Pipeline stage outcomes by result and failure kind.",
		},
		[]string{"pipeline", "stage", "result", "kind"},
	)

	// PipelineSucceeded is a gauge that reports whether the last run of a pipeline passed.
	// Labels: pipeline.
	PipelineSucceeded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "releasegate",
			Name:      "pipeline_succeeded",
			Help:      "Whether the last pipeline run completed every stage (1) or halted (0).",
		},
		[]string{"pipeline"},
	)

	// MissingResources is a gauge that reports how many resources of a kind were missing
	// in the last preflight run.
	// Labels: kind (secret, custom-resource-type).
	MissingResources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "releasegate",
			Name:      "missing_resources",
			Help:      "Number of required resources found missing by the last preflight run.",
		},
		[]string{"kind"},
	)

	// ExecuteRequests counts requests served by the agent's execute endpoint.
	// Labels: code (HTTP status code).
	ExecuteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent",
			Name:      "execute_requests_total",
			Help:      "Execute requests served, by HTTP status code.",
		},
		[]string{"code"},
	)

	// ExecuteLatency is a histogram of execute request latency.
	ExecuteLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "agent",
			Name:      "execute_duration_seconds",
			Help:      "Latency of execute requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	metrics.Registry.MustRegister(StageDuration, StageResults, PipelineSucceeded, MissingResources, ExecuteRequests, ExecuteLatency)
}

// Push sends the collected metrics to a Prometheus Pushgateway. Each pipeline
// pushes under its own job so preflight and deploy runs do not replace each other.
func Push(ctx context.Context, url, pipeline string) error {
	err := push.New(url, "releasegate_"+pipeline).
		Gatherer(metrics.Registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
