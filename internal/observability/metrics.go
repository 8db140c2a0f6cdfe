package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the Prometheus series the replay engine exposes:
// replay throughput/latency, tool and geocoder call outcomes, and LLM
// call latency and token accounting.
type Metrics struct {
	// ReplayCounter counts replay_request/replay_llm_request outcomes.
	// Labels: kind (attribution|llm), status (success|error)
	ReplayCounter *prometheus.CounterVec

	// ReplayDuration measures end-to-end replay latency in seconds.
	// Labels: kind
	ReplayDuration *prometheus.HistogramVec

	// LLMRequestDuration measures the replay model call's latency.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed tracks tokens consumed by a replay model call.
	// Labels: provider, model, type (input|output)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts ToolRegistry dispatches.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures ToolRegistry HTTP round trips.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// GeocoderLookupCounter counts Geocoder provider attempts.
	// Labels: provider (configured|open-meteo|nominatim), status
	GeocoderLookupCounter *prometheus.CounterVec

	// HubBroadcastCounter counts Hub.Broadcast deliveries.
	// Labels: event
	HubBroadcastCounter *prometheus.CounterVec

	// ActiveWatchers is a gauge of live trace-room subscribers.
	ActiveWatchers prometheus.Gauge
}

// NewMetrics registers and returns the replay engine's metric set against
// the default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		ReplayCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axon_replay_requests_total",
				Help: "Total number of replay requests by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		ReplayDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "axon_replay_duration_seconds",
				Help:    "End-to-end replay request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "axon_llm_request_duration_seconds",
				Help:    "Duration of replay LLM calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axon_llm_tokens_total",
				Help: "Total tokens consumed by replay LLM calls",
			},
			[]string{"provider", "model", "type"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axon_tool_executions_total",
				Help: "Total ToolRegistry dispatches by tool name and outcome",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "axon_tool_execution_duration_seconds",
				Help:    "Duration of ToolRegistry HTTP round trips in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),
		GeocoderLookupCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axon_geocoder_lookups_total",
				Help: "Total geocoder provider attempts by provider and outcome",
			},
			[]string{"provider", "status"},
		),
		HubBroadcastCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axon_hub_broadcasts_total",
				Help: "Total Hub.Broadcast deliveries by event name",
			},
			[]string{"event"},
		),
		ActiveWatchers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "axon_hub_active_watchers",
				Help: "Current number of live trace-room subscribers",
			},
		),
	}
}
