package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchsense_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pitchsense_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	AnalysisCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchsense_analysis_cycles_total",
			Help: "Analysis cycles by mode and result",
		},
		[]string{"mode", "result"},
	)

	FallbackAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchsense_fallback_attempts_total",
			Help: "Analyzer fallback strategy attempts",
		},
		[]string{"strategy"},
	)

	AnalyzerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pitchsense_analyzer_latency_seconds",
			Help: "Remote analyzer call latency in seconds",
		},
		[]string{"endpoint"},
	)

	StaleDiscards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pitchsense_stale_results_discarded_total",
			Help: "Analysis results discarded because a newer request superseded them",
		},
	)

	PressureGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pitchsense_pressure_index",
			Help: "Displayed pressure index per player",
		},
		[]string{"player"},
	)

	BaselineLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchsense_baseline_lookups_total",
			Help: "Baseline store lookups by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pitchsense_live_clients",
			Help: "Connected websocket live-feed clients",
		},
	)
)
