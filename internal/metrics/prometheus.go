// Package metrics экспортирует метрики сервиса в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rflab_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rflab_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// PulsesReceived принятые импульсы по источнику (http, mqtt)
	PulsesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rflab_pulses_received_total",
			Help: "Total number of pulses accepted into sessions",
		},
		[]string{"source"},
	)

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rflab_frames_received_total",
			Help: "Total number of frames accepted into sessions",
		},
		[]string{"source"},
	)

	// SamplesDropped отброшенные при переполнении буфера сессии
	SamplesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rflab_samples_dropped_total",
			Help: "Total number of pulses or frames dropped by full session buffers",
		},
		[]string{"kind"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rflab_active_sessions",
			Help: "Number of open capture sessions",
		},
	)

	AnalysisRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rflab_analysis_runs_total",
			Help: "Total number of completed session analyses",
		},
	)

	// AnalysisRejected задания, не поместившиеся в очередь
	AnalysisRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rflab_analysis_rejected_total",
			Help: "Total number of analysis jobs rejected by a full queue",
		},
	)

	AnalysisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rflab_analysis_latency_seconds",
			Help:    "Session analysis latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	KMeansIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rflab_kmeans_iterations",
			Help:    "Iterations needed by k-means per analysis",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	InferenceConfidence = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rflab_inference_confidence",
			Help: "Overall confidence of the last protocol hypothesis",
		},
	)

	VulnerabilityScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rflab_vulnerability_score",
			Help: "Vulnerability score of the last threat assessment",
		},
	)

	// RiskLevels оценки по уровню риска
	RiskLevels = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rflab_risk_assessments_total",
			Help: "Threat assessments by risk level",
		},
		[]string{"level"},
	)

	FingerprintMatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rflab_fingerprint_matches_total",
			Help: "Total number of fingerprints matched to a known device",
		},
	)

	DriftAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rflab_fingerprint_drift_alerts_total",
			Help: "Total number of temporal drift alerts",
		},
	)

	RSSIAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rflab_rssi_anomalies_total",
			Help: "Total number of frames with anomalous signal level",
		},
	)

	KnownDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rflab_known_devices",
			Help: "Number of devices in the fingerprint database",
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rflab_cache_hits_total",
			Help: "Total number of report cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rflab_cache_misses_total",
			Help: "Total number of report cache misses",
		},
	)

	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rflab_active_goroutines",
			Help: "Number of active goroutines",
		},
	)
)

// AnalysisOutcome итоги одного анализа сессии
type AnalysisOutcome struct {
	Seconds            float64
	KMeansIterations   int
	Confidence         uint8
	VulnerabilityScore uint16
	RiskLevel          string
	Matched            bool
	Drift              bool
}

// ObserveAnalysis обновляет метрики по итогам анализа
func ObserveAnalysis(o AnalysisOutcome) {
	AnalysisRuns.Inc()
	AnalysisLatency.Observe(o.Seconds)
	KMeansIterations.Observe(float64(o.KMeansIterations))
	InferenceConfidence.Set(float64(o.Confidence))
	VulnerabilityScore.Set(float64(o.VulnerabilityScore))
	RiskLevels.WithLabelValues(o.RiskLevel).Inc()
	if o.Matched {
		FingerprintMatches.Inc()
	}
	if o.Drift {
		DriftAlerts.Inc()
	}
}
