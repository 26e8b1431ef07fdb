// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_transcription"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal    prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsRejected prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Ingest metrics
	AudioBytesReceived  *prometheus.CounterVec
	AudioChunksReceived *prometheus.CounterVec
	IngestRejected      *prometheus.CounterVec
	BufferBytes         *prometheus.GaugeVec

	// Pass metrics
	PassTicks    *prometheus.CounterVec
	PassSkips    *prometheus.CounterVec
	PassErrors   *prometheus.CounterVec
	WindowBytes  *prometheus.HistogramVec
	Commits      *prometheus.CounterVec
	TrimmedBytes *prometheus.CounterVec

	// Inference metrics
	InferenceLatency  *prometheus.HistogramVec
	InferenceWait     *prometheus.HistogramVec
	InferenceInFlight prometheus.Gauge

	// Transcript metrics
	TranscriptsDraft   *prometheus.CounterVec
	TranscriptsFinal   *prometheus.CounterVec
	DraftsDeduplicated *prometheus.CounterVec
	EmitErrors         prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Admin RPC metrics
	AdminRPCTotal *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Session metrics
		SessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of WebSocket sessions started",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active sessions",
		}),
		SessionsRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_rejected_total",
			Help:      "Total number of connections refused by the session limit",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of sessions in seconds",
			Buckets:   []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 7200},
		}),

		// Ingest metrics
		AudioBytesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total PCM bytes appended to speaker buffers",
		}, []string{"speaker"}),
		AudioChunksReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total audio chunks appended to speaker buffers",
		}, []string{"speaker"}),
		IngestRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rejected_total",
			Help:      "Total inbound messages dropped",
		}, []string{"reason"}),
		BufferBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_bytes",
			Help:      "Bytes currently held in the speaker buffer after the last commit",
		}, []string{"speaker"}),

		// Pass metrics
		PassTicks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_ticks_total",
			Help:      "Total scheduler ticks",
		}, []string{"pass", "speaker"}),
		PassSkips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_skips_total",
			Help:      "Total scheduler ticks skipped without inference",
		}, []string{"pass", "speaker", "reason"}),
		PassErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_errors_total",
			Help:      "Total pass iterations that failed and backed off",
		}, []string{"pass", "speaker"}),
		WindowBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_bytes",
			Help:      "Size of audio windows submitted for inference",
			Buckets:   prometheus.ExponentialBuckets(8000, 2, 8),
		}, []string{"pass"}),
		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Total slow-pass windows committed",
		}, []string{"speaker"}),
		TrimmedBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trimmed_bytes_total",
			Help:      "Total bytes discarded from the front of speaker buffers",
		}, []string{"speaker"}),

		// Inference metrics
		InferenceLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_latency_seconds",
			Help:      "Engine call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"engine", "pass"}),
		InferenceWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_wait_seconds",
			Help:      "Time spent waiting for an inference worker",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"pass"}),
		InferenceInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inference_in_flight",
			Help:      "Number of engine calls currently holding a worker",
		}),

		// Transcript metrics
		TranscriptsDraft: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_draft_total",
			Help:      "Total draft transcripts emitted",
		}, []string{"speaker"}),
		TranscriptsFinal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total final transcripts emitted",
		}, []string{"speaker"}),
		DraftsDeduplicated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_deduplicated_total",
			Help:      "Total draft results suppressed as repeats",
		}, []string{"speaker"}),
		EmitErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emit_errors_total",
			Help:      "Total transcript events that failed to send",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		AdminRPCTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_rpc_total",
			Help:      "Total admin gRPC calls",
		}, []string{"method", "code"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionRejected records a connection refused at admission.
func (m *Metrics) RecordSessionRejected() {
	m.SessionsRejected.Inc()
}

// RecordAudioReceived records a chunk appended to a speaker buffer.
func (m *Metrics) RecordAudioReceived(speaker string, bytes int) {
	m.AudioBytesReceived.WithLabelValues(speaker).Add(float64(bytes))
	m.AudioChunksReceived.WithLabelValues(speaker).Inc()
}

// RecordIngestRejected records a dropped inbound message.
func (m *Metrics) RecordIngestRejected(reason string) {
	m.IngestRejected.WithLabelValues(reason).Inc()
}

// RecordTick records a scheduler tick.
func (m *Metrics) RecordTick(pass, speaker string) {
	m.PassTicks.WithLabelValues(pass, speaker).Inc()
}

// RecordSkip records a tick that did no inference.
func (m *Metrics) RecordSkip(pass, speaker, reason string) {
	m.PassSkips.WithLabelValues(pass, speaker, reason).Inc()
}

// RecordPassError records a failed pass iteration.
func (m *Metrics) RecordPassError(pass, speaker string) {
	m.PassErrors.WithLabelValues(pass, speaker).Inc()
}

// RecordWindow records the size of a window submitted for inference.
func (m *Metrics) RecordWindow(pass string, bytes int) {
	m.WindowBytes.WithLabelValues(pass).Observe(float64(bytes))
}

// RecordCommit records a slow-pass commit and the resulting buffer size.
func (m *Metrics) RecordCommit(speaker string, trimmed, bufferLen int) {
	m.Commits.WithLabelValues(speaker).Inc()
	m.TrimmedBytes.WithLabelValues(speaker).Add(float64(trimmed))
	m.BufferBytes.WithLabelValues(speaker).Set(float64(bufferLen))
}

// RecordInference records an engine call.
func (m *Metrics) RecordInference(engine, pass string, latencySeconds float64) {
	m.InferenceLatency.WithLabelValues(engine, pass).Observe(latencySeconds)
}

// RecordInferenceWait records time spent waiting for a worker.
func (m *Metrics) RecordInferenceWait(pass string, waitSeconds float64) {
	m.InferenceWait.WithLabelValues(pass).Observe(waitSeconds)
}

// RecordDraft records an emitted draft.
func (m *Metrics) RecordDraft(speaker string) {
	m.TranscriptsDraft.WithLabelValues(speaker).Inc()
}

// RecordFinal records an emitted final.
func (m *Metrics) RecordFinal(speaker string) {
	m.TranscriptsFinal.WithLabelValues(speaker).Inc()
}

// RecordDraftDeduplicated records a suppressed draft repeat.
func (m *Metrics) RecordDraftDeduplicated(speaker string) {
	m.DraftsDeduplicated.WithLabelValues(speaker).Inc()
}

// RecordEmitError records a failed outbound send.
func (m *Metrics) RecordEmitError() {
	m.EmitErrors.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordAdminRPC records an admin gRPC call.
func (m *Metrics) RecordAdminRPC(method, code string) {
	m.AdminRPCTotal.WithLabelValues(method, code).Inc()
}
