// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_ordering"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsOpened   prometheus.Counter
	SessionsActive   prometheus.Gauge
	StateTransitions *prometheus.CounterVec

	// Capture metrics
	ListenStarts      prometheus.Counter
	CaptureErrors     *prometheus.CounterVec
	CaptureLimitHits  *prometheus.CounterVec
	UtterancesDropped *prometheus.CounterVec

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	TranscriptsQueued  prometheus.Counter

	// Resolution metrics
	Resolutions         *prometheus.CounterVec
	IntentsPerUtterance prometheus.Histogram
	AcousticConfidence  prometheus.Histogram

	// Cart metrics
	CartCommits    *prometheus.CounterVec
	CartUnitsAdded *prometheus.CounterVec

	// Feedback metrics
	SpeechRequests    prometheus.Counter
	SpeechInterrupted prometheus.Counter
	SpeechFailures    prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// RPC metrics
	RPCsTotal   *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Total number of voice ordering sessions opened",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently open voice ordering sessions",
		}),
		StateTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Ordering session state transitions",
		}, []string{"from", "to"}),

		ListenStarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listen_starts_total",
			Help:      "Total number of capture sessions started",
		}),
		CaptureErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Capability errors from the transcription provider",
		}, []string{"kind", "phase"}),
		CaptureLimitHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_limit_exceeded_total",
			Help:      "Total number of times utterance capture limits were exceeded",
		}, []string{"limit_type"}),
		UtterancesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_dropped_total",
			Help:      "Utterances abandoned before being committed",
		}, []string{"reason"}),

		TranscriptsPartial: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of interim transcripts received",
		}),
		TranscriptsFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcripts received",
		}),
		TranscriptsQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_queued_total",
			Help:      "Final transcripts buffered while another was being processed",
		}),

		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Transcript resolutions by outcome",
		}, []string{"outcome"}),
		IntentsPerUtterance: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "intents_per_utterance",
			Help:      "Number of catalog items recognized per final transcript",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
		}),
		AcousticConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "acoustic_confidence",
			Help:      "Acoustic confidence of final transcripts",
			Buckets:   []float64{0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		}),

		CartCommits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_commits_total",
			Help:      "Utterance commits to the cart by result",
		}, []string{"result"}),
		CartUnitsAdded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_units_added_total",
			Help:      "Units added to the cart per catalog item",
		}, []string{"item"}),

		SpeechRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_requests_total",
			Help:      "Spoken feedback requests",
		}),
		SpeechInterrupted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_interrupted_total",
			Help:      "Spoken feedback cancelled by a newer prompt or session stop",
		}),
		SpeechFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_failures_total",
			Help:      "Spoken feedback that failed in the synthesis provider",
		}),

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

		RPCsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpcs_total",
			Help:      "gRPC calls handled by method and status code",
		}, []string{"method", "code"}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "gRPC call duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method"}),
	}
}

// RecordSessionOpened records a new ordering session.
func (m *Metrics) RecordSessionOpened() {
	m.SessionsOpened.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionClosed records an ordering session being destroyed.
func (m *Metrics) RecordSessionClosed() {
	m.SessionsActive.Dec()
}

// RecordTransition records a state machine transition.
func (m *Metrics) RecordTransition(from, to string) {
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordListenStart records a capture session starting.
func (m *Metrics) RecordListenStart() {
	m.ListenStarts.Inc()
}

// RecordCaptureError records a capability error.
func (m *Metrics) RecordCaptureError(kind, phase string) {
	m.CaptureErrors.WithLabelValues(kind, phase).Inc()
}

// RecordLimitExceeded records when an utterance capture limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.CaptureLimitHits.WithLabelValues(limitType).Inc()
}

// RecordUtteranceDropped records an utterance being abandoned.
func (m *Metrics) RecordUtteranceDropped(reason string) {
	m.UtterancesDropped.WithLabelValues(reason).Inc()
}

// RecordPartialTranscript records an interim transcript.
func (m *Metrics) RecordPartialTranscript() {
	m.TranscriptsPartial.Inc()
}

// RecordFinalTranscript records a final transcript and its confidence.
func (m *Metrics) RecordFinalTranscript(confidence float64) {
	m.TranscriptsFinal.Inc()
	m.AcousticConfidence.Observe(confidence)
}

// RecordQueuedTranscript records a final buffered behind an active resolution.
func (m *Metrics) RecordQueuedTranscript() {
	m.TranscriptsQueued.Inc()
}

// RecordResolution records a resolver outcome.
func (m *Metrics) RecordResolution(intents int) {
	outcome := "matched"
	if intents == 0 {
		outcome = "no_match"
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.IntentsPerUtterance.Observe(float64(intents))
}

// RecordCartCommit records a commit attempt to the cart.
func (m *Metrics) RecordCartCommit(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CartCommits.WithLabelValues(result).Inc()
}

// RecordUnitsAdded records units added for an item.
func (m *Metrics) RecordUnitsAdded(itemID string, count int) {
	m.CartUnitsAdded.WithLabelValues(itemID).Add(float64(count))
}

// RecordSpeech records a spoken feedback request.
func (m *Metrics) RecordSpeech() {
	m.SpeechRequests.Inc()
}

// RecordSpeechInterrupted records playback cancelled before completion.
func (m *Metrics) RecordSpeechInterrupted() {
	m.SpeechInterrupted.Inc()
}

// RecordSpeechFailure records a swallowed synthesis error.
func (m *Metrics) RecordSpeechFailure() {
	m.SpeechFailures.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRPC records a completed gRPC call.
func (m *Metrics) RecordRPC(method, code string, durationSeconds float64) {
	m.RPCsTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(durationSeconds)
}
