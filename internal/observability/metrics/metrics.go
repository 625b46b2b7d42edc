// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_interview"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsSuccess prometheus.Counter
	SessionsFailed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// Turn metrics
	TurnsTotal   prometheus.Counter
	TurnsByStage *prometheus.CounterVec

	// Fact verification metrics
	HallucinationsCorrected *prometheus.CounterVec
	IntegrityFailures       prometheus.Counter

	// Persona metrics
	PersonaViolations  prometheus.Counter
	PersonaFallbacks   prometheus.Counter
	DialectWarnings    prometheus.Counter
	CandidateRedirects prometheus.Counter

	// Completion metrics
	CompletionLatency *prometheus.HistogramVec
	CompletionErrors  *prometheus.CounterVec
	CompletionRetries prometheus.Counter

	// STT metrics
	STTLatency *prometheus.HistogramVec
	STTErrors  *prometheus.CounterVec

	// TTS metrics
	TTSLatency *prometheus.HistogramVec
	TTSErrors  *prometheus.CounterVec

	// Event publish metrics
	EventPublishTotal   *prometheus.CounterVec
	EventPublishErrors  *prometheus.CounterVec
	EventPublishLatency *prometheus.HistogramVec

	// Scoring metrics
	ScoringTotal    prometheus.Counter
	ScoringFailures prometheus.Counter

	// Finalization metrics
	FinalizeRetries prometheus.Counter
	FinalizeDropped prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of interview sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active interview sessions",
		}),
		SessionsSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_success_total",
			Help:      "Total number of sessions finalized as completed",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions finalized as failed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of interview sessions in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		}),

		// Turn metrics
		TurnsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of completed interview turns",
		}),
		TurnsByStage: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_by_stage_total",
			Help:      "Completed turns per interview stage",
		}, []string{"stage"}),

		// Fact verification metrics
		HallucinationsCorrected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hallucinations_corrected_total",
			Help:      "Generated utterances corrected against the fact contract",
		}, []string{"area"}),
		IntegrityFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_integrity_failures_total",
			Help:      "Fact contract digest verifications that failed",
		}),

		// Persona metrics
		PersonaViolations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persona_violations_total",
			Help:      "Generated utterances rejected for language violations",
		}),
		PersonaFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persona_fallbacks_total",
			Help:      "Turns that fell back to the fixed apology utterance",
		}),
		DialectWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialect_warnings_total",
			Help:      "Utterances flagged as weak dialect without rejection",
		}),
		CandidateRedirects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidate_redirects_total",
			Help:      "Candidate inputs that triggered an Arabic redirect note",
		}),

		// Completion metrics
		CompletionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_seconds",
			Help:      "Language model completion latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider", "purpose"}),
		CompletionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_errors_total",
			Help:      "Total number of completion errors",
		}, []string{"provider", "purpose"}),
		CompletionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_retries_total",
			Help:      "Total number of completion retries",
		}),

		// STT metrics
		STTLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech-to-text processing latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"provider"}),
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),

		// TTS metrics
		TTSLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tts_latency_seconds",
			Help:      "Text-to-speech synthesis latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),
		TTSErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_errors_total",
			Help:      "Total number of TTS errors",
		}, []string{"provider", "error_type"}),

		// Event publish metrics
		EventPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_total",
			Help:      "Total number of interview events published",
		}, []string{"topic", "event_type"}),
		EventPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Total number of event publish errors",
		}, []string{"topic", "event_type"}),
		EventPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_latency_seconds",
			Help:      "Event publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Scoring metrics
		ScoringTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_total",
			Help:      "Total number of credibility scoring runs",
		}),
		ScoringFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_failures_total",
			Help:      "Scoring runs that degraded to the neutral default",
		}),

		// Finalization metrics
		FinalizeRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_retries_total",
			Help:      "Total number of interview persistence retries",
		}),
		FinalizeDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_dropped_total",
			Help:      "Interview records dropped after exhausting persistence retries",
		}),
	}
}

// RecordSessionStart records a new interview session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(success bool, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if success {
		m.SessionsSuccess.Inc()
	} else {
		m.SessionsFailed.Inc()
	}
}

// RecordTurn records a completed turn in a given stage.
func (m *Metrics) RecordTurn(stage string) {
	m.TurnsTotal.Inc()
	m.TurnsByStage.WithLabelValues(stage).Inc()
}

// RecordHallucinationCorrected records an in-flight fact correction.
func (m *Metrics) RecordHallucinationCorrected(area string) {
	m.HallucinationsCorrected.WithLabelValues(area).Inc()
}

// RecordIntegrityFailure records a failed contract digest verification.
func (m *Metrics) RecordIntegrityFailure() {
	m.IntegrityFailures.Inc()
}

// RecordPersonaViolation records a rejected utterance.
func (m *Metrics) RecordPersonaViolation() {
	m.PersonaViolations.Inc()
}

// RecordPersonaFallback records a turn that used the fixed apology.
func (m *Metrics) RecordPersonaFallback() {
	m.PersonaFallbacks.Inc()
}

// RecordDialectWarning records a weak-dialect soft warning.
func (m *Metrics) RecordDialectWarning() {
	m.DialectWarnings.Inc()
}

// RecordCandidateRedirect records an Arabic redirect prompted by candidate input.
func (m *Metrics) RecordCandidateRedirect() {
	m.CandidateRedirects.Inc()
}

// RecordCompletion records a completion attempt.
func (m *Metrics) RecordCompletion(provider, purpose string, err error, latencySeconds float64) {
	m.CompletionLatency.WithLabelValues(provider, purpose).Observe(latencySeconds)
	if err != nil {
		m.CompletionErrors.WithLabelValues(provider, purpose).Inc()
	}
}

// RecordCompletionRetry records a completion retry.
func (m *Metrics) RecordCompletionRetry() {
	m.CompletionRetries.Inc()
}

// RecordSTT records a transcription attempt.
func (m *Metrics) RecordSTT(provider string, err error, latencySeconds float64) {
	m.STTLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.STTErrors.WithLabelValues(provider, "transcribe").Inc()
	}
}

// RecordTTS records a synthesis attempt.
func (m *Metrics) RecordTTS(provider string, err error, latencySeconds float64) {
	m.TTSLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.TTSErrors.WithLabelValues(provider, "synthesize").Inc()
	}
}

// RecordEventPublish records an event publish attempt.
func (m *Metrics) RecordEventPublish(topic, eventType string, err error, latencySeconds float64) {
	m.EventPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.EventPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.EventPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordScoring records a credibility scoring run.
func (m *Metrics) RecordScoring(degraded bool) {
	m.ScoringTotal.Inc()
	if degraded {
		m.ScoringFailures.Inc()
	}
}

// RecordFinalizeRetry records a persistence retry during finalization.
func (m *Metrics) RecordFinalizeRetry() {
	m.FinalizeRetries.Inc()
}

// RecordFinalizeDropped records a record dropped after exhausting retries.
func (m *Metrics) RecordFinalizeDropped() {
	m.FinalizeDropped.Inc()
}
