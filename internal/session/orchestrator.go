// Package session runs live interview sessions: one bidirectional transport
// connection per candidate, driven turn by turn through the pipeline, then
// finalized, persisted, and scored.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-interview-service/internal/contract"
	"ai-interview-service/internal/models"
	"ai-interview-service/internal/observability/logging"
	"ai-interview-service/internal/observability/metrics"
	"ai-interview-service/internal/persona"
	"ai-interview-service/internal/pipeline"
	"ai-interview-service/internal/schema"
	"ai-interview-service/internal/service/stt"
	"ai-interview-service/internal/service/tts"
	"ai-interview-service/internal/stage"
)

// reprompt is spoken when the candidate's audio transcribes to nothing.
const reprompt = "ما سمعتك منيح، ممكن تعيد؟"

// Transport is one bidirectional client connection. Receive blocks until the
// next inbound message or a disconnect error.
type Transport interface {
	Receive() (*models.ClientMessage, error)
	Send(*models.ServerMessage) error
}

// Store is the datastore surface the orchestrator needs.
type Store interface {
	GetRegistration(ctx context.Context, candidateID string) (*models.RegistrationRecord, error)
	UpsertInterview(ctx context.Context, rec *models.InterviewRecord) error
	GetInterview(ctx context.Context, sessionID string) (*models.InterviewRecord, error)
}

// EventPublisher publishes turn and session lifecycle events.
type EventPublisher interface {
	PublishTurn(ctx context.Context, key string, event any) error
	PublishSession(ctx context.Context, key string, event any) error
}

// CredibilityScorer produces the post-hoc assessment. Advisory: it returns a
// neutral default on failure rather than an error.
type CredibilityScorer interface {
	Score(ctx context.Context, c *contract.FactContract, registration *models.RegistrationRecord,
		transcript []models.Turn, detected []models.Inconsistency) *models.CredibilityAssessment
}

// Config holds session limits and timeouts.
type Config struct {
	LanguageCode    string
	STTTimeout      time.Duration
	MaxTurns        int
	MaxDuration     time.Duration
	FinalizeRetries int
	FinalizeBackoff time.Duration
	ScoringTimeout  time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.LanguageCode == "" {
		out.LanguageCode = "ar-JO"
	}
	if out.STTTimeout == 0 {
		out.STTTimeout = 10 * time.Second
	}
	if out.MaxTurns == 0 {
		out.MaxTurns = 40
	}
	if out.MaxDuration == 0 {
		out.MaxDuration = 30 * time.Minute
	}
	if out.FinalizeRetries == 0 {
		out.FinalizeRetries = 3
	}
	if out.FinalizeBackoff == 0 {
		out.FinalizeBackoff = 500 * time.Millisecond
	}
	if out.ScoringTimeout == 0 {
		out.ScoringTimeout = 60 * time.Second
	}
	return out
}

// active is one in-flight session.
type active struct {
	candidateID string
	startedAt   time.Time
}

// Orchestrator owns the session map and drives each interview end to end.
type Orchestrator struct {
	store     Store
	loader    *contract.Loader
	pipeline  *pipeline.Pipeline
	stt       stt.Adapter
	tts       tts.Synthesizer
	publisher EventPublisher
	scorer    CredibilityScorer
	stages    *stage.Manager
	monitor   *persona.CandidateMonitor
	validator *schema.Validator
	cfg       Config
	metrics   *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*active
}

// New wires an Orchestrator. validator may be nil to skip outbound event
// validation.
func New(
	store Store,
	p *pipeline.Pipeline,
	sttAdapter stt.Adapter,
	synthesizer tts.Synthesizer,
	publisher EventPublisher,
	scorer CredibilityScorer,
	validator *schema.Validator,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		loader:    contract.NewLoader(store),
		pipeline:  p,
		stt:       sttAdapter,
		tts:       synthesizer,
		publisher: publisher,
		scorer:    scorer,
		stages:    stage.NewManager(),
		monitor:   persona.NewCandidateMonitor(),
		validator: validator,
		cfg:       cfg.withDefaults(),
		metrics:   metrics.DefaultMetrics,
		sessions:  make(map[string]*active),
	}
}

// ActiveSessions returns the number of in-flight sessions.
func (o *Orchestrator) ActiveSessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// Run drives one interview over the given transport until the candidate ends
// it, the closing stage completes, limits are hit, or the connection drops.
// The session is always finalized before Run returns.
func (o *Orchestrator) Run(ctx context.Context, transport Transport, candidateID string) error {
	sessionID := uuid.NewString()
	logger := logging.WithSession(sessionID, candidateID)

	c, err := o.loader.Load(ctx, candidateID, sessionID)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot start interview")
		o.sendError(transport, startFailureMessage(err))
		return err
	}

	st := pipeline.NewState(c)
	o.register(sessionID, candidateID, st.StartedAt)
	o.metrics.RecordSessionStart()
	defer o.deregister(sessionID)

	transport.Send(&models.ServerMessage{
		Type:    "status",
		Status:  "started",
		Message: "بلشنا المقابلة",
		Metadata: &models.TurnMetadata{
			SessionID: sessionID,
			Stage:     string(st.Stage),
		},
	})

	completed, runErr := o.converse(ctx, transport, st)

	status := models.StatusFailed
	if completed {
		status = models.StatusCompleted
	}
	o.finalize(ctx, c, st, status)

	return runErr
}

// converse runs the opening turn and the receive loop. It reports whether the
// interview reached a natural end.
func (o *Orchestrator) converse(ctx context.Context, transport Transport, st *pipeline.State) (bool, error) {
	logger := logging.WithSession(st.Contract.SessionID(), st.Contract.CandidateID())

	res, err := o.pipeline.Open(ctx, st)
	if err != nil {
		logger.Error().Err(err).Msg("Opening turn failed")
		o.sendError(transport, "صار خطأ تقني، رح نوقف المقابلة")
		return false, err
	}
	if err := o.speak(ctx, transport, st, res); err != nil {
		return false, err
	}

	deadline := st.StartedAt.Add(o.cfg.MaxDuration)

	for {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		msg, err := transport.Receive()
		if err != nil {
			logger.Info().Err(err).Msg("Client disconnected")
			return o.stages.MinSatisfied(stage.Closing, st.Turns), nil
		}

		switch msg.Type {
		case "end":
			logger.Info().Msg("Candidate ended the interview")
			return true, nil

		case "audio":
			input, err := o.transcribe(ctx, msg.Data)
			if err != nil {
				logger.Warn().Err(err).Msg("Transcription failed, asking candidate to repeat")
				o.say(ctx, transport, st, reprompt)
				continue
			}
			if input == "" {
				o.say(ctx, transport, st, reprompt)
				continue
			}

			// The redirect note rides on the input so the agent steers back
			// to Arabic itself; the spoken reply stays exactly what the
			// transcript records.
			if redirect, note := o.monitor.Check(input); redirect {
				o.metrics.RecordCandidateRedirect()
				input = input + "\n" + note
			}

			res, err := o.pipeline.ProcessTurn(ctx, st, input)
			if err != nil {
				// Integrity failures are fatal to the session.
				logger.Error().Err(err).Msg("Turn processing failed")
				o.sendError(transport, "صار خطأ تقني، رح نوقف المقابلة")
				return false, err
			}

			o.publishTurn(ctx, st, input, res)
			o.persistProgress(ctx, st, models.StatusInProgress)

			if err := o.speak(ctx, transport, st, res); err != nil {
				return o.stages.MinSatisfied(stage.Closing, st.Turns), err
			}

			if o.stages.IsTerminal(res.Stage) && o.stages.MinSatisfied(stage.Closing, st.Turns) {
				logger.Info().Msg("Closing stage complete, ending interview")
				return true, nil
			}
			if st.AgentTurns() >= o.cfg.MaxTurns {
				logger.Warn().Int("maxTurns", o.cfg.MaxTurns).Msg("Turn limit reached, ending interview")
				return true, nil
			}
			if time.Now().After(deadline) {
				logger.Warn().Dur("maxDuration", o.cfg.MaxDuration).Msg("Duration limit reached, ending interview")
				return true, nil
			}

		default:
			logger.Warn().Str("type", msg.Type).Msg("Ignoring unknown client message type")
		}
	}
}

// transcribe decodes the base64 clip and runs speech-to-text with a timeout.
func (o *Orchestrator) transcribe(ctx context.Context, data string) (string, error) {
	audio, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}

	tctx, cancel := context.WithTimeout(ctx, o.cfg.STTTimeout)
	defer cancel()

	start := time.Now()
	result, err := o.stt.Transcribe(tctx, audio, o.cfg.LanguageCode)
	o.metrics.RecordSTT(providerName(o.stt), err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// speak synthesizes the turn result and sends it with metadata.
func (o *Orchestrator) speak(ctx context.Context, transport Transport, st *pipeline.State, res *pipeline.Result) error {
	audio := o.synthesize(ctx, st, res.Utterance)
	return transport.Send(&models.ServerMessage{
		Type: "audio",
		Data: base64.StdEncoding.EncodeToString(audio),
		Metadata: &models.TurnMetadata{
			Text:               res.Utterance,
			Stage:              string(res.Stage),
			Turn:               res.Turn,
			InconsistencyCount: res.InconsistencyCount,
			SessionID:          st.Contract.SessionID(),
		},
	})
}

// say sends a fixed utterance outside the turn pipeline (re-prompts).
func (o *Orchestrator) say(ctx context.Context, transport Transport, st *pipeline.State, text string) {
	audio := o.synthesize(ctx, st, text)
	transport.Send(&models.ServerMessage{
		Type: "audio",
		Data: base64.StdEncoding.EncodeToString(audio),
		Metadata: &models.TurnMetadata{
			Text:      text,
			Stage:     string(st.Stage),
			SessionID: st.Contract.SessionID(),
		},
	})
}

// synthesize renders audio, degrading to empty audio on failure: the client
// still gets the text in the metadata.
func (o *Orchestrator) synthesize(ctx context.Context, st *pipeline.State, text string) []byte {
	start := time.Now()
	audio, err := o.tts.Synthesize(ctx, text)
	o.metrics.RecordTTS(providerName(o.tts), err, time.Since(start).Seconds())
	if err != nil {
		logging.WithSession(st.Contract.SessionID(), st.Contract.CandidateID()).
			Error().Err(err).Msg("Speech synthesis failed, sending text-only turn")
		return nil
	}
	return audio
}

func (o *Orchestrator) publishTurn(ctx context.Context, st *pipeline.State, input string, res *pipeline.Result) {
	event := models.TurnEvent{
		EventType:          "interview.turn.completed",
		SessionID:          st.Contract.SessionID(),
		CandidateID:        st.Contract.CandidateID(),
		Turn:               res.Turn,
		Stage:              string(res.Stage),
		CandidateText:      input,
		AgentText:          res.Utterance,
		InconsistencyCount: res.InconsistencyCount,
		Timestamp:          time.Now().UTC().UnixMilli(),
	}
	if o.validator != nil {
		if err := o.validator.ValidateTurnEvent(event); err != nil {
			logging.WithSession(event.SessionID, event.CandidateID).
				Error().Err(err).Msg("Turn event failed schema validation, not publishing")
			return
		}
	}
	if err := o.publisher.PublishTurn(ctx, event.SessionID, event); err != nil {
		logging.WithSession(event.SessionID, event.CandidateID).
			Error().Err(err).Msg("Failed to publish turn event")
	}
}

// persistProgress writes the in-progress record, best effort.
func (o *Orchestrator) persistProgress(ctx context.Context, st *pipeline.State, status models.InterviewStatus) {
	rec := o.record(st, status)
	if err := o.store.UpsertInterview(ctx, rec); err != nil {
		logging.WithSession(rec.SessionID, rec.CandidateID).
			Warn().Err(err).Msg("Failed to persist interview progress")
	}
}

// finalize persists the terminal record with retries, publishes the session
// event, and runs advisory scoring. Finalization uses a fresh context so a
// dropped connection cannot cancel persistence.
func (o *Orchestrator) finalize(ctx context.Context, c *contract.FactContract, st *pipeline.State, status models.InterviewStatus) {
	logger := logging.WithSession(c.SessionID(), c.CandidateID())

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*o.cfg.ScoringTimeout)
	defer cancel()

	rec := o.record(st, status)
	if !o.persistWithRetry(fctx, rec) {
		// State is discarded only after the retries are exhausted; the
		// transcript survives in the logs.
		logger.Error().Msg("Interview record dropped after exhausting persistence retries")
		o.metrics.RecordFinalizeDropped()
	}

	event := models.SessionEvent{
		EventType:       "interview.session.finalized",
		SessionID:       c.SessionID(),
		CandidateID:     c.CandidateID(),
		Status:          string(status),
		Turns:           st.AgentTurns(),
		Inconsistencies: len(st.Inconsistencies),
		DurationSeconds: rec.DurationSeconds,
		Timestamp:       time.Now().UTC().UnixMilli(),
	}

	// Scoring is advisory and never blocks finalization.
	if o.scorer != nil {
		registration, err := o.store.GetRegistration(fctx, c.CandidateID())
		if err != nil {
			logger.Warn().Err(err).Msg("Registration unavailable for scoring")
		}
		sctx, scancel := context.WithTimeout(fctx, o.cfg.ScoringTimeout)
		assessment := o.scorer.Score(sctx, c, registration, st.Turns, st.Inconsistencies)
		scancel()

		o.metrics.RecordScoring(assessment.Level == "غير محدد")
		event.CredibilityScore = assessment.Score

		rec.Assessment = assessment
		if err := o.store.UpsertInterview(fctx, rec); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist credibility assessment")
		}
	}

	if err := o.publisher.PublishSession(fctx, event.SessionID, event); err != nil {
		logger.Error().Err(err).Msg("Failed to publish session event")
	}

	o.metrics.RecordSessionEnd(status == models.StatusCompleted, rec.DurationSeconds)
	logger.Info().
		Str("status", string(status)).
		Int("turns", st.AgentTurns()).
		Int("inconsistencies", len(st.Inconsistencies)).
		Float64("durationSeconds", rec.DurationSeconds).
		Msg("Interview finalized")
}

func (o *Orchestrator) persistWithRetry(ctx context.Context, rec *models.InterviewRecord) bool {
	backoff := o.cfg.FinalizeBackoff
	for attempt := 0; attempt <= o.cfg.FinalizeRetries; attempt++ {
		if attempt > 0 {
			o.metrics.RecordFinalizeRetry()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return false
			}
			backoff *= 2
		}
		err := o.store.UpsertInterview(ctx, rec)
		if err == nil {
			return true
		}
		logging.WithSession(rec.SessionID, rec.CandidateID).
			Warn().Err(err).Int("attempt", attempt+1).Msg("Interview persistence failed")
	}
	return false
}

// Rescore re-runs credibility scoring over a persisted interview and stores
// the fresh assessment.
func (o *Orchestrator) Rescore(ctx context.Context, sessionID string) (*models.CredibilityAssessment, error) {
	rec, err := o.store.GetInterview(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	registration, err := o.store.GetRegistration(ctx, rec.CandidateID)
	if err != nil {
		return nil, err
	}
	c, err := contract.New(registration, sessionID)
	if err != nil {
		return nil, err
	}

	if o.scorer == nil {
		return nil, errors.New("scoring not configured")
	}

	sctx, cancel := context.WithTimeout(ctx, o.cfg.ScoringTimeout)
	defer cancel()
	assessment := o.scorer.Score(sctx, c, registration, rec.Transcript, rec.Inconsistencies)
	o.metrics.RecordScoring(assessment.Level == "غير محدد")

	rec.Assessment = assessment
	if err := o.store.UpsertInterview(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist assessment: %w", err)
	}
	return assessment, nil
}

func (o *Orchestrator) record(st *pipeline.State, status models.InterviewStatus) *models.InterviewRecord {
	return &models.InterviewRecord{
		SessionID:       st.Contract.SessionID(),
		CandidateID:     st.Contract.CandidateID(),
		Status:          status,
		StartedAt:       st.StartedAt,
		DurationSeconds: time.Since(st.StartedAt).Seconds(),
		Transcript:      st.Turns,
		Inconsistencies: st.Inconsistencies,
	}
}

func (o *Orchestrator) register(sessionID, candidateID string, startedAt time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[sessionID] = &active{candidateID: candidateID, startedAt: startedAt}
}

func (o *Orchestrator) deregister(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.sessions, sessionID)
}

func (o *Orchestrator) sendError(transport Transport, msg string) {
	transport.Send(&models.ServerMessage{Type: "error", Message: msg})
}

func startFailureMessage(err error) string {
	switch {
	case errors.Is(err, contract.ErrNotFound):
		return "ما لقينا طلب توظيف بهالرقم"
	case errors.Is(err, contract.ErrValidation):
		return "بيانات الطلب ناقصة، راجع طلب التوظيف"
	default:
		return "صار خطأ تقني، جرب كمان شوي"
	}
}

// providerName extracts a short label for metrics from an adapter value.
func providerName(v any) string {
	type named interface{ Name() string }
	if n, ok := v.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", v)
}
