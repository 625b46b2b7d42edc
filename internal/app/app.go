// Package app wires the service's components together and owns their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"ai-interview-service/internal/api"
	"ai-interview-service/internal/config"
	"ai-interview-service/internal/events"
	"ai-interview-service/internal/llm"
	"ai-interview-service/internal/observability"
	"ai-interview-service/internal/pipeline"
	"ai-interview-service/internal/schema"
	"ai-interview-service/internal/scoring"
	"ai-interview-service/internal/service/stt"
	sttgoogle "ai-interview-service/internal/service/stt/google"
	sttmock "ai-interview-service/internal/service/stt/mock"
	"ai-interview-service/internal/service/tts"
	"ai-interview-service/internal/service/tts/elevenlabs"
	ttsmock "ai-interview-service/internal/service/tts/mock"
	"ai-interview-service/internal/session"
	"ai-interview-service/internal/stage"
	"ai-interview-service/internal/store"
)

// Application holds the wired service components.
type Application struct {
	Cfg          *config.Config
	Store        *store.Store
	Publisher    *events.Publisher
	Orchestrator *session.Orchestrator
	Router       http.Handler

	stt     stt.Adapter
	tts     tts.Synthesizer
	httpSrv *http.Server
	obsSrv  *observability.Server
	ready   bool
}

// New constructs and wires the application from configuration.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	a := &Application{Cfg: cfg}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st

	a.Publisher = events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicTurn:    cfg.Kafka.TopicTurn,
		TopicSession: cfg.Kafka.TopicSession,
		Principal:    cfg.Kafka.Principal,
	})

	if a.stt, err = newSTT(ctx, cfg); err != nil {
		return nil, fmt.Errorf("init stt: %w", err)
	}
	if a.tts, err = newTTS(cfg); err != nil {
		return nil, fmt.Errorf("init tts: %w", err)
	}

	validator, err := schema.New()
	if err != nil {
		return nil, fmt.Errorf("compile schemas: %w", err)
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("init completion provider: %w", err)
	}

	scorer := scoring.New(provider, validator, cfg.LLM.Model, cfg.Session.ScoringTimeout)
	p := pipeline.New(provider, stage.NewManager(), cfg.Session.GenerationModel)

	a.Orchestrator = session.New(st, p, a.stt, a.tts, a.Publisher, scorer, validator, session.Config{
		LanguageCode:    cfg.STT.LanguageCode,
		STTTimeout:      cfg.STT.Timeout,
		MaxTurns:        cfg.Session.MaxTurns,
		MaxDuration:     cfg.Session.MaxDuration,
		FinalizeRetries: cfg.Session.FinalizeRetries,
		FinalizeBackoff: cfg.Session.FinalizeBackoff,
		ScoringTimeout:  cfg.Session.ScoringTimeout,
	})

	a.Router = api.NewRouter(a.Orchestrator)
	a.httpSrv = &http.Server{
		Addr:        ":" + cfg.Service.HTTPPort,
		Handler:     a.Router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	a.obsSrv = observability.NewServer(cfg.Observability.HTTPAddr, func() bool { return a.ready })

	log.Info().
		Str("sttProvider", cfg.STT.Provider).
		Str("ttsProvider", cfg.TTS.Provider).
		Str("model", cfg.LLM.Model).
		Bool("kafkaEnabled", cfg.Kafka.Enabled).
		Msg("AI interview service application created")

	return a, nil
}

// Start begins serving traffic. Blocks until the HTTP server stops.
func (a *Application) Start() error {
	a.obsSrv.Start()
	a.ready = true

	log.Info().Str("addr", a.httpSrv.Addr).Msg("AI interview service started")
	if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting sessions and releases resources.
func (a *Application) Shutdown(ctx context.Context) {
	a.ready = false
	log.Info().Msg("AI interview service shutting down")

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := a.obsSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown error")
	}
	if err := a.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Publisher close error")
	}
	if err := a.stt.Close(); err != nil {
		log.Error().Err(err).Msg("STT adapter close error")
	}
	if err := a.tts.Close(); err != nil {
		log.Error().Err(err).Msg("TTS adapter close error")
	}
	if err := a.Store.Close(); err != nil {
		log.Error().Err(err).Msg("Store close error")
	}
}

func newSTT(ctx context.Context, cfg *config.Config) (stt.Adapter, error) {
	switch cfg.STT.Provider {
	case "google":
		return sttgoogle.New(ctx, cfg.STT.SampleRateHz)
	case "mock":
		return sttmock.New(), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STT.Provider)
	}
}

func newTTS(cfg *config.Config) (tts.Synthesizer, error) {
	switch cfg.TTS.Provider {
	case "elevenlabs":
		return elevenlabs.New(elevenlabs.Config{
			APIKey:          cfg.TTS.APIKey,
			VoiceID:         cfg.TTS.VoiceID,
			ModelID:         cfg.TTS.ModelID,
			Stability:       cfg.TTS.Stability,
			SimilarityBoost: cfg.TTS.SimilarityBoost,
			Timeout:         cfg.TTS.Timeout,
		})
	case "mock":
		return ttsmock.New(), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", cfg.TTS.Provider)
	}
}

// newProvider builds the completion provider, rate-limited per configuration.
// Without an API key the mock provider is used, keeping local development and
// tests free of external calls.
func newProvider(cfg *config.Config) (llm.Provider, error) {
	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("No completion API key configured, using mock provider")
		return llm.NewMockProvider(nil, nil), nil
	}

	base := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIBase: cfg.LLM.APIBase,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	return llm.NewRateLimitedProvider(base, llm.RateLimiterConfig{
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Burst:             cfg.LLM.Burst,
		MaxRetries:        cfg.LLM.MaxRetries,
	})
}
