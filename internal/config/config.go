// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	TTS           TTSConfig
	LLM           LLMConfig
	Kafka         KafkaConfig
	Store         StoreConfig
	Session       SessionConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds service identity and listener settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
}

// STTConfig holds speech-to-text settings.
type STTConfig struct {
	Provider     string // "google" or "mock"
	LanguageCode string
	SampleRateHz int
	Timeout      time.Duration
}

// TTSConfig holds text-to-speech settings.
type TTSConfig struct {
	Provider        string // "elevenlabs" or "mock"
	APIKey          string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	Timeout         time.Duration
}

// LLMConfig holds language model settings.
type LLMConfig struct {
	APIBase           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
	Burst             int
	MaxRetries        int
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicTurn    string
	TopicSession string
	Principal    string
}

// StoreConfig holds datastore settings.
type StoreConfig struct {
	Path string
}

// SessionConfig holds interview session limits.
type SessionConfig struct {
	MaxTurns        int
	MaxDuration     time.Duration
	FinalizeRetries int
	FinalizeBackoff time.Duration
	ScoringTimeout  time.Duration
	GenerationModel string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
	HTTPAddr  string
}

// Load reads configuration from environment variables, applying defaults for
// anything unset or unparsable.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-ai-interview")

	return &Config{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		STT: STTConfig{
			Provider:     envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode: envOrDefault("STT_LANGUAGE_CODE", "ar-JO"),
			SampleRateHz: envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			Timeout:      envOrDefaultDuration("STT_TIMEOUT", 10*time.Second),
		},
		TTS: TTSConfig{
			Provider:        envOrDefault("TTS_PROVIDER", "mock"),
			APIKey:          os.Getenv("TTS_API_KEY"),
			VoiceID:         envOrDefault("TTS_VOICE_ID", "pNInz6obpgDQGcFmaJgB"),
			ModelID:         envOrDefault("TTS_MODEL_ID", "eleven_multilingual_v2"),
			Stability:       envOrDefaultFloat("TTS_STABILITY", 0.5),
			SimilarityBoost: envOrDefaultFloat("TTS_SIMILARITY_BOOST", 0.75),
			Timeout:         envOrDefaultDuration("TTS_TIMEOUT", 15*time.Second),
		},
		LLM: LLMConfig{
			APIBase:           envOrDefault("LLM_API_BASE", "https://api.openai.com/v1"),
			APIKey:            os.Getenv("LLM_API_KEY"),
			Model:             envOrDefault("LLM_MODEL", "gpt-4o-mini"),
			Timeout:           envOrDefaultDuration("LLM_TIMEOUT", 30*time.Second),
			RequestsPerMinute: envOrDefaultInt("LLM_REQUESTS_PER_MINUTE", 60),
			Burst:             envOrDefaultInt("LLM_BURST", 5),
			MaxRetries:        envOrDefaultInt("LLM_MAX_RETRIES", 2),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envList("KAFKA_BROKERS"),
			TopicTurn:    envOrDefault("KAFKA_TOPIC_TURN", "interview.turns"),
			TopicSession: envOrDefault("KAFKA_TOPIC_SESSION", "interview.sessions"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Store: StoreConfig{
			Path: envOrDefault("STORE_PATH", "interviews.db"),
		},
		Session: SessionConfig{
			MaxTurns:        envOrDefaultInt("SESSION_MAX_TURNS", 40),
			MaxDuration:     envOrDefaultDuration("SESSION_MAX_DURATION", 30*time.Minute),
			FinalizeRetries: envOrDefaultInt("SESSION_FINALIZE_RETRIES", 3),
			FinalizeBackoff: envOrDefaultDuration("SESSION_FINALIZE_BACKOFF", 500*time.Millisecond),
			ScoringTimeout:  envOrDefaultDuration("SESSION_SCORING_TIMEOUT", 60*time.Second),
			GenerationModel: envOrDefault("SESSION_GENERATION_MODEL", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
			HTTPAddr:  envOrDefault("OBSERVABILITY_HTTP_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
