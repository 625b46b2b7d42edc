package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear relevant env vars
	envVars := []string{
		"SERVICE_PRINCIPAL", "HTTP_PORT", "LOG_LEVEL",
		"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ",
		"TTS_PROVIDER", "TTS_VOICE_ID", "TTS_STABILITY",
		"LLM_MODEL", "LLM_TIMEOUT", "LLM_REQUESTS_PER_MINUTE",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
		"SESSION_MAX_TURNS", "SESSION_MAX_DURATION", "SESSION_FINALIZE_RETRIES",
		"STORE_PATH",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-ai-interview" {
		t.Errorf("expected default principal 'svc-ai-interview', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default port '8080', got %s", cfg.Service.HTTPPort)
	}

	// STT defaults
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "ar-JO" {
		t.Errorf("expected default language 'ar-JO', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}

	// TTS defaults
	if cfg.TTS.Provider != "mock" {
		t.Errorf("expected default TTS provider 'mock', got %s", cfg.TTS.Provider)
	}
	if cfg.TTS.ModelID != "eleven_multilingual_v2" {
		t.Errorf("expected default TTS model, got %s", cfg.TTS.ModelID)
	}
	if cfg.TTS.Stability != 0.5 {
		t.Errorf("expected default stability 0.5, got %v", cfg.TTS.Stability)
	}
	if cfg.TTS.SimilarityBoost != 0.75 {
		t.Errorf("expected default similarity boost 0.75, got %v", cfg.TTS.SimilarityBoost)
	}

	// LLM defaults
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected default model 'gpt-4o-mini', got %s", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("expected default LLM timeout 30s, got %v", cfg.LLM.Timeout)
	}

	// Session defaults
	if cfg.Session.MaxTurns != 40 {
		t.Errorf("expected default max turns 40, got %d", cfg.Session.MaxTurns)
	}
	if cfg.Session.MaxDuration != 30*time.Minute {
		t.Errorf("expected default max duration 30m, got %v", cfg.Session.MaxDuration)
	}
	if cfg.Session.FinalizeRetries != 3 {
		t.Errorf("expected default finalize retries 3, got %d", cfg.Session.FinalizeRetries)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.TopicTurn != "interview.turns" {
		t.Errorf("expected default turn topic 'interview.turns', got %s", cfg.Kafka.TopicTurn)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("STT_PROVIDER", "google")
	os.Setenv("STT_LANGUAGE_CODE", "ar-SA")
	os.Setenv("STT_SAMPLE_RATE_HZ", "8000")
	os.Setenv("TTS_PROVIDER", "elevenlabs")
	os.Setenv("TTS_STABILITY", "0.7")
	os.Setenv("LLM_MODEL", "gpt-4o")
	os.Setenv("LLM_TIMEOUT", "45s")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092")
	os.Setenv("SESSION_MAX_TURNS", "20")
	os.Setenv("SESSION_MAX_DURATION", "15m")

	defer func() {
		os.Unsetenv("SERVICE_PRINCIPAL")
		os.Unsetenv("HTTP_PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("STT_PROVIDER")
		os.Unsetenv("STT_LANGUAGE_CODE")
		os.Unsetenv("STT_SAMPLE_RATE_HZ")
		os.Unsetenv("TTS_PROVIDER")
		os.Unsetenv("TTS_STABILITY")
		os.Unsetenv("LLM_MODEL")
		os.Unsetenv("LLM_TIMEOUT")
		os.Unsetenv("KAFKA_ENABLED")
		os.Unsetenv("KAFKA_BROKERS")
		os.Unsetenv("SESSION_MAX_TURNS")
		os.Unsetenv("SESSION_MAX_DURATION")
	}()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.HTTPPort)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "ar-SA" {
		t.Errorf("expected language 'ar-SA', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.TTS.Provider != "elevenlabs" {
		t.Errorf("expected TTS provider 'elevenlabs', got %s", cfg.TTS.Provider)
	}
	if cfg.TTS.Stability != 0.7 {
		t.Errorf("expected stability 0.7, got %v", cfg.TTS.Stability)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("expected model 'gpt-4o', got %s", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 45*time.Second {
		t.Errorf("expected LLM timeout 45s, got %v", cfg.LLM.Timeout)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "broker-a:9092" || cfg.Kafka.Brokers[1] != "broker-b:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Session.MaxTurns != 20 {
		t.Errorf("expected max turns 20, got %d", cfg.Session.MaxTurns)
	}
	if cfg.Session.MaxDuration != 15*time.Minute {
		t.Errorf("expected max duration 15m, got %v", cfg.Session.MaxDuration)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	os.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("TTS_STABILITY", "invalid")
	os.Setenv("KAFKA_ENABLED", "invalid")
	os.Setenv("SESSION_MAX_DURATION", "invalid")
	os.Setenv("SESSION_MAX_TURNS", "invalid")

	defer func() {
		os.Unsetenv("STT_SAMPLE_RATE_HZ")
		os.Unsetenv("TTS_STABILITY")
		os.Unsetenv("KAFKA_ENABLED")
		os.Unsetenv("SESSION_MAX_DURATION")
		os.Unsetenv("SESSION_MAX_TURNS")
	}()

	cfg := Load()

	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.TTS.Stability != 0.5 {
		t.Errorf("expected default stability on invalid input, got %v", cfg.TTS.Stability)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled on invalid input")
	}
	if cfg.Session.MaxDuration != 30*time.Minute {
		t.Errorf("expected default max duration on invalid input, got %v", cfg.Session.MaxDuration)
	}
	if cfg.Session.MaxTurns != 40 {
		t.Errorf("expected default max turns on invalid input, got %d", cfg.Session.MaxTurns)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	os.Unsetenv("KAFKA_PRINCIPAL")

	defer os.Unsetenv("SERVICE_PRINCIPAL")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
