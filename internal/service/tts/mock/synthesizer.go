// Package mock provides a mock TTS adapter for testing without an API key.
package mock

import (
	"context"
	"sync"
)

// Synthesizer implements tts.Synthesizer with deterministic fake audio.
type Synthesizer struct {
	mu    sync.Mutex
	calls []string

	// Err, when set, is returned by every Synthesize call.
	Err error
}

// New creates a new mock synthesizer.
func New() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize records the utterance and returns its UTF-8 bytes as fake audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	s.calls = append(s.calls, text)
	return []byte(text), nil
}

// Calls returns every utterance synthesized so far.
func (s *Synthesizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Close is a no-op.
func (s *Synthesizer) Close() error {
	return nil
}
