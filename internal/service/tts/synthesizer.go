// Package tts defines the interface for text-to-speech adapters.
package tts

import "context"

// Synthesizer converts agent utterances to audio.
type Synthesizer interface {
	// Synthesize renders the utterance and returns encoded audio bytes.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// Close releases provider resources.
	Close() error
}
