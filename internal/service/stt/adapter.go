// Package stt defines the interface for speech-to-text adapters. The
// interview is turn-based: each candidate answer arrives as one complete
// audio clip and is transcribed in a single call.
package stt

import "context"

// Result is a completed transcription of one audio clip.
type Result struct {
	Text       string
	Confidence float64
}

// Adapter defines the interface for STT providers (Google, Azure, AWS, etc.).
type Adapter interface {
	// Transcribe converts one complete audio clip to text.
	Transcribe(ctx context.Context, audio []byte, languageCode string) (*Result, error)

	// Close releases provider resources.
	Close() error
}
