// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"ai-interview-service/internal/service/stt"
)

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client       *speech.Client
	sampleRateHz int
}

// New creates a new Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, sampleRateHz int) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if sampleRateHz == 0 {
		sampleRateHz = 16000
	}
	return &Adapter{client: c, sampleRateHz: sampleRateHz}, nil
}

// Transcribe runs a synchronous recognition over one complete audio clip.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, languageCode string) (*stt.Result, error) {
	if languageCode == "" {
		languageCode = "ar-JO"
	}

	resp, err := a.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(a.sampleRateHz),
			LanguageCode:    languageCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	// Concatenate result segments; Google splits long clips.
	var text string
	var confidence float64
	var n int
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if text != "" {
			text += " "
		}
		text += alt.Transcript
		confidence += float64(alt.Confidence)
		n++
	}
	if n > 0 {
		confidence /= float64(n)
	}

	return &stt.Result{Text: text, Confidence: confidence}, nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	return a.client.Close()
}
