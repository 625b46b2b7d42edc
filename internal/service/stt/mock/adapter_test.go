package mock

import (
	"context"
	"errors"
	"testing"

	"ai-interview-service/internal/service/stt"
)

func TestTranscribe_CyclesThroughAnswers(t *testing.T) {
	a := NewWithAnswers([]stt.Result{
		{Text: "أول جواب", Confidence: 0.9},
		{Text: "ثاني جواب", Confidence: 0.8},
	})

	audio := []byte{0x01, 0x02}

	r1, err := a.Transcribe(context.Background(), audio, "ar-JO")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if r1.Text != "أول جواب" {
		t.Errorf("first answer = %q", r1.Text)
	}

	r2, _ := a.Transcribe(context.Background(), audio, "ar-JO")
	if r2.Text != "ثاني جواب" {
		t.Errorf("second answer = %q", r2.Text)
	}

	// Cycles back around.
	r3, _ := a.Transcribe(context.Background(), audio, "ar-JO")
	if r3.Text != "أول جواب" {
		t.Errorf("third answer = %q, want cycle restart", r3.Text)
	}
}

func TestTranscribe_EmptyAudioIsSilence(t *testing.T) {
	a := New()

	r, err := a.Transcribe(context.Background(), nil, "ar-JO")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if r.Text != "" {
		t.Errorf("expected empty result for empty audio, got %q", r.Text)
	}
}

func TestTranscribe_Error(t *testing.T) {
	a := New()
	a.Err = errors.New("stt unavailable")

	if _, err := a.Transcribe(context.Background(), []byte{0x01}, "ar-JO"); err == nil {
		t.Error("expected error")
	}
}

func TestTranscribe_AfterClose(t *testing.T) {
	a := New()
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := a.Transcribe(context.Background(), []byte{0x01}, "ar-JO")
	if err != nil {
		t.Fatalf("Transcribe after close: %v", err)
	}
	if r.Text != "" {
		t.Errorf("closed adapter must return empty result, got %q", r.Text)
	}
}
