// Package mock provides a mock STT adapter for testing without cloud
// credentials. It cycles through canned Arabic candidate answers.
package mock

import (
	"context"
	"sync"

	"ai-interview-service/internal/service/stt"
)

// DefaultAnswers are sample candidate utterances the adapter cycles through.
var DefaultAnswers = []stt.Result{
	{Text: "مرحبا، أنا جاهز نبلش", Confidence: 0.95},
	{Text: "اشتغلت تلت سنين بمطعم بوسط البلد", Confidence: 0.92},
	{Text: "كنت مسؤول عن تحضير الطلبات والتعامل مع الزباين", Confidence: 0.9},
	{Text: "بقدر أبلش من أول الشهر الجاي", Confidence: 0.94},
	{Text: "شكراً كتير، كان لقاء حلو", Confidence: 0.97},
}

// Adapter implements stt.Adapter with canned responses.
type Adapter struct {
	mu      sync.Mutex
	answers []stt.Result
	next    int
	closed  bool

	// Err, when set, is returned by every Transcribe call.
	Err error
}

// New creates a new mock STT adapter cycling through DefaultAnswers.
func New() *Adapter {
	return &Adapter{answers: DefaultAnswers}
}

// NewWithAnswers creates a mock adapter with a fixed answer sequence.
func NewWithAnswers(answers []stt.Result) *Adapter {
	return &Adapter{answers: answers}
}

// Transcribe returns the next canned answer. Empty audio transcribes to an
// empty result, mirroring silence.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, languageCode string) (*stt.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Err != nil {
		return nil, a.Err
	}
	if a.closed || len(audio) == 0 || len(a.answers) == 0 {
		return &stt.Result{}, nil
	}

	r := a.answers[a.next%len(a.answers)]
	a.next++
	return &r, nil
}

// Close ends the mock session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
