package session

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-interview-service/internal/contract"
	"ai-interview-service/internal/llm"
	"ai-interview-service/internal/models"
	"ai-interview-service/internal/persona"
	"ai-interview-service/internal/pipeline"
	"ai-interview-service/internal/service/stt"
	ttsmock "ai-interview-service/internal/service/tts/mock"
	"ai-interview-service/internal/stage"
)

// fakeTransport replays scripted inbound messages and records outbound ones.
type fakeTransport struct {
	mu      sync.Mutex
	inbound []*models.ClientMessage
	sent    []*models.ServerMessage
	recvErr error
}

func (t *fakeTransport) Receive() (*models.ClientMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inbound) == 0 {
		if t.recvErr != nil {
			return nil, t.recvErr
		}
		return nil, io.EOF
	}
	msg := t.inbound[0]
	t.inbound = t.inbound[1:]
	return msg, nil
}

func (t *fakeTransport) Send(msg *models.ServerMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	return nil
}

func (t *fakeTransport) sentMessages() []*models.ServerMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*models.ServerMessage(nil), t.sent...)
}

// fakeStore is an in-memory Store with scriptable upsert failures.
type fakeStore struct {
	mu            sync.Mutex
	registrations map[string]*models.RegistrationRecord
	interviews    map[string]*models.InterviewRecord
	upsertFails   int // fail this many upserts before succeeding
	upsertCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		registrations: make(map[string]*models.RegistrationRecord),
		interviews:    make(map[string]*models.InterviewRecord),
	}
}

func (s *fakeStore) GetRegistration(ctx context.Context, candidateID string) (*models.RegistrationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.registrations[candidateID]
	if !ok {
		return nil, contract.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) UpsertInterview(ctx context.Context, rec *models.InterviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.upsertFails > 0 {
		s.upsertFails--
		return errors.New("datastore unavailable")
	}
	clone := *rec
	s.interviews[rec.SessionID] = &clone
	return nil
}

func (s *fakeStore) GetInterview(ctx context.Context, sessionID string) (*models.InterviewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.interviews[sessionID]
	if !ok {
		return nil, contract.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) interview() *models.InterviewRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.interviews {
		return rec
	}
	return nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu       sync.Mutex
	turns    []models.TurnEvent
	sessions []models.SessionEvent
}

func (p *fakePublisher) PublishTurn(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, event.(models.TurnEvent))
	return nil
}

func (p *fakePublisher) PublishSession(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, event.(models.SessionEvent))
	return nil
}

// fakeScorer returns a fixed assessment.
type fakeScorer struct {
	assessment *models.CredibilityAssessment
	calls      int
}

func (s *fakeScorer) Score(ctx context.Context, c *contract.FactContract, registration *models.RegistrationRecord,
	transcript []models.Turn, detected []models.Inconsistency) *models.CredibilityAssessment {
	s.calls++
	return s.assessment
}

func testRegistration() *models.RegistrationRecord {
	return &models.RegistrationRecord{
		CandidateID:        "cand-1",
		FullName:           "أحمد خالد",
		TargetRole:         "خباز",
		YearsOfExperience:  5,
		ExpectedSalary:     300,
		HasFieldExperience: true,
	}
}

type fixture struct {
	orch      *Orchestrator
	store     *fakeStore
	publisher *fakePublisher
	scorer    *fakeScorer
	tts       *ttsmock.Synthesizer
	provider  *llm.MockProvider
}

func newFixture(t *testing.T, sttAnswers []stt.Result) *fixture {
	t.Helper()

	store := newFakeStore()
	store.registrations["cand-1"] = testRegistration()

	publisher := &fakePublisher{}
	scorer := &fakeScorer{assessment: &models.CredibilityAssessment{
		Score: 80, Level: "عالية", Recommendation: "موثوق",
	}}
	synth := ttsmock.New()

	adapter := sttmockAdapter(sttAnswers)
	provider := llm.NewMockProvider(nil, nil)
	p := pipeline.New(provider, stage.NewManager(), "")

	orch := New(store, p, adapter, synth, publisher, scorer, nil, Config{
		FinalizeBackoff: time.Millisecond,
		STTTimeout:      time.Second,
		ScoringTimeout:  time.Second,
	})

	return &fixture{orch: orch, store: store, publisher: publisher, scorer: scorer, tts: synth, provider: provider}
}

// sttmockAdapter builds a cycling STT adapter; nil answers means one default
// clean Arabic answer.
func sttmockAdapter(answers []stt.Result) stt.Adapter {
	if answers == nil {
		answers = []stt.Result{{Text: "اشتغلت بمطعم قبل سنتين", Confidence: 0.9}}
	}
	return &cyclingSTT{answers: answers}
}

type cyclingSTT struct {
	mu      sync.Mutex
	answers []stt.Result
	next    int
}

func (a *cyclingSTT) Transcribe(ctx context.Context, audio []byte, languageCode string) (*stt.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(audio) == 0 {
		return &stt.Result{}, nil
	}
	r := a.answers[a.next%len(a.answers)]
	a.next++
	return &r, nil
}

func (a *cyclingSTT) Close() error { return nil }

func audioMsg() *models.ClientMessage {
	return &models.ClientMessage{
		Type: "audio",
		Data: base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03}),
	}
}

func repeat(msg *models.ClientMessage, n int) []*models.ClientMessage {
	out := make([]*models.ClientMessage, n)
	for i := range out {
		out[i] = msg
	}
	return out
}

func TestRun_FullInterviewReachesClosing(t *testing.T) {
	f := newFixture(t, nil)
	// More clips than needed; the loop must stop on its own at closing.
	transport := &fakeTransport{inbound: repeat(audioMsg(), 10)}

	if err := f.orch.Run(context.Background(), transport, "cand-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec := f.store.interview()
	if rec == nil {
		t.Fatal("no interview persisted")
	}
	if rec.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
	// Stage minimums: opening 1 + probe 3 + credibility 2 + closing 1 = 7 agent turns.
	agent := 0
	for _, turn := range rec.Transcript {
		if turn.Speaker == models.SpeakerAgent {
			agent++
		}
	}
	if agent != 7 {
		t.Errorf("agent turns = %d, want 7", agent)
	}
	if rec.Assessment == nil || rec.Assessment.Score != 80 {
		t.Errorf("assessment not attached: %+v", rec.Assessment)
	}
	if len(f.publisher.turns) != 6 {
		t.Errorf("turn events = %d, want 6", len(f.publisher.turns))
	}
	if len(f.publisher.sessions) != 1 {
		t.Fatalf("session events = %d, want 1", len(f.publisher.sessions))
	}
	if f.publisher.sessions[0].Status != "completed" {
		t.Errorf("session event status = %q", f.publisher.sessions[0].Status)
	}
	if f.publisher.sessions[0].CredibilityScore != 80 {
		t.Errorf("session event score = %d", f.publisher.sessions[0].CredibilityScore)
	}
	// Session map must be empty after Run returns.
	if n := f.orch.ActiveSessions(); n != 0 {
		t.Errorf("active sessions = %d, want 0", n)
	}
}

func TestRun_CandidateEndsEarly(t *testing.T) {
	f := newFixture(t, nil)
	transport := &fakeTransport{inbound: []*models.ClientMessage{
		audioMsg(),
		{Type: "end"},
	}}

	if err := f.orch.Run(context.Background(), transport, "cand-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec := f.store.interview()
	if rec == nil || rec.Status != models.StatusCompleted {
		t.Fatalf("expected completed record, got %+v", rec)
	}
	if f.scorer.calls != 1 {
		t.Errorf("scorer calls = %d, want 1", f.scorer.calls)
	}
}

func TestRun_DisconnectBeforeClosingIsFailed(t *testing.T) {
	f := newFixture(t, nil)
	transport := &fakeTransport{inbound: repeat(audioMsg(), 2)} // then EOF

	if err := f.orch.Run(context.Background(), transport, "cand-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec := f.store.interview()
	if rec == nil {
		t.Fatal("disconnect must still persist the record")
	}
	if rec.Status != models.StatusFailed {
		t.Errorf("status = %q, want failed", rec.Status)
	}
	// Partial transcript survives.
	if len(rec.Transcript) == 0 {
		t.Error("transcript lost on disconnect")
	}
}

func TestRun_UnknownCandidate(t *testing.T) {
	f := newFixture(t, nil)
	transport := &fakeTransport{}

	err := f.orch.Run(context.Background(), transport, "nobody")
	if !errors.Is(err, contract.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	sent := transport.sentMessages()
	if len(sent) != 1 || sent[0].Type != "error" {
		t.Fatalf("expected single error message, got %+v", sent)
	}
	if f.store.interview() != nil {
		t.Error("no interview should be persisted")
	}
}

func TestRun_FinalizePersistenceRetries(t *testing.T) {
	f := newFixture(t, nil)
	f.store.upsertFails = 2 // first two writes fail, third succeeds

	transport := &fakeTransport{inbound: []*models.ClientMessage{{Type: "end"}}}
	if err := f.orch.Run(context.Background(), transport, "cand-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec := f.store.interview()
	if rec == nil {
		t.Fatal("record must be persisted after retries")
	}
	if f.store.upsertCalls < 3 {
		t.Errorf("upsert calls = %d, want >= 3", f.store.upsertCalls)
	}
}

func TestRun_EmptyTranscriptionReprompts(t *testing.T) {
	f := newFixture(t, nil)
	transport := &fakeTransport{inbound: []*models.ClientMessage{
		{Type: "audio", Data: ""}, // silence
		{Type: "end"},
	}}

	if err := f.orch.Run(context.Background(), transport, "cand-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var reprompted bool
	for _, msg := range transport.sentMessages() {
		if msg.Metadata != nil && msg.Metadata.Text == reprompt {
			reprompted = true
		}
	}
	if !reprompted {
		t.Error("expected re-prompt for silent clip")
	}
	if len(f.publisher.turns) != 0 {
		t.Errorf("silence must not produce turn events, got %d", len(f.publisher.turns))
	}
}

func TestRun_EnglishCandidateInputCarriesRedirectNote(t *testing.T) {
	f := newFixture(t, []stt.Result{
		{Text: "I worked in london for three years", Confidence: 0.9},
	})
	transport := &fakeTransport{inbound: []*models.ClientMessage{
		audioMsg(),
		{Type: "end"},
	}}

	if err := f.orch.Run(context.Background(), transport, "cand-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The note travels with the candidate's words, not the agent's reply.
	rec := f.store.interview()
	if rec == nil {
		t.Fatal("no interview persisted")
	}
	var candidateText string
	for _, turn := range rec.Transcript {
		if turn.Speaker == models.SpeakerCandidate {
			candidateText = turn.Text
		}
	}
	if !strings.Contains(candidateText, persona.RedirectNote) {
		t.Errorf("candidate turn missing redirect note: %q", candidateText)
	}

	// The prompt builder saw the note.
	var prompted bool
	for _, req := range f.provider.GetRequestHistory() {
		for _, msg := range req.Messages {
			if msg.Role == "user" && strings.Contains(msg.Content, persona.RedirectNote) {
				prompted = true
			}
		}
	}
	if !prompted {
		t.Error("redirect note never reached a completion request")
	}

	// Delivered utterances match the persisted agent turns exactly.
	var delivered []string
	for _, msg := range transport.sentMessages() {
		if msg.Type == "audio" && msg.Metadata != nil {
			delivered = append(delivered, msg.Metadata.Text)
		}
	}
	var agent []string
	for _, turn := range rec.Transcript {
		if turn.Speaker == models.SpeakerAgent {
			agent = append(agent, turn.Text)
		}
	}
	if len(delivered) != len(agent) {
		t.Fatalf("delivered %d utterances, transcript has %d agent turns", len(delivered), len(agent))
	}
	for i := range agent {
		if delivered[i] != agent[i] {
			t.Errorf("utterance %d diverges from transcript: sent %q, stored %q", i, delivered[i], agent[i])
		}
	}
}

func TestRun_TurnLimitEndsInterview(t *testing.T) {
	f := newFixture(t, nil)
	f.orch.cfg.MaxTurns = 3

	transport := &fakeTransport{inbound: repeat(audioMsg(), 20)}
	if err := f.orch.Run(context.Background(), transport, "cand-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec := f.store.interview()
	if rec == nil {
		t.Fatal("no interview persisted")
	}
	agent := 0
	for _, turn := range rec.Transcript {
		if turn.Speaker == models.SpeakerAgent {
			agent++
		}
	}
	if agent != 3 {
		t.Errorf("agent turns = %d, want 3 (limit)", agent)
	}
}

func TestRescore(t *testing.T) {
	f := newFixture(t, nil)

	// Persist a completed interview first.
	transport := &fakeTransport{inbound: []*models.ClientMessage{{Type: "end"}}}
	if err := f.orch.Run(context.Background(), transport, "cand-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rec := f.store.interview()
	if rec == nil {
		t.Fatal("no interview persisted")
	}

	f.scorer.assessment = &models.CredibilityAssessment{Score: 42, Level: "منخفضة", Recommendation: "يحتاج تحقق إضافي"}
	a, err := f.orch.Rescore(context.Background(), rec.SessionID)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if a.Score != 42 {
		t.Errorf("rescore score = %d, want 42", a.Score)
	}

	stored, err := f.store.GetInterview(context.Background(), rec.SessionID)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if stored.Assessment == nil || stored.Assessment.Score != 42 {
		t.Errorf("fresh assessment not persisted: %+v", stored.Assessment)
	}
}

func TestRescore_UnknownSession(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.orch.Rescore(context.Background(), "missing"); !errors.Is(err, contract.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
