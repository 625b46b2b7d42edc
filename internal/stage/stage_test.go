package stage

import (
	"testing"
	"time"

	"ai-interview-service/internal/models"
)

func agentTurns(stage ID, n int) []models.Turn {
	turns := make([]models.Turn, 0, n*2)
	for i := 0; i < n; i++ {
		turns = append(turns,
			models.Turn{Speaker: models.SpeakerCandidate, Text: "...", Stage: string(stage), Timestamp: time.Now()},
			models.Turn{Speaker: models.SpeakerAgent, Text: "...", Stage: string(stage), Timestamp: time.Now()},
		)
	}
	return turns
}

func TestAdvance_BelowMinimumStays(t *testing.T) {
	m := NewManager()

	if got := m.Advance(ExperienceProbe, agentTurns(ExperienceProbe, 2)); got != ExperienceProbe {
		t.Errorf("2 of 3 minimum turns must not advance, got %s", got)
	}
}

func TestAdvance_AtMinimumMovesToSuccessor(t *testing.T) {
	m := NewManager()

	tests := []struct {
		current ID
		min     int
		next    ID
	}{
		{Opening, 1, ExperienceProbe},
		{ExperienceProbe, 3, CredibilityCheck},
		{CredibilityCheck, 2, Closing},
	}

	for _, tt := range tests {
		if got := m.Advance(tt.current, agentTurns(tt.current, tt.min)); got != tt.next {
			t.Errorf("Advance(%s) = %s, want %s", tt.current, got, tt.next)
		}
	}
}

func TestAdvance_NeverSkips(t *testing.T) {
	m := NewManager()

	// Far more than the minimum: still only one step forward.
	if got := m.Advance(Opening, agentTurns(Opening, 10)); got != ExperienceProbe {
		t.Errorf("excess turns must advance exactly one stage, got %s", got)
	}
}

func TestAdvance_Idempotent(t *testing.T) {
	m := NewManager()

	turns := agentTurns(Opening, 5)
	first := m.Advance(Opening, turns)
	second := m.Advance(first, turns) // no turns tagged with the new stage yet

	if first != ExperienceProbe {
		t.Fatalf("expected ExperienceProbe, got %s", first)
	}
	if second != ExperienceProbe {
		t.Errorf("repeated advancement without new-stage turns must not skip, got %s", second)
	}
}

func TestAdvance_TerminalNoOp(t *testing.T) {
	m := NewManager()

	if got := m.Advance(Closing, agentTurns(Closing, 20)); got != Closing {
		t.Errorf("terminal stage must never advance, got %s", got)
	}
	if !m.IsTerminal(Closing) {
		t.Error("closing must be terminal")
	}
	if m.IsTerminal(Opening) {
		t.Error("opening must not be terminal")
	}
}

func TestAdvance_CandidateTurnsDoNotCount(t *testing.T) {
	m := NewManager()

	turns := []models.Turn{
		{Speaker: models.SpeakerCandidate, Stage: string(Opening)},
		{Speaker: models.SpeakerCandidate, Stage: string(Opening)},
	}
	if got := m.Advance(Opening, turns); got != Opening {
		t.Errorf("candidate turns alone must not advance the stage, got %s", got)
	}
}

func TestMinSatisfied(t *testing.T) {
	m := NewManager()

	if m.MinSatisfied(Closing, nil) {
		t.Error("closing with no turns must not be satisfied")
	}
	if !m.MinSatisfied(Closing, agentTurns(Closing, 1)) {
		t.Error("closing with one agent turn must be satisfied")
	}
}

func TestDefinition_Unknown(t *testing.T) {
	m := NewManager()

	if _, err := m.Definition(ID("lunch_break")); err == nil {
		t.Error("expected error for unknown stage")
	}
}
