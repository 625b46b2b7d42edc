// Package stage tracks interview progress through a fixed, ordered set of
// stages. Stages only move forward and are never skipped.
//
// Order:
//
//	opening → experience_probe → credibility_check → closing
//
// closing is terminal: advancement from it is a no-op.
package stage

import (
	"fmt"

	"ai-interview-service/internal/models"
)

// ID names one interview stage.
type ID string

const (
	Opening          ID = "opening"
	ExperienceProbe  ID = "experience_probe"
	CredibilityCheck ID = "credibility_check"
	Closing          ID = "closing"
)

// Definition describes one stage: its human-readable goal and the minimum
// number of agent turns required before it may advance.
type Definition struct {
	ID       ID
	Name     string // Arabic display name
	Goal     string
	MinTurns int
	Next     ID // empty means terminal
}

var definitions = map[ID]Definition{
	Opening: {
		ID:       Opening,
		Name:     "الترحيب",
		Goal:     "Welcome candidate and confirm their application details",
		MinTurns: 1,
		Next:     ExperienceProbe,
	},
	ExperienceProbe: {
		ID:       ExperienceProbe,
		Name:     "استكشاف الخبرة",
		Goal:     "Deep dive into their experience claims",
		MinTurns: 3,
		Next:     CredibilityCheck,
	},
	CredibilityCheck: {
		ID:       CredibilityCheck,
		Name:     "فحص المصداقية",
		Goal:     "Verify consistency of answers",
		MinTurns: 2,
		Next:     Closing,
	},
	Closing: {
		ID:       Closing,
		Name:     "الاختتام",
		Goal:     "Wrap up and set expectations",
		MinTurns: 1,
	},
}

// Manager decides when the interview may advance to the next stage.
type Manager struct{}

// NewManager returns a stage Manager over the fixed stage table.
func NewManager() *Manager {
	return &Manager{}
}

// Definition returns the definition for the given stage.
func (m *Manager) Definition(id ID) (Definition, error) {
	def, ok := definitions[id]
	if !ok {
		return Definition{}, fmt.Errorf("unknown stage %q", id)
	}
	return def, nil
}

// IsTerminal reports whether the stage has no successor.
func (m *Manager) IsTerminal(id ID) bool {
	def, ok := definitions[id]
	return ok && def.Next == ""
}

// Advance counts agent turns tagged with the current stage and returns the
// successor once the stage minimum is met. Idempotent: repeated calls at or
// past the minimum never skip further stages, and a terminal stage is
// returned unchanged.
func (m *Manager) Advance(current ID, turns []models.Turn) ID {
	def, ok := definitions[current]
	if !ok || def.Next == "" {
		return current
	}

	count := 0
	for _, t := range turns {
		if t.Speaker == models.SpeakerAgent && t.Stage == string(current) {
			count++
		}
	}

	if count >= def.MinTurns {
		return def.Next
	}
	return current
}

// MinSatisfied reports whether the stage's minimum agent-turn count has been
// reached. Used by the orchestrator to decide when a terminal stage may end
// the session.
func (m *Manager) MinSatisfied(id ID, turns []models.Turn) bool {
	def, ok := definitions[id]
	if !ok {
		return false
	}
	count := 0
	for _, t := range turns {
		if t.Speaker == models.SpeakerAgent && t.Stage == string(id) {
			count++
		}
	}
	return count >= def.MinTurns
}
