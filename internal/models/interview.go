// Package models defines the data structures shared across the interview engine.
package models

import "time"

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerAgent     Speaker = "agent"
	SpeakerCandidate Speaker = "candidate"
)

// Turn is a single utterance in the interview transcript.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

// InconsistencyKind classifies how an inconsistency was detected.
type InconsistencyKind string

const (
	// KindModelHallucination marks a generated utterance that contradicted the
	// fact contract and was corrected in-flight.
	KindModelHallucination InconsistencyKind = "model_hallucination"
)

// Inconsistency is an append-only audit record of a detected mismatch.
type Inconsistency struct {
	Kind          InconsistencyKind `json:"kind"`
	Area          string            `json:"area"`
	ContractValue string            `json:"contractValue"`
	SpokenValue   string            `json:"spokenValue"`
	Severity      string            `json:"severity"`
	Description   string            `json:"description"`
	Turn          int               `json:"turn"`
	Timestamp     time.Time         `json:"timestamp"`
}

// RegistrationRecord holds a candidate's pre-interview declared facts as read
// from the datastore. Extra carries raw form fields that have no named column;
// it is validated at the datastore boundary only.
type RegistrationRecord struct {
	CandidateID         string         `json:"candidateId"`
	FullName            string         `json:"fullName"`
	TargetRole          string         `json:"targetRole"`
	YearsOfExperience   int            `json:"yearsOfExperience"`
	ExpectedSalary      int            `json:"expectedSalary"`
	HasFieldExperience  bool           `json:"hasFieldExperience"`
	ProximityToBranch   string         `json:"proximityToBranch,omitempty"`
	CanStartImmediately string         `json:"canStartImmediately,omitempty"`
	AcademicStatus      string         `json:"academicStatus,omitempty"`
	Extra               map[string]any `json:"extra,omitempty"`
}

// Finding is one inconsistency surfaced by the post-hoc credibility scorer.
type Finding struct {
	Area            string `json:"area"`
	FormAnswer      string `json:"form_answer"`
	InterviewAnswer string `json:"interview_answer"`
	Severity        string `json:"severity"`
	Explanation     string `json:"explanation"`
}

// CredibilityAssessment is the post-interview consistency judgment.
type CredibilityAssessment struct {
	Score           int       `json:"credibility_score"`
	Level           string    `json:"credibility_level"`
	Inconsistencies []Finding `json:"inconsistencies_found"`
	ConsistentAreas []string  `json:"consistency_areas"`
	RedFlags        []string  `json:"red_flags"`
	Recommendation  string    `json:"recommendation"`
	BottomLine      string    `json:"bottom_line_summary"`
}

// InterviewStatus is the terminal status of a finalized session.
type InterviewStatus string

const (
	StatusInProgress InterviewStatus = "in_progress"
	StatusCompleted  InterviewStatus = "completed"
	StatusFailed     InterviewStatus = "failed"
)

// InterviewRecord is the persisted outcome of a session, keyed by session ID.
type InterviewRecord struct {
	SessionID       string                 `json:"sessionId"`
	CandidateID     string                 `json:"candidateId"`
	Status          InterviewStatus        `json:"status"`
	StartedAt       time.Time              `json:"startedAt"`
	DurationSeconds float64                `json:"durationSeconds"`
	Transcript      []Turn                 `json:"transcript"`
	Inconsistencies []Inconsistency        `json:"inconsistencies"`
	Assessment      *CredibilityAssessment `json:"assessment,omitempty"`
}
