package models

// Live-session transport messages. One WebSocket connection carries exactly one
// interview; the payload is base64-encoded audio.

// ClientMessage is an inbound message from the candidate's client.
type ClientMessage struct {
	Type string `json:"type"` // "audio" or "end"
	Data string `json:"data,omitempty"`
}

// TurnMetadata annotates an outbound utterance.
type TurnMetadata struct {
	Text               string `json:"text"`
	Stage              string `json:"stage"`
	Turn               int    `json:"turn"`
	InconsistencyCount int    `json:"inconsistencyCount"`
	SessionID          string `json:"sessionId,omitempty"`
}

// ServerMessage is an outbound message to the candidate's client.
type ServerMessage struct {
	Type     string        `json:"type"` // "audio", "status" or "error"
	Data     string        `json:"data,omitempty"`
	Metadata *TurnMetadata `json:"metadata,omitempty"`
	Status   string        `json:"status,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// TurnEvent is published after every completed turn.
type TurnEvent struct {
	EventType          string `json:"eventType"`
	SessionID          string `json:"sessionId"`
	CandidateID        string `json:"candidateId"`
	Turn               int    `json:"turn"`
	Stage              string `json:"stage"`
	CandidateText      string `json:"candidateText"`
	AgentText          string `json:"agentText"`
	InconsistencyCount int    `json:"inconsistencyCount"`
	Timestamp          int64  `json:"timestamp"`
}

// SessionEvent is published once when a session is finalized.
type SessionEvent struct {
	EventType        string  `json:"eventType"`
	SessionID        string  `json:"sessionId"`
	CandidateID      string  `json:"candidateId"`
	Status           string  `json:"status"`
	Turns            int     `json:"turns"`
	Inconsistencies  int     `json:"inconsistencies"`
	DurationSeconds  float64 `json:"durationSeconds"`
	CredibilityScore int     `json:"credibilityScore"`
	Timestamp        int64   `json:"timestamp"`
}
