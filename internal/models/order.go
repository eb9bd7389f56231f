package models

// CartUnitsAdded is published for each item committed to the cart.
type CartUnitsAdded struct {
	EventType   string  `json:"eventType"`
	SessionID   string  `json:"sessionId"`
	UtteranceID string  `json:"utteranceId"`
	Timestamp   int64   `json:"timestamp"`
	ItemID      string  `json:"itemId"`
	ItemName    string  `json:"itemName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// Outcomes reported by SessionOutcome.
const (
	OutcomeSuccess         = "success"
	OutcomeNoMatch         = "no_match"
	OutcomeCapabilityError = "capability_error"
	OutcomeCommitFailed    = "commit_failed"
	OutcomeCancelled       = "cancelled"
)

// OutcomeItem is one resolved item in a SessionOutcome.
type OutcomeItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// SessionOutcome reports how one utterance, or a listen attempt, ended.
type SessionOutcome struct {
	EventType   string        `json:"eventType"`
	SessionID   string        `json:"sessionId"`
	UtteranceID string        `json:"utteranceId,omitempty"`
	Timestamp   int64         `json:"timestamp"`
	Outcome     string        `json:"outcome"`
	ErrorKind   string        `json:"errorKind,omitempty"`
	ErrorPhase  string        `json:"errorPhase,omitempty"`
	Transcript  string        `json:"transcript,omitempty"`
	Confidence  float64       `json:"confidence"`
	Items       []OutcomeItem `json:"items"`
}
