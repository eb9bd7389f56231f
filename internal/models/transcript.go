// Package models defines the data structures for ordering events.
package models

// Event types, used as the eventType field and the Kafka header.
const (
	EventTranscriptPartial = "ordering.transcript.partial"
	EventTranscriptFinal   = "ordering.transcript.final"
	EventCartUnitsAdded    = "ordering.cart.units_added"
	EventSessionOutcome    = "ordering.session.outcome"
)

// TranscriptPartial represents an interim transcript result.
type TranscriptPartial struct {
	EventType   string `json:"eventType"`
	SessionID   string `json:"sessionId"`
	UtteranceID string `json:"utteranceId"`
	Timestamp   int64  `json:"timestamp"`
	Text        string `json:"text"`
}

// TranscriptFinal represents a final transcript result with confidence score.
type TranscriptFinal struct {
	EventType   string  `json:"eventType"`
	SessionID   string  `json:"sessionId"`
	UtteranceID string  `json:"utteranceId"`
	Timestamp   int64   `json:"timestamp"`
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	Queued      bool    `json:"queued"` // arrived while another final was being processed
}
