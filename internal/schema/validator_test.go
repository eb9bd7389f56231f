package schema

import (
	"errors"
	"testing"

	"voice-ordering-service/internal/models"
)

func TestValidator_ValidEvents(t *testing.T) {
	v := MustNew()

	events := []any{
		models.TranscriptPartial{
			EventType: models.EventTranscriptPartial, SessionID: "s1", UtteranceID: "s1-utt-1",
			Timestamp: 1, Text: "two choc",
		},
		models.TranscriptFinal{
			EventType: models.EventTranscriptFinal, SessionID: "s1", UtteranceID: "s1-utt-1",
			Timestamp: 1, Text: "two chocolate corn", Confidence: 0.92,
		},
		models.CartUnitsAdded{
			EventType: models.EventCartUnitsAdded, SessionID: "s1", UtteranceID: "s1-utt-1",
			Timestamp: 1, ItemID: "choco-corn", ItemName: "Chocolate Corn Delight", Quantity: 2, UnitPrice: 4.5,
		},
		models.SessionOutcome{
			EventType: models.EventSessionOutcome, SessionID: "s1", UtteranceID: "s1-utt-1",
			Timestamp: 1, Outcome: models.OutcomeSuccess, Confidence: 0.92,
			Items: []models.OutcomeItem{{ItemID: "choco-corn", Quantity: 2}},
		},
		models.SessionOutcome{
			EventType: models.EventSessionOutcome, SessionID: "s1",
			Timestamp: 1, Outcome: models.OutcomeCapabilityError, ErrorKind: "PERMISSION_DENIED",
			Items: []models.OutcomeItem{},
		},
	}

	for _, ev := range events {
		if err := v.Validate(ev); err != nil {
			t.Errorf("expected %T to be valid, got %v", ev, err)
		}
	}
}

func TestValidator_InvalidEvents(t *testing.T) {
	v := MustNew()

	tests := []struct {
		name  string
		event any
	}{
		{"confidence above one", models.TranscriptFinal{
			EventType: models.EventTranscriptFinal, SessionID: "s1", UtteranceID: "u1", Confidence: 1.5,
		}},
		{"missing session", models.TranscriptPartial{
			EventType: models.EventTranscriptPartial, UtteranceID: "u1", Text: "two",
		}},
		{"zero quantity", models.CartUnitsAdded{
			EventType: models.EventCartUnitsAdded, SessionID: "s1", ItemID: "choco-corn", ItemName: "Chocolate Corn Delight", Quantity: 0,
		}},
		{"unknown outcome", models.SessionOutcome{
			EventType: models.EventSessionOutcome, SessionID: "s1", Outcome: "maybe", Items: []models.OutcomeItem{},
		}},
		{"item without quantity", models.SessionOutcome{
			EventType: models.EventSessionOutcome, SessionID: "s1", Outcome: models.OutcomeSuccess,
			Items: []models.OutcomeItem{{ItemID: "choco-corn"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.Validate(tt.event); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}

func TestValidator_UnknownEventType(t *testing.T) {
	v := MustNew()

	err := v.Validate(map[string]any{"eventType": "interaction.transcript.final"})
	if !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestValidator_MismatchedEventType(t *testing.T) {
	v := MustNew()

	// A final transcript labelled as a partial carries properties the
	// partial schema does not allow.
	err := v.ValidateJSON([]byte(`{"eventType":"ordering.transcript.partial","sessionId":"s1","utteranceId":"u1","timestamp":1,"text":"x","confidence":0.9,"queued":false}`))
	if !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestValidator_MalformedJSON(t *testing.T) {
	v := MustNew()
	if err := v.ValidateJSON([]byte(`{not json`)); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}
