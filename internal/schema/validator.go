// Package schema validates ordering events against JSON schemas before
// they are published.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"voice-ordering-service/internal/models"
)

var (
	ErrUnknownEventType = errors.New("schema: unknown event type")
	ErrInvalidEvent     = errors.New("schema: event failed validation")
)

// Validator holds one resolved schema per event type. Safe for concurrent use.
type Validator struct {
	schemas map[string]*jsonschema.Resolved
}

// New builds schemas for every published event type. Schemas are inferred
// from the model structs and then tightened with value constraints.
func New() (*Validator, error) {
	builders := map[string]func() (*jsonschema.Schema, error){
		models.EventTranscriptPartial: transcriptPartialSchema,
		models.EventTranscriptFinal:   transcriptFinalSchema,
		models.EventCartUnitsAdded:    cartUnitsAddedSchema,
		models.EventSessionOutcome:    sessionOutcomeSchema,
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Resolved, len(builders))}
	for eventType, build := range builders {
		s, err := build()
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", eventType, err)
		}
		s.Properties["eventType"].Const = jsonschema.Ptr[any](eventType)
		resolved, err := s.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("resolve schema %s: %w", eventType, err)
		}
		v.schemas[eventType] = resolved
	}
	return v, nil
}

// MustNew is like New but panics on error.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks event against the schema named by its eventType field.
func (v *Validator) Validate(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return v.ValidateJSON(payload)
}

// ValidateJSON checks an encoded event.
func (v *Validator) ValidateJSON(payload []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	eventType, _ := doc["eventType"].(string)
	s, ok := v.schemas[eventType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEvent, eventType, err)
	}
	return nil
}

func nonEmpty(s *jsonschema.Schema, props ...string) {
	for _, p := range props {
		s.Properties[p].MinLength = jsonschema.Ptr(1)
	}
}

func unitInterval(s *jsonschema.Schema, prop string) {
	s.Properties[prop].Minimum = jsonschema.Ptr(0.0)
	s.Properties[prop].Maximum = jsonschema.Ptr(1.0)
}

func transcriptPartialSchema() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[models.TranscriptPartial](nil)
	if err != nil {
		return nil, err
	}
	nonEmpty(s, "sessionId", "utteranceId")
	return s, nil
}

func transcriptFinalSchema() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[models.TranscriptFinal](nil)
	if err != nil {
		return nil, err
	}
	nonEmpty(s, "sessionId", "utteranceId")
	unitInterval(s, "confidence")
	return s, nil
}

func cartUnitsAddedSchema() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[models.CartUnitsAdded](nil)
	if err != nil {
		return nil, err
	}
	nonEmpty(s, "sessionId", "itemId", "itemName")
	s.Properties["quantity"].Minimum = jsonschema.Ptr(1.0)
	s.Properties["unitPrice"].Minimum = jsonschema.Ptr(0.0)
	return s, nil
}

func sessionOutcomeSchema() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[models.SessionOutcome](nil)
	if err != nil {
		return nil, err
	}
	nonEmpty(s, "sessionId")
	unitInterval(s, "confidence")
	s.Properties["outcome"].Enum = []any{
		models.OutcomeSuccess,
		models.OutcomeNoMatch,
		models.OutcomeCapabilityError,
		models.OutcomeCommitFailed,
		models.OutcomeCancelled,
	}
	if items := s.Properties["items"].Items; items != nil {
		items.Properties["quantity"].Minimum = jsonschema.Ptr(1.0)
		nonEmpty(items, "itemId")
	}
	return s, nil
}
