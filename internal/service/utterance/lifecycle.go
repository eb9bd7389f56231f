package utterance

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of an utterance.
type State int

const (
	// StateOpen - utterance is being heard, interim transcripts allowed.
	StateOpen State = iota
	// StateFinalEmitted - the one final transcript has been delivered.
	StateFinalEmitted
	// StateClosed - utterance ended normally.
	StateClosed
	// StateDropped - utterance abandoned (stop, capture error, limit) before
	// or after its final. Nothing further is delivered for it.
	StateDropped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateFinalEmitted:
		return "FINAL_EMITTED"
	case StateClosed:
		return "CLOSED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (CLOSED or DROPPED).
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateDropped
}

// Errors for invalid lifecycle transitions.
var (
	ErrUtteranceClosed     = errors.New("utterance is closed")
	ErrFinalAlreadyEmitted = errors.New("final already emitted for this utterance")
	ErrPartialAfterFinal   = errors.New("cannot emit partial after final")
)

// Lifecycle enforces "zero or more interims, then exactly one final" for
// the current utterance of a capture session. Safe for concurrent use.
//
//	OPEN ──EmitFinal()──→ FINAL_EMITTED ──Close()──→ CLOSED
//	  │                        │
//	  └──────── Drop() ────────┴──→ DROPPED
//
// Advance closes the current utterance and opens the next one.
type Lifecycle struct {
	mu    sync.RWMutex
	id    string
	state State
}

// NewLifecycle creates a lifecycle whose first utterance is open.
func NewLifecycle(id string) *Lifecycle {
	return &Lifecycle{id: id, state: StateOpen}
}

// ID returns the current utterance ID.
func (l *Lifecycle) ID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.id
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsDropped returns true if the current utterance was dropped.
func (l *Lifecycle) IsDropped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateDropped
}

// EmitPartial checks that an interim transcript may be delivered.
func (l *Lifecycle) EmitPartial() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.state {
	case StateOpen:
		return nil
	case StateFinalEmitted:
		return ErrPartialAfterFinal
	case StateClosed, StateDropped:
		return ErrUtteranceClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// EmitFinal transitions OPEN → FINAL_EMITTED. It fails for any other state.
func (l *Lifecycle) EmitFinal() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateOpen:
		l.state = StateFinalEmitted
		return nil
	case StateFinalEmitted:
		return ErrFinalAlreadyEmitted
	case StateClosed, StateDropped:
		return ErrUtteranceClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Close ends the current utterance. Idempotent; a dropped utterance stays dropped.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateDropped {
		l.state = StateClosed
	}
}

// Drop abandons the current utterance. Returns false if it was already terminal.
func (l *Lifecycle) Drop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDropped
	return true
}

// Advance opens the next utterance if the current one has delivered its
// final or been closed. It returns true when a new utterance was opened.
// A dropped utterance is never advanced past.
func (l *Lifecycle) Advance(nextID func() string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateFinalEmitted && l.state != StateClosed {
		return false
	}
	l.id = nextID()
	l.state = StateOpen
	return true
}

// Reset unconditionally opens a new utterance with the given ID.
func (l *Lifecycle) Reset(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.id = id
	l.state = StateOpen
}
