// Package ordering drives one voice-ordering interaction from listening to
// cart commit.
package ordering

import (
	"errors"
	"fmt"

	"voice-ordering-service/internal/service/intent"
	"voice-ordering-service/internal/service/stt"
)

// State is the ordering session state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateSuccess
	StateError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateProcessing:
		return "PROCESSING"
	case StateSuccess:
		return "SUCCESS"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ErrorKind qualifies StateError.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorNoMatch
	ErrorPermissionDenied
	ErrorNoAudioInput
	ErrorServiceUnavailable
	ErrorNetwork
	ErrorOther
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return ""
	case ErrorNoMatch:
		return "NO_MATCH"
	case ErrorPermissionDenied:
		return stt.KindPermissionDenied.String()
	case ErrorNoAudioInput:
		return stt.KindNoAudioInput.String()
	case ErrorServiceUnavailable:
		return stt.KindServiceUnavailable.String()
	case ErrorNetwork:
		return stt.KindNetwork.String()
	default:
		return stt.KindOther.String()
	}
}

// ErrorKindFor maps a capability error kind to a session error kind.
func ErrorKindFor(k stt.Kind) ErrorKind {
	switch k {
	case stt.KindPermissionDenied:
		return ErrorPermissionDenied
	case stt.KindNoAudioInput:
		return ErrorNoAudioInput
	case stt.KindServiceUnavailable:
		return ErrorServiceUnavailable
	case stt.KindNetwork:
		return ErrorNetwork
	default:
		return ErrorOther
	}
}

// Final is a final transcript waiting to be, or being, resolved.
type Final struct {
	Text        string
	Confidence  float64
	UtteranceID string
}

// Session is the observable state of one ordering interaction.
type Session struct {
	State       State
	Transcript  string  // latest interim while listening, the final being handled otherwise
	Confidence  float64 // acoustic confidence of the final being handled
	UtteranceID string
	Intents     []intent.Intent
	ErrorKind   ErrorKind // set only in StateError
	ErrorCode   string    // provider code for ErrorOther
	Queue       []Final   // finals received while another was being handled
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	s.Intents = append([]intent.Intent(nil), s.Intents...)
	s.Queue = append([]Final(nil), s.Queue...)
	return s
}

// Retryable reports whether the session offers a retry action.
func (s Session) Retryable() bool {
	return s.State == StateError
}

// Event is an input to Apply.
type Event interface {
	isEvent()
}

// ListenStarted reports that the capture session is running.
type ListenStarted struct{}

// StartFailed reports that pre-flight or capture start failed.
type StartFailed struct {
	Kind ErrorKind
	Code string
}

// InterimReceived carries an interim transcript.
type InterimReceived struct {
	Text string
}

// FinalReceived carries a final transcript.
type FinalReceived struct {
	Final Final
}

// Resolved carries the resolver output for the final being handled.
type Resolved struct {
	Intents []intent.Intent
}

// Committed reports that every intent reached the cart.
type Committed struct{}

// Advance takes the next queued final for processing.
type Advance struct{}

// Failed reports a capability error during capture or a failed commit.
type Failed struct {
	Kind ErrorKind
	Code string
}

// StopRequested cancels everything in progress.
type StopRequested struct{}

func (ListenStarted) isEvent()   {}
func (StartFailed) isEvent()     {}
func (InterimReceived) isEvent() {}
func (FinalReceived) isEvent()   {}
func (Resolved) isEvent()        {}
func (Committed) isEvent()       {}
func (Advance) isEvent()         {}
func (Failed) isEvent()          {}
func (StopRequested) isEvent()   {}

// ErrInvalidTransition is returned by Apply when ev is not accepted in the
// current state. The session is returned unchanged.
var ErrInvalidTransition = errors.New("ordering: invalid transition")

func invalid(s Session, ev Event) (Session, error) {
	return s, fmt.Errorf("%w: %T in %s", ErrInvalidTransition, ev, s.State)
}

// Apply is the session transition function. It does not modify s.
//
//	Idle|Error ──ListenStarted──→ Listening
//	Idle|Error ──StartFailed───→ Error(kind)
//	Listening ──FinalReceived──→ Processing
//	Processing ──Resolved──────→ Success | Error(NoMatch)
//	Success ───Committed──────→ Idle
//	Idle|Error(NoMatch) ──Advance──→ Processing   (queued final)
//	any ──Failed──→ Error(kind)     any ──StopRequested──→ Idle
//
// Finals received in Processing, Success or Error(NoMatch) with capture
// still running are queued in arrival order.
func Apply(s Session, ev Event) (Session, error) {
	next := s.Clone()

	switch e := ev.(type) {
	case ListenStarted:
		if s.State != StateIdle && s.State != StateError {
			return invalid(s, ev)
		}
		return Session{State: StateListening}, nil

	case StartFailed:
		if s.State != StateIdle && s.State != StateError {
			return invalid(s, ev)
		}
		return Session{State: StateError, ErrorKind: e.Kind, ErrorCode: e.Code}, nil

	case InterimReceived:
		if s.State != StateListening {
			// Interims are only displayed while listening.
			return next, nil
		}
		next.Transcript = e.Text
		return next, nil

	case FinalReceived:
		switch {
		case s.State == StateListening:
			next.State = StateProcessing
			next.Transcript = e.Final.Text
			next.Confidence = e.Final.Confidence
			next.UtteranceID = e.Final.UtteranceID
			next.Intents = nil
			return next, nil
		case s.State == StateProcessing || s.State == StateSuccess || isNoMatch(s):
			next.Queue = append(next.Queue, e.Final)
			return next, nil
		default:
			return invalid(s, ev)
		}

	case Resolved:
		if s.State != StateProcessing {
			return invalid(s, ev)
		}
		if len(e.Intents) == 0 {
			next.State = StateError
			next.ErrorKind = ErrorNoMatch
			next.Intents = nil
			return next, nil
		}
		next.State = StateSuccess
		next.Intents = append([]intent.Intent(nil), e.Intents...)
		return next, nil

	case Committed:
		if s.State != StateSuccess {
			return invalid(s, ev)
		}
		next.State = StateIdle
		next.Intents = nil
		return next, nil

	case Advance:
		if (s.State != StateIdle && !isNoMatch(s)) || len(s.Queue) == 0 {
			return invalid(s, ev)
		}
		f := next.Queue[0]
		next.Queue = next.Queue[1:]
		next.State = StateProcessing
		next.Transcript = f.Text
		next.Confidence = f.Confidence
		next.UtteranceID = f.UtteranceID
		next.Intents = nil
		next.ErrorKind = ErrorNone
		next.ErrorCode = ""
		return next, nil

	case Failed:
		// Capability errors short-circuit from any state and discard
		// everything not yet committed.
		return Session{
			State:       StateError,
			ErrorKind:   e.Kind,
			ErrorCode:   e.Code,
			Transcript:  s.Transcript,
			UtteranceID: s.UtteranceID,
		}, nil

	case StopRequested:
		return Session{State: StateIdle}, nil

	default:
		return invalid(s, ev)
	}
}

func isNoMatch(s Session) bool {
	return s.State == StateError && s.ErrorKind == ErrorNoMatch
}
