package stt

import (
	"context"
	"errors"
	"net"
)

// Kind classifies capability errors raised by transcription providers.
type Kind int

const (
	KindOther Kind = iota
	KindPermissionDenied
	KindNoAudioInput
	KindServiceUnavailable
	KindNetwork
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "PERMISSION_DENIED"
	case KindNoAudioInput:
		return "NO_AUDIO_INPUT"
	case KindServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case KindNetwork:
		return "NETWORK_ERROR"
	default:
		return "OTHER"
	}
}

// Phase records where a capability error was raised.
type Phase string

const (
	PhasePreflight Phase = "preflight"
	PhaseStart     Phase = "start"
	PhaseStream    Phase = "stream"
)

// Error is a normalized transcription capability error.
type Error struct {
	Kind  Kind
	Phase Phase
	Code  string // provider specific code for KindOther, may be empty
	Err   error
}

func (e *Error) Error() string {
	msg := "stt: " + e.Kind.String()
	if e.Phase != "" {
		msg += " during " + string(e.Phase)
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so errors.Is(err, ErrPermissionDenied) works
// regardless of phase or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Phase == "" && t.Code == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrNoAudioInput       = &Error{Kind: KindNoAudioInput}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrNetwork            = &Error{Kind: KindNetwork}
)

// NewError wraps err with the given kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// OtherError returns a KindOther error carrying a provider code.
func OtherError(code string, err error) *Error {
	return &Error{Kind: KindOther, Code: code, Err: err}
}

// Normalize converts any error into an *Error tagged with phase. Errors that
// already carry a kind keep it; timeouts and net errors become KindNetwork.
func Normalize(err error, phase Phase) *Error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		out := *se
		if out.Phase == "" {
			out.Phase = phase
		}
		return &out
	}

	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne):
		return &Error{Kind: KindNetwork, Phase: phase, Err: err}
	default:
		return &Error{Kind: KindOther, Phase: phase, Err: err}
	}
}

// KindOf returns the kind of err, or KindOther when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOther
}
