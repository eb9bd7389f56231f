// Package stt defines the interface for Speech-to-Text adapters.
package stt

import "context"

// Callback receives transcript results from the STT provider.
type Callback interface {
	// OnPartial is called when an interim/partial transcript is received.
	OnPartial(text string)

	// OnFinal is called when a final transcript is received.
	OnFinal(text string, confidence float64)

	// OnError is called when an error occurs during transcription.
	OnError(err error)
}

// Adapter defines the interface for STT providers (Google, mock, ...).
type Adapter interface {
	// Preflight checks that capture can be attempted at all: the audio
	// device is reachable and permission has not already been refused.
	Preflight(ctx context.Context) error

	// Start begins a streaming transcription session. languageHint is a
	// BCP-47 tag; empty means the provider default.
	Start(ctx context.Context, languageHint string, cb Callback) error

	// Close ends the session and releases resources.
	Close() error
}

// AudioSink is implemented by adapters that receive pushed audio rather
// than capturing from a local device.
type AudioSink interface {
	// SendAudio sends audio bytes to the STT provider.
	SendAudio(ctx context.Context, audio []byte) error
}

// Releaser is implemented by adapters that hold provider resources across
// sessions, such as a client connection. Release is called once, when the
// owning ordering session is destroyed; the adapter is unusable afterwards.
type Releaser interface {
	Release() error
}
