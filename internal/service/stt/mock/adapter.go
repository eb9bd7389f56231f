// Package mock provides a mock STT adapter for testing without cloud credentials.
// It simulates realistic speech-to-text behavior with progressive partial transcripts
// and exactly one final transcript per utterance. Utterances repeat for as long
// as the session stays open.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"voice-ordering-service/internal/service/stt"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string // Progressive partial transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances provides sample food orders for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"I want", "I want two", "I want two chocolate"},
		Final:      "I want two chocolate corn",
		Confidence: 0.92,
	},
	{
		Partials:   []string{"One", "One cheesy", "One cheesy corn and"},
		Final:      "One cheesy corn and a mint lemonade",
		Confidence: 0.88,
	},
	{
		Partials:   []string{"Can I", "Can I get three", "Can I get three masala"},
		Final:      "Can I get three masala corn",
		Confidence: 0.9,
	},
	{
		Partials:   []string{"Caramel", "Caramel corn"},
		Final:      "Caramel corn please",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"asd", "asdkj"},
		Final:      "asdkjasd",
		Confidence: 0.41,
	},
}

// Options configures a scripted adapter.
type Options struct {
	Utterances   []SimulatedUtterance
	Delay        time.Duration // delay before each callback; zero delivers as fast as possible
	PreflightErr error
	StartErr     error
}

type emission struct {
	text       string
	confidence float64
	final      bool
	err        error
}

// Adapter implements stt.Adapter and stt.AudioSink with scripted responses.
// Callbacks are delivered in order from a single goroutine.
type Adapter struct {
	mu           sync.Mutex
	opts         Options
	utterances   []SimulatedUtterance
	next         int  // next utterance to simulate
	partialIndex int  // next partial of the current utterance
	started      bool
	closed       bool
	closeCount   int
	languageHint string

	queue chan emission
	done  chan struct{}
}

// utteranceCounter tracks which utterance to use next (cycles through defaults)
var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a mock adapter that starts at the next default utterance and
// delivers callbacks after a short simulated processing delay.
func New() *Adapter {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	rotated := append(append([]SimulatedUtterance{}, DefaultUtterances[idx:]...), DefaultUtterances[:idx]...)
	return NewWithOptions(Options{Utterances: rotated, Delay: 50 * time.Millisecond})
}

// NewWithOptions creates a scripted adapter.
func NewWithOptions(opts Options) *Adapter {
	utts := opts.Utterances
	if len(utts) == 0 {
		utts = DefaultUtterances
	}
	return &Adapter{
		opts:       opts,
		utterances: utts,
	}
}

// Preflight returns the configured preflight error.
func (a *Adapter) Preflight(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.opts.PreflightErr
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, languageHint string, cb stt.Callback) error {
	if a.opts.StartErr != nil {
		return a.opts.StartErr
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	a.started = true
	a.closed = false
	a.languageHint = languageHint
	a.queue = make(chan emission, 64)
	a.done = make(chan struct{})
	go a.run(cb, a.queue, a.done)
	return nil
}

// SendAudio simulates receiving audio: each frame releases the next partial
// of the current utterance, and the frame after the last partial releases
// the final. The following frame starts the next utterance.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if a.closed || !a.started {
		a.mu.Unlock()
		return nil
	}

	utt := a.utterances[a.next%len(a.utterances)]
	var e emission
	if a.partialIndex < len(utt.Partials) {
		e = emission{text: utt.Partials[a.partialIndex]}
		a.partialIndex++
	} else {
		e = emission{text: utt.Final, confidence: utt.Confidence, final: true}
		a.partialIndex = 0
		a.next++
	}
	queue, done := a.queue, a.done
	a.mu.Unlock()

	return a.enqueue(ctx, queue, done, e)
}

// Say simulates a whole utterance of text: progressive partials built from
// its words, then the final.
func (a *Adapter) Say(ctx context.Context, text string, confidence float64) error {
	words := strings.Fields(text)
	for i := 1; i < len(words); i++ {
		if err := a.push(ctx, emission{text: strings.Join(words[:i], " ")}); err != nil {
			return err
		}
	}
	return a.push(ctx, emission{text: text, confidence: confidence, final: true})
}

// Fail delivers err through the OnError callback.
func (a *Adapter) Fail(ctx context.Context, err error) error {
	return a.push(ctx, emission{err: err})
}

// LanguageHint returns the hint passed to Start.
func (a *Adapter) LanguageHint() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.languageHint
}

// CloseCount returns how many times Close tore down a running session.
func (a *Adapter) CloseCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeCount
}

// Close ends the mock session. Pending callbacks are discarded.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || !a.started {
		return nil
	}
	a.closed = true
	a.started = false
	a.closeCount++
	close(a.done)
	return nil
}

func (a *Adapter) push(ctx context.Context, e emission) error {
	a.mu.Lock()
	if a.closed || !a.started {
		a.mu.Unlock()
		return nil
	}
	queue, done := a.queue, a.done
	a.mu.Unlock()
	return a.enqueue(ctx, queue, done, e)
}

func (a *Adapter) enqueue(ctx context.Context, queue chan<- emission, done <-chan struct{}, e emission) error {
	select {
	case queue <- e:
		return nil
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) run(cb stt.Callback, queue <-chan emission, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case e := <-queue:
			if a.opts.Delay > 0 {
				// Simulate processing delay
				select {
				case <-time.After(a.opts.Delay):
				case <-done:
					return
				}
			}
			select {
			case <-done:
				return
			default:
			}

			switch {
			case e.err != nil:
				cb.OnError(e.err)
			case e.final:
				cb.OnFinal(e.text, e.confidence)
			default:
				cb.OnPartial(e.text)
			}
		}
	}
}
