// Package transcription wraps a speech-to-text collaborator in a capture
// session: pre-flight checks, idempotent stop, one final per utterance and
// normalized capability errors.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-ordering-service/internal/observability/logging"
	"voice-ordering-service/internal/observability/metrics"
	"voice-ordering-service/internal/service/stt"
	"voice-ordering-service/internal/service/utterance"
)

// EventKind distinguishes transcript events delivered to a Sink.
type EventKind int

const (
	EventInterim EventKind = iota
	EventFinal
	EventError
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventInterim:
		return "interim"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is a recognition event. Interims supersede each other; each final
// is a discrete unit of work.
type Event struct {
	Kind        EventKind
	Text        string
	Confidence  float64
	Err         *stt.Error
	UtteranceID string
	Generation  uint64 // capture session that produced the event
}

// Sink receives events. It is called from the collaborator's goroutine and
// must not block for long.
type Sink func(Event)

// Limits bounds resource use per utterance on pushed audio.
type Limits struct {
	MaxAudioBytes int64         // Max audio per utterance
	MaxDuration   time.Duration // Max utterance duration
	MaxPartials   int           // Max interim transcripts per utterance
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 5 * 1024 * 1024, // 5MB (~5 minutes at 8kHz 16-bit mono)
		MaxDuration:   2 * time.Minute,
		MaxPartials:   500,
	}
}

// Options configures a Controller.
type Options struct {
	SessionID    string
	LanguageHint string
	Limits       Limits
	Generator    *utterance.Generator
	Metrics      *metrics.Metrics
}

var (
	ErrNotActive        = errors.New("transcription: capture session not active")
	ErrAlreadyActive    = errors.New("transcription: capture session already active")
	ErrPushUnsupported  = errors.New("transcription: collaborator does not accept pushed audio")
	ErrUtteranceDropped = errors.New("transcription: utterance dropped")
)

// LimitError reports which per-utterance limit was exceeded.
type LimitError struct {
	Limit  string
	Detail string
}

func (e *LimitError) Error() string {
	return "transcription: " + e.Limit + " limit exceeded: " + e.Detail
}

func (e *LimitError) Is(target error) bool { return target == ErrUtteranceDropped }

// Controller manages capture sessions against one stt.Adapter.
type Controller struct {
	adapter stt.Adapter
	opts    Options
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu         sync.Mutex
	active     bool
	generation uint64
	sink       Sink
	lifecycle  *utterance.Lifecycle

	// current utterance usage, reset on every new utterance
	uttStart   time.Time
	audioBytes int64
	partials   int
}

// NewController creates a controller for adapter.
func NewController(adapter stt.Adapter, opts Options) *Controller {
	if opts.Generator == nil {
		opts.Generator = utterance.NewGenerator()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Controller{
		adapter: adapter,
		opts:    opts,
		metrics: m,
		log:     logging.WithSession(opts.SessionID).With().Str("component", "transcription").Logger(),
	}
}

// Start runs the collaborator's pre-flight check and then begins capture,
// delivering events to sink until Stop. Failures are returned as *stt.Error
// tagged with the phase that failed.
func (c *Controller) Start(ctx context.Context, sink Sink) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.mu.Unlock()

	if err := c.adapter.Preflight(ctx); err != nil {
		se := stt.Normalize(err, stt.PhasePreflight)
		c.metrics.RecordCaptureError(se.Kind.String(), string(se.Phase))
		c.log.Warn().Err(se).Str("kind", se.Kind.String()).Msg("Pre-flight check failed")
		return se
	}

	// The session is live before the collaborator starts so that events it
	// raises during Start are not lost.
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.active = true
	c.sink = sink
	c.lifecycle = utterance.NewLifecycle(c.opts.Generator.Next(c.opts.SessionID))
	c.resetUsageLocked()
	c.mu.Unlock()

	if err := c.adapter.Start(ctx, c.opts.LanguageHint, &callback{c: c, gen: gen}); err != nil {
		c.mu.Lock()
		if c.generation == gen {
			c.active = false
			c.generation++
			c.sink = nil
		}
		c.mu.Unlock()

		se := stt.Normalize(err, stt.PhaseStart)
		c.metrics.RecordCaptureError(se.Kind.String(), string(se.Phase))
		c.log.Warn().Err(se).Str("kind", se.Kind.String()).Msg("Capture start failed")
		return se
	}

	c.metrics.RecordListenStart()
	c.log.Info().Uint64("generation", gen).Str("languageHint", c.opts.LanguageHint).Msg("Capture started")
	return nil
}

// Stop ends the capture session. Repeated calls are no-ops. Events raised
// by the collaborator after Stop are discarded.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = false
	c.generation++
	lc := c.lifecycle
	c.sink = nil
	c.mu.Unlock()

	if lc != nil && lc.State() == utterance.StateOpen && lc.Drop() {
		c.metrics.RecordUtteranceDropped("stopped")
	}
	if lc != nil {
		lc.Close()
	}

	err := c.adapter.Close()
	c.log.Info().Msg("Capture stopped")
	return err
}

// Active reports whether a capture session is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Generation identifies the current capture session. It changes on every
// Start and Stop.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// UtteranceID returns the ID of the utterance being captured.
func (c *Controller) UtteranceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifecycle == nil {
		return ""
	}
	return c.lifecycle.ID()
}

// SendAudio forwards pushed audio to the collaborator. Exceeding a capture
// limit drops the current utterance and returns a *LimitError.
func (c *Controller) SendAudio(ctx context.Context, chunk []byte) error {
	as, ok := c.adapter.(stt.AudioSink)
	if !ok {
		return ErrPushUnsupported
	}

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.audioBytes += int64(len(chunk))
	bytes, started, lc := c.audioBytes, c.uttStart, c.lifecycle
	c.mu.Unlock()

	limits := c.opts.Limits
	if limits.MaxAudioBytes > 0 && bytes > limits.MaxAudioBytes {
		return c.dropForLimit(lc, "audio_bytes", fmt.Sprintf("%d > %d", bytes, limits.MaxAudioBytes))
	}
	if elapsed := time.Since(started); limits.MaxDuration > 0 && elapsed > limits.MaxDuration {
		return c.dropForLimit(lc, "duration", fmt.Sprintf("%v > %v", elapsed.Round(time.Millisecond), limits.MaxDuration))
	}
	if lc.IsDropped() {
		// Audio for a dropped utterance is not forwarded.
		return ErrUtteranceDropped
	}

	if err := as.SendAudio(ctx, chunk); err != nil {
		return stt.Normalize(err, stt.PhaseStream)
	}
	return nil
}

func (c *Controller) dropForLimit(lc *utterance.Lifecycle, limit, detail string) error {
	if lc.Drop() {
		c.metrics.RecordLimitExceeded(limit)
		c.metrics.RecordUtteranceDropped("limit")
		c.log.Warn().Str("utteranceId", lc.ID()).Str("limit", limit).Str("detail", detail).Msg("Utterance dropped")
	}
	return &LimitError{Limit: limit, Detail: detail}
}

func (c *Controller) resetUsageLocked() {
	c.uttStart = time.Now()
	c.audioBytes = 0
	c.partials = 0
}

// current returns the sink and lifecycle if gen is still the live session.
func (c *Controller) current(gen uint64) (Sink, *utterance.Lifecycle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || gen != c.generation || c.sink == nil {
		return nil, nil, false
	}
	return c.sink, c.lifecycle, true
}

func (c *Controller) onPartial(gen uint64, text string) {
	sink, lc, ok := c.current(gen)
	if !ok {
		return
	}
	if err := lc.EmitPartial(); err != nil {
		c.log.Debug().Err(err).Str("utteranceId", lc.ID()).Msg("Interim ignored")
		return
	}

	c.mu.Lock()
	c.partials++
	count := c.partials
	c.mu.Unlock()

	if limit := c.opts.Limits.MaxPartials; limit > 0 && count > limit {
		c.dropForLimit(lc, "partials", fmt.Sprintf("%d > %d", count, limit))
		return
	}

	c.metrics.RecordPartialTranscript()
	sink(Event{Kind: EventInterim, Text: text, UtteranceID: lc.ID(), Generation: gen})
}

func (c *Controller) onFinal(gen uint64, text string, confidence float64) {
	sink, lc, ok := c.current(gen)
	if !ok {
		return
	}

	id := lc.ID()
	if err := lc.EmitFinal(); err != nil {
		c.log.Debug().Err(err).Str("utteranceId", id).Str("state", lc.State().String()).Msg("Final ignored")
		if lc.IsDropped() {
			// The provider has closed the dropped utterance; capture resumes
			// with a fresh one.
			c.nextUtterance(lc, true)
		}
		return
	}

	c.metrics.RecordFinalTranscript(confidence)
	ul := logging.WithUtterance(c.opts.SessionID, id)
	ul.Debug().
		Str("text", text).
		Float64("confidence", confidence).
		Msg("Final transcript")

	c.nextUtterance(lc, false)
	sink(Event{Kind: EventFinal, Text: text, Confidence: clamp01(confidence), UtteranceID: id, Generation: gen})
}

func (c *Controller) onError(gen uint64, err error) {
	sink, lc, ok := c.current(gen)
	if !ok {
		return
	}
	se := stt.Normalize(err, stt.PhaseStream)
	if lc.Drop() {
		c.metrics.RecordUtteranceDropped("error")
	}
	c.metrics.RecordCaptureError(se.Kind.String(), string(se.Phase))
	c.log.Warn().Err(se).Str("kind", se.Kind.String()).Str("utteranceId", lc.ID()).Msg("Capture error, utterance dropped")
	sink(Event{Kind: EventError, Err: se, UtteranceID: lc.ID(), Generation: gen})
}

func (c *Controller) nextUtterance(lc *utterance.Lifecycle, reset bool) {
	next := func() string { return c.opts.Generator.Next(c.opts.SessionID) }
	if reset {
		lc.Reset(next())
	} else {
		lc.Advance(next)
	}
	c.mu.Lock()
	c.resetUsageLocked()
	c.mu.Unlock()
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// callback binds collaborator callbacks to one capture generation.
type callback struct {
	c   *Controller
	gen uint64
}

func (cb *callback) OnPartial(text string)                   { cb.c.onPartial(cb.gen, text) }
func (cb *callback) OnFinal(text string, confidence float64) { cb.c.onFinal(cb.gen, text, confidence) }
func (cb *callback) OnError(err error)                       { cb.c.onError(cb.gen, err) }
