// Package feedback speaks session outcomes to the user, one prompt at a time.
package feedback

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"voice-ordering-service/internal/observability/logging"
	"voice-ordering-service/internal/observability/metrics"
)

// Voice holds synthesis parameters passed to the Speaker.
type Voice struct {
	Rate         float64 // 1.0 is normal speed
	Pitch        float64
	Volume       float64 // 0..1
	LanguageHint string
}

// DefaultVoice returns the voice used when none is configured.
func DefaultVoice() Voice {
	return Voice{Rate: 1.0, Pitch: 1.0, Volume: 1.0, LanguageHint: "en-US"}
}

// Speaker is the external synthesis collaborator.
type Speaker interface {
	// Speak plays text and returns when playback ends or ctx is cancelled.
	Speak(ctx context.Context, text string, v Voice) error

	// CancelAll stops any playback in progress.
	CancelAll()
}

// Options configures a Synthesizer.
type Options struct {
	Voice   Voice
	Muted   bool
	Metrics *metrics.Metrics
	Logger  *zerolog.Logger
}

// Synthesizer plays at most one prompt at a time. Every Say interrupts the
// prompt in progress; prompts never queue. Synthesis failures are logged
// and otherwise ignored.
type Synthesizer struct {
	speaker Speaker
	voice   Voice
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu     sync.Mutex
	muted  bool
	seq    uint64
	cancel context.CancelFunc // current prompt, nil when idle
	last   string
	wg     sync.WaitGroup
}

// NewSynthesizer creates a synthesizer for speaker.
func NewSynthesizer(speaker Speaker, opts Options) *Synthesizer {
	v := opts.Voice
	if v == (Voice{}) {
		v = DefaultVoice()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	l := logging.WithComponent("feedback")
	if opts.Logger != nil {
		l = opts.Logger.With().Str("component", "feedback").Logger()
	}
	return &Synthesizer{
		speaker: speaker,
		voice:   v,
		metrics: m,
		log:     l,
		muted:   opts.Muted,
	}
}

// Say interrupts any prompt in progress and starts speaking text. It does
// not wait for playback. When muted the text is recorded but not played.
func (s *Synthesizer) Say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interruptLocked()
	s.last = text
	s.metrics.RecordSpeech()
	if s.muted || text == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.seq++
	seq := s.seq
	s.cancel = cancel
	voice := s.voice

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.speaker.Speak(ctx, text, voice)
		if err != nil && ctx.Err() == nil {
			s.metrics.RecordSpeechFailure()
			s.log.Debug().Err(err).Str("text", text).Msg("Speech synthesis failed")
		}

		s.mu.Lock()
		if s.seq == seq {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()
}

// Cancel stops the prompt in progress, if any.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptLocked()
}

// SetMuted toggles audio output. Muting stops the prompt in progress.
func (s *Synthesizer) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
	if muted {
		s.interruptLocked()
	}
}

// Muted reports whether audio output is suppressed.
func (s *Synthesizer) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Speaking reports whether a prompt is playing.
func (s *Synthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// LastPrompt returns the most recent text passed to Say.
func (s *Synthesizer) LastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Close stops playback and waits for the speaker to return.
func (s *Synthesizer) Close() {
	s.Cancel()
	s.wg.Wait()
}

func (s *Synthesizer) interruptLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.seq++
	s.speaker.CancelAll()
	s.metrics.RecordSpeechInterrupted()
}
