package feedback

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// wordDuration approximates speaking time per word at Rate 1.0.
const wordDuration = 300 * time.Millisecond

func playbackTime(text string, v Voice) time.Duration {
	rate := v.Rate
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(text))
	return time.Duration(float64(words) * float64(wordDuration) / rate)
}

// LogSpeaker logs prompts instead of playing them and holds for the time
// the prompt would take to speak. Used by the server, where audio plays on
// the client.
type LogSpeaker struct {
	Log zerolog.Logger
}

func (s *LogSpeaker) Speak(ctx context.Context, text string, v Voice) error {
	s.Log.Info().Str("text", text).Float64("rate", v.Rate).Str("languageHint", v.LanguageHint).Msg("Speaking")
	select {
	case <-time.After(playbackTime(text, v)):
		return nil
	case <-ctx.Done():
		s.Log.Debug().Str("text", text).Msg("Speech interrupted")
		return ctx.Err()
	}
}

func (s *LogSpeaker) CancelAll() {}

// ConsoleSpeaker writes prompts to a terminal.
type ConsoleSpeaker struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSpeaker creates a speaker writing to out.
func NewConsoleSpeaker(out io.Writer) *ConsoleSpeaker {
	return &ConsoleSpeaker{out: out}
}

func (s *ConsoleSpeaker) Speak(ctx context.Context, text string, v Voice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "  << %s\n", text)
	return err
}

func (s *ConsoleSpeaker) CancelAll() {}
