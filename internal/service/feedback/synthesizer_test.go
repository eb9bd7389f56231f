package feedback

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"voice-ordering-service/internal/catalog"
	"voice-ordering-service/internal/observability/metrics"
	"voice-ordering-service/internal/service/intent"
	"voice-ordering-service/internal/service/stt"
)

// blockingSpeaker plays until cancelled.
type blockingSpeaker struct {
	mu          sync.Mutex
	started     []string
	interrupted []string
	cancelAll   int
	err         error
}

func (b *blockingSpeaker) Speak(ctx context.Context, text string, v Voice) error {
	b.mu.Lock()
	b.started = append(b.started, text)
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return err
	}

	<-ctx.Done()
	b.mu.Lock()
	b.interrupted = append(b.interrupted, text)
	b.mu.Unlock()
	return ctx.Err()
}

func (b *blockingSpeaker) CancelAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelAll++
}

func (b *blockingSpeaker) snapshot() (started, interrupted []string, cancelAll int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.started...), append([]string{}, b.interrupted...), b.cancelAll
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestSynth(sp Speaker) (*Synthesizer, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	nop := zerolog.Nop()
	return NewSynthesizer(sp, Options{Metrics: m, Logger: &nop}), m
}

func TestSynthesizer_SayInterruptsPrevious(t *testing.T) {
	sp := &blockingSpeaker{}
	s, m := newTestSynth(sp)
	defer s.Close()

	s.Say("first")
	waitFor(t, func() bool { started, _, _ := sp.snapshot(); return len(started) == 1 })
	s.Say("second")

	waitFor(t, func() bool {
		started, interrupted, _ := sp.snapshot()
		return len(started) == 2 && len(interrupted) == 1
	})
	started, interrupted, cancelAll := sp.snapshot()
	if interrupted[0] != "first" {
		t.Errorf("expected first prompt interrupted, got %v", interrupted)
	}
	if started[1] != "second" {
		t.Errorf("expected second prompt playing, got %v", started)
	}
	if cancelAll != 1 {
		t.Errorf("expected 1 CancelAll, got %d", cancelAll)
	}
	if !s.Speaking() {
		t.Error("expected second prompt still playing")
	}
	if got := testutil.ToFloat64(m.SpeechInterrupted); got != 1 {
		t.Errorf("expected 1 interruption recorded, got %v", got)
	}
}

func TestSynthesizer_Cancel(t *testing.T) {
	sp := &blockingSpeaker{}
	s, _ := newTestSynth(sp)

	s.Say("adding two chocolate corn")
	waitFor(t, func() bool { started, _, _ := sp.snapshot(); return len(started) == 1 })
	s.Cancel()
	s.Cancel()
	s.Close()

	_, interrupted, cancelAll := sp.snapshot()
	if len(interrupted) != 1 {
		t.Errorf("expected prompt interrupted, got %v", interrupted)
	}
	if cancelAll != 1 {
		t.Errorf("expected one CancelAll for repeated cancels, got %d", cancelAll)
	}
	if s.Speaking() {
		t.Error("expected nothing playing after cancel")
	}
}

func TestSynthesizer_Muted(t *testing.T) {
	sp := &blockingSpeaker{}
	s, _ := newTestSynth(sp)
	defer s.Close()

	s.SetMuted(true)
	s.Say("adding one cold coffee")

	time.Sleep(20 * time.Millisecond)
	if started, _, _ := sp.snapshot(); len(started) != 0 {
		t.Errorf("expected nothing spoken while muted, got %v", started)
	}
	if s.LastPrompt() != "adding one cold coffee" {
		t.Errorf("expected prompt recorded while muted, got %q", s.LastPrompt())
	}
	if !s.Muted() {
		t.Error("expected muted")
	}
}

func TestSynthesizer_MuteStopsPlayback(t *testing.T) {
	sp := &blockingSpeaker{}
	s, _ := newTestSynth(sp)
	defer s.Close()

	s.Say("hello")
	waitFor(t, func() bool { started, _, _ := sp.snapshot(); return len(started) == 1 })
	s.SetMuted(true)

	waitFor(t, func() bool { _, interrupted, _ := sp.snapshot(); return len(interrupted) == 1 })
}

func TestSynthesizer_FailureSwallowed(t *testing.T) {
	sp := &blockingSpeaker{err: errors.New("tts offline")}
	s, m := newTestSynth(sp)

	defer s.Close()

	s.Say("hello")

	waitFor(t, func() bool { return testutil.ToFloat64(m.SpeechFailures) == 1 })
	waitFor(t, func() bool { return !s.Speaking() })
}

func TestLogSpeaker_Interrupted(t *testing.T) {
	var buf bytes.Buffer
	sp := &LogSpeaker{Log: zerolog.New(&buf)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sp.Speak(ctx, "a fairly long prompt that takes a while", DefaultVoice()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !strings.Contains(buf.String(), "a fairly long prompt") {
		t.Errorf("expected prompt logged, got %s", buf.String())
	}
}

func TestConsoleSpeaker(t *testing.T) {
	var buf bytes.Buffer
	sp := NewConsoleSpeaker(&buf)
	sp.Speak(context.Background(), "Adding two Cold Coffee to your cart.", DefaultVoice())

	if !strings.Contains(buf.String(), "Adding two Cold Coffee") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestConfirmation(t *testing.T) {
	cat := catalog.Default()
	choco, _ := cat.Lookup("choco-corn")
	lemon, _ := cat.Lookup("mint-lemonade")
	coffee, _ := cat.Lookup("cold-coffee")

	tests := []struct {
		name    string
		intents []intent.Intent
		want    string
	}{
		{"one item", []intent.Intent{{Item: choco, Quantity: 2}}, "Adding two Chocolate Corn Delight to your cart."},
		{"two items", []intent.Intent{{Item: choco, Quantity: 1}, {Item: lemon, Quantity: 1}}, "Adding one Chocolate Corn Delight and one Mint Lemonade to your cart."},
		{"three items", []intent.Intent{{Item: choco, Quantity: 3}, {Item: lemon, Quantity: 3}, {Item: coffee, Quantity: 3}}, "Adding three Chocolate Corn Delight, three Mint Lemonade and three Cold Coffee to your cart."},
		{"large quantity", []intent.Intent{{Item: coffee, Quantity: 12}}, "Adding 12 Cold Coffee to your cart."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Confirmation(tt.intents); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRetryCoaching(t *testing.T) {
	got := RetryCoaching(catalog.Default())
	if !strings.Contains(got, `"two chocolate corn"`) {
		t.Errorf("expected example phrase from the menu, got %q", got)
	}
}

func TestRemediation(t *testing.T) {
	kinds := []stt.Kind{stt.KindPermissionDenied, stt.KindNoAudioInput, stt.KindServiceUnavailable, stt.KindNetwork, stt.KindOther}
	seen := map[string]bool{}
	for _, k := range kinds {
		msg := Remediation(k)
		if !strings.Contains(msg, "try again") {
			t.Errorf("%s: expected retry hint, got %q", k, msg)
		}
		if seen[msg] {
			t.Errorf("%s: duplicate remediation text %q", k, msg)
		}
		seen[msg] = true
	}
}
