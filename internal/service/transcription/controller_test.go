package transcription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"voice-ordering-service/internal/observability/metrics"
	"voice-ordering-service/internal/service/stt"
	"voice-ordering-service/internal/service/stt/mock"
)

// fakeAdapter implements stt.Adapter and stt.AudioSink for testing
type fakeAdapter struct {
	mu           sync.Mutex
	preflightErr error
	startErr     error
	startCalls   int
	closeCalls   int
	audio        [][]byte
	cb           stt.Callback
}

func (f *fakeAdapter) Preflight(ctx context.Context) error { return f.preflightErr }

func (f *fakeAdapter) Start(ctx context.Context, languageHint string, cb stt.Callback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return f.startErr
	}
	f.cb = cb
	return nil
}

func (f *fakeAdapter) SendAudio(ctx context.Context, audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, audio)
	return nil
}

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeAdapter) callback() stt.Callback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) sink(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event{}, r.events...)
}

func newTestController(a stt.Adapter, limits Limits) *Controller {
	return NewController(a, Options{
		SessionID: "sess-1",
		Limits:    limits,
		Metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
	})
}

func TestController_PreflightFailure(t *testing.T) {
	adapter := &fakeAdapter{preflightErr: stt.NewError(stt.KindPermissionDenied, errors.New("mic blocked"))}
	c := newTestController(adapter, Limits{})

	err := c.Start(context.Background(), (&recorder{}).sink)

	var se *stt.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *stt.Error, got %v", err)
	}
	if se.Kind != stt.KindPermissionDenied {
		t.Errorf("expected PERMISSION_DENIED, got %s", se.Kind)
	}
	if se.Phase != stt.PhasePreflight {
		t.Errorf("expected preflight phase, got %s", se.Phase)
	}
	if adapter.startCalls != 0 {
		t.Errorf("expected collaborator not started, got %d calls", adapter.startCalls)
	}
	if c.Active() {
		t.Error("expected controller inactive")
	}
}

func TestController_StartFailure(t *testing.T) {
	adapter := &fakeAdapter{startErr: errors.New("boom")}
	c := newTestController(adapter, Limits{})

	err := c.Start(context.Background(), (&recorder{}).sink)

	var se *stt.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *stt.Error, got %v", err)
	}
	if se.Kind != stt.KindOther || se.Phase != stt.PhaseStart {
		t.Errorf("expected OTHER during start, got %s during %s", se.Kind, se.Phase)
	}
	if c.Active() {
		t.Error("expected controller inactive after failed start")
	}
}

func TestController_StartTwice(t *testing.T) {
	c := newTestController(&fakeAdapter{}, Limits{})
	if err := c.Start(context.Background(), (&recorder{}).sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Start(context.Background(), (&recorder{}).sink); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestController_StopIdempotent(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestController(adapter, Limits{})
	c.Start(context.Background(), (&recorder{}).sink)

	for i := 0; i < 3; i++ {
		if err := c.Stop(); err != nil {
			t.Fatalf("stop %d: unexpected error: %v", i, err)
		}
	}
	if adapter.closeCalls != 1 {
		t.Errorf("expected collaborator closed once, got %d", adapter.closeCalls)
	}
}

func TestController_StopBeforeStart(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestController(adapter, Limits{})
	if err := c.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter.closeCalls != 0 {
		t.Errorf("expected no close, got %d", adapter.closeCalls)
	}
}

func TestController_InterimsThenFinal(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestController(adapter, Limits{})
	rec := &recorder{}
	c.Start(context.Background(), rec.sink)

	cb := adapter.callback()
	cb.OnPartial("two")
	cb.OnPartial("two choco")
	cb.OnFinal("two chocolate corn", 0.9)
	cb.OnPartial("one")
	cb.OnFinal("one lemonade", 0.8)

	events := rec.all()
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	wantKinds := []EventKind{EventInterim, EventInterim, EventFinal, EventInterim, EventFinal}
	for i, k := range wantKinds {
		if events[i].Kind != k {
			t.Errorf("event %d: expected %s, got %s", i, k, events[i].Kind)
		}
	}
	if events[2].Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", events[2].Confidence)
	}
	if events[0].UtteranceID != events[2].UtteranceID {
		t.Errorf("expected interims and final to share an utterance, got %s and %s", events[0].UtteranceID, events[2].UtteranceID)
	}
	if events[2].UtteranceID == events[4].UtteranceID {
		t.Errorf("expected a new utterance after the final, both were %s", events[2].UtteranceID)
	}
	if events[0].Generation != c.Generation() {
		t.Errorf("expected generation %d, got %d", c.Generation(), events[0].Generation)
	}
}

func TestController_ConfidenceClamped(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestController(adapter, Limits{})
	rec := &recorder{}
	c.Start(context.Background(), rec.sink)

	adapter.callback().OnFinal("caramel corn", 1.7)

	if got := rec.all()[0].Confidence; got != 1 {
		t.Errorf("expected confidence clamped to 1, got %v", got)
	}
}

func TestController_StaleCallbacksDiscarded(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestController(adapter, Limits{})
	rec := &recorder{}
	c.Start(context.Background(), rec.sink)
	stale := adapter.callback()
	c.Stop()

	stale.OnPartial("two")
	stale.OnFinal("two chocolate corn", 0.9)
	stale.OnError(errors.New("late"))

	// A new session must not receive the old session's events either.
	c.Start(context.Background(), rec.sink)
	stale.OnFinal("two chocolate corn", 0.9)

	if n := len(rec.all()); n != 0 {
		t.Errorf("expected stale events discarded, got %d", n)
	}
}

func TestController_ErrorEvent(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestController(adapter, Limits{})
	rec := &recorder{}
	c.Start(context.Background(), rec.sink)

	cb := adapter.callback()
	cb.OnPartial("two")
	cb.OnError(stt.NewError(stt.KindNetwork, errors.New("reset")))
	cb.OnFinal("two chocolate corn", 0.9)

	events := rec.all()
	if len(events) != 2 {
		t.Fatalf("expected interim and error only, got %d events", len(events))
	}
	ev := events[1]
	if ev.Kind != EventError || ev.Err == nil {
		t.Fatalf("expected error event, got %+v", ev)
	}
	if !errors.Is(ev.Err, stt.ErrNetwork) {
		t.Errorf("expected network error, got %v", ev.Err)
	}
	if ev.Err.Phase != stt.PhaseStream {
		t.Errorf("expected stream phase, got %s", ev.Err.Phase)
	}
}

func TestController_SendAudio(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestController(adapter, Limits{})

	if err := c.SendAudio(context.Background(), []byte("x")); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive, got %v", err)
	}

	c.Start(context.Background(), (&recorder{}).sink)
	if err := c.SendAudio(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(adapter.audio) != 1 {
		t.Errorf("expected audio forwarded, got %d chunks", len(adapter.audio))
	}
}

func TestController_SendAudio_Unsupported(t *testing.T) {
	c := newTestController(&pullOnlyAdapter{}, Limits{})
	c.Start(context.Background(), (&recorder{}).sink)

	if err := c.SendAudio(context.Background(), []byte("x")); !errors.Is(err, ErrPushUnsupported) {
		t.Errorf("expected ErrPushUnsupported, got %v", err)
	}
}

func TestController_MaxAudioBytesLimit(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestController(adapter, Limits{MaxAudioBytes: 100})
	rec := &recorder{}
	c.Start(context.Background(), rec.sink)
	ctx := context.Background()

	if err := c.SendAudio(ctx, make([]byte, 50)); err != nil {
		t.Fatalf("first send should succeed: %v", err)
	}
	err := c.SendAudio(ctx, make([]byte, 60))
	var le *LimitError
	if !errors.As(err, &le) || le.Limit != "audio_bytes" {
		t.Fatalf("expected audio_bytes limit error, got %v", err)
	}
	if !errors.Is(err, ErrUtteranceDropped) {
		t.Error("expected limit error to match ErrUtteranceDropped")
	}

	dropped := c.UtteranceID()
	// The provider still closes the dropped utterance with a final.
	adapter.callback().OnFinal("two chocolate corn", 0.9)
	if len(rec.all()) != 0 {
		t.Error("expected final for dropped utterance to be discarded")
	}
	if c.UtteranceID() == dropped {
		t.Error("expected capture to resume with a new utterance")
	}
	if err := c.SendAudio(ctx, make([]byte, 50)); err != nil {
		t.Errorf("expected usage reset for the new utterance, got %v", err)
	}
}

func TestController_MaxDurationLimit(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestController(adapter, Limits{MaxDuration: 10 * time.Millisecond})
	c.Start(context.Background(), (&recorder{}).sink)

	time.Sleep(20 * time.Millisecond)
	err := c.SendAudio(context.Background(), []byte("audio"))
	var le *LimitError
	if !errors.As(err, &le) || le.Limit != "duration" {
		t.Fatalf("expected duration limit error, got %v", err)
	}
}

func TestController_MaxPartialsLimit(t *testing.T) {
	adapter := &fakeAdapter{}
	c := newTestController(adapter, Limits{MaxPartials: 2})
	rec := &recorder{}
	c.Start(context.Background(), rec.sink)

	cb := adapter.callback()
	for i := 0; i < 4; i++ {
		cb.OnPartial("two")
	}
	if n := len(rec.all()); n != 2 {
		t.Errorf("expected 2 interims before the drop, got %d", n)
	}
}

func TestController_WithMockAdapter(t *testing.T) {
	adapter := mock.NewWithOptions(mock.Options{})
	c := newTestController(adapter, DefaultLimits())
	rec := &recorder{}
	if err := c.Start(context.Background(), rec.sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Stop()

	adapter.Say(context.Background(), "two butter corn please", 0.93)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events := rec.all()
		if n := len(events); n > 0 && events[n-1].Kind == EventFinal {
			if events[n-1].Text != "two butter corn please" {
				t.Errorf("unexpected final text %q", events[n-1].Text)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("final not delivered")
}

// pullOnlyAdapter has no SendAudio method.
type pullOnlyAdapter struct{}

func (pullOnlyAdapter) Preflight(ctx context.Context) error { return nil }
func (pullOnlyAdapter) Start(ctx context.Context, languageHint string, cb stt.Callback) error {
	return nil
}
func (pullOnlyAdapter) Close() error { return nil }
