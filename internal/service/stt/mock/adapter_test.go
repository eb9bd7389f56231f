package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu       sync.Mutex
	partials []string
	finals   []finalResult
	errors   []error
}

type finalResult struct {
	text       string
	confidence float64
}

func (c *testCallback) OnPartial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials = append(c.partials, text)
}

func (c *testCallback) OnFinal(text string, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals = append(c.finals, finalResult{text, confidence})
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) getPartials() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.partials...)
}

func (c *testCallback) getFinals() []finalResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]finalResult{}, c.finals...)
}

func (c *testCallback) getErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error{}, c.errors...)
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

func TestAdapter_New(t *testing.T) {
	adapter := New()
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if adapter.closed {
		t.Error("expected adapter to not be closed initially")
	}
	if adapter.started {
		t.Error("expected adapter to not be started initially")
	}
}

func TestAdapter_Preflight(t *testing.T) {
	wantErr := errors.New("no mic")
	adapter := NewWithOptions(Options{PreflightErr: wantErr})

	if err := adapter.Preflight(context.Background()); err != wantErr {
		t.Errorf("expected %v, got %v", wantErr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New().Preflight(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestAdapter_StartError(t *testing.T) {
	wantErr := errors.New("denied")
	adapter := NewWithOptions(Options{StartErr: wantErr})

	if err := adapter.Start(context.Background(), "en-US", &testCallback{}); err != wantErr {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
}

func TestAdapter_Start_RecordsLanguageHint(t *testing.T) {
	adapter := NewWithOptions(Options{})
	if err := adapter.Start(context.Background(), "en-IN", &testCallback{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer adapter.Close()

	if adapter.LanguageHint() != "en-IN" {
		t.Errorf("expected language hint en-IN, got %s", adapter.LanguageHint())
	}
}

func TestAdapter_SendAudio_PartialsThenFinal(t *testing.T) {
	utt := SimulatedUtterance{Partials: []string{"two", "two choc"}, Final: "two chocolate corn", Confidence: 0.9}
	adapter := NewWithOptions(Options{Utterances: []SimulatedUtterance{utt}})
	cb := &testCallback{}
	adapter.Start(context.Background(), "", cb)
	defer adapter.Close()

	for i := 0; i < 3; i++ {
		if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	waitFor(t, func() bool { return len(cb.getFinals()) == 1 })

	partials := cb.getPartials()
	if len(partials) != 2 || partials[0] != "two" || partials[1] != "two choc" {
		t.Errorf("expected ordered partials, got %v", partials)
	}
	final := cb.getFinals()[0]
	if final.text != "two chocolate corn" || final.confidence != 0.9 {
		t.Errorf("unexpected final: %+v", final)
	}
}

func TestAdapter_SendAudio_RepeatsPerUtterance(t *testing.T) {
	utt := SimulatedUtterance{Partials: []string{"one"}, Final: "one lemonade", Confidence: 0.8}
	adapter := NewWithOptions(Options{Utterances: []SimulatedUtterance{utt}})
	cb := &testCallback{}
	adapter.Start(context.Background(), "", cb)
	defer adapter.Close()

	for i := 0; i < 4; i++ {
		adapter.SendAudio(context.Background(), []byte("audio"))
	}

	waitFor(t, func() bool { return len(cb.getFinals()) == 2 })
}

func TestAdapter_Say(t *testing.T) {
	adapter := NewWithOptions(Options{})
	cb := &testCallback{}
	adapter.Start(context.Background(), "", cb)
	defer adapter.Close()

	if err := adapter.Say(context.Background(), "two butter corn", 0.7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, func() bool { return len(cb.getFinals()) == 1 })

	partials := cb.getPartials()
	if len(partials) != 2 || partials[1] != "two butter" {
		t.Errorf("expected progressive partials, got %v", partials)
	}
}

func TestAdapter_Fail(t *testing.T) {
	adapter := NewWithOptions(Options{})
	cb := &testCallback{}
	adapter.Start(context.Background(), "", cb)
	defer adapter.Close()

	adapter.Fail(context.Background(), errors.New("network down"))

	waitFor(t, func() bool { return len(cb.getErrors()) == 1 })
}

func TestAdapter_Close_Idempotent(t *testing.T) {
	adapter := NewWithOptions(Options{})
	adapter.Start(context.Background(), "", &testCallback{})

	adapter.Close()
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
	if adapter.CloseCount() != 1 {
		t.Errorf("expected 1 teardown, got %d", adapter.CloseCount())
	}
}

func TestAdapter_Close_DiscardsPending(t *testing.T) {
	adapter := NewWithOptions(Options{Delay: 50 * time.Millisecond})
	cb := &testCallback{}
	adapter.Start(context.Background(), "", cb)

	adapter.Say(context.Background(), "one caramel corn", 0.9)
	adapter.Close()

	time.Sleep(150 * time.Millisecond)
	if len(cb.getFinals()) != 0 {
		t.Errorf("expected no finals after close, got %d", len(cb.getFinals()))
	}
}

func TestAdapter_RestartAfterClose(t *testing.T) {
	adapter := NewWithOptions(Options{})
	adapter.Start(context.Background(), "", &testCallback{})
	adapter.Close()

	cb := &testCallback{}
	if err := adapter.Start(context.Background(), "", cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer adapter.Close()

	adapter.Say(context.Background(), "lemonade", 0.9)
	waitFor(t, func() bool { return len(cb.getFinals()) == 1 })
}

func TestAdapter_SendAudio_AfterClose(t *testing.T) {
	adapter := NewWithOptions(Options{})
	adapter.Start(context.Background(), "", &testCallback{})
	adapter.Close()

	// Should not panic or error
	if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultUtterances(t *testing.T) {
	if len(DefaultUtterances) != 5 {
		t.Errorf("expected 5 default utterances, got %d", len(DefaultUtterances))
	}

	for i, utt := range DefaultUtterances {
		if len(utt.Partials) == 0 {
			t.Errorf("utterance %d has no partials", i)
		}
		if utt.Final == "" {
			t.Errorf("utterance %d has empty final", i)
		}
		if utt.Confidence <= 0 || utt.Confidence > 1 {
			t.Errorf("utterance %d has invalid confidence %f", i, utt.Confidence)
		}
	}
}

func TestAdapter_ThreadSafety(t *testing.T) {
	adapter := NewWithOptions(Options{})
	adapter.Start(context.Background(), "", &testCallback{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				adapter.SendAudio(context.Background(), []byte("audio"))
				time.Sleep(time.Millisecond)
			}
		}()
	}

	wg.Wait()
	adapter.Close()

	// Should not panic - just verify it completes
}

func TestAdapter_NoCallbackSet(t *testing.T) {
	adapter := New()
	// Don't start

	// Should not panic
	if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
