package ordering

import (
	"errors"
	"testing"

	"voice-ordering-service/internal/catalog"
	"voice-ordering-service/internal/service/intent"
	"voice-ordering-service/internal/service/stt"
)

func testIntents(t *testing.T, ids ...string) []intent.Intent {
	t.Helper()
	cat := catalog.Default()
	out := make([]intent.Intent, 0, len(ids))
	for _, id := range ids {
		item, ok := cat.Lookup(id)
		if !ok {
			t.Fatalf("unknown item %s", id)
		}
		out = append(out, intent.Intent{Item: item, Quantity: 1, MatchConfidence: 0.9})
	}
	return out
}

func TestApply_Transitions(t *testing.T) {
	final := Final{Text: "two chocolate corn", Confidence: 0.92, UtteranceID: "u1"}
	idle := Session{State: StateIdle}
	listening := Session{State: StateListening}
	processing := Session{State: StateProcessing, Transcript: final.Text, Confidence: 0.92, UtteranceID: "u1"}
	success := Session{State: StateSuccess, Transcript: final.Text, Intents: testIntents(t, "choco-corn")}
	noMatch := Session{State: StateError, ErrorKind: ErrorNoMatch}
	denied := Session{State: StateError, ErrorKind: ErrorPermissionDenied}

	tests := []struct {
		name      string
		from      Session
		ev        Event
		wantState State
		wantKind  ErrorKind
		wantErr   bool
	}{
		{"idle listen", idle, ListenStarted{}, StateListening, ErrorNone, false},
		{"error listen", denied, ListenStarted{}, StateListening, ErrorNone, false},
		{"listening listen", listening, ListenStarted{}, StateListening, ErrorNone, true},
		{"idle start failed", idle, StartFailed{Kind: ErrorPermissionDenied}, StateError, ErrorPermissionDenied, false},
		{"processing start failed", processing, StartFailed{Kind: ErrorNetwork}, StateProcessing, ErrorNone, true},
		{"listening final", listening, FinalReceived{Final: final}, StateProcessing, ErrorNone, false},
		{"idle final", idle, FinalReceived{Final: final}, StateIdle, ErrorNone, true},
		{"processing final queued", processing, FinalReceived{Final: final}, StateProcessing, ErrorNone, false},
		{"success final queued", success, FinalReceived{Final: final}, StateSuccess, ErrorNone, false},
		{"processing resolved", processing, Resolved{Intents: testIntents(t, "choco-corn")}, StateSuccess, ErrorNone, false},
		{"processing no match", processing, Resolved{}, StateError, ErrorNoMatch, false},
		{"listening resolved", listening, Resolved{}, StateListening, ErrorNone, true},
		{"success committed", success, Committed{}, StateIdle, ErrorNone, false},
		{"processing committed", processing, Committed{}, StateProcessing, ErrorNone, true},
		{"advance without queue", idle, Advance{}, StateIdle, ErrorNone, true},
		{"listening failed", listening, Failed{Kind: ErrorNetwork}, StateError, ErrorNetwork, false},
		{"success failed", success, Failed{Kind: ErrorServiceUnavailable}, StateError, ErrorServiceUnavailable, false},
		{"listening stop", listening, StopRequested{}, StateIdle, ErrorNone, false},
		{"success stop", success, StopRequested{}, StateIdle, ErrorNone, false},
		{"no match stop", noMatch, StopRequested{}, StateIdle, ErrorNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.from, tt.ev)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.State != tt.wantState {
				t.Errorf("expected state %s, got %s", tt.wantState, got.State)
			}
			if got.ErrorKind != tt.wantKind {
				t.Errorf("expected error kind %q, got %q", tt.wantKind, got.ErrorKind)
			}
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := Session{State: StateSuccess, Intents: testIntents(t, "choco-corn"), Queue: []Final{{Text: "a"}}}

	next, _ := Apply(s, FinalReceived{Final: Final{Text: "b"}})
	next.Queue[0].Text = "changed"

	if len(s.Queue) != 1 || s.Queue[0].Text != "a" {
		t.Errorf("expected input queue untouched, got %+v", s.Queue)
	}
}

func TestApply_QueueIsFIFO(t *testing.T) {
	s := Session{State: StateListening}
	for _, text := range []string{"first", "second", "third"} {
		var err error
		s, err = Apply(s, FinalReceived{Final: Final{Text: text}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if s.Transcript != "first" || len(s.Queue) != 2 {
		t.Fatalf("expected first processing and two queued, got %q and %d", s.Transcript, len(s.Queue))
	}

	s, _ = Apply(s, Resolved{Intents: testIntents(t, "cold-coffee")})
	s, _ = Apply(s, Committed{})
	s, _ = Apply(s, Advance{})
	if s.State != StateProcessing || s.Transcript != "second" {
		t.Errorf("expected second in processing, got %s %q", s.State, s.Transcript)
	}

	s, _ = Apply(s, Resolved{})
	if s.State != StateError || s.ErrorKind != ErrorNoMatch {
		t.Fatalf("expected no match, got %s %s", s.State, s.ErrorKind)
	}
	s, err := Apply(s, Advance{})
	if err != nil {
		t.Fatalf("expected advance after no match, got %v", err)
	}
	if s.Transcript != "third" || s.ErrorKind != ErrorNone || len(s.Queue) != 0 {
		t.Errorf("expected third in processing with empty queue, got %+v", s)
	}
}

func TestApply_IntentsOnlyWhileProcessingOrSuccess(t *testing.T) {
	s := Session{State: StateSuccess, Intents: testIntents(t, "choco-corn", "mint-lemonade")}

	for _, ev := range []Event{Committed{}, Failed{Kind: ErrorNetwork}, StopRequested{}} {
		next, err := Apply(s, ev)
		if err != nil {
			t.Fatalf("%T: unexpected error: %v", ev, err)
		}
		if len(next.Intents) != 0 {
			t.Errorf("%T: expected intents cleared in %s, got %d", ev, next.State, len(next.Intents))
		}
	}
}

func TestApply_FailedDiscardsQueue(t *testing.T) {
	s := Session{State: StateProcessing, Queue: []Final{{Text: "x"}, {Text: "y"}}}

	next, _ := Apply(s, Failed{Kind: ErrorNetwork})
	if len(next.Queue) != 0 {
		t.Errorf("expected queue discarded, got %d", len(next.Queue))
	}
	if !next.Retryable() {
		t.Error("expected error state to be retryable")
	}
}

func TestInterimOutsideListeningIgnored(t *testing.T) {
	s := Session{State: StateProcessing, Transcript: "two chocolate corn"}
	next, err := Apply(s, InterimReceived{Text: "one"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Transcript != "two chocolate corn" {
		t.Errorf("expected transcript unchanged, got %q", next.Transcript)
	}
}

func TestErrorKindFor(t *testing.T) {
	tests := []struct {
		in   stt.Kind
		want ErrorKind
	}{
		{stt.KindPermissionDenied, ErrorPermissionDenied},
		{stt.KindNoAudioInput, ErrorNoAudioInput},
		{stt.KindServiceUnavailable, ErrorServiceUnavailable},
		{stt.KindNetwork, ErrorNetwork},
		{stt.KindOther, ErrorOther},
	}
	for _, tt := range tests {
		if got := ErrorKindFor(tt.in); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.in, tt.want, got)
		}
		if ErrorKindFor(tt.in).String() != tt.in.String() {
			t.Errorf("%s: expected matching string, got %s", tt.in, ErrorKindFor(tt.in))
		}
	}
	if ErrorNoMatch.String() != "NO_MATCH" {
		t.Errorf("expected NO_MATCH, got %s", ErrorNoMatch)
	}
}
