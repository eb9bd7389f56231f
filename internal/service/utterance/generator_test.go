package utterance

import (
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestGenerator_Next(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Next("sess-123")
	if id1 != "sess-123-utt-1" {
		t.Errorf("expected 'sess-123-utt-1', got %s", id1)
	}

	id2 := gen.Next("sess-123")
	if id2 != "sess-123-utt-2" {
		t.Errorf("expected 'sess-123-utt-2', got %s", id2)
	}

	// Counter is shared across sessions
	id3 := gen.Next("sess-456")
	if id3 != "sess-456-utt-3" {
		t.Errorf("expected 'sess-456-utt-3', got %s", id3)
	}
}

func TestGenerator_ThreadSafety(t *testing.T) {
	gen := NewGenerator()
	numGoroutines := 100
	perGoroutine := 10

	var wg sync.WaitGroup
	results := make(chan string, numGoroutines*perGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				results <- gen.Next("sess-concurrent")
			}
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for id := range results {
		if seen[id] {
			t.Errorf("duplicate utterance ID generated: %s", id)
		}
		seen[id] = true
	}

	if len(seen) != numGoroutines*perGoroutine {
		t.Errorf("expected %d unique utterance IDs, got %d", numGoroutines*perGoroutine, len(seen))
	}
}

func TestGenerator_CounterMonotonic(t *testing.T) {
	gen := NewGenerator()

	var prev uint64
	for i := 0; i < 100; i++ {
		id := gen.Next("sess-test")
		n, err := strconv.ParseUint(id[strings.LastIndex(id, "-")+1:], 10, 64)
		if err != nil {
			t.Fatalf("failed to parse utterance id %s: %v", id, err)
		}
		if n <= prev {
			t.Errorf("counter not monotonic: %d <= %d", n, prev)
		}
		prev = n
	}
}
