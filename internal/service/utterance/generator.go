// Package utterance tracks the lifecycle of individual utterances within a
// capture session and generates their identifiers.
package utterance

import (
	"fmt"
	"sync/atomic"
)

// Generator produces utterance IDs of the form "<session>-utt-<n>".
// The counter is shared across sessions so IDs are unique per process.
type Generator struct {
	counter uint64
}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Next(sessionID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-utt-%d", sessionID, n)
}
