package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"voice-ordering-service/internal/models"
)

// Sink is what AsyncPublisher forwards to. *Publisher implements it.
type Sink interface {
	PublishPartial(ctx context.Context, key string, event models.TranscriptPartial) error
	PublishFinal(ctx context.Context, key string, event models.TranscriptFinal) error
	PublishCartUnits(ctx context.Context, key string, event models.CartUnitsAdded) error
	PublishOutcome(ctx context.Context, key string, event models.SessionOutcome) error
}

// AsyncPublisher hands events to a single worker so callers never wait on
// Kafka. Events are published in enqueue order; when the buffer is full the
// event is dropped and logged.
type AsyncPublisher struct {
	sink    Sink
	timeout time.Duration
	jobs    chan func(ctx context.Context) error

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the worker. buffer is the number of events held while
// the sink is slow.
func NewAsync(sink Sink, buffer int, timeout time.Duration) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &AsyncPublisher{
		sink:    sink,
		timeout: timeout,
		jobs:    make(chan func(ctx context.Context) error, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncPublisher) PublishPartial(_ context.Context, key string, event models.TranscriptPartial) error {
	return a.enqueue(event.EventType, key, func(ctx context.Context) error { return a.sink.PublishPartial(ctx, key, event) })
}

func (a *AsyncPublisher) PublishFinal(_ context.Context, key string, event models.TranscriptFinal) error {
	return a.enqueue(event.EventType, key, func(ctx context.Context) error { return a.sink.PublishFinal(ctx, key, event) })
}

func (a *AsyncPublisher) PublishCartUnits(_ context.Context, key string, event models.CartUnitsAdded) error {
	return a.enqueue(event.EventType, key, func(ctx context.Context) error { return a.sink.PublishCartUnits(ctx, key, event) })
}

func (a *AsyncPublisher) PublishOutcome(_ context.Context, key string, event models.SessionOutcome) error {
	return a.enqueue(event.EventType, key, func(ctx context.Context) error { return a.sink.PublishOutcome(ctx, key, event) })
}

// Close stops accepting events and waits for the buffer to drain.
func (a *AsyncPublisher) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}

func (a *AsyncPublisher) enqueue(eventType, key string, job func(ctx context.Context) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		log.Warn().Str("eventType", eventType).Str("key", key).Msg("Publisher closed, event dropped")
		return nil
	}

	select {
	case a.jobs <- job:
	default:
		log.Warn().Str("eventType", eventType).Str("key", key).Msg("Publish buffer full, event dropped")
	}
	return nil
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for job := range a.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		// Errors are logged and counted by the sink.
		_ = job(ctx)
		cancel()
	}
}
