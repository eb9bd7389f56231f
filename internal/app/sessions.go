package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-ordering-service/internal/cart"
	"voice-ordering-service/internal/catalog"
	"voice-ordering-service/internal/config"
	"voice-ordering-service/internal/events"
	"voice-ordering-service/internal/observability/logging"
	"voice-ordering-service/internal/observability/metrics"
	"voice-ordering-service/internal/service/feedback"
	"voice-ordering-service/internal/service/intent"
	"voice-ordering-service/internal/service/ordering"
	"voice-ordering-service/internal/service/stt"
	"voice-ordering-service/internal/service/transcription"
	"voice-ordering-service/internal/service/utterance"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
)

// Session is one open voice-ordering interaction and its collaborators.
type Session struct {
	ID        string
	CreatedAt time.Time

	Machine  *ordering.Machine
	Feedback *feedback.Synthesizer
	Adapter  stt.Adapter

	closeOnce sync.Once
}

// Close ends capture, silences feedback, stops the machine and releases the
// adapter's provider connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Machine.Close()
		s.Feedback.Close()
		if r, ok := s.Adapter.(stt.Releaser); ok {
			if err := r.Release(); err != nil {
				sessLog := logging.WithSession(s.ID)
				sessLog.Warn().Err(err).Msg("Releasing transcription adapter failed")
			}
		}
	})
}

type registryDeps struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	resolver  *intent.Resolver
	cart      cart.BatchMutator
	publisher events.Sink
	metrics   *metrics.Metrics
	adapters  AdapterFactory
	speakers  SpeakerFactory
	generator *utterance.Generator
	onChange  func(sessionID string, s ordering.Session)
}

// Registry owns the open sessions, keyed by ID.
type Registry struct {
	deps registryDeps

	mu       sync.RWMutex
	sessions map[string]*Session
	pending  int // slots reserved by Open calls still building their session
}

func newRegistry(deps registryDeps) *Registry {
	return &Registry{deps: deps, sessions: make(map[string]*Session)}
}

// Open creates a session in Idle.
func (r *Registry) Open(ctx context.Context) (*Session, error) {
	if !r.reserve() {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	adapter, err := r.deps.adapters(ctx, id)
	if err != nil {
		r.mu.Lock()
		r.pending--
		r.mu.Unlock()
		return nil, fmt.Errorf("create transcription adapter: %w", err)
	}

	c := r.deps.cfg
	ctrl := transcription.NewController(adapter, transcription.Options{
		SessionID:    id,
		LanguageHint: c.STT.LanguageCode,
		Limits: transcription.Limits{
			MaxAudioBytes: c.CaptureLimits.MaxAudioBytes,
			MaxDuration:   c.CaptureLimits.MaxDuration,
			MaxPartials:   c.CaptureLimits.MaxPartials,
		},
		Generator: r.deps.generator,
		Metrics:   r.deps.metrics,
	})
	sessLog := logging.WithSession(id)
	synth := feedback.NewSynthesizer(r.deps.speakers(id), feedback.Options{
		Voice: feedback.Voice{
			Rate:         c.Feedback.Rate,
			Pitch:        c.Feedback.Pitch,
			Volume:       c.Feedback.Volume,
			LanguageHint: c.STT.LanguageCode,
		},
		Muted:   c.Feedback.Muted,
		Metrics: r.deps.metrics,
		Logger:  &sessLog,
	})
	m := ordering.NewMachine(ordering.Deps{
		Controller: ctrl,
		Resolver:   r.deps.resolver,
		Feedback:   synth,
		Cart:       r.deps.cart,
		Publisher:  r.deps.publisher,
	}, ordering.Config{
		SessionID:     id,
		SettleDelay:   c.Ordering.SettleDelay,
		CommitTimeout: c.Ordering.CommitTimeout,
		Catalog:       r.deps.catalog,
		Metrics:       r.deps.metrics,
		OnChange:      r.onChange(id),
	})

	s := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Machine:   m,
		Feedback:  synth,
		Adapter:   adapter,
	}
	r.mu.Lock()
	r.pending--
	r.sessions[id] = s
	r.mu.Unlock()

	sessLog.Info().Str("sttProvider", c.STT.Provider).Msg("Ordering session opened")
	return s, nil
}

// reserve claims a session slot under the write lock so concurrent Opens
// cannot exceed MaxSessions.
func (r *Registry) reserve() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	limit := r.deps.cfg.Ordering.MaxSessions
	if limit > 0 && len(r.sessions)+r.pending >= limit {
		return false
	}
	r.pending++
	return true
}

func (r *Registry) onChange(id string) func(ordering.Session) {
	if r.deps.onChange == nil {
		return nil
	}
	return func(s ordering.Session) { r.deps.onChange(id, s) }
}

// Get returns an open session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close removes and closes a session.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// List returns the open sessions, oldest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session and returns how many were open.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	wg.Wait()
	return len(all)
}
