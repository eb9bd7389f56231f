// Package app wires the voice-ordering service together and owns the
// registry of open ordering sessions.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voice-ordering-service/internal/cart"
	"voice-ordering-service/internal/catalog"
	"voice-ordering-service/internal/config"
	"voice-ordering-service/internal/events"
	"voice-ordering-service/internal/observability/logging"
	"voice-ordering-service/internal/observability/metrics"
	"voice-ordering-service/internal/schema"
	"voice-ordering-service/internal/service/feedback"
	"voice-ordering-service/internal/service/intent"
	"voice-ordering-service/internal/service/ordering"
	"voice-ordering-service/internal/service/stt"
	"voice-ordering-service/internal/service/stt/google"
	"voice-ordering-service/internal/service/stt/mock"
	"voice-ordering-service/internal/service/utterance"
)

const serviceName = "voice-ordering-service"

// AdapterFactory creates the transcription collaborator for a new session.
type AdapterFactory func(ctx context.Context, sessionID string) (stt.Adapter, error)

// SpeakerFactory creates the speech output for a new session.
type SpeakerFactory func(sessionID string) feedback.Speaker

// Options overrides collaborators, mainly for tests and the console.
type Options struct {
	Metrics  *metrics.Metrics
	Catalog  *catalog.Catalog
	Adapters AdapterFactory
	Speakers SpeakerFactory
	Sink     events.Sink // replaces the Kafka publisher
	// OnChange observes every session transition. It runs on the session
	// goroutine and must not block.
	OnChange func(sessionID string, s ordering.Session)
	// SkipLogging leaves the global logger untouched.
	SkipLogging bool
}

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Metrics  *metrics.Metrics
	Catalog  *catalog.Catalog
	Resolver *intent.Resolver
	Cart     *cart.Cart
	Sessions *Registry

	publisher *events.Publisher
	sink      events.Sink
	async     *events.AsyncPublisher
	ready     atomic.Bool
}

// ErrNotReady is returned by Ready before Start and after Shutdown.
var ErrNotReady = errors.New("application not ready")

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) (*Application, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions constructs an Application with collaborator overrides.
func NewWithOptions(cfg *config.Config, opts Options) (*Application, error) {
	a := &Application{Cfg: cfg, Metrics: opts.Metrics}
	if !opts.SkipLogging {
		a.setupLogger()
	}
	a.Logger = logging.WithComponent("application").With().Str("service", serviceName).Logger()
	if a.Metrics == nil {
		a.Metrics = metrics.DefaultMetrics
	}

	cat := opts.Catalog
	if cat == nil {
		var err error
		if cat, err = loadCatalog(cfg.Catalog.Path); err != nil {
			return nil, err
		}
	}
	a.Catalog = cat
	a.Resolver = intent.NewResolver(cat, intent.Options{MaxQuantity: cfg.Ordering.MaxQuantity})
	a.Cart = cart.New(cat)

	sink := opts.Sink
	if sink == nil {
		pub, err := a.newPublisher()
		if err != nil {
			return nil, err
		}
		a.publisher = pub
		sink = pub
	}
	a.sink = sink
	a.async = events.NewAsync(sink, cfg.Kafka.BufferSize, cfg.Kafka.Timeout)

	adapters := opts.Adapters
	if adapters == nil {
		var err error
		if adapters, err = a.adapterFactory(); err != nil {
			return nil, err
		}
	}
	speakers := opts.Speakers
	if speakers == nil {
		speakers = func(sessionID string) feedback.Speaker {
			return &feedback.LogSpeaker{Log: logging.WithSession(sessionID)}
		}
	}

	a.Sessions = newRegistry(registryDeps{
		cfg:       cfg,
		catalog:   cat,
		resolver:  a.Resolver,
		cart:      a.Cart,
		publisher: a.async,
		metrics:   a.Metrics,
		adapters:  adapters,
		speakers:  speakers,
		generator: utterance.NewGenerator(),
		onChange:  opts.OnChange,
	})

	a.Logger.Info().
		Int("menuItems", cat.Len()).
		Str("sttProvider", cfg.STT.Provider).
		Bool("kafkaEnabled", cfg.Kafka.Enabled && opts.Sink == nil).
		Msg("Voice ordering application created")
	return a, nil
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})
	l := logging.Logger()
	l.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	return cat, nil
}

func (a *Application) newPublisher() (*events.Publisher, error) {
	k := a.Cfg.Kafka
	var v *schema.Validator
	if k.Validate {
		var err error
		if v, err = schema.New(); err != nil {
			return nil, fmt.Errorf("build event schemas: %w", err)
		}
	}
	return events.New(&events.Config{
		Enabled:      k.Enabled,
		Brokers:      k.Brokers,
		TopicPartial: k.TopicPartial,
		TopicFinal:   k.TopicFinal,
		TopicCart:    k.TopicCart,
		TopicOutcome: k.TopicOutcome,
		Principal:    k.Principal,
		Validator:    v,
		Metrics:      a.Metrics,
	}), nil
}

func (a *Application) adapterFactory() (AdapterFactory, error) {
	s := a.Cfg.STT
	switch s.Provider {
	case "mock":
		return func(context.Context, string) (stt.Adapter, error) { return mock.New(), nil }, nil
	case "google":
		gc := google.Config{
			LanguageCode:    s.LanguageCode,
			SampleRateHz:    int32(s.SampleRateHz),
			InterimResults:  s.InterimResults,
			AudioEncoding:   s.AudioEncoding,
			CredentialsFile: s.CredentialsFile,
		}
		if s.PhraseHints {
			gc.PhraseHints = phraseHints(a.Catalog)
		}
		return func(ctx context.Context, _ string) (stt.Adapter, error) { return google.New(ctx, gc) }, nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", s.Provider)
	}
}

// phraseHints lists every catalog keyword and canonical name.
func phraseHints(cat *catalog.Catalog) []string {
	var hints []string
	for _, it := range cat.Items() {
		hints = append(hints, it.Name)
		hints = append(hints, it.Keywords...)
	}
	return hints
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Voice ordering service starting")

	return nil
}

// Ready reports whether the service accepts traffic.
func (a *Application) Ready() error {
	if !a.ready.Load() {
		return ErrNotReady
	}
	return nil
}

// Shutdown closes every session and flushes pending events.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	n := a.Sessions.CloseAll()
	if err := a.async.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Event queue close failed")
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Kafka publisher close failed")
		}
	}
	shutdownLogger.Info().Int("sessionsClosed", n).Msg("Voice ordering service shut down")
}
