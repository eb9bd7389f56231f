package ordering

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-ordering-service/internal/cart"
	"voice-ordering-service/internal/catalog"
	"voice-ordering-service/internal/events"
	"voice-ordering-service/internal/models"
	"voice-ordering-service/internal/observability/logging"
	"voice-ordering-service/internal/observability/metrics"
	"voice-ordering-service/internal/service/feedback"
	"voice-ordering-service/internal/service/intent"
	"voice-ordering-service/internal/service/stt"
	"voice-ordering-service/internal/service/transcription"
)

// Controller is the capture session the machine drives.
// *transcription.Controller implements it.
type Controller interface {
	Start(ctx context.Context, sink transcription.Sink) error
	Stop() error
	Generation() uint64
	SendAudio(ctx context.Context, chunk []byte) error
}

// Resolver maps a final transcript to intents. *intent.Resolver implements it.
type Resolver interface {
	Resolve(transcript string, acousticConfidence float64) ([]intent.Intent, float64)
}

// Feedback speaks prompts. *feedback.Synthesizer implements it.
type Feedback interface {
	Say(text string)
	Cancel()
}

// Deps are the collaborators of a Machine. Publisher may be nil.
type Deps struct {
	Controller Controller
	Resolver   Resolver
	Feedback   Feedback
	Cart       cart.BatchMutator
	Publisher  events.Sink
}

// Config configures a Machine.
type Config struct {
	SessionID     string
	SettleDelay   time.Duration // pause between the confirmation and the cart commit
	CommitTimeout time.Duration
	Catalog       *catalog.Catalog // example phrases for retry coaching
	Metrics       *metrics.Metrics

	// OnChange is called from the machine goroutine after every transition.
	// It must not call back into the Machine synchronously.
	OnChange func(Session)
}

const (
	DefaultSettleDelay   = 1200 * time.Millisecond
	DefaultCommitTimeout = 5 * time.Second
)

var (
	ErrBusy         = errors.New("ordering: session is already listening or processing")
	ErrNotRetryable = errors.New("ordering: session is not in an error state")
	ErrClosed       = errors.New("ordering: session closed")
)

// inbox messages
type (
	startCmd struct {
		retry bool
		reply chan error
	}
	stopCmd     struct{ reply chan error }
	startResult struct {
		seq uint64
		gen uint64
		err error
	}
	transcriptMsg struct{ ev transcription.Event }
	commitDue     struct{ seq uint64 }
)

// Machine owns one Session. Every transition runs on a single goroutine, so
// at most one final is resolved at a time and commits and cancellations
// never interleave.
type Machine struct {
	deps Deps
	cfg  Config
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan any
	done   chan struct{}
	wg     sync.WaitGroup // start goroutines

	mu   sync.RWMutex
	view Session

	// owned by the run goroutine
	s               Session
	starting        bool
	startSeq        uint64
	stopDuringStart bool
	early           []transcription.Event // events that raced ahead of startResult
	listenGen       uint64                // live capture generation, 0 when not capturing
	commitSeq       uint64
	commitTimer     *time.Timer
}

// NewMachine creates a machine in Idle and starts its goroutine. Close
// releases it.
func NewMachine(deps Deps, cfg Config) *Machine {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = DefaultCommitTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		deps:   deps,
		cfg:    cfg,
		log:    logging.WithSession(cfg.SessionID).With().Str("component", "ordering").Logger(),
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan any, 64),
		done:   make(chan struct{}),
	}
	cfg.Metrics.RecordSessionOpened()
	go m.run()
	return m
}

// SessionID returns the configured session ID.
func (m *Machine) SessionID() string { return m.cfg.SessionID }

// Snapshot returns a copy of the current session.
func (m *Machine) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.Clone()
}

// StartListening begins a listen cycle from Idle or Error. It returns once
// the request is accepted; pre-flight and capture start run in the
// background and their outcome shows up as Listening or Error(kind).
func (m *Machine) StartListening(ctx context.Context) error {
	return m.send(ctx, func(reply chan error) any { return startCmd{reply: reply} })
}

// Retry re-runs pre-flight and the listen cycle from an Error state.
func (m *Machine) Retry(ctx context.Context) error {
	return m.send(ctx, func(reply chan error) any { return startCmd{retry: true, reply: reply} })
}

// StopListening cancels capture, speech, any pending commit and queued
// finals, and returns to Idle. Calling it again is a no-op.
func (m *Machine) StopListening(ctx context.Context) error {
	return m.send(ctx, func(reply chan error) any { return stopCmd{reply: reply} })
}

// SendAudio pushes captured audio to the controller.
func (m *Machine) SendAudio(ctx context.Context, chunk []byte) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	return m.deps.Controller.SendAudio(ctx, chunk)
}

// Close stops everything and ends the machine goroutine. Idempotent.
func (m *Machine) Close() {
	m.cancel()
	<-m.done
}

func (m *Machine) send(ctx context.Context, build func(chan error) any) error {
	reply := make(chan error, 1)
	select {
	case m.inbox <- build(reply):
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-m.done:
		return ErrClosed
	}
}

// post delivers an internal message unless the machine is closing.
func (m *Machine) post(msg any) {
	select {
	case m.inbox <- msg:
	case <-m.ctx.Done():
	}
}

func (m *Machine) sink(ev transcription.Event) {
	m.post(transcriptMsg{ev: ev})
}

func (m *Machine) run() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			m.shutdown()
			return
		case msg := <-m.inbox:
			m.handle(msg)
		}
	}
}

func (m *Machine) handle(msg any) {
	switch msg := msg.(type) {
	case startCmd:
		msg.reply <- m.handleStart(msg.retry)
	case stopCmd:
		m.handleStop()
		msg.reply <- nil
	case startResult:
		m.handleStartResult(msg)
	case transcriptMsg:
		m.handleTranscript(msg.ev)
	case commitDue:
		m.handleCommit(msg.seq)
	}
}

func (m *Machine) shutdown() {
	m.cancelCommit()
	m.wg.Wait()
	m.deps.Controller.Stop()
	m.listenGen = 0
	m.deps.Feedback.Cancel()
	m.cfg.Metrics.RecordSessionClosed()
	m.log.Info().Str("state", m.s.State.String()).Msg("Ordering session closed")
}

func (m *Machine) handleStart(retry bool) error {
	if retry && (m.s.State != StateError || m.starting) {
		return ErrNotRetryable
	}
	if m.starting || (m.s.State != StateIdle && m.s.State != StateError) {
		return ErrBusy
	}

	m.starting = true
	m.stopDuringStart = false
	m.early = nil
	m.startSeq++
	seq := m.startSeq

	m.log.Info().Bool("retry", retry).Msg("Starting listen cycle")
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.deps.Controller.Start(m.ctx, m.sink)
		m.post(startResult{seq: seq, gen: m.deps.Controller.Generation(), err: err})
	}()
	return nil
}

func (m *Machine) handleStartResult(r startResult) {
	if r.seq != m.startSeq || !m.starting {
		return
	}
	m.starting = false
	early := m.early
	m.early = nil

	if m.stopDuringStart {
		m.stopDuringStart = false
		if r.err == nil {
			m.deps.Controller.Stop()
		}
		return
	}

	if r.err != nil {
		se := stt.Normalize(r.err, stt.PhaseStart)
		m.log.Warn().Err(se).Str("kind", se.Kind.String()).Str("phase", string(se.Phase)).Msg("Listen cycle could not start")
		m.apply(StartFailed{Kind: ErrorKindFor(se.Kind), Code: se.Code})
		m.deps.Feedback.Say(feedback.Remediation(se.Kind))
		m.publishOutcome(models.OutcomeCapabilityError, se, nil)
		return
	}

	m.listenGen = r.gen
	m.apply(ListenStarted{})
	for _, ev := range early {
		m.handleTranscript(ev)
	}
}

func (m *Machine) handleStop() {
	if m.starting {
		m.stopDuringStart = true
	}
	if m.s.State == StateIdle && m.listenGen == 0 && len(m.s.Queue) == 0 {
		return
	}

	prev := m.s
	m.cancelCommit()
	m.deps.Feedback.Cancel()
	m.stopCapture()
	m.apply(StopRequested{})

	if prev.State == StateProcessing || prev.State == StateSuccess {
		m.cfg.Metrics.RecordUtteranceDropped("cancelled")
		m.publishOutcome(models.OutcomeCancelled, nil, &prev)
	}
	for range prev.Queue {
		m.cfg.Metrics.RecordUtteranceDropped("cancelled")
	}
	m.log.Info().Str("from", prev.State.String()).Int("discardedQueued", len(prev.Queue)).Msg("Listening stopped")
}

func (m *Machine) handleTranscript(ev transcription.Event) {
	if m.starting {
		m.early = append(m.early, ev)
		return
	}
	if m.listenGen == 0 || ev.Generation != m.listenGen {
		return
	}

	switch ev.Kind {
	case transcription.EventInterim:
		m.apply(InterimReceived{Text: ev.Text})
		m.publishPartial(ev)

	case transcription.EventFinal:
		queued := m.s.State != StateListening
		m.publishFinal(ev, queued)
		if err := m.apply(FinalReceived{Final: Final{Text: ev.Text, Confidence: ev.Confidence, UtteranceID: ev.UtteranceID}}); err != nil {
			return
		}
		if queued {
			m.cfg.Metrics.RecordQueuedTranscript()
			m.log.Debug().Str("utteranceId", ev.UtteranceID).Int("queueLength", len(m.s.Queue)).Msg("Final queued")
			return
		}
		m.process()

	case transcription.EventError:
		se := ev.Err
		if se == nil {
			se = stt.Normalize(errors.New("unknown capture error"), stt.PhaseStream)
		}
		m.fail(se)
	}
}

// process resolves the final in Processing, and any queued finals that
// follow a no-match, until a commit is scheduled or the session settles.
func (m *Machine) process() {
	for m.s.State == StateProcessing {
		intents, confidence := m.deps.Resolver.Resolve(m.s.Transcript, m.s.Confidence)
		m.cfg.Metrics.RecordResolution(len(intents))
		m.apply(Resolved{Intents: intents})

		if m.s.State == StateSuccess {
			m.log.Info().
				Str("utteranceId", m.s.UtteranceID).
				Str("transcript", m.s.Transcript).
				Float64("confidence", confidence).
				Int("intents", len(intents)).
				Msg("Transcript resolved")
			m.deps.Feedback.Say(feedback.Confirmation(intents))
			m.scheduleCommit()
			return
		}

		m.log.Info().Str("utteranceId", m.s.UtteranceID).Str("transcript", m.s.Transcript).Msg("No menu item recognized")
		m.deps.Feedback.Say(feedback.RetryCoaching(m.cfg.Catalog))
		m.publishOutcome(models.OutcomeNoMatch, nil, nil)

		if len(m.s.Queue) == 0 {
			m.stopCapture()
			return
		}
		m.apply(Advance{})
	}
}

func (m *Machine) scheduleCommit() {
	m.commitSeq++
	seq := m.commitSeq
	m.commitTimer = time.AfterFunc(m.cfg.SettleDelay, func() { m.post(commitDue{seq: seq}) })
}

func (m *Machine) cancelCommit() {
	if m.commitTimer != nil {
		m.commitTimer.Stop()
		m.commitTimer = nil
	}
	m.commitSeq++
}

func (m *Machine) handleCommit(seq uint64) {
	if seq != m.commitSeq || m.s.State != StateSuccess {
		return
	}
	m.commitTimer = nil

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.CommitTimeout)
	err := m.commit(ctx, m.s.Intents)
	cancel()
	m.cfg.Metrics.RecordCartCommit(err)

	if err != nil {
		m.log.Error().Err(err).Str("utteranceId", m.s.UtteranceID).Msg("Cart commit failed")
		prev := m.s
		m.stopCapture()
		m.apply(Failed{Kind: ErrorOther, Code: "COMMIT_FAILED"})
		m.deps.Feedback.Say(feedback.Remediation(stt.KindOther))
		m.publishOutcome(models.OutcomeCommitFailed, nil, &prev)
		return
	}

	for _, in := range m.s.Intents {
		m.cfg.Metrics.RecordUnitsAdded(in.Item.ID, in.Quantity)
		m.publishCartUnits(in)
	}
	m.publishOutcome(models.OutcomeSuccess, nil, nil)
	m.log.Info().Str("utteranceId", m.s.UtteranceID).Int("items", len(m.s.Intents)).Msg("Committed to cart")

	m.apply(Committed{})
	if len(m.s.Queue) > 0 {
		m.apply(Advance{})
		m.process()
		return
	}
	m.stopCapture()
}

// commit adds every intent in one batch so a failed utterance writes nothing.
func (m *Machine) commit(ctx context.Context, intents []intent.Intent) error {
	adds := make([]cart.Addition, 0, len(intents))
	for _, in := range intents {
		adds = append(adds, cart.Addition{ItemID: in.Item.ID, Count: in.Quantity})
	}
	return m.deps.Cart.AddBatch(ctx, adds)
}

// fail handles a capability error raised while capturing.
func (m *Machine) fail(se *stt.Error) {
	prev := m.s
	m.cancelCommit()
	m.stopCapture()
	m.apply(Failed{Kind: ErrorKindFor(se.Kind), Code: se.Code})
	m.deps.Feedback.Say(feedback.Remediation(se.Kind))
	m.publishOutcome(models.OutcomeCapabilityError, se, nil)

	if prev.State == StateProcessing || prev.State == StateSuccess {
		m.cfg.Metrics.RecordUtteranceDropped("error")
	}
	m.log.Warn().Err(se).Str("kind", se.Kind.String()).Str("from", prev.State.String()).Msg("Capture failed")
}

func (m *Machine) stopCapture() {
	if m.listenGen == 0 {
		return
	}
	m.listenGen = 0
	if err := m.deps.Controller.Stop(); err != nil {
		m.log.Debug().Err(err).Msg("Controller stop returned error")
	}
}

func (m *Machine) apply(ev Event) error {
	next, err := Apply(m.s, ev)
	if err != nil {
		m.log.Warn().Err(err).Msg("Transition rejected")
		return err
	}

	prev := m.s.State
	m.s = next
	if prev != next.State {
		m.cfg.Metrics.RecordTransition(prev.String(), next.State.String())
		m.log.Debug().Str("from", prev.String()).Str("to", next.State.String()).Str("errorKind", next.ErrorKind.String()).Msg("State transition")
	}

	m.mu.Lock()
	m.view = next.Clone()
	m.mu.Unlock()

	if m.cfg.OnChange != nil {
		m.cfg.OnChange(next.Clone())
	}
	return nil
}
