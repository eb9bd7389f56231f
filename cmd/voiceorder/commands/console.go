package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"voice-ordering-service/internal/app"
	"voice-ordering-service/internal/service/feedback"
	"voice-ordering-service/internal/service/ordering"
	"voice-ordering-service/internal/service/stt"
	"voice-ordering-service/internal/service/stt/mock"
)

var consoleConfidence float64

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Order by typing what you would say",
	Long: `Order by typing what you would say.

Each line is delivered to the ordering session as a spoken utterance
through the simulated recognizer: progressive interim transcripts, then
the final. Confirmations and prompts are printed instead of spoken.

Commands:
  :stop    stop listening and discard anything not yet committed
  :retry   retry after an error
  :cart    show the cart
  :mute    toggle spoken feedback
  :quit    exit

Example:
  voiceorder console
  > I want two chocolate corn
    << Adding two Chocolate Corn Delight to your cart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	consoleCmd.Flags().Float64Var(&consoleConfidence, "confidence", 0.9, "acoustic confidence of typed utterances")
}

// consoleSession ties the typed input to the simulated recognizer.
type consoleSession struct {
	out     io.Writer
	app     *app.Application
	session *app.Session

	mu      sync.Mutex
	adapter *mock.Adapter
}

func runConsole(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()
	cfg.STT.Provider = "mock"
	cfg.Observability.LogFormat = "console"
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Observability.LogLevel = "warn"
	}

	// Session output arrives from the machine and speaker goroutines.
	out = lockedWriter{w: out, mu: &sync.Mutex{}}
	cs := &consoleSession{out: out}
	application, err := app.NewWithOptions(cfg, app.Options{
		Adapters: func(context.Context, string) (stt.Adapter, error) {
			a := mock.NewWithOptions(mock.Options{Delay: 80 * time.Millisecond})
			cs.mu.Lock()
			cs.adapter = a
			cs.mu.Unlock()
			return a, nil
		},
		Speakers: func(string) feedback.Speaker {
			return feedback.NewConsoleSpeaker(out)
		},
		OnChange: func(_ string, s ordering.Session) {
			fmt.Fprintf(out, "  [%s]%s\n", s.State, stateDetail(s))
		},
	})
	if err != nil {
		return err
	}
	defer application.Shutdown()
	application.Start()
	cs.app = application

	if cs.session, err = application.Sessions.Open(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out, "Type what you would say. :quit to exit.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := cs.handle(ctx, line); quit {
			return nil
		}
	}
}

func (cs *consoleSession) handle(ctx context.Context, line string) (quit bool) {
	m := cs.session.Machine
	switch line {
	case ":quit", ":q":
		return true
	case ":stop":
		m.StopListening(ctx)
	case ":retry":
		if err := m.Retry(ctx); err != nil {
			fmt.Fprintln(cs.out, "  !", err)
		}
	case ":cart":
		printCart(cs.out, cs.app)
	case ":mute":
		cs.session.Feedback.SetMuted(!cs.session.Feedback.Muted())
		fmt.Fprintf(cs.out, "  muted=%v\n", cs.session.Feedback.Muted())
	default:
		if err := cs.ensureListening(ctx); err != nil {
			fmt.Fprintln(cs.out, "  !", err)
			return false
		}
		cs.mu.Lock()
		a := cs.adapter
		cs.mu.Unlock()
		if err := a.Say(ctx, line, consoleConfidence); err != nil {
			fmt.Fprintln(cs.out, "  !", err)
		}
		cs.waitSettled(ctx)
	}
	return false
}

// ensureListening starts a listen cycle unless one is already running.
func (cs *consoleSession) ensureListening(ctx context.Context) error {
	m := cs.session.Machine
	switch m.Snapshot().State {
	case ordering.StateListening:
		return nil
	case ordering.StateError:
		if err := m.Retry(ctx); err != nil {
			return err
		}
	case ordering.StateIdle:
		if err := m.StartListening(ctx); err != nil {
			return err
		}
	}
	return waitUntil(ctx, 3*time.Second, func() bool {
		s := m.Snapshot().State
		return s == ordering.StateListening || s == ordering.StateError
	})
}

// waitSettled waits for the utterance to be committed or rejected so the
// prompt does not interleave with session output.
func (cs *consoleSession) waitSettled(ctx context.Context) {
	m := cs.session.Machine
	waitUntil(ctx, 5*time.Second, func() bool {
		s := m.Snapshot()
		return (s.State == ordering.StateIdle || s.State == ordering.StateError) && len(s.Queue) == 0
	})
}

func waitUntil(ctx context.Context, timeout time.Duration, cond func() bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

func stateDetail(s ordering.Session) string {
	switch s.State {
	case ordering.StateListening:
		if s.Transcript != "" {
			return " " + s.Transcript
		}
	case ordering.StateProcessing:
		return fmt.Sprintf(" %q (%.2f)", s.Transcript, s.Confidence)
	case ordering.StateSuccess:
		parts := make([]string, 0, len(s.Intents))
		for _, in := range s.Intents {
			parts = append(parts, fmt.Sprintf("%dx %s", in.Quantity, in.Item.ID))
		}
		return " " + strings.Join(parts, ", ")
	case ordering.StateError:
		return " " + s.ErrorKind.String()
	}
	return ""
}

func printCart(out io.Writer, a *app.Application) {
	lines := a.Cart.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(out, "  cart is empty")
		return
	}
	for _, l := range lines {
		fmt.Fprintf(out, "  %2d x %-24s %7.2f\n", l.Quantity, l.Name, l.Subtotal())
	}
	fmt.Fprintf(out, "  %-29s %7.2f\n", "total", a.Cart.Total())
}

type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
