// Order Viewer - live view of voice ordering sessions.
// Consumes the ordering topics from Kafka and pushes events to browsers
// over WebSocket.
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voice-ordering-service/internal/config"
	"voice-ordering-service/internal/observability/logging"
	"voice-ordering-service/internal/schema"
)

//go:embed static/*
var staticFiles embed.FS

var (
	port     string
	brokers  string
	groupID  string
	lookback time.Duration
	validate bool
)

var rootCmd = &cobra.Command{
	Use:   "orderviewer",
	Short: "Live browser view of voice ordering events",
	Long: `Live browser view of voice ordering events.

Reads the transcript, cart and outcome topics (KAFKA_TOPIC_* settings)
and streams every event to connected browsers at /ws.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	cfg := config.Load()
	rootCmd.Flags().StringVar(&port, "port", "8081", "HTTP server port")
	rootCmd.Flags().StringVar(&brokers, "brokers", strings.Join(cfg.Kafka.Brokers, ","), "Kafka brokers (comma-separated)")
	rootCmd.Flags().StringVar(&groupID, "group", "", "Kafka consumer group; empty reads partition 0 directly")
	rootCmd.Flags().DurationVar(&lookback, "lookback", time.Hour, "replay window when not in a consumer group")
	rootCmd.Flags().BoolVar(&validate, "validate", true, "skip events that do not match their schema")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.Observability.LogLevel, Format: cfg.Observability.LogFormat})
	log := logging.WithComponent("orderviewer")

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var validator *schema.Validator
	if validate {
		var err error
		if validator, err = schema.New(); err != nil {
			return err
		}
	}

	hub := newHub(log)
	topics := []string{cfg.Kafka.TopicPartial, cfg.Kafka.TopicFinal, cfg.Kafka.TopicCart, cfg.Kafka.TopicOutcome}
	for _, topic := range topics {
		cc := consumerConfig{
			Brokers:  strings.Split(brokers, ","),
			Topic:    topic,
			GroupID:  groupID,
			Lookback: lookback,
		}
		go consume(ctx, newReader(ctx, cc, log), topic, hub, validator, log)
	}

	// Serve static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.Handle("/ws", hub)

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("url", "http://localhost:"+port).
		Str("brokers", brokers).
		Strs("topics", topics).
		Msg("Order viewer starting")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
