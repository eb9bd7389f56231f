package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	streamServer   string
	streamSession  string
	streamChunk    time.Duration
	streamRealtime bool
	streamWait     time.Duration
)

var streamWavCmd = &cobra.Command{
	Use:   "stream-wav <file.wav>",
	Short: "Stream a WAV file to a server session",
	Long: `Stream a WAV file (PCM, 8kHz 16-bit mono recommended) to a running
voiceorder server as pushed audio.

A new session is opened unless --session is given. The command starts a
listen cycle, streams the audio in chunks at real-time pace, then waits
for the session to settle and prints the cart.

Example:
  voiceorder stream-wav --server http://localhost:8080 testdata/order.wav`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return streamWAV(ctx, args[0], cmd.OutOrStdout())
	},
}

func init() {
	streamWavCmd.Flags().StringVar(&streamServer, "server", "http://localhost:8080", "voiceorder HTTP address")
	streamWavCmd.Flags().StringVar(&streamSession, "session", "", "existing session ID")
	streamWavCmd.Flags().DurationVar(&streamChunk, "chunk", 100*time.Millisecond, "audio per request")
	streamWavCmd.Flags().BoolVar(&streamRealtime, "realtime", true, "pace chunks at playback speed")
	streamWavCmd.Flags().DurationVar(&streamWait, "wait", 15*time.Second, "how long to wait for the session to settle")
}

// apiClient is a minimal client for the session API.
type apiClient struct {
	base string
	hc   *http.Client
}

type sessionState struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Transcript string `json:"transcript"`
	ErrorKind  string `json:"errorKind"`
	Queued     int    `json:"queued"`
	LastPrompt string `json:"lastPrompt"`
}

type cartState struct {
	Lines []struct {
		ItemID   string  `json:"itemId"`
		Name     string  `json:"name"`
		Quantity int     `json:"quantity"`
		Price    float64 `json:"unitPrice"`
	} `json:"lines"`
	Total float64 `json:"total"`
}

func (c *apiClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func streamWAV(ctx context.Context, path string, out io.Writer) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	format, err := readWAVHeader(f)
	if err != nil {
		return err
	}
	log.Info().
		Uint16("channels", format.Channels).
		Uint32("sampleRate", format.SampleRate).
		Uint16("bitsPerSample", format.BitsPerSample).
		Msg("WAV file")
	if format.SampleRate != 8000 {
		log.Warn().Uint32("sampleRate", format.SampleRate).Msg("Expected 8000 Hz audio")
	}

	c := &apiClient{base: strings.TrimRight(streamServer, "/"), hc: &http.Client{Timeout: 10 * time.Second}}

	id := streamSession
	if id == "" {
		var s sessionState
		if err := c.do(ctx, http.MethodPost, "/v1/sessions", nil, &s); err != nil {
			return err
		}
		id = s.ID
		log.Info().Str("sessionId", id).Msg("Session opened")
	}
	sessionPath := "/v1/sessions/" + id

	if err := c.do(ctx, http.MethodPost, sessionPath+"/listen", nil, nil); err != nil {
		return err
	}
	if _, err := waitForState(ctx, c, sessionPath, 5*time.Second, "LISTENING", "ERROR"); err != nil {
		return err
	}

	chunkSize := int(float64(format.bytesPerSecond()) * streamChunk.Seconds())
	if chunkSize <= 0 {
		chunkSize = 1600
	}
	buf := make([]byte, chunkSize)
	var total int64
	var chunks int
	start := time.Now()
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			chunks++
			total += int64(n)
			if err := c.do(ctx, http.MethodPost, sessionPath+"/audio", buf[:n], nil); err != nil {
				log.Warn().Err(err).Int("chunk", chunks).Msg("Audio chunk rejected")
			}
			if chunks%10 == 0 {
				log.Debug().Int("chunk", chunks).Int64("bytes", total).Msg("Streaming")
			}
			if streamRealtime {
				time.Sleep(streamChunk)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
	}
	log.Info().Int("chunks", chunks).Int64("bytes", total).Dur("elapsed", time.Since(start)).Msg("Finished streaming")

	s, err := waitForState(ctx, c, sessionPath, streamWait, "IDLE", "ERROR")
	if err != nil {
		log.Warn().Err(err).Msg("Session did not settle; stopping")
		c.do(ctx, http.MethodPost, sessionPath+"/stop", nil, nil)
	}
	if s.ErrorKind != "" {
		fmt.Fprintf(out, "session ended in %s (%s)\n", s.State, s.ErrorKind)
	}
	if s.LastPrompt != "" {
		fmt.Fprintf(out, "last prompt: %s\n", s.LastPrompt)
	}

	var cs cartState
	if err := c.do(ctx, http.MethodGet, "/v1/cart", nil, &cs); err != nil {
		return err
	}
	for _, l := range cs.Lines {
		fmt.Fprintf(out, "%2d x %-24s %7.2f\n", l.Quantity, l.Name, float64(l.Quantity)*l.Price)
	}
	fmt.Fprintf(out, "%-29s %7.2f\n", "total", cs.Total)
	return nil
}

// waitForState polls the session until it reaches one of states with an
// empty queue.
func waitForState(ctx context.Context, c *apiClient, path string, timeout time.Duration, states ...string) (sessionState, error) {
	deadline := time.Now().Add(timeout)
	var s sessionState
	for {
		if err := c.do(ctx, http.MethodGet, path, nil, &s); err != nil {
			return s, err
		}
		for _, want := range states {
			if s.State == want && s.Queued == 0 {
				return s, nil
			}
		}
		if time.Now().After(deadline) {
			return s, fmt.Errorf("session still %s after %v", s.State, timeout)
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
