// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-ordering-service/internal/service/stt"
)

// Config holds recognition settings for the streaming session.
type Config struct {
	LanguageCode    string
	SampleRateHz    int32
	InterimResults  bool
	AudioEncoding   string
	CredentialsFile string
	PhraseHints     []string // boosts recognition of menu vocabulary
}

// DefaultConfig returns the default recognition settings.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   8000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// Adapter implements stt.Adapter and stt.AudioSink using Google Cloud Speech-to-Text.
type Adapter struct {
	cfg    Config
	client *speech.Client

	mu     sync.Mutex
	stream   speechpb.Speech_StreamingRecognizeClient
	cancel   context.CancelFunc
	closed   bool
	released bool
}

// New creates a new Google STT adapter.
// Uses cfg.CredentialsFile when set, otherwise application default credentials.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, mapError(err, stt.PhasePreflight)
	}
	return &Adapter{cfg: cfg, client: c}, nil
}

// Preflight verifies a client exists. Audio is pushed by the caller, so
// there is no local device to probe.
func (a *Adapter) Preflight(ctx context.Context) error {
	if a.client == nil {
		return &stt.Error{Kind: stt.KindServiceUnavailable, Phase: stt.PhasePreflight, Err: errors.New("speech client not initialized")}
	}
	return ctx.Err()
}

// Start begins a streaming recognition session, sends the initial config
// and starts a goroutine delivering responses to cb.
func (a *Adapter) Start(ctx context.Context, languageHint string, cb stt.Callback) error {
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := a.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return mapError(err, stt.PhaseStart)
	}

	lang := a.cfg.LanguageCode
	if languageHint != "" {
		lang = languageHint
	}

	rc := &speechpb.RecognitionConfig{
		Encoding:        parseAudioEncoding(a.cfg.AudioEncoding),
		SampleRateHertz: a.cfg.SampleRateHz,
		LanguageCode:    lang,
	}
	if len(a.cfg.PhraseHints) > 0 {
		rc.SpeechContexts = []*speechpb.SpeechContext{{Phrases: a.cfg.PhraseHints}}
	}

	// Send streaming config as the first message
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         rc,
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cancel()
		return mapError(err, stt.PhaseStart)
	}

	a.mu.Lock()
	a.stream = stream
	a.cancel = cancel
	a.closed = false
	a.mu.Unlock()

	go a.listen(stream, cb)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream, closed := a.stream, a.closed
	a.mu.Unlock()
	if stream == nil || closed {
		return nil
	}

	err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
	if err != nil {
		return mapError(err, stt.PhaseStream)
	}
	return nil
}

// Close ends the streaming session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.stream == nil {
		return nil
	}
	a.closed = true
	err := a.stream.CloseSend()
	a.cancel()
	return err
}

// Release ends any open stream and closes the speech client connection.
func (a *Adapter) Release() error {
	closeErr := a.Close()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released || a.client == nil {
		return closeErr
	}
	a.released = true
	if err := a.client.Close(); err != nil {
		return err
	}
	return closeErr
}

// listen receives transcript responses from Google and invokes callbacks.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF || a.isClosed() {
				return
			}
			cb.OnError(mapError(err, stt.PhaseStream))
			return
		}
		if resp.Error != nil {
			cb.OnError(mapError(status.ErrorProto(resp.Error), stt.PhaseStream))
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				cb.OnFinal(alt.Transcript, float64(alt.Confidence))
			} else {
				cb.OnPartial(alt.Transcript)
			}
		}
	}
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// mapError converts gRPC status codes into capability error kinds.
func mapError(err error, phase stt.Phase) *stt.Error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return stt.Normalize(err, phase)
	}

	var kind stt.Kind
	switch st.Code() {
	case codes.PermissionDenied, codes.Unauthenticated:
		kind = stt.KindPermissionDenied
	case codes.OutOfRange:
		// Google reports "Audio Timeout Error" when no audio arrives.
		kind = stt.KindNoAudioInput
	case codes.Unavailable, codes.ResourceExhausted:
		kind = stt.KindServiceUnavailable
	case codes.DeadlineExceeded:
		kind = stt.KindNetwork
	default:
		return &stt.Error{Kind: stt.KindOther, Phase: phase, Code: st.Code().String(), Err: err}
	}
	return &stt.Error{Kind: kind, Phase: phase, Err: err}
}

// parseAudioEncoding maps an encoding name to the recognition enum.
// Unknown names fall back to LINEAR16.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[name]; ok && v != 0 {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_LINEAR16
}
