package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"voice-ordering-service/internal/app"
	"voice-ordering-service/internal/cart"
	"voice-ordering-service/internal/observability/logging"
	"voice-ordering-service/internal/service/intent"
	"voice-ordering-service/internal/service/ordering"
	"voice-ordering-service/internal/service/transcription"
)

type handlers struct {
	app *app.Application
}

type menuItem struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Category string   `json:"category,omitempty"`
	Keywords []string `json:"keywords"`
}

type intentView struct {
	ItemID          string  `json:"itemId"`
	Name            string  `json:"name"`
	Quantity        int     `json:"quantity"`
	MatchConfidence float64 `json:"matchConfidence"`
}

type resolveRequest struct {
	Transcript string   `json:"transcript"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type resolveResponse struct {
	Intents    []intentView `json:"intents"`
	Confidence float64      `json:"confidence"`
}

type cartView struct {
	Lines []cart.Line `json:"lines"`
	Total float64     `json:"total"`
}

type sessionView struct {
	ID          string       `json:"id"`
	State       string       `json:"state"`
	Transcript  string       `json:"transcript,omitempty"`
	Confidence  float64      `json:"confidence,omitempty"`
	UtteranceID string       `json:"utteranceId,omitempty"`
	Intents     []intentView `json:"intents,omitempty"`
	ErrorKind   string       `json:"errorKind,omitempty"`
	ErrorCode   string       `json:"errorCode,omitempty"`
	Queued      int          `json:"queued"`
	Retryable   bool         `json:"retryable"`
	Muted       bool         `json:"muted"`
	Speaking    bool         `json:"speaking"`
	LastPrompt  string       `json:"lastPrompt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) menu(w http.ResponseWriter, _ *http.Request) {
	items := h.app.Catalog.Items()
	out := make([]menuItem, 0, len(items))
	for _, it := range items {
		out = append(out, menuItem{ID: it.ID, Name: it.Name, Price: it.Price, Category: it.Category, Keywords: it.Keywords})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	conf := 1.0
	if req.Confidence != nil {
		conf = *req.Confidence
	}
	intents, c := h.app.Resolver.Resolve(req.Transcript, conf)
	writeJSON(w, http.StatusOK, resolveResponse{Intents: intentViews(intents), Confidence: c})
}

func (h *handlers) cart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, cartView{Lines: h.app.Cart.Lines(), Total: h.app.Cart.Total()})
}

func (h *handlers) clearCart(w http.ResponseWriter, _ *http.Request) {
	h.app.Cart.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) openSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.Sessions.Open(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(s))
}

func (h *handlers) listSessions(w http.ResponseWriter, _ *http.Request) {
	all := h.app.Sessions.List()
	out := make([]sessionView, 0, len(all))
	for _, s := range all {
		out = append(out, viewOf(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *handlers) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listen(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, (*ordering.Machine).StartListening)
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, (*ordering.Machine).StopListening)
}

func (h *handlers) retry(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, (*ordering.Machine).Retry)
}

func (h *handlers) command(w http.ResponseWriter, r *http.Request, cmd func(*ordering.Machine, context.Context) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := cmd(s.Machine, r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, viewOf(s))
}

func (h *handlers) audio(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioChunk))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	if len(chunk) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("empty audio chunk"))
		return
	}
	if err := s.Machine.SendAudio(r.Context(), chunk); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) mute(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	s.Feedback.SetMuted(req.Muted)
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) (*app.Session, bool) {
	s, err := h.app.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return nil, false
	}
	return s, true
}

func viewOf(s *app.Session) sessionView {
	snap := s.Machine.Snapshot()
	return sessionView{
		ID:          s.ID,
		State:       snap.State.String(),
		Transcript:  snap.Transcript,
		Confidence:  snap.Confidence,
		UtteranceID: snap.UtteranceID,
		Intents:     intentViews(snap.Intents),
		ErrorKind:   snap.ErrorKind.String(),
		ErrorCode:   snap.ErrorCode,
		Queued:      len(snap.Queue),
		Retryable:   snap.Retryable(),
		Muted:       s.Feedback.Muted(),
		Speaking:    s.Feedback.Speaking(),
		LastPrompt:  s.Feedback.LastPrompt(),
		CreatedAt:   s.CreatedAt,
	}
}

func intentViews(intents []intent.Intent) []intentView {
	out := make([]intentView, 0, len(intents))
	for _, in := range intents {
		out = append(out, intentView{
			ItemID:          in.Item.ID,
			Name:            in.Item.Name,
			Quantity:        in.Quantity,
			MatchConfidence: in.MatchConfidence,
		})
	}
	return out
}

func statusFor(err error) int {
	var limitErr *transcription.LimitError
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, ordering.ErrBusy), errors.Is(err, ordering.ErrNotRetryable),
		errors.Is(err, transcription.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, ordering.ErrClosed):
		return http.StatusGone
	case errors.As(err, &limitErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, transcription.ErrUtteranceDropped):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transcription.ErrPushUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// requestLogger logs every request with zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		l := logging.WithComponent("http")
		lvl := zerolog.DebugLevel
		if ww.Status() >= http.StatusInternalServerError {
			lvl = zerolog.WarnLevel
		}
		l.WithLevel(lvl).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("requestId", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
