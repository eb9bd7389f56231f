package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"voice-ordering-service/internal/app"
)

// maxAudioChunk bounds a single pushed audio request body.
const maxAudioChunk = 1 << 20

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := &handlers{app: application}
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if err := application.Ready(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/menu", h.menu)
		r.Post("/resolve", h.resolve)
		r.Get("/cart", h.cart)
		r.Delete("/cart", h.clearCart)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.openSession)
			r.Get("/", h.listSessions)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.getSession)
				r.Delete("/", h.closeSession)
				r.Post("/listen", h.listen)
				r.Post("/stop", h.stop)
				r.Post("/retry", h.retry)
				r.Post("/audio", h.audio)
				r.Put("/mute", h.mute)
			})
		})
	})

	return r
}
