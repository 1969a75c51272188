// Package httpapi wires the montage HTTP routes.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"montage/internal/httpapi/handlers"
	"montage/internal/httpkit"
	"montage/internal/pkg/logger"
	"montage/internal/pkg/middleware"
)

// requestTimeout bounds the JSON endpoints. The content stream is left
// unbounded so large videos can finish downloading.
const requestTimeout = 30 * time.Second

type Deps struct {
	Handlers       handlers.Deps
	AllowedOrigins []string
	Log            *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	if d.Handlers.Log == nil {
		d.Handlers.Log = log
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(httpkit.CORS(d.AllowedOrigins))

	h := handlers.New(d.Handlers)
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(log, fn)
	}

	r.Get("/health", h.Health)

	r.Route("/videos", func(r chi.Router) {
		r.With(middleware.Timeout(requestTimeout)).Post("/", wrap(h.PostVideo))
		r.Route("/{jobId}", func(r chi.Router) {
			r.With(middleware.Timeout(requestTimeout)).Get("/", wrap(h.GetVideo))
			r.With(middleware.Timeout(requestTimeout)).Get("/url", wrap(h.GetVideoURL))
			r.Get("/content", wrap(h.StreamVideo))
		})
	})

	return r
}
