package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"genbroker/internal/http/handlers"
	"genbroker/internal/infra"
	"genbroker/internal/middleware"
)

// Options carries the router's cross-cutting dependencies.
type Options struct {
	JWTSecret       string
	RateLimitPerMin int
	Logger          zerolog.Logger
	GeoIP           *infra.GeoIP
}

// NewRouter builds the HTTP surface: health, authenticated submission and
// job views, unauthenticated-by-job-id agent callbacks, and admin queue
// control.
func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(opts.Logger, opts.GeoIP))

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/requests", func(r chi.Router) {
		// Agent callbacks authenticate by job-id match, not bearer token.
		r.Route("/{id}/callbacks", func(r chi.Router) {
			r.Post("/status", app.StatusCallback)
			r.Post("/completion", app.CompletionCallback)
			r.Post("/failure", app.FailureCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret))
			r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/", app.SubmitRequest)
			r.Get("/{id}", app.GetRequest)
			r.Get("/{id}/artifacts", app.ListRequestArtifacts)
			r.With(middleware.RequireAdmin).Post("/{id}/cancel", app.CancelRequest)
		})
	})

	r.Route("/v1/admin/queue", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret), middleware.RequireAdmin)
		r.Get("/", app.GetQueueState)
		r.Post("/pause", app.PauseQueue)
		r.Post("/resume", app.ResumeQueue)
		r.Post("/retry", app.RetryQueue)
		r.Post("/clear", app.ClearQueue)
		r.Put("/blocks/{userID}", app.BlockUser)
		r.Delete("/blocks/{userID}", app.UnblockUser)
	})

	return r
}
