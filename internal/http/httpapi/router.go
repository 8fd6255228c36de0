package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tripsmith/internal/http/handlers"
	"tripsmith/internal/metrics"
	mw "tripsmith/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		mw.Logger(app.Logger),
		mw.CORS(nil),
		mw.I18N("en", app.GeoIP),
	)

	// Health & metrics stay outside auth.
	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/trips", func(r chi.Router) {
		r.Use(
			mw.AuthJWT(app.Config.JWTSecret),
			mw.RateLimit(app.Config.RateLimitPerMin, time.Minute),
		)
		r.Post("/generate", app.GenerateTrip)
		r.Post("/estimate", app.EstimateTrip)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", app.JobsCreate)
			r.Get("/{job_id}", app.JobStatus)
		})
	})

	return r
}
