package handlers

import (
	"encoding/json"
	"net/http"

	"tripsmith/internal/domain"
	"tripsmith/internal/estimate"
	"tripsmith/internal/infra"
	"tripsmith/internal/middleware"
	"tripsmith/internal/orchestrate"
)

// JobService is the job persistence surface the handlers need. The Postgres
// repository satisfies it.
type JobService interface {
	orchestrate.Backend
	domain.JobStore
}

// App bundles the collaborators every handler needs.
type App struct {
	Config    *infra.Config
	Logger    infra.Logger
	Jobs      JobService
	Feed      domain.JobFeed
	Estimator *estimate.Service
	GeoIP     middleware.CountryLookup
}

func NewApp(cfg *infra.Config, logger infra.Logger, jobs JobService, feed domain.JobFeed, estimator *estimate.Service, geoip middleware.CountryLookup) *App {
	return &App{
		Config:    cfg,
		Logger:    logger,
		Jobs:      jobs,
		Feed:      feed,
		Estimator: estimator,
		GeoIP:     geoip,
	}
}

// newOrchestrator builds a fresh orchestrator for one submission. Instances
// are single-use; each request gets its own registry and subscription.
func (a *App) newOrchestrator() *orchestrate.Orchestrator {
	return orchestrate.New(a.Jobs, a.Feed, a.Jobs, a.Logger, orchestrate.Options{
		CallTimeout:     a.Config.SubmitCallTimeout,
		GraceWindow:     a.Config.GraceWindow,
		RecoveryWindow:  a.Config.RecoveryWindow,
		RecoveryCadence: a.Config.RecoveryCadence,
		RecencyWindow:   a.Config.RecencyWindow,
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]string{"error": slug, "message": message})
}
