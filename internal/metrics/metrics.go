package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	submissionsTotal        prometheus.Counter
	completionsTotal        prometheus.Counter
	recoveriesTotal         prometheus.Counter
	timeoutsTotal           prometheus.Counter
	generationFailuresTotal prometheus.Counter
	estimateFallbacksTotal  prometheus.Counter
)

func init() {
	submissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "tripsmith",
		Name:      "submissions_total",
		Help:      "Number of generation job submissions",
	})
	completionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "tripsmith",
		Name:      "completions_total",
		Help:      "Number of submissions settled with a completed itinerary",
	})
	recoveriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "tripsmith",
		Name:      "recoveries_total",
		Help:      "Number of completions delivered by the recovery poll instead of the live subscription",
	})
	timeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "tripsmith",
		Name:      "timeouts_total",
		Help:      "Number of submissions settled by the backstop timeout",
	})
	generationFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "tripsmith",
		Name:      "generation_failures_total",
		Help:      "Number of jobs that reached the failed terminal status",
	})
	estimateFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "tripsmith",
		Name:      "estimate_fallbacks_total",
		Help:      "Number of cost estimates served by the local formula after a rate limit",
	})

	prometheus.MustRegister(
		submissionsTotal,
		completionsTotal,
		recoveriesTotal,
		timeoutsTotal,
		generationFailuresTotal,
		estimateFallbacksTotal,
	)
}

func IncSubmission()        { submissionsTotal.Inc() }
func IncCompletion()        { completionsTotal.Inc() }
func IncRecovery()          { recoveriesTotal.Inc() }
func IncTimeout()           { timeoutsTotal.Inc() }
func IncGenerationFailure() { generationFailuresTotal.Inc() }
func IncEstimateFallback()  { estimateFallbacksTotal.Inc() }

// Handler exposes the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
