package orchestrate

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tripsmith/internal/domain"
)

// recoveryMonitor runs when the submission call itself timed out before
// returning a job ID, or when the live subscription stays silent past the
// grace window. It polls the store for a fresh completed job belonging to the
// same requester and request fingerprint.
type recoveryMonitor struct {
	store   domain.JobStore
	log     zerolog.Logger
	cadence time.Duration
	window  time.Duration
	recency time.Duration
	now     func() time.Time
}

// run polls until an acceptable candidate is found, the recovery window is
// exhausted, or ctx is cancelled. onFiller receives cosmetic stage updates on
// every poll tick; they carry no authority over the real job record. The
// return is (nil, ErrTimeout) when the window closes empty.
func (m *recoveryMonitor) run(ctx context.Context, requesterID, fingerprint string, startStage int, onFiller func(domain.StageModel)) (*domain.GenerationJob, error) {
	deadline := m.now().Add(m.window)
	stage := startStage
	if stage < 1 {
		stage = 1
	}

	ticker := time.NewTicker(m.cadence)
	defer ticker.Stop()

	for {
		cutoff := m.now().Add(-m.recency)
		job, err := m.store.LatestCompleted(ctx, requesterID, fingerprint, cutoff)
		switch {
		case err == nil:
			m.log.Info().Str("job_id", job.ID).Msg("recovery: found completed job")
			return job, nil
		case errors.Is(err, domain.ErrNotFound):
			// keep polling
		default:
			m.log.Warn().Err(err).Msg("recovery: poll failed")
		}

		if m.now().After(deadline) {
			return nil, domain.ErrTimeout
		}

		// Advance the cosmetic bar, but never to the final stage: only an
		// authoritative terminal write completes it.
		if onFiller != nil {
			if stage < domain.TotalStages-1 {
				stage++
			}
			onFiller(domain.ProjectStages(domain.Progress{
				Stage:       stage,
				TotalStages: domain.TotalStages,
				Message:     "Still working on your itinerary",
			}))
		}

		select {
		case <-ctx.Done():
			return nil, domain.ErrCancelled
		case <-ticker.C:
		}
	}
}
