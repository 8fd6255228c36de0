package domain

import (
	"context"
	"time"
)

// JobStore defines read access to persisted generation jobs.
type JobStore interface {
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)
	// LatestCompleted returns the most recently created completed job for the
	// requester whose request fingerprint matches, or ErrNotFound. Jobs created
	// before the cutoff are never returned.
	LatestCompleted(ctx context.Context, requesterID, fingerprint string, cutoff time.Time) (*GenerationJob, error)
}

// JobFeed delivers live job record changes. Implementations must call onChange
// with the full current record on every observed write, and onError with
// transient=true for self-healing channel hiccups. The returned detach func is
// idempotent.
type JobFeed interface {
	Subscribe(jobID string, onChange func(*GenerationJob), onError func(err error, transient bool)) (detach func(), err error)
}
