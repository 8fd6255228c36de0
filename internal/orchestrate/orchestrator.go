package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tripsmith/internal/domain"
	"tripsmith/internal/metrics"
)

// Backend is the job-submission entry point. It may exceed its deadline while
// the underlying job keeps running; the orchestrator recovers from that.
type Backend interface {
	SubmitJob(ctx context.Context, req domain.TripRequest, requesterID string) (jobID string, err error)
}

// Options tunes the submission protocol timers.
type Options struct {
	// CallTimeout bounds the initial submission call.
	CallTimeout time.Duration
	// GraceWindow is how long the live subscription may stay silent before the
	// recovery poll starts alongside it.
	GraceWindow time.Duration
	// RecoveryWindow bounds how long the recovery poll keeps trying.
	RecoveryWindow time.Duration
	// RecoveryCadence is the poll interval during recovery.
	RecoveryCadence time.Duration
	// RecencyWindow bounds how old a polled job may be to still count as ours.
	RecencyWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	if o.GraceWindow <= 0 {
		o.GraceWindow = 2 * time.Minute
	}
	if o.RecoveryWindow <= 0 {
		o.RecoveryWindow = 2 * time.Minute
	}
	if o.RecoveryCadence <= 0 {
		o.RecoveryCadence = 5 * time.Second
	}
	if o.RecencyWindow <= 0 {
		o.RecencyWindow = 5 * time.Minute
	}
	return o
}

// Snapshot is the observable orchestrator state for a UI layer.
type Snapshot struct {
	Generating bool
	Progress   *domain.StageModel
	Err        string
	Result     *domain.JobResult
}

// Orchestrator drives one generation submission at a time: it validates the
// request, calls the backend, watches the job record live and falls back to
// recovery polling when the call itself times out. Every instance owns its
// registry and subscription; instances never share state.
type Orchestrator struct {
	backend Backend
	feed    domain.JobFeed
	store   domain.JobStore
	log     zerolog.Logger
	opts    Options

	registry *resolverRegistry
	watcher  *progressManager
	now      func() time.Time

	mu         sync.Mutex
	state      Snapshot
	inFlight   string
	resetKey   string
	cancelCall context.CancelFunc
	cancelJob  context.CancelFunc
}

// New builds an orchestrator. All collaborators are required except opts,
// which fall back to the defaults above.
func New(backend Backend, feed domain.JobFeed, store domain.JobStore, log zerolog.Logger, opts Options) *Orchestrator {
	return &Orchestrator{
		backend:  backend,
		feed:     feed,
		store:    store,
		log:      log,
		opts:     opts.withDefaults(),
		registry: newResolverRegistry(),
		watcher:  newProgressManager(feed, log),
		now:      time.Now,
	}
}

// State returns a copy of the observable state.
func (o *Orchestrator) State() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Submit runs one generation job to completion and returns its result. It
// blocks until a terminal outcome arrives through the live subscription, the
// recovery poll, the backstop timer, Cancel, or ctx cancellation - whichever
// fires first settles the call; later signals are no-ops.
func (o *Orchestrator) Submit(ctx context.Context, req domain.TripRequest, requesterID string) (*domain.JobResult, error) {
	if requesterID == "" {
		return nil, fmt.Errorf("%w: no requester identity", domain.ErrUnauthenticated)
	}
	req.Normalize(req.Locale)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := uuid.NewString()
	jobCtx, cancelJob := context.WithCancel(context.Background())
	callCtx, cancelCall := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancelCall()

	o.mu.Lock()
	if o.inFlight != "" {
		o.mu.Unlock()
		cancelJob()
		return nil, domain.ErrInvalidState
	}
	o.inFlight = key
	o.cancelJob = cancelJob
	o.cancelCall = cancelCall
	initial := domain.ProjectStages(domain.Progress{Stage: 1, TotalStages: domain.TotalStages, Message: "Submitting request"})
	o.state = Snapshot{Generating: true, Progress: &initial}
	o.mu.Unlock()

	metrics.IncSubmission()
	o.log.Info().Str("destination", req.Destination).Str("requester_id", requesterID).Msg("orchestrate: submitting job")

	jobID, err := o.backend.SubmitJob(callCtx, req, requesterID)
	callTimedOut := errors.Is(err, context.DeadlineExceeded)
	if err != nil && !callTimedOut {
		if errors.Is(err, context.Canceled) {
			o.finish(key, outcome{err: domain.ErrCancelled})
			return nil, domain.ErrCancelled
		}
		rejected := fmt.Errorf("%w: %v", domain.ErrBackendRejected, err)
		o.finish(key, outcome{err: rejected})
		return nil, rejected
	}

	// From here the outcome arrives asynchronously through the registry.
	outcomeCh := make(chan outcome, 1)
	backstop := o.opts.CallTimeout + o.opts.RecoveryWindow
	if err := o.registry.register(key, backstop, func(out outcome) { outcomeCh <- out }); err != nil {
		o.finish(key, outcome{err: err})
		return nil, err
	}

	monitor := &recoveryMonitor{
		store:   o.store,
		log:     o.log,
		cadence: o.opts.RecoveryCadence,
		window:  o.opts.RecoveryWindow,
		recency: o.opts.RecencyWindow,
		now:     o.now,
	}
	fingerprint := req.Fingerprint()

	var detachWatch func()
	var graceTimer *time.Timer

	if callTimedOut {
		o.log.Warn().Msg("orchestrate: submission call timed out, starting recovery poll")
		go o.runRecovery(jobCtx, monitor, key, requesterID, fingerprint, 1)
	} else {
		detachWatch, err = o.watcher.attach(jobID,
			func(model domain.StageModel) { o.setProgress(model) },
			func(job *domain.GenerationJob, chanErr error) { o.onTerminal(key, job, chanErr) },
		)
		if err != nil {
			o.registry.fire(key, outcome{err: fmt.Errorf("%w: %v", domain.ErrChannel, err)})
		} else {
			startStage := o.currentStage()
			graceTimer = time.AfterFunc(o.opts.GraceWindow, func() {
				if o.registry.pending(key) {
					o.log.Warn().Str("job_id", jobID).Msg("orchestrate: subscription silent past grace window, starting recovery poll")
					o.runRecovery(jobCtx, monitor, key, requesterID, fingerprint, startStage)
				}
			})
		}
	}

	var out outcome
	select {
	case out = <-outcomeCh:
	case <-ctx.Done():
		o.registry.fire(key, outcome{err: domain.ErrCancelled})
		out = <-outcomeCh
	}

	if graceTimer != nil {
		graceTimer.Stop()
	}
	if detachWatch != nil {
		detachWatch()
	}
	o.finish(key, out)
	o.record(out)
	return out.result, out.err
}

// Cancel stops waiting for the in-flight submission and settles it with
// ErrCancelled. The backend may keep working on the job; only the local wait
// ends. No-op when nothing is in flight.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	key := o.inFlight
	cancelCall := o.cancelCall
	o.mu.Unlock()
	if key == "" {
		return
	}
	if cancelCall != nil {
		cancelCall()
	}
	o.registry.fire(key, outcome{err: domain.ErrCancelled})
}

// Reset cancels any in-flight submission and clears progress, error and
// result. Safe at any time; the settling outcome of a reset submission leaves
// no trace in the observable state.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	key := o.inFlight
	cancelCall := o.cancelCall
	o.resetKey = key
	o.state = Snapshot{}
	o.mu.Unlock()
	if key == "" {
		return
	}
	if cancelCall != nil {
		cancelCall()
	}
	o.registry.fire(key, outcome{err: domain.ErrCancelled})
}

func (o *Orchestrator) runRecovery(ctx context.Context, monitor *recoveryMonitor, key, requesterID, fingerprint string, startStage int) {
	job, err := monitor.run(ctx, requesterID, fingerprint, startStage, func(model domain.StageModel) {
		if o.registry.pending(key) {
			o.setProgress(model)
		}
	})
	switch {
	case err == nil:
		if o.registry.fire(key, outcome{result: domain.ResultOf(job)}) {
			metrics.IncRecovery()
		}
	case errors.Is(err, domain.ErrTimeout):
		o.registry.fire(key, outcome{err: domain.ErrTimeout})
	}
}

func (o *Orchestrator) onTerminal(key string, job *domain.GenerationJob, chanErr error) {
	if chanErr != nil {
		o.registry.fire(key, outcome{err: chanErr})
		return
	}
	if job.Status == domain.JobStatusCompleted {
		o.registry.fire(key, outcome{result: domain.ResultOf(job)})
		return
	}
	o.registry.fire(key, outcome{err: fmt.Errorf("%w: %s", domain.ErrGenerationFailed, job.ErrorMessage)})
}

func (o *Orchestrator) setProgress(model domain.StageModel) {
	o.mu.Lock()
	o.state.Progress = &model
	o.mu.Unlock()
}

func (o *Orchestrator) currentStage() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Progress != nil {
		return o.state.Progress.Stage
	}
	return 1
}

// finish tears down the in-flight bookkeeping for key and applies the outcome
// to the observable state. Idempotent per submission.
func (o *Orchestrator) finish(key string, out outcome) {
	o.registry.clear(key)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight != key {
		return
	}
	o.inFlight = ""
	if o.cancelJob != nil {
		o.cancelJob()
		o.cancelJob = nil
	}
	o.cancelCall = nil
	if key == o.resetKey {
		// The submission was reset mid-flight; its outcome must not
		// repopulate the cleared state.
		o.resetKey = ""
		o.state = Snapshot{}
		return
	}
	o.state.Generating = false
	if out.err != nil {
		o.state.Err = out.err.Error()
		if o.state.Progress != nil {
			failed := o.state.Progress.WithFailure()
			o.state.Progress = &failed
		}
		return
	}
	o.state.Result = out.result
	done := domain.ProjectStages(domain.Progress{
		Stage:       domain.TotalStages,
		TotalStages: domain.TotalStages,
		Message:     "Itinerary ready",
	})
	for i := range done.Stages {
		done.Stages[i].Status = domain.StageCompleted
	}
	o.state.Progress = &done
}

func (o *Orchestrator) record(out outcome) {
	switch {
	case out.err == nil:
		metrics.IncCompletion()
	case errors.Is(out.err, domain.ErrTimeout):
		metrics.IncTimeout()
	case errors.Is(out.err, domain.ErrGenerationFailed):
		metrics.IncGenerationFailure()
	}
}
