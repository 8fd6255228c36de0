package orchestrate

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"tripsmith/internal/domain"
)

// progressManager owns the single live subscription of one orchestrator. It
// filters stale updates, projects progress into a StageModel and guarantees
// that onTerminal runs at most once, after which no further updates are read.
type progressManager struct {
	feed domain.JobFeed
	log  zerolog.Logger

	mu        sync.Mutex
	jobID     string
	detach    func()
	lastStage int
	done      bool
}

func newProgressManager(feed domain.JobFeed, log zerolog.Logger) *progressManager {
	return &progressManager{feed: feed, log: log}
}

// attach opens the subscription for jobID. Attaching while a subscription for
// another job is live detaches the old one first, so two subscriptions are
// never live at once. The returned detach func is idempotent.
func (m *progressManager) attach(jobID string, onUpdate func(domain.StageModel), onTerminal func(*domain.GenerationJob, error)) (func(), error) {
	m.mu.Lock()
	if m.detach != nil {
		m.detach()
		m.detach = nil
	}
	m.jobID = jobID
	m.lastStage = 0
	m.done = false
	m.mu.Unlock()

	detach, err := m.feed.Subscribe(jobID,
		func(job *domain.GenerationJob) { m.handleChange(job, onUpdate, onTerminal) },
		func(err error, transient bool) { m.handleError(err, transient, onTerminal) },
	)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.detach = detach
	if m.done {
		// Terminal arrived before Subscribe returned.
		m.detach()
		m.detach = nil
	}
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { m.stop() }) }, nil
}

func (m *progressManager) handleChange(job *domain.GenerationJob, onUpdate func(domain.StageModel), onTerminal func(*domain.GenerationJob, error)) {
	m.mu.Lock()
	if m.done || job.ID != m.jobID {
		m.mu.Unlock()
		return
	}
	if job.Status.Terminal() {
		m.done = true
		if m.detach != nil {
			m.detach()
			m.detach = nil
		}
		m.mu.Unlock()
		onTerminal(job, nil)
		return
	}
	// Transport may reorder deliveries; a lower stage after a higher one is
	// stale and dropped.
	if job.Progress.Stage < m.lastStage {
		m.mu.Unlock()
		return
	}
	m.lastStage = job.Progress.Stage
	// onUpdate runs under the lock: two deliveries that both pass the filter
	// must reach the caller in filter order, or a stale stage could briefly
	// overwrite a newer one.
	onUpdate(domain.ProjectStages(job.Progress))
	m.mu.Unlock()
}

func (m *progressManager) handleError(err error, transient bool, onTerminal func(*domain.GenerationJob, error)) {
	if transient {
		m.log.Warn().Err(err).Str("job_id", m.currentJob()).Msg("watch: transient channel error, waiting for recovery")
		return
	}
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	if m.detach != nil {
		m.detach()
		m.detach = nil
	}
	m.mu.Unlock()
	onTerminal(nil, fmt.Errorf("%w: %v", domain.ErrChannel, err))
}

func (m *progressManager) currentJob() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobID
}

func (m *progressManager) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = true
	if m.detach != nil {
		m.detach()
		m.detach = nil
	}
}
