package repo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"tripsmith/internal/domain"
)

// NotifyChannel is the Postgres channel the worker NOTIFYs after every job
// record write, carrying the job ID as payload.
const NotifyChannel = "itinerary_jobs"

const (
	listenerMinReconnect = 2 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
	fetchTimeout         = 5 * time.Second
)

type subscriber struct {
	jobID    string
	onChange func(*domain.GenerationJob)
	onError  func(error, bool)
}

// JobListener implements domain.JobFeed over Postgres LISTEN/NOTIFY. A
// notification only signals "this row changed"; the listener re-reads the row
// through the store, so a dropped notification delays an update but never
// corrupts it. pq.Listener reconnects on its own; reconnect attempts surface
// to subscribers as transient errors, closing the listener is fatal.
type JobListener struct {
	listener *pq.Listener
	store    domain.JobStore
	log      zerolog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

// NewJobListener connects to databaseURL and starts listening. Callers own the
// returned listener and must Close it.
func NewJobListener(databaseURL string, store domain.JobStore, log zerolog.Logger) (*JobListener, error) {
	l := &JobListener{
		store: store,
		log:   log,
		subs:  make(map[int]*subscriber),
	}
	l.listener = pq.NewListener(databaseURL, listenerMinReconnect, listenerMaxReconnect, l.handleEvent)
	if err := l.listener.Listen(NotifyChannel); err != nil {
		_ = l.listener.Close()
		return nil, err
	}
	go l.run()
	return l, nil
}

// Subscribe registers callbacks for one job ID. The current row is delivered
// immediately so late subscribers observe state written before they attached.
// The returned detach func is idempotent.
func (l *JobListener) Subscribe(jobID string, onChange func(*domain.GenerationJob), onError func(err error, transient bool)) (func(), error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, errors.New("job listener closed")
	}
	l.nextID++
	id := l.nextID
	sub := &subscriber{jobID: jobID, onChange: onChange, onError: onError}
	l.subs[id] = sub
	l.mu.Unlock()

	go l.deliver(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}, nil
}

// Close stops the listener and reports a fatal channel error to remaining
// subscribers.
func (l *JobListener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	remaining := make([]*subscriber, 0, len(l.subs))
	for _, sub := range l.subs {
		remaining = append(remaining, sub)
	}
	l.subs = make(map[int]*subscriber)
	l.mu.Unlock()

	err := l.listener.Close()
	for _, sub := range remaining {
		sub.onError(errors.New("job listener closed"), false)
	}
	return err
}

func (l *JobListener) run() {
	for {
		select {
		case n, ok := <-l.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnect marker: notifications may have been lost, refresh
				// every watched row.
				l.refreshAll()
				continue
			}
			l.deliverByJobID(n.Extra)
		case <-time.After(listenerPingInterval):
			if err := l.listener.Ping(); err != nil {
				l.broadcastError(err, true)
			}
			l.refreshAll()
		}
	}
}

func (l *JobListener) handleEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		l.log.Warn().Err(err).Msg("joblistener: connection hiccup")
		l.broadcastError(err, true)
	case pq.ListenerEventReconnected:
		l.log.Info().Msg("joblistener: reconnected")
	}
}

func (l *JobListener) deliverByJobID(jobID string) {
	for _, sub := range l.snapshot() {
		if sub.jobID == jobID {
			l.deliver(sub)
		}
	}
}

func (l *JobListener) refreshAll() {
	for _, sub := range l.snapshot() {
		l.deliver(sub)
	}
}

func (l *JobListener) deliver(sub *subscriber) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	job, err := l.store.GetByID(ctx, sub.jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		sub.onError(err, true)
		return
	}
	sub.onChange(job)
}

func (l *JobListener) broadcastError(err error, transient bool) {
	if err == nil {
		return
	}
	for _, sub := range l.snapshot() {
		sub.onError(err, transient)
	}
}

func (l *JobListener) snapshot() []*subscriber {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*subscriber, 0, len(l.subs))
	for _, sub := range l.subs {
		out = append(out, sub)
	}
	return out
}

var _ domain.JobFeed = (*JobListener)(nil)
