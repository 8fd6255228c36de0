package orchestrate

import (
	"fmt"
	"sync"
	"time"

	"tripsmith/internal/domain"
)

// outcome is the single settled value of one submission. Exactly one of
// result/err is set.
type outcome struct {
	result *domain.JobResult
	err    error
}

type pendingResolver struct {
	resolve  func(outcome)
	backstop *time.Timer
}

// resolverRegistry bridges a synchronous Submit call with the asynchronous
// arrival of its result. Each orchestrator owns its own registry; there is no
// process-wide instance. fire delivers at most once per key no matter how many
// paths (live subscription, recovery poll, backstop timer, cancel) race.
type resolverRegistry struct {
	mu      sync.Mutex
	entries map[string]*pendingResolver
}

func newResolverRegistry() *resolverRegistry {
	return &resolverRegistry{entries: make(map[string]*pendingResolver)}
}

// register stores a resolver under key and arms the backstop timer that fires
// a timeout outcome should every other signal fail silently. Registering a key
// twice is a programmer error and is rejected, never silently replaced.
func (r *resolverRegistry) register(key string, backstop time.Duration, resolve func(outcome)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("resolver already registered for %s", key)
	}
	entry := &pendingResolver{resolve: resolve}
	entry.backstop = time.AfterFunc(backstop, func() {
		r.fire(key, outcome{err: domain.ErrTimeout})
	})
	r.entries[key] = entry
	return nil
}

// fire invokes the stored resolver exactly once and removes the entry. It
// returns false when the key is absent, which makes a second terminal signal
// for the same submission a no-op.
func (r *resolverRegistry) fire(key string, out outcome) bool {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
		entry.backstop.Stop()
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	entry.resolve(out)
	return true
}

// clear drops the entry without resolving, stopping its backstop timer.
func (r *resolverRegistry) clear(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[key]; ok {
		entry.backstop.Stop()
		delete(r.entries, key)
	}
}

func (r *resolverRegistry) pending(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}
