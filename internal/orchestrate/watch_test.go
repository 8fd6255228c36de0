package orchestrate

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"tripsmith/internal/domain"
)

func attachCollecting(t *testing.T, feed *fakeFeed) (*progressManager, *[]domain.StageModel, *[]*domain.GenerationJob, *[]error) {
	t.Helper()
	m := newProgressManager(feed, zerolog.Nop())
	var updates []domain.StageModel
	var terminals []*domain.GenerationJob
	var chanErrs []error
	_, err := m.attach("job-1",
		func(model domain.StageModel) { updates = append(updates, model) },
		func(job *domain.GenerationJob, err error) {
			terminals = append(terminals, job)
			chanErrs = append(chanErrs, err)
		},
	)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	return m, &updates, &terminals, &chanErrs
}

func progressJob(stage int) *domain.GenerationJob {
	return &domain.GenerationJob{
		ID:       "job-1",
		Status:   domain.JobStatusGenerating,
		Progress: domain.Progress{Stage: stage, TotalStages: 5},
	}
}

func TestWatchDiscardsStaleStages(t *testing.T) {
	feed := &fakeFeed{}
	_, updates, _, _ := attachCollecting(t, feed)

	for _, stage := range []int{1, 2, 2, 1, 3} {
		feed.push(progressJob(stage))
	}

	want := []int{1, 2, 2, 3}
	if len(*updates) != len(want) {
		t.Fatalf("got %d updates, want %d", len(*updates), len(want))
	}
	last := 0
	for i, model := range *updates {
		if model.Stage != want[i] {
			t.Fatalf("update %d stage = %d, want %d", i, model.Stage, want[i])
		}
		if model.Stage < last {
			t.Fatalf("stage regressed: %d after %d", model.Stage, last)
		}
		last = model.Stage
	}
}

func TestWatchConcurrentDeliveriesNeverRegress(t *testing.T) {
	feed := &fakeFeed{}
	m := newProgressManager(feed, zerolog.Nop())

	var mu sync.Mutex
	var observed []int
	_, err := m.attach("job-1",
		func(model domain.StageModel) {
			mu.Lock()
			observed = append(observed, model.Stage)
			mu.Unlock()
		},
		func(*domain.GenerationJob, error) {},
	)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	// Hammer the manager from many goroutines. Whatever interleaving the
	// filter admits, the caller must observe a non-decreasing stage sequence.
	var wg sync.WaitGroup
	for stage := 1; stage <= 5; stage++ {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(s int) {
				defer wg.Done()
				feed.push(progressJob(s))
			}(stage)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	last := 0
	for i, stage := range observed {
		if stage < last {
			t.Fatalf("observed stage regressed at %d: %d after %d (%v)", i, stage, last, observed)
		}
		last = stage
	}
}

func TestWatchTerminalIsIdempotent(t *testing.T) {
	feed := &fakeFeed{}
	_, updates, terminals, _ := attachCollecting(t, feed)

	done := &domain.GenerationJob{ID: "job-1", Status: domain.JobStatusCompleted}
	feed.push(done)
	feed.push(done)
	feed.push(progressJob(4))

	if len(*terminals) != 1 {
		t.Fatalf("onTerminal invoked %d times, want 1", len(*terminals))
	}
	if len(*updates) != 0 {
		t.Fatalf("updates delivered after terminal: %d", len(*updates))
	}
	if feed.detaches() == 0 {
		t.Fatal("no implicit detach after terminal")
	}
}

func TestWatchFailedTerminal(t *testing.T) {
	feed := &fakeFeed{}
	_, _, terminals, chanErrs := attachCollecting(t, feed)

	feed.push(&domain.GenerationJob{ID: "job-1", Status: domain.JobStatusFailed, ErrorMessage: "model unavailable"})

	if len(*terminals) != 1 || (*terminals)[0].ErrorMessage != "model unavailable" {
		t.Fatalf("unexpected terminal: %+v", *terminals)
	}
	if (*chanErrs)[0] != nil {
		t.Fatalf("channel error set on store terminal: %v", (*chanErrs)[0])
	}
}

func TestWatchTransientErrorsAreRiddenOut(t *testing.T) {
	feed := &fakeFeed{}
	_, updates, terminals, _ := attachCollecting(t, feed)

	feed.pushError(errors.New("connection reset"), true)
	feed.push(progressJob(2))

	if len(*terminals) != 0 {
		t.Fatal("transient error escalated to terminal")
	}
	if len(*updates) != 1 {
		t.Fatalf("updates after transient error = %d, want 1", len(*updates))
	}
}

func TestWatchFatalErrorEscalates(t *testing.T) {
	feed := &fakeFeed{}
	_, _, terminals, chanErrs := attachCollecting(t, feed)

	feed.pushError(errors.New("permission denied"), false)
	feed.push(progressJob(3))

	if len(*terminals) != 1 {
		t.Fatalf("onTerminal invoked %d times, want 1", len(*terminals))
	}
	if (*terminals)[0] != nil {
		t.Fatal("fatal channel error delivered a job")
	}
	if !errors.Is((*chanErrs)[0], domain.ErrChannel) {
		t.Fatalf("error = %v, want ErrChannel", (*chanErrs)[0])
	}
}

func TestWatchReattachDetachesOldSubscription(t *testing.T) {
	feed := &fakeFeed{}
	m, _, _, _ := attachCollecting(t, feed)

	if _, err := m.attach("job-2", func(domain.StageModel) {}, func(*domain.GenerationJob, error) {}); err != nil {
		t.Fatalf("reattach: %v", err)
	}
	if feed.detaches() != 1 {
		t.Fatalf("old subscription detaches = %d, want 1", feed.detaches())
	}
	if feed.subscribedTo() != "job-2" {
		t.Fatalf("subscribed to %q, want job-2", feed.subscribedTo())
	}
}

func TestWatchDetachIsIdempotent(t *testing.T) {
	feed := &fakeFeed{}
	m := newProgressManager(feed, zerolog.Nop())
	detach, err := m.attach("job-1", func(domain.StageModel) {}, func(*domain.GenerationJob, error) {})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	detach()
	detach()
	if feed.detaches() != 1 {
		t.Fatalf("detaches = %d, want 1", feed.detaches())
	}
}
