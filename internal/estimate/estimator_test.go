package estimate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tripsmith/internal/domain"
)

type stubBackend struct {
	calls int
	value float64
	err   error
}

func (b *stubBackend) Estimate(ctx context.Context, req domain.TripRequest) (float64, error) {
	b.calls++
	return b.value, b.err
}

func request() domain.TripRequest {
	return domain.TripRequest{
		Destination: "Rome",
		StartDate:   "2030-01-01",
		EndDate:     "2030-01-05",
		PartySize:   2,
		Profile:     &domain.PreferenceProfile{ID: "p1", Pace: "balanced", BudgetCeiling: 10000},
	}
}

func TestEstimateCachesByFingerprint(t *testing.T) {
	backend := &stubBackend{value: 1234}
	svc := New(backend, zerolog.Nop(), time.Minute)

	first, err := svc.Estimate(context.Background(), request())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	// Same trip, different cosmetic fields: must hit the cache.
	again := request()
	again.Locale = "ja"
	again.Origin = "Berlin"
	second, err := svc.Estimate(context.Background(), again)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if first != second || backend.calls != 1 {
		t.Fatalf("cache miss: values %v/%v, backend calls %d", first, second, backend.calls)
	}
}

func TestEstimateExpiresEntries(t *testing.T) {
	backend := &stubBackend{value: 500}
	svc := New(backend, zerolog.Nop(), time.Minute)
	current := time.Now()
	svc.now = func() time.Time { return current }

	if _, err := svc.Estimate(context.Background(), request()); err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	current = current.Add(2 * time.Minute)
	if _, err := svc.Estimate(context.Background(), request()); err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if backend.calls != 2 {
		t.Fatalf("backend calls = %d, want 2 after expiry", backend.calls)
	}
}

func TestEstimateRateLimitFallsBack(t *testing.T) {
	backend := &stubBackend{err: fmt.Errorf("pricing: %w", domain.ErrRateLimited)}
	svc := New(backend, zerolog.Nop(), time.Minute)

	value, err := svc.Estimate(context.Background(), request())
	if err != nil {
		t.Fatalf("Estimate surfaced rate limit: %v", err)
	}
	if want := LocalEstimate(request()); value != want {
		t.Fatalf("fallback value = %v, want %v", value, want)
	}
}

func TestEstimateOtherErrorsSurface(t *testing.T) {
	backend := &stubBackend{err: errors.New("boom")}
	svc := New(backend, zerolog.Nop(), time.Minute)

	if _, err := svc.Estimate(context.Background(), request()); err == nil {
		t.Fatal("backend error swallowed")
	}
}

func TestLocalEstimateBoundedByCeiling(t *testing.T) {
	req := request()
	req.Profile.BudgetCeiling = 300
	if got := LocalEstimate(req); got != 300 {
		t.Fatalf("estimate %v exceeds ceiling", got)
	}

	req.Profile.BudgetCeiling = 0
	if got := LocalEstimate(req); got <= 0 {
		t.Fatalf("estimate without ceiling = %v", got)
	}
}

func TestLocalEstimateDeterministic(t *testing.T) {
	a := LocalEstimate(request())
	b := LocalEstimate(request())
	if a != b {
		t.Fatalf("local estimate not deterministic: %v vs %v", a, b)
	}

	packed := request()
	packed.Profile.Pace = "packed"
	if LocalEstimate(packed) <= a {
		t.Fatal("packed pace should cost more than balanced")
	}
}
