package estimate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tripsmith/internal/domain"
	"tripsmith/internal/metrics"
)

// Backend produces an authoritative cost estimate for a trip request.
type Backend interface {
	Estimate(ctx context.Context, req domain.TripRequest) (float64, error)
}

// DefaultTTL keeps entries long enough to absorb a rate-limit window while
// staying useful for debounced typing in a UI.
const DefaultTTL = 30 * time.Second

type entry struct {
	value   float64
	expires time.Time
}

// Service caches estimates keyed on the semantically relevant request subset
// and degrades to a local formula when the backend rate-limits. Estimates are
// advisory; this component never fails hard on throttling.
type Service struct {
	backend Backend
	log     zerolog.Logger
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func New(backend Backend, log zerolog.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		backend: backend,
		log:     log,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Estimate returns a cost estimate for the (possibly partial) request. Results
// are cached per fingerprint; a backend rate-limit falls back to the local
// formula instead of surfacing an error.
func (s *Service) Estimate(ctx context.Context, req domain.TripRequest) (float64, error) {
	req.Normalize(req.Locale)
	key := req.Fingerprint()

	s.mu.Lock()
	if e, ok := s.entries[key]; ok && s.now().Before(e.expires) {
		s.mu.Unlock()
		return e.value, nil
	}
	s.mu.Unlock()

	value, err := s.backend.Estimate(ctx, req)
	if err != nil {
		if !errors.Is(err, domain.ErrRateLimited) {
			return 0, err
		}
		s.log.Warn().Str("destination", req.Destination).Msg("estimate: backend rate limited, using local formula")
		metrics.IncEstimateFallback()
		value = LocalEstimate(req)
	}

	s.mu.Lock()
	s.entries[key] = entry{value: value, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return value, nil
}

// Per-night base rates by destination tier; a rough advisory heuristic only.
const (
	baseNightRate   = 140.0
	cityNightExtra  = 60.0
	flightPerPerson = 220.0
)

var expensiveHints = []string{"tokyo", "london", "paris", "new york", "zurich", "singapore", "dubai"}

// LocalEstimate is the deterministic fallback used under rate limiting. The
// result is bounded by the profile budget ceiling when one is set.
func LocalEstimate(req domain.TripRequest) float64 {
	nights := float64(req.Nights())
	party := float64(req.PartySize)
	if party < 1 {
		party = 1
	}

	night := baseNightRate
	dest := strings.ToLower(req.Destination)
	for _, hint := range expensiveHints {
		if strings.Contains(dest, hint) {
			night += cityNightExtra
			break
		}
	}

	paceFactor := 1.0
	if req.Profile != nil {
		switch req.Profile.Pace {
		case "relaxed":
			paceFactor = 0.85
		case "packed":
			paceFactor = 1.25
		}
	}

	total := (night*nights + flightPerPerson) * party * paceFactor
	if req.Profile != nil && req.Profile.BudgetCeiling > 0 && total > req.Profile.BudgetCeiling {
		total = req.Profile.BudgetCeiling
	}
	return total
}
