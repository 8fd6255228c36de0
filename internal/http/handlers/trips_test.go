package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"tripsmith/internal/domain"
	"tripsmith/internal/estimate"
	"tripsmith/internal/infra"
	"tripsmith/internal/middleware"
)

type fakeJobs struct {
	mu        sync.Mutex
	nextID    int
	jobs      map[string]*domain.GenerationJob
	submitErr error
	onSubmit  func(jobID string)
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]*domain.GenerationJob)}
}

func (f *fakeJobs) SubmitJob(ctx context.Context, req domain.TripRequest, requesterID string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("job-%d", f.nextID)
	f.jobs[id] = &domain.GenerationJob{
		ID:          id,
		RequesterID: requesterID,
		Fingerprint: req.Fingerprint(),
		Request:     req,
		Status:      domain.JobStatusPending,
		Progress:    domain.Progress{Stage: 1, TotalStages: domain.TotalStages},
		CreatedAt:   time.Now(),
	}
	f.mu.Unlock()
	if f.onSubmit != nil {
		f.onSubmit(id)
	}
	return id, nil
}

func (f *fakeJobs) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobs) LatestCompleted(ctx context.Context, requesterID, fingerprint string, cutoff time.Time) (*domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *domain.GenerationJob
	for _, job := range f.jobs {
		if job.RequesterID != requesterID || job.Fingerprint != fingerprint {
			continue
		}
		if job.Status != domain.JobStatusCompleted || job.CreatedAt.Before(cutoff) {
			continue
		}
		if best == nil || job.CreatedAt.After(best.CreatedAt) {
			best = job
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	copied := *best
	return &copied, nil
}

func (f *fakeJobs) put(job *domain.GenerationJob) {
	f.mu.Lock()
	f.jobs[job.ID] = job
	f.mu.Unlock()
}

// fakeFeed delivers the stored job row once on subscribe.
type fakeFeed struct {
	store *fakeJobs
}

func (f *fakeFeed) Subscribe(jobID string, onChange func(*domain.GenerationJob), onError func(error, bool)) (func(), error) {
	if job, err := f.store.GetByID(context.Background(), jobID); err == nil {
		onChange(job)
	}
	return func() {}, nil
}

type rateLimitedBackend struct{}

func (rateLimitedBackend) Estimate(ctx context.Context, req domain.TripRequest) (float64, error) {
	return 0, fmt.Errorf("quota: %w", domain.ErrRateLimited)
}

func testApp(jobs *fakeJobs) *App {
	logger := infra.NewLogger("test")
	return &App{
		Config: &infra.Config{
			SubmitCallTimeout: time.Second,
			GraceWindow:       time.Second,
			RecoveryWindow:    time.Second,
			RecoveryCadence:   10 * time.Millisecond,
			RecencyWindow:     time.Minute,
		},
		Logger:    logger,
		Jobs:      jobs,
		Feed:      &fakeFeed{store: jobs},
		Estimator: estimate.New(rateLimitedBackend{}, logger, time.Minute),
	}
}

func tripPayload() string {
	return `{
		"destination": "Lisbon",
		"start_date": "2026-09-10",
		"end_date": "2026-09-14",
		"party_size": 2,
		"profile": {"id": "profile-1", "pace": "balanced", "budget_ceiling": 4000}
	}`
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestGenerateTrip_CompletesThroughFeed(t *testing.T) {
	jobs := newFakeJobs()
	completedAt := time.Now()
	jobs.onSubmit = func(jobID string) {
		// Worker finishes before the subscription attaches; the late-subscriber
		// replay must still settle the call.
		job, _ := jobs.GetByID(context.Background(), jobID)
		job.Status = domain.JobStatusCompleted
		job.Progress = domain.Progress{Stage: domain.TotalStages, TotalStages: domain.TotalStages, Message: "Itinerary ready"}
		job.Response = json.RawMessage(`{"destination":"Lisbon","days":[]}`)
		job.CompletedAt = &completedAt
		jobs.put(job)
	}
	app := testApp(jobs)

	rr := httptest.NewRecorder()
	app.GenerateTrip(rr, authedRequest("POST", "/v1/trips/generate", tripPayload()))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var resp tripResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != "job-1" {
		t.Fatalf("unexpected job id %q", resp.JobID)
	}
	if resp.Status != string(domain.JobStatusCompleted) {
		t.Fatalf("unexpected status %q", resp.Status)
	}
	if len(resp.Itinerary) == 0 {
		t.Fatal("expected itinerary payload")
	}
}

func TestGenerateTrip_RequiresAuth(t *testing.T) {
	app := testApp(newFakeJobs())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/trips/generate", strings.NewReader(tripPayload()))
	app.GenerateTrip(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d, want 401", rr.Code)
	}
}

func TestGenerateTrip_RejectsInvalidRequest(t *testing.T) {
	app := testApp(newFakeJobs())

	rr := httptest.NewRecorder()
	app.GenerateTrip(rr, authedRequest("POST", "/v1/trips/generate", `{"destination":"Lisbon"}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d, want 400 (body %s)", rr.Code, rr.Body.String())
	}
}

func TestGenerateTrip_MapsGenerationFailure(t *testing.T) {
	jobs := newFakeJobs()
	jobs.onSubmit = func(jobID string) {
		job, _ := jobs.GetByID(context.Background(), jobID)
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = "model unavailable"
		jobs.put(job)
	}
	app := testApp(jobs)

	rr := httptest.NewRecorder()
	app.GenerateTrip(rr, authedRequest("POST", "/v1/trips/generate", tripPayload()))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: got %d, want 422 (body %s)", rr.Code, rr.Body.String())
	}
}

func TestJobsCreate_Enqueues(t *testing.T) {
	jobs := newFakeJobs()
	app := testApp(jobs)

	rr := httptest.NewRecorder()
	app.JobsCreate(rr, authedRequest("POST", "/v1/trips/jobs", tripPayload()))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: got %d, want 202 (body %s)", rr.Code, rr.Body.String())
	}
	var resp jobCreateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" || resp.Status != string(domain.JobStatusPending) {
		t.Fatalf("unexpected response %+v", resp)
	}
	if _, err := jobs.GetByID(context.Background(), resp.JobID); err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
}

func TestJobStatus_ScopedToRequester(t *testing.T) {
	jobs := newFakeJobs()
	jobs.put(&domain.GenerationJob{
		ID:          "job-9",
		RequesterID: "someone-else",
		Status:      domain.JobStatusGenerating,
		Progress:    domain.Progress{Stage: 2, TotalStages: domain.TotalStages},
		CreatedAt:   time.Now(),
	})
	app := testApp(jobs)

	rr := httptest.NewRecorder()
	req := authedRequest("GET", "/v1/trips/jobs/job-9", "")
	req = withURLParam(req, "job_id", "job-9")
	app.JobStatus(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d, want 404", rr.Code)
	}
}

func TestJobStatus_ProjectsProgress(t *testing.T) {
	jobs := newFakeJobs()
	jobs.put(&domain.GenerationJob{
		ID:          "job-3",
		RequesterID: "user-1",
		Status:      domain.JobStatusGenerating,
		Progress:    domain.Progress{Stage: 3, TotalStages: domain.TotalStages, Message: "Selecting flights"},
		CreatedAt:   time.Now(),
	})
	app := testApp(jobs)

	rr := httptest.NewRecorder()
	req := authedRequest("GET", "/v1/trips/jobs/job-3", "")
	req = withURLParam(req, "job_id", "job-3")
	app.JobStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var resp jobStatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(domain.JobStatusGenerating) {
		t.Fatalf("unexpected status %q", resp.Status)
	}
	if resp.Progress.Stage != 3 {
		t.Fatalf("unexpected stage %d", resp.Progress.Stage)
	}
	if got := resp.Progress.Stages[0].Status; got != domain.StageCompleted {
		t.Fatalf("stage 1 status = %q, want completed", got)
	}
	if got := resp.Progress.Stages[2].Status; got != domain.StageActive {
		t.Fatalf("stage 3 status = %q, want active", got)
	}
	if len(resp.Itinerary) != 0 {
		t.Fatal("itinerary must be withheld before completion")
	}
}

func TestEstimateTrip_FallsBackAndQuotesCurrency(t *testing.T) {
	app := testApp(newFakeJobs())

	rr := httptest.NewRecorder()
	req := authedRequest("POST", "/v1/trips/estimate", tripPayload())
	req = req.WithContext(context.WithValue(req.Context(), middleware.CountryKey, "GB"))
	app.EstimateTrip(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var resp estimateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Estimate <= 0 {
		t.Fatalf("unexpected estimate %f", resp.Estimate)
	}
	if resp.Currency != "GBP" {
		t.Fatalf("unexpected currency %q", resp.Currency)
	}
}

func TestEstimateTrip_RequiresDestination(t *testing.T) {
	app := testApp(newFakeJobs())

	rr := httptest.NewRecorder()
	app.EstimateTrip(rr, authedRequest("POST", "/v1/trips/estimate", `{"party_size":2}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d, want 400", rr.Code)
	}
}
