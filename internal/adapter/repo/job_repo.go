package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripsmith/internal/domain"
)

// JobRepositoryPG implements domain.JobStore and the orchestrator backend
// entry point against PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// error_message stays NULL until a job fails; the coalesce keeps the scan
// into a plain string from erroring on every healthy row.
const jobColumns = `id, requester_id, fingerprint, request_json, status, progress_stage, progress_total, coalesce(progress_message, ''), response_json, coalesce(error_message, ''), created_at, updated_at, completed_at`

// SubmitJob inserts a pending job record and returns its assigned ID. This is
// the backend submission entry point; the worker takes it from here.
func (r *JobRepositoryPG) SubmitJob(ctx context.Context, req domain.TripRequest, requesterID string) (string, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	query := `
INSERT INTO itinerary_jobs (requester_id, fingerprint, request_json, status, progress_stage, progress_total, progress_message)
VALUES ($1, $2, $3, $4, 1, $5, $6)
RETURNING id;
`
	row := r.pool.QueryRow(ctx, query,
		requesterID,
		req.Fingerprint(),
		reqJSON,
		domain.JobStatusPending,
		domain.TotalStages,
		"Queued",
	)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM itinerary_jobs
WHERE id = $1;
`
	return scanJob(r.pool.QueryRow(ctx, query, jobID))
}

// LatestCompleted returns the freshest completed job for the requester and
// request fingerprint, skipping anything created before the cutoff. Used by
// the recovery poll after a submission call timeout.
func (r *JobRepositoryPG) LatestCompleted(ctx context.Context, requesterID, fingerprint string, cutoff time.Time) (*domain.GenerationJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM itinerary_jobs
WHERE requester_id = $1
  AND fingerprint = $2
  AND status = $3
  AND created_at >= $4
ORDER BY created_at DESC
LIMIT 1;
`
	return scanJob(r.pool.QueryRow(ctx, query, requesterID, fingerprint, domain.JobStatusCompleted, cutoff))
}

func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var (
		job      domain.GenerationJob
		reqJSON  []byte
		response []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.RequesterID,
		&job.Fingerprint,
		&reqJSON,
		&job.Status,
		&job.Progress.Stage,
		&job.Progress.TotalStages,
		&job.Progress.Message,
		&response,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(reqJSON) > 0 {
		if err := json.Unmarshal(reqJSON, &job.Request); err != nil {
			return nil, fmt.Errorf("decode request: %w", err)
		}
	}
	if len(response) > 0 {
		job.Response = json.RawMessage(response)
	}
	return &job, nil
}

var _ domain.JobStore = (*JobRepositoryPG)(nil)
