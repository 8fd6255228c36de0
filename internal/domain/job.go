package domain

import (
	"encoding/json"
	"time"
)

// JobStatus enumerates the generation job lifecycle states. Transitions only
// move forward; a job that reached a terminal status is never rewritten.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Progress is the worker-written progress marker on a job record. Stage is
// non-decreasing across successive writes for the same job.
type Progress struct {
	Stage       int    `json:"stage"`
	TotalStages int    `json:"total_stages"`
	Message     string `json:"message"`
}

// GenerationJob is one itinerary generation run. The worker owns every mutable
// field; the API and the orchestrator only ever read the record.
type GenerationJob struct {
	ID           string
	RequesterID  string
	Fingerprint  string
	Request      TripRequest
	Status       JobStatus
	Progress     Progress
	Response     json.RawMessage
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// JobResult is the completed outcome handed back to the submitter.
type JobResult struct {
	ID          string          `json:"id"`
	Request     TripRequest     `json:"request"`
	Response    json.RawMessage `json:"response"`
	Status      JobStatus       `json:"status"`
	CompletedAt time.Time       `json:"completed_at"`
}

// ResultOf projects a completed job into a JobResult.
func ResultOf(job *GenerationJob) *JobResult {
	res := &JobResult{
		ID:       job.ID,
		Request:  job.Request,
		Response: job.Response,
		Status:   job.Status,
	}
	if job.CompletedAt != nil {
		res.CompletedAt = *job.CompletedAt
	}
	return res
}
