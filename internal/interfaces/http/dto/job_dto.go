package dto

import (
	"time"

	"github.com/reseller/crosslist/internal/infrastructure/scheduler"
)

// JobResponse is the run history of one background task
type JobResponse struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms"`
	Runs        int64      `json:"runs"`
	Failures    int64      `json:"failures"`
}

// NewJobResponse converts a scheduler run record
func NewJobResponse(r scheduler.RunRecord) JobResponse {
	return JobResponse{
		Name:        r.Task,
		Status:      string(r.Status),
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		DurationMs:  r.Duration.Milliseconds(),
		Runs:        r.Runs,
		Failures:    r.Failures,
	}
}
