package handler

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reseller/crosslist/internal/infrastructure/scheduler"
	"github.com/reseller/crosslist/internal/interfaces/http/dto"
)

// JobRunner is a scheduler whose tasks can be inspected and fired by name
type JobRunner interface {
	Statuses() []scheduler.RunRecord
	Trigger(ctx context.Context, name string) error
}

// JobHandler exposes the background tasks
type JobHandler struct {
	BaseHandler
	runners []JobRunner
}

// NewJobHandler creates a new JobHandler over the given runners
func NewJobHandler(runners ...JobRunner) *JobHandler {
	return &JobHandler{runners: runners}
}

// List returns the run history of every task
func (h *JobHandler) List(c *gin.Context) {
	h.Success(c, h.records())
}

// Run fires a task now and waits for it to finish
func (h *JobHandler) Run(c *gin.Context) {
	name := c.Param("name")
	for _, r := range h.runners {
		err := r.Trigger(c.Request.Context(), name)
		if errors.Is(err, scheduler.ErrTaskNotFound) {
			continue
		}
		switch {
		case errors.Is(err, scheduler.ErrTaskAlreadyRunning):
			h.ErrorWithCode(c, dto.ErrCodeConflict, "Task is already running")
			return
		case err != nil:
			h.HandleError(c, err)
			return
		}
		h.Success(c, h.record(name))
		return
	}
	h.ErrorWithCode(c, dto.ErrCodeNotFound, "Task not found")
}

func (h *JobHandler) records() []dto.JobResponse {
	var out []dto.JobResponse
	for _, r := range h.runners {
		for _, rec := range r.Statuses() {
			out = append(out, dto.NewJobResponse(rec))
		}
	}
	slices.SortFunc(out, func(a, b dto.JobResponse) int { return strings.Compare(a.Name, b.Name) })
	if out == nil {
		out = []dto.JobResponse{}
	}
	return out
}

func (h *JobHandler) record(name string) dto.JobResponse {
	for _, rec := range h.records() {
		if rec.Name == name {
			return rec
		}
	}
	return dto.JobResponse{Name: name}
}
