package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when a task or runner is misconfigured
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrTaskNotFound is returned when no task with the given name is registered
	ErrTaskNotFound = errors.New("task not found")

	// ErrDuplicateTask is returned when a task name is registered twice
	ErrDuplicateTask = errors.New("task already registered")

	// ErrTaskAlreadyRunning is returned when a run is requested while the
	// previous run of the same task has not finished
	ErrTaskAlreadyRunning = errors.New("task already running")

	// ErrTaskPanicked wraps a panic recovered from a task body
	ErrTaskPanicked = errors.New("task panicked")
)
