package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobStatus represents the outcome of the most recent run of a task
type JobStatus string

const (
	JobStatusIdle    JobStatus = "IDLE"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Task is a named unit of background work
type Task struct {
	Name string
	// Timeout bounds a single run. Zero means the run inherits the
	// runner's context unchanged.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

func (t Task) validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: task name is required", ErrInvalidConfig)
	}
	if t.Run == nil {
		return fmt.Errorf("%w: task %q has no run function", ErrInvalidConfig, t.Name)
	}
	if t.Timeout < 0 {
		return fmt.Errorf("%w: task %q has a negative timeout", ErrInvalidConfig, t.Name)
	}
	return nil
}

// RunRecord summarizes the run history of one task
type RunRecord struct {
	Task        string
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	Duration    time.Duration
	Runs        int64
	Failures    int64
}

// Option configures a runner
type Option func(*options)

type options struct {
	logger   *zap.Logger
	now      func() time.Time
	location *time.Location
}

func defaultOptions() options {
	return options{
		logger:   zap.NewNop(),
		now:      time.Now,
		location: time.UTC,
	}
}

// WithLogger sets the runner logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock used for run records
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLocation sets the time zone cron schedules are evaluated in
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// tracker executes tasks one run at a time per name and keeps their records
type tracker struct {
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	running map[string]bool
	records map[string]*RunRecord
}

func newTracker(o options) *tracker {
	return &tracker{
		logger:  o.logger,
		now:     o.now,
		running: make(map[string]bool),
		records: make(map[string]*RunRecord),
	}
}

func (t *tracker) register(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[name]; !ok {
		t.records[name] = &RunRecord{Task: name, Status: JobStatusIdle}
	}
}

func (t *tracker) begin(name string) (time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running[name] {
		return time.Time{}, fmt.Errorf("%w: %s", ErrTaskAlreadyRunning, name)
	}
	t.running[name] = true

	rec, ok := t.records[name]
	if !ok {
		rec = &RunRecord{Task: name}
		t.records[name] = rec
	}
	started := t.now()
	rec.Status = JobStatusRunning
	rec.StartedAt = &started
	rec.Error = ""
	return started, nil
}

func (t *tracker) finish(name string, started time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.running, name)

	rec := t.records[name]
	completed := t.now()
	rec.CompletedAt = &completed
	rec.Duration = completed.Sub(started)
	rec.Runs++
	if err != nil {
		rec.Status = JobStatusFailed
		rec.Error = err.Error()
		rec.Failures++
		return
	}
	rec.Status = JobStatusSuccess
}

// execute runs task once, refusing to overlap a run already in flight
func (t *tracker) execute(ctx context.Context, task Task) error {
	started, err := t.begin(task.Name)
	if err != nil {
		return err
	}

	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	err = t.safeRun(ctx, task)
	t.finish(task.Name, started, err)

	if err != nil {
		t.logger.Error("Scheduled task failed",
			zap.String("task", task.Name),
			zap.Error(err),
		)
		return err
	}
	t.logger.Debug("Scheduled task completed",
		zap.String("task", task.Name),
		zap.Duration("duration", t.now().Sub(started)),
	)
	return nil
}

func (t *tracker) safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrTaskPanicked, task.Name, r)
		}
	}()
	return task.Run(ctx)
}

func (t *tracker) record(name string) (RunRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[name]
	if !ok {
		return RunRecord{}, false
	}
	return *rec, true
}

func (t *tracker) all() []RunRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RunRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	return out
}
