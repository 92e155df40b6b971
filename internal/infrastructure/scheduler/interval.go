package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalRunner runs a single task on a fixed interval. A tick that
// arrives while the previous run is still going is dropped.
type IntervalRunner struct {
	task     Task
	interval time.Duration
	tracker  *tracker
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalRunner creates a runner for task firing every interval
func NewIntervalRunner(task Task, interval time.Duration, opts ...Option) (*IntervalRunner, error) {
	if err := task.validate(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	tr := newTracker(o)
	tr.register(task.Name)

	return &IntervalRunner{
		task:     task,
		interval: interval,
		tracker:  tr,
		logger:   o.logger.With(zap.String("task", task.Name)),
	}, nil
}

// Start starts the ticker loop
func (r *IntervalRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.runLoop(ctx)

	r.logger.Info("Interval runner started", zap.Duration("interval", r.interval))
	return nil
}

// Stop cancels the loop and waits for an in-flight run, or for ctx
func (r *IntervalRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Interval runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (r *IntervalRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRunning
}

// RunOnce runs the task immediately, outside the ticker
func (r *IntervalRunner) RunOnce(ctx context.Context) error {
	return r.tracker.execute(ctx, r.task)
}

// Status returns the run record of the task
func (r *IntervalRunner) Status() RunRecord {
	rec, _ := r.tracker.record(r.task.Name)
	return rec
}

// Statuses returns the single run record, so an IntervalRunner can be
// listed next to a CronRunner
func (r *IntervalRunner) Statuses() []RunRecord {
	return []RunRecord{r.Status()}
}

// Trigger runs the task now if name matches it
func (r *IntervalRunner) Trigger(ctx context.Context, name string) error {
	if name != r.task.Name {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return r.RunOnce(ctx)
}

func (r *IntervalRunner) runLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// errors are logged and recorded by the tracker
			_ = r.tracker.execute(ctx, r.task)
		}
	}
}
