package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronRunner runs tasks on standard five-field cron expressions
// ("*/15 * * * *") or descriptors such as "@hourly" and "@every 5m".
type CronRunner struct {
	cron    *cron.Cron
	tracker *tracker
	logger  *zap.Logger

	mu        sync.Mutex
	tasks     map[string]Task
	entries   map[string]cron.EntryID
	baseCtx   context.Context
	cancel    context.CancelFunc
	isRunning bool
}

// NewCronRunner creates an empty cron runner
func NewCronRunner(opts ...Option) *CronRunner {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cl := cronLogger{sugar: o.logger.Sugar()}

	return &CronRunner{
		cron: cron.New(
			cron.WithLocation(o.location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		tracker: newTracker(o),
		logger:  o.logger,
		tasks:   make(map[string]Task),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers task on spec
func (r *CronRunner) Add(spec string, task Task) error {
	if err := task.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.Name)
	}

	id, err := r.cron.AddFunc(spec, func() { r.fire(task) })
	if err != nil {
		return fmt.Errorf("%w: task %q schedule %q: %v", ErrInvalidConfig, task.Name, spec, err)
	}
	r.tasks[task.Name] = task
	r.entries[task.Name] = id
	r.tracker.register(task.Name)

	r.logger.Info("Cron task registered",
		zap.String("task", task.Name),
		zap.String("schedule", spec),
	)
	return nil
}

// Start starts the cron clock. Runs receive a context derived from ctx.
func (r *CronRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return nil
	}
	r.baseCtx, r.cancel = context.WithCancel(ctx)
	r.isRunning = true
	r.cron.Start()

	r.logger.Info("Cron runner started", zap.Int("tasks", len(r.tasks)))
	return nil
}

// Stop halts the clock, cancels in-flight runs and waits for them, or for ctx
func (r *CronRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	cancel := r.cancel
	r.mu.Unlock()

	stopped := r.cron.Stop()
	if cancel != nil {
		cancel()
	}

	select {
	case <-stopped.Done():
		r.logger.Info("Cron runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs the named task now, outside its schedule
func (r *CronRunner) Trigger(ctx context.Context, name string) error {
	r.mu.Lock()
	task, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return r.tracker.execute(ctx, task)
}

// Next returns the next scheduled time of the named task. It is zero
// until the runner has started.
func (r *CronRunner) Next(name string) (time.Time, error) {
	r.mu.Lock()
	id, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return r.cron.Entry(id).Next, nil
}

// Statuses returns run records for every registered task, by name
func (r *CronRunner) Statuses() []RunRecord {
	out := r.tracker.all()
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

func (r *CronRunner) fire(task Task) {
	r.mu.Lock()
	ctx := r.baseCtx
	r.mu.Unlock()
	if ctx == nil {
		return
	}
	_ = r.tracker.execute(ctx, task)
}

// cronLogger adapts zap to cron.Logger. Scheduler chatter goes to debug.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}
