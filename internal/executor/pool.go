package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aryankumar/usagemetrics/internal/util"
)

// DefaultWorkers is the concurrency cap used when none is configured
const DefaultWorkers = 10

// Task represents a unit of work to be executed by the pool
type Task struct {
	// Name identifies the task in logs and results
	Name string

	// Execute performs the work. The context is the one given to Submit.
	Execute func(ctx context.Context) (interface{}, error)

	// OnSettle, if set, runs after Execute returns and before the task's
	// slot is released, so anything it records is visible once the pool drains
	OnSettle func(Result)
}

// Result represents the outcome of executing a task
type Result struct {
	// Name is the task name
	Name string

	// Seq is the submission index of the task
	Seq int

	// Data contains the successful result data (nil if error occurred)
	Data interface{}

	// Error contains any error that occurred during execution (nil if successful)
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration
}

type queuedTask struct {
	ctx  context.Context
	task Task
	seq  int
}

// Pool runs submitted tasks with at most workers of them in flight at once.
// Tasks start in submission order; the rest wait in a FIFO queue. The pool
// never looks at task outcomes beyond recording them: a failed task frees
// its slot exactly like a successful one.
type Pool struct {
	workers int
	logger  *slog.Logger

	// mu guards everything below
	mu        sync.Mutex
	pending   []queuedTask
	inFlight  int
	peak      int
	submitted int
	results   []Result
	shutdown  bool

	// idle is closed whenever pending is empty and inFlight is 0
	idle chan struct{}
}

// NewPool creates a new pool with the specified concurrency cap.
// workers must be > 0, otherwise it defaults to 1
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	idle := make(chan struct{})
	close(idle)

	return &Pool{
		workers: workers,
		logger:  logger,
		idle:    idle,
	}
}

// Submit enqueues a task and starts it if a slot is free. It never waits
// for the task to run.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task.Name == "" {
		return fmt.Errorf("task must have a name")
	}

	if task.Execute == nil {
		return fmt.Errorf("task must have an execute function")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return fmt.Errorf("cannot submit task %q: %w", task.Name, util.ErrShutdown)
	}

	if p.isIdleLocked() {
		p.idle = make(chan struct{})
	}

	p.pending = append(p.pending, queuedTask{ctx: ctx, task: task, seq: p.submitted})
	p.submitted++
	p.logger.Debug("task submitted", "task", task.Name, "pending", len(p.pending), "in_flight", p.inFlight)

	started := p.dispatchLocked()
	p.mu.Unlock()

	p.start(started)
	return nil
}

// dispatchLocked moves tasks from pending to in-flight until the cap is hit.
// Callers must hold mu and start the returned tasks after unlocking.
func (p *Pool) dispatchLocked() []queuedTask {
	var started []queuedTask
	for p.inFlight < p.workers && len(p.pending) > 0 {
		qt := p.pending[0]
		p.pending[0] = queuedTask{}
		p.pending = p.pending[1:]

		p.inFlight++
		if p.inFlight > p.peak {
			p.peak = p.inFlight
		}
		started = append(started, qt)
	}

	if len(p.pending) == 0 {
		// release the backing array once the queue empties
		p.pending = nil
	}

	return started
}

func (p *Pool) start(tasks []queuedTask) {
	for _, qt := range tasks {
		go p.run(qt)
	}
}

// run executes one task and then settles it
func (p *Pool) run(qt queuedTask) {
	result := p.executeTask(qt)

	if qt.task.OnSettle != nil {
		p.settleCallback(qt.task, result)
	}

	p.mu.Lock()
	p.inFlight--
	p.results = append(p.results, result)
	next := p.dispatchLocked()
	if p.inFlight == 0 && len(p.pending) == 0 {
		close(p.idle)
		p.logger.Debug("pool drained", "settled", len(p.results))
	}
	p.mu.Unlock()

	p.start(next)
}

// executeTask executes a single task and returns the result
func (p *Pool) executeTask(qt queuedTask) (result Result) {
	startTime := time.Now()
	result = Result{Name: qt.task.Name, Seq: qt.seq}

	p.logger.Debug("executing task", "task", qt.task.Name)

	defer func() {
		if r := recover(); r != nil {
			result.Data = nil
			result.Error = fmt.Errorf("task %q panicked: %v", qt.task.Name, r)
			result.Duration = time.Since(startTime)
			p.logger.Error("task panicked", "task", qt.task.Name, "panic", r)
		}
	}()

	data, err := qt.task.Execute(qt.ctx)
	result.Data = data
	result.Error = err
	result.Duration = time.Since(startTime)

	if err != nil {
		p.logger.Debug("task failed", "task", qt.task.Name, "error", err, "duration", result.Duration)
	} else {
		p.logger.Debug("task succeeded", "task", qt.task.Name, "duration", result.Duration)
	}

	return result
}

func (p *Pool) settleCallback(task Task, result Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task settle callback panicked", "task", task.Name, "panic", r)
		}
	}()
	task.OnSettle(result)
}

func (p *Pool) isIdleLocked() bool {
	select {
	case <-p.idle:
		return true
	default:
	}
	return false
}

// Drained returns a channel that is closed once every submitted task has
// settled and nothing is pending. Once drained, repeated calls return an
// already closed channel until another task is submitted.
func (p *Pool) Drained() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}

// Wait blocks until the pool drains or ctx is done
func (p *Pool) Wait(ctx context.Context) error {
	select {
	case <-p.Drained():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for pool to drain: %w", ctx.Err())
	}
}

// Shutdown stops accepting new tasks and waits for queued and in-flight
// tasks to finish. The context bounds only the wait; tasks are never aborted.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return fmt.Errorf("pool already shut down")
	}
	p.shutdown = true
	pending, inFlight := len(p.pending), p.inFlight
	p.mu.Unlock()

	p.logger.Info("shutting down pool", "pending", pending, "in_flight", inFlight)

	if err := p.Wait(ctx); err != nil {
		return fmt.Errorf("shutdown timeout: %w", err)
	}

	p.logger.Info("pool shut down successfully")
	return nil
}

// IsShutdown returns true if the pool has been shut down
func (p *Pool) IsShutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown
}

// InFlight returns the number of tasks currently executing
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Pending returns the number of tasks waiting for a slot
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// PeakInFlight returns the highest in-flight count observed so far
func (p *Pool) PeakInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

// Submitted returns the number of tasks accepted by Submit
func (p *Pool) Submitted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitted
}

// WorkerCount returns the concurrency cap
func (p *Pool) WorkerCount() int {
	return p.workers
}

// Results returns the settled results in completion order
func (p *Pool) Results() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Result, len(p.results))
	copy(out, p.results)
	return out
}
