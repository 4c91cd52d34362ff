package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/aistudio/internal/clock"
	"github.com/dgnsrekt/aistudio/internal/job"
	"github.com/dgnsrekt/aistudio/internal/queue"
)

// Runner executes the generation pipeline for one job. progress receives
// human-readable status lines while the job runs.
type Runner interface {
	Run(ctx context.Context, j job.Job, progress func(msg string)) (job.Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, j job.Job, progress func(msg string)) (job.Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, j job.Job, progress func(string)) (job.Result, error) {
	return f(ctx, j, progress)
}

// ErrPanic wraps a panic recovered from a pipeline run.
var ErrPanic = errors.New("pipeline panicked")

// Worker is the single consumer of a JobQueue.
type Worker struct {
	queue  *queue.JobQueue
	runner Runner
	hub    *Hub
	dead   DeadLetters
	logger *log.Logger
	clock  clock.Clock

	mu        sync.RWMutex
	current   *job.Job
	startedAt time.Time
	processed int64
	failed    int64
	running   bool
}

// Option configures a Worker.
type Option func(*Worker)

// WithHub sets the event hub. By default a new hub is created.
func WithHub(h *Hub) Option { return func(w *Worker) { w.hub = h } }

// WithDeadLetters records failed jobs in d.
func WithDeadLetters(d DeadLetters) Option { return func(w *Worker) { w.dead = d } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(w *Worker) { w.logger = l } }

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option { return func(w *Worker) { w.clock = c } }

// New creates a worker draining q with runner.
func New(q *queue.JobQueue, runner Runner, opts ...Option) *Worker {
	w := &Worker{
		queue:  q,
		runner: runner,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.hub == nil {
		w.hub = NewHub(0)
	}
	if w.logger == nil {
		w.logger = log.Default().WithPrefix("worker")
	}
	w.clock = clock.OrReal(w.clock)
	return w
}

// Hub returns the event hub.
func (w *Worker) Hub() *Hub { return w.hub }

// Queue returns the underlying queue.
func (w *Worker) Queue() *queue.JobQueue { return w.queue }

// Submit validates and enqueues a job. It never blocks on a busy worker.
func (w *Worker) Submit(j job.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	if err := w.queue.Enqueue(j); err != nil {
		return err
	}
	depth := w.queue.Size()
	w.logger.Debug("Job queued", "id", j.ShortID(), "mode", j.Mode, "target", j.TargetName, "depth", depth)
	w.hub.Publish(Event{
		Type:       EventQueued,
		JobID:      j.ID,
		TargetName: j.TargetName,
		Message:    fmt.Sprintf("queued (%d waiting)", depth),
		QueueDepth: depth,
	})
	return nil
}

// SubmitAndWait submits a job and blocks until it succeeds, fails, or ctx
// is done. Waiting does not cancel the job itself.
func (w *Worker) SubmitAndWait(ctx context.Context, j job.Job) (job.Result, error) {
	events, cancel := w.hub.Subscribe(256)
	defer cancel()

	if err := w.Submit(j); err != nil {
		return job.Result{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return job.Result{}, ctx.Err()
		case e, ok := <-events:
			if !ok {
				return job.Result{}, errors.New("event stream closed")
			}
			if e.JobID != j.ID || !e.Type.Terminal() {
				continue
			}
			if e.Type == EventFailed {
				return job.Result{}, errors.New(e.Error)
			}
			if e.Result == nil {
				return job.Result{}, nil
			}
			return *e.Result, nil
		}
	}
}

// State returns a snapshot of the worker state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := State{
		Status:     StatusIdle,
		QueueDepth: w.queue.Size(),
		Processed:  w.processed,
		Failed:     w.failed,
	}
	if w.current != nil {
		cur := *w.current
		s.Status = StatusProcessing
		s.Processing = true
		s.Current = &cur
		s.StartedAt = w.startedAt
	}
	return s
}

// Run drains the queue until ctx is cancelled or the queue is closed and
// empty. A job that has been dequeued always runs to completion: its
// pipeline context is detached from ctx's cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.logger.Debug("Worker started")
	for {
		j, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) {
				w.logger.Debug("Worker stopped", "reason", "queue closed")
				return nil
			}
			w.logger.Debug("Worker stopped", "reason", err)
			return err
		}

		w.process(context.WithoutCancel(ctx), j)

		if w.queue.Size() == 0 {
			w.hub.Publish(Event{Type: EventIdle, Message: "waiting for jobs"})
		}
	}
}

// process runs one job and reports its outcome. Failures, including
// panics, are contained here.
func (w *Worker) process(ctx context.Context, j job.Job) {
	started := w.clock.Now()
	w.mu.Lock()
	w.current = &j
	w.startedAt = started
	w.mu.Unlock()

	w.logger.Info("Job started", "id", j.ShortID(), "mode", j.Mode, "target", j.TargetName)
	w.hub.Publish(Event{
		Type:       EventStarted,
		JobID:      j.ID,
		TargetName: j.TargetName,
		Message:    "started",
		QueueDepth: w.queue.Size(),
	})

	progress := func(msg string) {
		w.logger.Debug("Job progress", "id", j.ShortID(), "msg", msg)
		w.hub.Publish(Event{
			Type:       EventProgress,
			JobID:      j.ID,
			TargetName: j.TargetName,
			Message:    msg,
			QueueDepth: w.queue.Size(),
		})
	}

	res, err := w.runSafely(ctx, j, progress)
	elapsed := w.clock.Now().Sub(started)

	w.mu.Lock()
	w.current = nil
	w.startedAt = time.Time{}
	if err != nil {
		w.failed++
	} else {
		w.processed++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Job failed", "id", j.ShortID(), "target", j.TargetName, "duration", elapsed, "error", err)
		if w.dead != nil {
			if derr := w.dead.Record(Failure{Job: j, Error: err.Error(), FailedAt: w.clock.Now()}); derr != nil {
				w.logger.Warn("Could not record failed job", "id", j.ShortID(), "error", derr)
			}
		}
		w.hub.Publish(Event{
			Type:       EventFailed,
			JobID:      j.ID,
			TargetName: j.TargetName,
			Message:    "failed",
			Error:      err.Error(),
			QueueDepth: w.queue.Size(),
		})
		return
	}

	w.logger.Info("Job finished", "id", j.ShortID(), "audio", res.AudioPath, "duration", elapsed)
	w.hub.Publish(Event{
		Type:       EventSucceeded,
		JobID:      j.ID,
		TargetName: j.TargetName,
		Message:    "done",
		Result:     &res,
		QueueDepth: w.queue.Size(),
	})
}

func (w *Worker) runSafely(ctx context.Context, j job.Job, progress func(string)) (res job.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Pipeline panic", "id", j.ShortID(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return w.runner.Run(ctx, j, progress)
}
