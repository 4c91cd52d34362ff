package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgnsrekt/aistudio/internal/job"
)

// ErrQueueClosed is returned when operations are attempted on a closed queue
var ErrQueueClosed = errors.New("queue is closed")

// JobQueue is a thread-safe, unbounded FIFO of jobs.
// Insertion order is processing order; each job is handed out exactly once.
type JobQueue struct {
	items []job.Job

	// Synchronization
	mu       sync.Mutex
	notEmpty *sync.Cond

	// State
	closed bool
	stats  Stats
	now    func() time.Time
}

// Stats tracks queue throughput.
type Stats struct {
	TotalEnqueued int64
	TotalDequeued int64
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// New creates an empty queue.
func New() *JobQueue {
	q := &JobQueue{
		items: make([]job.Job, 0, 8),
		now:   time.Now,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a job to the tail. It never blocks and only fails
// once the queue has been closed.
func (q *JobQueue) Enqueue(j job.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, j)

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = q.now()
	if len(q.items) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.items)
	}
	q.stats.CurrentSize = len(q.items)

	q.notEmpty.Signal()
	return nil
}

// Dequeue removes and returns the head of the queue, blocking until a job
// is available. It returns ctx.Err() if the context ends the wait, and
// ErrQueueClosed once the queue is closed and has been drained.
func (q *JobQueue) Dequeue(ctx context.Context) (job.Job, error) {
	// Wake the waiter below when the context is done.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.notEmpty.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return job.Job{}, err
		}
		q.notEmpty.Wait()
	}

	if len(q.items) == 0 {
		return job.Job{}, ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return job.Job{}, err
	}

	j := q.items[0]
	q.items[0] = job.Job{}
	q.items = q.items[1:]

	q.stats.TotalDequeued++
	q.stats.LastDequeue = q.now()
	q.stats.CurrentSize = len(q.items)

	return j, nil
}

// Size returns the current number of pending jobs. The value is advisory:
// it may be stale by the time the caller reads it.
func (q *JobQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a snapshot of the pending jobs in processing order.
func (q *JobQueue) Pending() []job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]job.Job, len(q.items))
	copy(out, q.items)
	return out
}

// Stats returns current queue statistics.
func (q *JobQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = len(q.items)
	return stats
}

// Close stops the queue from accepting jobs and wakes blocked consumers.
// Jobs already queued can still be dequeued.
func (q *JobQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.notEmpty.Broadcast()
	return nil
}
