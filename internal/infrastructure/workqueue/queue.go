package workqueue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eapache/queue"
)

var (
	// ErrClosed is returned when registering on a closed queue.
	ErrClosed = errors.New("workqueue closed")
	// ErrDuplicateKey is returned when a key already has a task.
	ErrDuplicateKey = errors.New("workqueue key already registered")
)

// Task is the unit of work bound to a key.
type Task func()

// PanicHandler is called with the key and recovered value of a panicking task.
type PanicHandler func(key int, recovered interface{})

// item tracks the scheduling state of one key.
type item struct {
	task    Task
	pending bool
	running bool
}

// Queue runs keyed tasks on a fixed pool of workers. Each key has at most one
// queued run and never more than one concurrent run.
type Queue struct {
	mu      sync.Mutex
	ready   *queue.Queue // keys waiting for a worker, FIFO
	work    *sync.Cond   // signalled when ready grows or the queue closes
	idle    *sync.Cond   // broadcast when any run finishes
	items   map[int]*item
	closed  bool
	onPanic PanicHandler
	wg      sync.WaitGroup

	// statistics
	scheduled uint64
	completed uint64
}

// Option configures a Queue.
type Option func(*Queue)

// WithPanicHandler installs a handler for panicking tasks. Without one the
// panic is swallowed and the worker keeps running.
func WithPanicHandler(h PanicHandler) Option {
	return func(q *Queue) {
		q.onPanic = h
	}
}

// New starts a queue with the given number of workers (at least one).
func New(workers int, opts ...Option) *Queue {
	if workers <= 0 {
		workers = 1
	}

	q := &Queue{
		ready: queue.New(),
		items: make(map[int]*item),
	}
	q.work = sync.NewCond(&q.mu)
	q.idle = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Register binds task to key.
func (q *Queue) Register(key int, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if _, ok := q.items[key]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateKey, key)
	}
	q.items[key] = &item{task: task}
	return nil
}

// Schedule queues a run of key's task. It reports false when a run is
// already pending, the key is unknown, or the queue is closed. A schedule
// that arrives while the task is running queues exactly one follow-up run.
func (q *Queue) Schedule(key int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[key]
	if !ok || q.closed || it.pending {
		return false
	}

	it.pending = true
	q.scheduled++
	if !it.running {
		q.ready.Add(key)
		q.work.Signal()
	}
	return true
}

// Flush blocks until key is neither pending nor running. It must not be
// called from key's own task.
func (q *Queue) Flush(key int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[key]
	if !ok {
		return
	}
	for it.pending || it.running {
		q.idle.Wait()
	}
}

// Busy reports whether key is pending or running.
func (q *Queue) Busy(key int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[key]
	return ok && (it.pending || it.running)
}

// Stats returns basic queue counters.
func (q *Queue) Stats() map[string]uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return map[string]uint64{
		"scheduled": q.scheduled,
		"completed": q.completed,
		"ready":     uint64(q.ready.Length()),
	}
}

// Close stops accepting schedules, lets queued runs finish, and waits for
// the workers to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.work.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		for q.ready.Length() == 0 && !q.closed {
			q.work.Wait()
		}
		if q.ready.Length() == 0 {
			return
		}

		key := q.ready.Remove().(int)
		it := q.items[key]
		it.pending = false
		it.running = true

		q.mu.Unlock()
		q.run(key, it.task)
		q.mu.Lock()

		it.running = false
		q.completed++
		if it.pending {
			q.ready.Add(key)
			q.work.Signal()
		}
		q.idle.Broadcast()
	}
}

func (q *Queue) run(key int, task Task) {
	defer func() {
		if r := recover(); r != nil && q.onPanic != nil {
			q.onPanic(key, r)
		}
	}()
	task()
}
