package queue

import (
	"sync"
	"time"
)

type JobKind int

const (
	JobSegment JobKind = iota + 1
	JobEncrypt
)

func (k JobKind) String() string {
	switch k {
	case JobSegment:
		return "segment"
	case JobEncrypt:
		return "encrypt"
	default:
		return "unknown"
	}
}

// Job is one unit of pipeline work. TaskKey is the dedup identity; the lease
// held under it is released by the worker when the job finishes.
type Job struct {
	TaskKey        string
	Kind           JobKind
	Path           string
	SegmentSeconds int // 0 means the size heuristic decides
	FrameRate      int // 0 means the configured default
	EnqueuedAt     time.Time
}

// Queue is a bounded FIFO job queue. Dequeue blocks until a job is available.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	jobs     []Job
	capacity int
	closed   bool
}

func NewQueue(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) Len() int { q.mu.Lock(); defer q.mu.Unlock(); return len(q.jobs) }

// Enqueue returns false when the queue is full or closed.
func (q *Queue) Enqueue(j Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.jobs) >= q.capacity {
		return false
	}
	j.EnqueuedAt = time.Now()
	q.jobs = append(q.jobs, j)
	q.notEmpty.Signal()
	return true
}

// Dequeue blocks until a job is available or the queue is closed. The second
// return value is false once the queue is closed and drained.
func (q *Queue) Dequeue() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.jobs) == 0 {
		return Job{}, false
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, true
}

// Close unblocks all waiting consumers. Jobs already queued are still drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

type WorkerPool struct {
	workers int
	queue   *Queue
	wg      sync.WaitGroup
	handler func(Job)
}

func NewWorkerPool(workers int, queue *Queue, handler func(Job)) *WorkerPool {
	return &WorkerPool{workers: workers, queue: queue, handler: handler}
}

func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			for {
				job, ok := wp.queue.Dequeue()
				if !ok {
					return
				}
				wp.handler(job)
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight handlers to return.
func (wp *WorkerPool) Stop() {
	wp.queue.Close()
	wp.wg.Wait()
}
