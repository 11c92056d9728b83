package capture

import (
	"sync"
	"sync/atomic"
)

// workerPool is a fixed-size pool of goroutines that deliver mapped
// snapshots: strip row padding, build the packed frame, and run the user
// callback off the render thread.
//
// The job queue depth equals the worker count. That bound, together with
// admission control in Capture, is the backpressure mechanism: no backlog
// can grow beyond one queued job per worker. Capture jobs are few and
// heavy (an image conversion plus user I/O each), so a single shared
// bounded channel is used rather than per-worker queues with stealing.
type workerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// jobs is the shared queue. Its capacity equals workers.
	jobs chan *Snapshot

	// done signals workers to drain and stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool
}

// newWorkerPool creates a pool with the given worker count and starts its
// workers immediately.
func newWorkerPool(workers int) *workerPool {
	p := &workerPool{
		workers: workers,
		jobs:    make(chan *Snapshot, workers),
		done:    make(chan struct{}),
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// worker is the main loop for each worker goroutine. Panics in user
// callbacks are recovered inside Snapshot.deliver, so a worker only exits
// when the pool shuts down.
func (p *workerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			p.drain()
			return
		case snap := <-p.jobs:
			if snap != nil {
				snap.deliver()
			}
		}
	}
}

// drain delivers all remaining queued snapshots before a worker exits.
func (p *workerPool) drain() {
	for {
		select {
		case snap := <-p.jobs:
			if snap != nil {
				snap.deliver()
			}
		default:
			return
		}
	}
}

// submit enqueues a snapshot, blocking while the queue is full. The caller
// is normally the poll driver (the render thread); the stall is bounded by
// the worker count since admission control caps in-flight snapshots.
func (p *workerPool) submit(snap *Snapshot) {
	if !p.running.Load() {
		return
	}
	select {
	case p.jobs <- snap:
	case <-p.done:
	}
}

// trySubmit enqueues a snapshot without blocking. Returns ErrQueueFull if
// the queue is at capacity and ErrCapturerClosed if the pool has shut down.
func (p *workerPool) trySubmit(snap *Snapshot) error {
	if !p.running.Load() {
		return ErrCapturerClosed
	}
	select {
	case p.jobs <- snap:
		return nil
	case <-p.done:
		return ErrCapturerClosed
	default:
		return ErrQueueFull
	}
}

// close stops accepting work, drains remaining jobs, and joins all
// workers. Safe to call multiple times.
func (p *workerPool) close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
