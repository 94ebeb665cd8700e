// Package worker runs background jobs for the world loop and hands their
// results back through queues the loop drains on its own goroutine.
package worker

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool runs submitted jobs on a fixed set of Size worker goroutines fed by an
// unbounded FIFO. Submit never blocks the caller.
type Pool struct {
	size int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	workers errgroup.Group
	jobs    sync.WaitGroup

	inFlight atomic.Int64
	done     atomic.Uint64
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < size; i++ {
		p.workers.Go(p.run)
	}
	return p
}

func (p *Pool) Size() int { return p.size }

// Submit queues fn. Jobs submitted after Close are refused.
func (p *Pool) Submit(fn func()) bool {
	if p == nil || fn == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.jobs.Add(1)
	p.inFlight.Add(1)
	p.queue = append(p.queue, fn)
	p.cond.Signal()
	return true
}

func (p *Pool) run() error {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return nil
		}
		fn := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		fn()
		p.done.Add(1)
		p.inFlight.Add(-1)
		p.jobs.Done()
	}
}

// InFlight counts jobs that are queued or running.
func (p *Pool) InFlight() int {
	if p == nil {
		return 0
	}
	return int(p.inFlight.Load())
}

func (p *Pool) Completed() uint64 {
	if p == nil {
		return 0
	}
	return p.done.Load()
}

// Wait blocks until every submitted job has finished or been abandoned.
func (p *Pool) Wait() {
	if p == nil {
		return
	}
	p.jobs.Wait()
}

// Close stops admitting jobs, abandons queued jobs and waits for running
// jobs to finish.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	dropped := len(p.queue)
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	for i := 0; i < dropped; i++ {
		p.inFlight.Add(-1)
		p.jobs.Done()
	}
	_ = p.workers.Wait()
}
