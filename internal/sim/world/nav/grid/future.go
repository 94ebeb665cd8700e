package grid

import (
	"sync"
	"sync/atomic"

	"terrascape.ai/internal/sim/worker"
)

type State int32

const (
	Pending State = iota
	Running
	Ready
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Future is a grid being built in the background. The grid is published
// exactly once; readers never block.
type Future struct {
	state atomic.Int32
	grid  atomic.Pointer[Grid]
	once  sync.Once
	done  chan struct{}
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Start runs build on pool, or inline when the pool refuses the job. Only the
// first call has any effect.
func (f *Future) Start(pool *worker.Pool, build func() *Grid) {
	started := false
	f.once.Do(func() { started = true })
	if !started {
		return
	}
	job := func() {
		f.state.Store(int32(Running))
		g := build()
		if g == nil {
			g = &Grid{}
		}
		f.grid.Store(g)
		f.state.Store(int32(Ready))
		close(f.done)
	}
	if pool == nil || !pool.Submit(job) {
		job()
	}
}

func (f *Future) State() State { return State(f.state.Load()) }

// Poll returns the grid once it is Ready.
func (f *Future) Poll() (*Grid, bool) {
	if f.State() != Ready {
		return nil, false
	}
	return f.grid.Load(), true
}

func (f *Future) Done() <-chan struct{} { return f.done }
