package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingViewpoint *Vec2

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case vp := <-w.viewpointCh:
			pendingViewpoint = &vp
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			w.step(pendingViewpoint)
			pendingViewpoint = nil
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce advances the world by a single tick with the same phase order as
// Run. vp may be nil. It must not be called while Run is active.
func (w *World) StepOnce(vp *Vec2) uint64 {
	tick := w.tick.Load()
	w.step(vp)
	return tick
}

// Viewpoint is where the running loop picks up viewpoint updates. Only the
// latest position before a tick is applied.
func (w *World) Viewpoint() chan<- Vec2 { return w.viewpointCh }

// SetViewpoint queues pos for the next tick, replacing any queued position.
func (w *World) SetViewpoint(pos Vec2) {
	select {
	case w.viewpointCh <- pos:
		return
	default:
	}
	select {
	case <-w.viewpointCh:
	default:
	}
	select {
	case w.viewpointCh <- pos:
	default:
	}
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }
