package observer

import "time"

// window is a fixed-window counter: at most max events per span.
type window struct {
	span  time.Duration
	max   int
	start time.Time
	count int
}

// allow records one event at now and reports whether it fits the window.
// A zero span or non-positive max disables the limit.
func (w *window) allow(now time.Time) bool {
	if w.span <= 0 || w.max <= 0 {
		return true
	}
	if w.start.IsZero() || now.Sub(w.start) >= w.span {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.count <= w.max
}
