package emotion

// Window is the rolling sample history of one aggregation period.
// It counts ticks, not samples: a tick that produced no label (no face, a failed
// classification) still advances the window so it closes on schedule.
type Window struct {
	size    int
	ticks   int
	history []Label
}

// NewWindow returns an empty window that closes after size ticks.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, history: make([]Label, 0, size)}
}

// Record appends a classified sample and counts the tick.
func (w *Window) Record(l Label) {
	w.history = append(w.history, l)
	w.ticks++
}

// Miss counts a tick that produced no sample.
func (w *Window) Miss() {
	w.ticks++
}

// Full reports whether the window has seen all of its ticks.
func (w *Window) Full() bool {
	return w.ticks >= w.size
}

// Close computes the dominant label and resets the window.
// ok is false when every tick in the window missed.
func (w *Window) Close() (Label, bool) {
	l, ok := Dominant(w.history)
	w.Reset()
	return l, ok
}

// Reset empties the history and the tick counter.
func (w *Window) Reset() {
	w.history = w.history[:0]
	w.ticks = 0
}

func (w *Window) Size() int  { return w.size }
func (w *Window) Ticks() int { return w.ticks }
func (w *Window) Len() int   { return len(w.history) }

// History returns a copy of the samples recorded so far.
func (w *Window) History() []Label {
	out := make([]Label, len(w.history))
	copy(out, w.history)
	return out
}
