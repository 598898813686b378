package processing

import "sync"

// Point is one plotted value. X is the position in the window, which doubles as the
// time axis.
type Point struct {
	X int
	Y float64
}

// Window is a fixed-capacity sliding window of values in arrival order. Once full, each
// Append evicts the oldest value.
type Window struct {
	lock   sync.RWMutex
	values []float64
	head   int
	length int
}

func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{values: make([]float64, capacity)}
}

func (w *Window) Append(v float64) {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.appendLocked(v)
}

func (w *Window) appendLocked(v float64) {
	tail := (w.head + w.length) % len(w.values)
	w.values[tail] = v
	if w.length < len(w.values) {
		w.length++
		return
	}
	// full: the write above overwrote the oldest value
	w.head = (w.head + 1) % len(w.values)
}

func (w *Window) Clear() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.clearLocked()
}

func (w *Window) clearLocked() {
	w.head = 0
	w.length = 0
}

func (w *Window) Len() int {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.length
}

func (w *Window) Cap() int {
	return len(w.values)
}

// Snapshot returns a copy of the window contents, oldest first.
func (w *Window) Snapshot() []float64 {
	w.lock.RLock()
	defer w.lock.RUnlock()

	out := make([]float64, w.length)
	for i := range out {
		out[i] = w.values[(w.head+i)%len(w.values)]
	}
	return out
}

// Points returns the window contents paired with their index.
func (w *Window) Points() []Point {
	values := w.Snapshot()
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{X: i, Y: v}
	}
	return points
}
