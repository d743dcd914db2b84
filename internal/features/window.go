package features

import "sync"

// Window is a fixed-size rolling window of float samples.
type Window struct {
	cap    int
	mu     sync.RWMutex
	values []float64
}

func NewWindow(size int) *Window {
	if size <= 0 {
		size = 1
	}
	return &Window{cap: size}
}

func (w *Window) Add(v float64) {
	w.mu.Lock()
	w.values = append(w.values, v)
	if len(w.values) > w.cap {
		w.values = w.values[len(w.values)-w.cap:]
	}
	w.mu.Unlock()
}

func (w *Window) Full() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.values) == w.cap
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.values)
}

func (w *Window) Last() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.values) == 0 {
		return 0
	}
	return w.values[len(w.values)-1]
}

func (w *Window) Mean() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	return sum / float64(len(w.values))
}

// Values returns a copy of the window contents, oldest first.
func (w *Window) Values() []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}
