// Package indicator provides rolling-window calculations for strategies.
package indicator

// Window holds the most recent values in a circular buffer. When full, the
// oldest value is overwritten.
type Window struct {
	values []float64
	size   int
	head   int
	count  int
}

// NewWindow creates a Window with the given capacity.
func NewWindow(size int) *Window {
	if size <= 0 {
		panic("window size must be positive")
	}
	return &Window{
		values: make([]float64, size),
		size:   size,
	}
}

// Push adds a value, evicting the oldest when the window is full.
func (w *Window) Push(v float64) {
	w.values[w.head] = v
	w.head = (w.head + 1) % w.size
	if w.count < w.size {
		w.count++
	}
}

// Full reports whether the window has reached its capacity.
func (w *Window) Full() bool {
	return w.count == w.size
}

// Len returns the number of values held.
func (w *Window) Len() int {
	return w.count
}

// At returns the value i positions back from the newest, so At(0) is the
// most recent value.
func (w *Window) At(i int) float64 {
	if i < 0 || i >= w.count {
		panic("window index out of range")
	}
	idx := (w.head - 1 - i + 2*w.size) % w.size
	return w.values[idx]
}

// Sum returns the sum of all held values.
func (w *Window) Sum() float64 {
	sum := 0.0
	for i := 0; i < w.count; i++ {
		sum += w.values[i]
	}
	return sum
}

// Max returns the largest held value. It panics on an empty window.
func (w *Window) Max() float64 {
	if w.count == 0 {
		panic("max of empty window")
	}
	max := w.values[0]
	for i := 1; i < w.count; i++ {
		if w.values[i] > max {
			max = w.values[i]
		}
	}
	return max
}

// Min returns the smallest held value. It panics on an empty window.
func (w *Window) Min() float64 {
	if w.count == 0 {
		panic("min of empty window")
	}
	min := w.values[0]
	for i := 1; i < w.count; i++ {
		if w.values[i] < min {
			min = w.values[i]
		}
	}
	return min
}
