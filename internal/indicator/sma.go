package indicator

// SMA is a simple moving average over a fixed window.
type SMA struct {
	window *Window
	prev   float64
	cur    float64
	filled int // full-window averages computed so far
}

// NewSMA creates an n-period simple moving average.
func NewSMA(n int) *SMA {
	return &SMA{window: NewWindow(n)}
}

// Update pushes a new value and recomputes the average.
func (s *SMA) Update(v float64) {
	s.window.Push(v)
	if !s.window.Full() {
		return
	}
	s.prev = s.cur
	s.cur = s.window.Sum() / float64(s.window.Len())
	s.filled++
}

// Ready reports whether both Value and Prev carry full-window averages.
func (s *SMA) Ready() bool {
	return s.filled >= 2
}

// Value returns the current average.
func (s *SMA) Value() float64 { return s.cur }

// Prev returns the average before the latest update.
func (s *SMA) Prev() float64 { return s.prev }
