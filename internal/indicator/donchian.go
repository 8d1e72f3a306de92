package indicator

// Donchian tracks the highest high and lowest low over a fixed window.
type Donchian struct {
	highs *Window
	lows  *Window
}

// NewDonchian creates an n-period Donchian channel.
func NewDonchian(n int) *Donchian {
	return &Donchian{highs: NewWindow(n), lows: NewWindow(n)}
}

// Update pushes one bar's extremes.
func (d *Donchian) Update(high, low float64) {
	d.highs.Push(high)
	d.lows.Push(low)
}

// Ready reports whether the window has filled.
func (d *Donchian) Ready() bool {
	return d.highs.Full()
}

// Channel returns the upper and lower band.
func (d *Donchian) Channel() (up, down float64) {
	return d.highs.Max(), d.lows.Min()
}
