package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_WrapsAroundWhenFull(t *testing.T) {
	w := NewWindow(3)
	assert.False(t, w.Full())
	assert.Equal(t, 0, w.Len())

	w.Push(1)
	w.Push(2)
	w.Push(3)
	assert.True(t, w.Full())
	assert.Equal(t, 6.0, w.Sum())

	// Evicts the oldest value.
	w.Push(4)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 9.0, w.Sum())
	assert.Equal(t, 4.0, w.Max())
	assert.Equal(t, 2.0, w.Min())
}

func TestWindow_AtCountsBackFromNewest(t *testing.T) {
	w := NewWindow(3)
	w.Push(10)
	w.Push(20)
	assert.Equal(t, 20.0, w.At(0))
	assert.Equal(t, 10.0, w.At(1))

	w.Push(30)
	w.Push(40) // evicts 10
	assert.Equal(t, 40.0, w.At(0))
	assert.Equal(t, 20.0, w.At(2))
}

func TestWindow_Panics(t *testing.T) {
	assert.Panics(t, func() { NewWindow(0) })
	assert.Panics(t, func() { NewWindow(2).At(0) })
	assert.Panics(t, func() { NewWindow(2).Max() })
	assert.Panics(t, func() { NewWindow(2).Min() })

	w := NewWindow(2)
	w.Push(1)
	assert.Panics(t, func() { w.At(1) })
	assert.Panics(t, func() { w.At(-1) })
}

func TestSMA(t *testing.T) {
	s := NewSMA(3)
	s.Update(1)
	s.Update(2)
	assert.False(t, s.Ready())
	assert.Equal(t, 0.0, s.Value())

	s.Update(3)
	assert.False(t, s.Ready()) // only one full-window average so far
	assert.InDelta(t, 2.0, s.Value(), 1e-9)

	s.Update(6)
	assert.True(t, s.Ready())
	assert.InDelta(t, 11.0/3, s.Value(), 1e-9)
	assert.InDelta(t, 2.0, s.Prev(), 1e-9)
}

func TestDonchian(t *testing.T) {
	d := NewDonchian(2)
	d.Update(105, 95)
	assert.False(t, d.Ready())

	d.Update(110, 100)
	assert.True(t, d.Ready())
	up, down := d.Channel()
	assert.Equal(t, 110.0, up)
	assert.Equal(t, 95.0, down)

	// The first bar ages out.
	d.Update(102, 98)
	up, down = d.Channel()
	assert.Equal(t, 110.0, up)
	assert.Equal(t, 98.0, down)
}
