package testutil

import (
	"sync"
)

// FrameDisplay is a display whose every refresh takes exactly one frame of
// virtual time.
type FrameDisplay struct {
	mu       sync.Mutex
	src      *VirtualSource
	clock    Nower
	interval float64
	frames   int
}

// NewFrameDisplay creates a display refreshing at rate frames per second.
// Rates whose period is a power of two fraction of a second (4, 8, 16, 64)
// keep every frame time exact in floating point.
func NewFrameDisplay(src *VirtualSource, clock Nower, rate float64) *FrameDisplay {
	return &FrameDisplay{src: src, clock: clock, interval: 1 / rate}
}

// Refresh advances one frame and returns the swap time on the bound clock.
func (d *FrameDisplay) Refresh() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.src.Advance(d.interval)
	d.frames++
	return d.clock.Now()
}

// Frames returns the number of refreshes so far.
func (d *FrameDisplay) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Drawable counts draw calls.
type Drawable struct {
	mu    sync.Mutex
	Name  string
	draws int
}

// Draw records one draw call.
func (d *Drawable) Draw() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws++
}

// Draws returns the number of draw calls.
func (d *Drawable) Draws() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draws
}

// Tracker records eye-tracker marker messages.
type Tracker struct {
	mu       sync.Mutex
	messages []string
}

// Message records msg.
func (t *Tracker) Message(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

// Messages returns every recorded message in order.
func (t *Tracker) Messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.messages...)
}
