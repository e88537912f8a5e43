package device

import (
	"sync"
	"time"
)

// Limiter is a headless display: Refresh blocks until the next frame boundary
// at the requested rate, the way a vsynced buffer swap would.
//
// The achieved frame rate is measured over whole measuring intervals, so a
// single slow frame does not dominate Actual.
type Limiter struct {
	clock Nower
	rate  float64
	pulse *time.Ticker

	mu          sync.Mutex
	frames      int
	measureCt   int
	measureTime time.Time
	interval    time.Duration
	measured    float64
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithMeasureInterval sets how often the achieved frame rate is updated.
func WithMeasureInterval(d time.Duration) LimiterOption {
	return func(l *Limiter) {
		if d > 0 {
			l.interval = d
		}
	}
}

// NewLimiter creates a display refreshing at rate frames per second. Call
// Stop to release the ticker.
func NewLimiter(clock Nower, rate float64, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		clock:    clock,
		rate:     rate,
		interval: time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.pulse = time.NewTicker(time.Duration(float64(time.Second) / rate))
	l.measureTime = time.Now()
	return l
}

// Refresh waits for the next frame boundary and returns the clock time of
// the swap.
func (l *Limiter) Refresh() float64 {
	<-l.pulse.C
	t := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames++
	l.measureCt++
	if elapsed := time.Since(l.measureTime); elapsed >= l.interval {
		l.measured = float64(l.measureCt) / elapsed.Seconds()
		l.measureTime = time.Now()
		l.measureCt = 0
	}
	return t
}

// Rate returns the requested frame rate.
func (l *Limiter) Rate() float64 {
	return l.rate
}

// Actual returns the frame rate achieved over the last complete measuring
// interval, or 0 before the first one completes.
func (l *Limiter) Actual() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.measured
}

// Frames returns the number of refreshes so far.
func (l *Limiter) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Stop releases the ticker. Refresh must not be called afterwards.
func (l *Limiter) Stop() {
	l.pulse.Stop()
}
