package clock

import (
	"context"
	"math"
	"time"
)

// Source is a raw monotonic time base in seconds.
type Source interface {
	// Now returns seconds since an arbitrary fixed point. Never decreases.
	Now() float64

	// Sleep blocks for d seconds or until ctx is done.
	Sleep(ctx context.Context, d float64) error
}

// SystemSource reads the process monotonic clock.
type SystemSource struct {
	epoch time.Time
}

// System returns a Source backed by the runtime monotonic clock.
func System() *SystemSource {
	return &SystemSource{epoch: time.Now()}
}

// Now returns seconds since the source was created.
func (s *SystemSource) Now() float64 {
	return time.Since(s.epoch).Seconds()
}

// Sleep blocks for d seconds. An infinite d blocks until ctx is done.
func (s *SystemSource) Sleep(ctx context.Context, d float64) error {
	if math.IsInf(d, 1) {
		<-ctx.Done()
		return ctx.Err()
	}
	timer := time.NewTimer(seconds(d))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// seconds converts float seconds to a Duration.
func seconds(d float64) time.Duration {
	return time.Duration(d * float64(time.Second))
}
