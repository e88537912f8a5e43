package testutil

import (
	"context"
	"errors"
	"math"
	"sync"
)

// VirtualSource is a clock.Source whose time only moves when something
// sleeps on it or a test advances it.
//
// Sleeping returns immediately after advancing time, so timing tests that
// would take minutes on a wall clock finish instantly and are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type VirtualSource struct {
	mu  sync.Mutex
	now float64
}

// NewVirtualSource creates a source reading start.
func NewVirtualSource(start float64) *VirtualSource {
	return &VirtualSource{now: start}
}

// Now returns the current virtual time.
func (s *VirtualSource) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves time forward by d. Negative d is ignored.
func (s *VirtualSource) Advance(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.now += d
	}
}

// Set moves time forward to t. Earlier t is ignored (time never decreases).
func (s *VirtualSource) Set(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t > s.now {
		s.now = t
	}
}

// ErrUnboundedSleep is returned when code under test sleeps forever on
// virtual time, which would otherwise hang the test.
var ErrUnboundedSleep = errors.New("testutil: unbounded sleep on virtual time")

// Sleep advances time by d.
func (s *VirtualSource) Sleep(ctx context.Context, d float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if math.IsInf(d, 1) {
		return ErrUnboundedSleep
	}
	s.Advance(d)
	return nil
}
