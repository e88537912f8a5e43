package device

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Presser receives emulated key presses.
type Presser interface {
	Press(key string)
}

// PulseEmulator presses a trigger key at a fixed period, standing in for a
// scanner when testing a pulse-synchronised design at the bench.
type PulseEmulator struct {
	target Presser
	key    string
	period time.Duration
	delay  time.Duration
	logger *slog.Logger

	count  atomic.Int64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PulseEmulatorOption configures a PulseEmulator.
type PulseEmulatorOption func(*PulseEmulator)

// WithInitialDelay waits d before the first pulse.
func WithInitialDelay(d time.Duration) PulseEmulatorOption {
	return func(p *PulseEmulator) {
		p.delay = d
	}
}

// WithEmulatorLogger sets the logger.
func WithEmulatorLogger(logger *slog.Logger) PulseEmulatorOption {
	return func(p *PulseEmulator) {
		p.logger = logger
	}
}

// NewPulseEmulator creates an emulator pressing key on target every period.
func NewPulseEmulator(target Presser, key string, period time.Duration, opts ...PulseEmulatorOption) *PulseEmulator {
	p := &PulseEmulator{
		target: target,
		key:    key,
		period: period,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins pulsing in a background goroutine until Stop is called or ctx
// is done. Calling Start on a running emulator is a no-op.
func (p *PulseEmulator) Start(ctx context.Context) {
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop halts the emulator and waits for the goroutine to exit.
func (p *PulseEmulator) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.cancel = nil
}

// Count returns the number of pulses sent so far.
func (p *PulseEmulator) Count() int {
	return int(p.count.Load())
}

func (p *PulseEmulator) loop(ctx context.Context) {
	defer p.wg.Done()

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.delay):
		}
	}
	p.pulse()

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pulse()
		}
	}
}

func (p *PulseEmulator) pulse() {
	n := p.count.Add(1)
	p.logger.Debug("emulated pulse", "key", p.key, "count", n)
	p.target.Press(p.key)
}
