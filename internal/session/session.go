// Package session wires one experiment session together: configuration,
// clock, devices, design, experiment driver and persistence.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jooh/expcontrol/internal/clock"
	"github.com/jooh/expcontrol/internal/config"
	"github.com/jooh/expcontrol/internal/design"
	"github.com/jooh/expcontrol/internal/device"
	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/store"
)

// Input is what the session needs from its input device: non-blocking
// polling for the controller and blocking waits for the pulse clock.
type Input interface {
	engine.Input
	clock.PulseInput
}

// Runner runs sessions. The zero value is not usable; call New.
type Runner struct {
	logger        *slog.Logger
	source        clock.Source
	stimuli       design.Stimuli
	input         func(base *clock.Clock, cfg config.Config) Input
	display       func(base *clock.Clock, cfg config.Config) engine.Display
	tracker       func(base *clock.Clock) engine.Tracker
	expOpts       []engine.ExperimentOption
	keyboardHooks []func(*device.Keyboard)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default writes text to stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSource replaces the system clock source.
func WithSource(src clock.Source) Option {
	return func(r *Runner) {
		r.source = src
	}
}

// WithStimuli replaces the headless stimuli.
func WithStimuli(s design.Stimuli) Option {
	return func(r *Runner) {
		r.stimuli = s
	}
}

// WithInput replaces the keyboard. build receives the base clock, which
// input times must be stamped with.
func WithInput(build func(base *clock.Clock, cfg config.Config) Input) Option {
	return func(r *Runner) {
		r.input = build
	}
}

// WithDisplay replaces the refresh-paced headless display.
func WithDisplay(build func(base *clock.Clock, cfg config.Config) engine.Display) Option {
	return func(r *Runner) {
		r.display = build
	}
}

// WithTracker replaces the log tracker.
func WithTracker(build func(base *clock.Clock) engine.Tracker) Option {
	return func(r *Runner) {
		r.tracker = build
	}
}

// WithExperimentOptions passes extra options to the experiment driver.
func WithExperimentOptions(opts ...engine.ExperimentOption) Option {
	return func(r *Runner) {
		r.expOpts = append(r.expOpts, opts...)
	}
}

// WithKeyboardHook is called with the default keyboard before the run starts,
// so a frontend can start feeding it key presses. Hooks run in the order
// given.
func WithKeyboardHook(hook func(*device.Keyboard)) Option {
	return func(r *Runner) {
		r.keyboardHooks = append(r.keyboardHooks, hook)
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.source == nil {
		r.source = clock.System()
	}
	if r.stimuli == nil {
		r.stimuli = design.StimulusFunc(func(name string) (engine.Drawable, error) {
			return device.NewStimulus(name), nil
		})
	}
	return r
}

// NewLogger builds the session logger: text on stderr, Debug when verbose.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Run executes one session described by cfg and appends its logs to the
// configured database. The result is returned even when it was persisted.
func (r *Runner) Run(ctx context.Context, cfg config.Config) (*engine.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := r.logger
	if logger == nil {
		logger = NewLogger(cfg.Verbose)
	}

	d, err := design.Load(cfg.Design, r.stimuli)
	if err != nil {
		return nil, fmt.Errorf("load design: %w", err)
	}
	order := d.Order
	if len(cfg.Order) > 0 {
		// design labels are NFC; match them however the environment spelled them
		order = make([]string, len(cfg.Order))
		for i, key := range cfg.Order {
			order[i] = norm.NFC.String(strings.TrimSpace(key))
		}
	}
	timing := d.Timing
	if cfg.Timing != "" {
		if timing, err = engine.ParseTiming(cfg.Timing); err != nil {
			return nil, err
		}
	}

	db, err := store.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	base := clock.New(r.source)
	input := r.buildInput(base, cfg)

	var timer clock.Timer = base
	if cfg.Pulse.Enabled() {
		pc, err := clock.NewPulseClock(base, input, cfg.Pulse.Key, cfg.Pulse.Period,
			clock.WithTolerance(cfg.Pulse.Tolerance),
			clock.WithPulseDuration(cfg.Pulse.Duration),
			clock.WithPulseTimeout(cfg.Pulse.Timeout),
			clock.WithDummies(cfg.Pulse.Dummies),
			clock.WithPulseLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		timer = pc
	}

	display := r.buildDisplay(base, cfg)
	if lim, ok := display.(*device.Limiter); ok {
		defer func() {
			logger.Info("display", "requested_fps", lim.Rate(), "actual_fps", lim.Actual(), "frames", lim.Frames())
			lim.Stop()
		}()
	}

	var tracker engine.Tracker
	if r.tracker != nil {
		tracker = r.tracker(base)
	} else {
		tracker = device.NewLogTracker(logger, base)
	}

	ctrl := engine.NewController(display, input, timer,
		engine.WithTracker(tracker),
		engine.WithLogger(logger),
	)

	expOpts := []engine.ExperimentOption{engine.WithExperimentLogger(logger)}
	if d.Pre != nil {
		expOpts = append(expOpts, engine.WithPreEvent(d.Pre))
	}
	if d.Post != nil {
		expOpts = append(expOpts, engine.WithPostEvent(d.Post))
	}
	exp, err := engine.NewExperiment(d.Conditions, cfg.Subject, cfg.Context, append(expOpts, r.expOpts...)...)
	if err != nil {
		return nil, err
	}

	if kb, ok := input.(*device.Keyboard); ok && cfg.Pulse.Enabled() && cfg.Pulse.Emulate {
		period := time.Duration(cfg.Pulse.Period * float64(time.Second))
		em := device.NewPulseEmulator(kb, cfg.Pulse.Key, period, device.WithEmulatorLogger(logger))
		em.Start(ctx)
		defer em.Stop()
	}

	logger.Info("session starting",
		"design", d.Name,
		"subject", cfg.Subject,
		"context", cfg.Context,
		"order", order,
		"timing", timing.String(),
		"pulse", cfg.Pulse.Enabled(),
	)
	res, err := exp.Run(ctx, ctrl, order, timing)
	if err != nil {
		return nil, err
	}

	if err := db.Append(ctx, res); err != nil {
		return res, fmt.Errorf("persist session %s: %w", res.Session, err)
	}
	logger.Info("session stored", "session", res.Session, "db", cfg.DB)
	return res, nil
}

func (r *Runner) buildInput(base *clock.Clock, cfg config.Config) Input {
	if r.input != nil {
		return r.input(base, cfg)
	}
	opts := []device.KeyboardOption{device.WithAbortKey(cfg.AbortKey)}
	if len(cfg.Keys) > 0 {
		keys := slices.Clone(cfg.Keys)
		if cfg.Pulse.Enabled() && !slices.Contains(keys, cfg.Pulse.Key) {
			keys = append(keys, cfg.Pulse.Key)
		}
		opts = append(opts, device.WithKeyList(keys...))
	}
	kb := device.NewKeyboard(base, opts...)
	for _, hook := range r.keyboardHooks {
		hook(kb)
	}
	return kb
}

func (r *Runner) buildDisplay(base *clock.Clock, cfg config.Config) engine.Display {
	if r.display != nil {
		return r.display(base, cfg)
	}
	return device.NewLimiter(base, cfg.FrameRate)
}
