package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jooh/expcontrol/internal/clock"
	"github.com/jooh/expcontrol/internal/config"
	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/session"
	"github.com/jooh/expcontrol/internal/store"
	"github.com/jooh/expcontrol/internal/testutil"
)

const (
	defaultSubject   = "s01"
	defaultContext   = "harness"
	defaultFrameRate = 8
	abortKey         = "escape"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh database in a temporary directory, on
// a virtual clock that only moves when the display refreshes or an input
// wait elapses. The session ID is the scenario name, so two runs of the
// same scenario store identical rows.
//
// An error is returned when the session itself fails. Failed assertions
// are reported in Result.Errors instead.
func Run(ctx context.Context, sc *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "expcontrol-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cfg := sc.config(filepath.Join(dir, "harness.db"))

	src := testutil.NewVirtualSource(0)
	in := testutil.NewScriptedInput(src, sc.presses()...)
	in.SetAbortKey(cfg.AbortKey)

	runner := session.New(
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithSource(src),
		session.WithInput(func(base *clock.Clock, _ config.Config) session.Input {
			in.Bind(base)
			return in
		}),
		session.WithDisplay(func(base *clock.Clock, cfg config.Config) engine.Display {
			return testutil.NewFrameDisplay(src, base, cfg.FrameRate)
		}),
		session.WithTracker(func(*clock.Clock) engine.Tracker { return &testutil.Tracker{} }),
		session.WithExperimentOptions(engine.WithSessionIDs(engine.NewFixedGenerator(sc.Name))),
	)
	if _, err := runner.Run(ctx, cfg); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	result, err := readBack(ctx, cfg.DB, cfg.Context)
	if err != nil {
		return nil, err
	}
	result.Session = sc.Name

	for _, msg := range EvaluateAssertions(result, sc.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func readBack(ctx context.Context, path, label string) (*Result, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen store: %w", err)
	}
	defer db.Close()

	result := NewResult()
	if result.Events, err = db.Events(ctx, label); err != nil {
		return nil, err
	}
	if result.Responses, err = db.Responses(ctx, label); err != nil {
		return nil, err
	}
	return result, nil
}

// config builds the session configuration, filling the defaults that the
// environment loader would otherwise supply.
func (sc *Scenario) config(db string) config.Config {
	cfg := config.Config{
		Subject:   sc.Subject,
		Context:   sc.Context,
		Design:    sc.Design,
		Order:     sc.Order,
		Timing:    sc.Timing,
		DB:        db,
		FrameRate: sc.FrameRate,
		AbortKey:  abortKey,
		Pulse: config.Pulse{
			Tolerance: 0.1,
			Duration:  0.01,
			Timeout:   20,
		},
	}
	if cfg.Subject == "" {
		cfg.Subject = defaultSubject
	}
	if cfg.Context == "" {
		cfg.Context = defaultContext
	}
	if cfg.FrameRate == 0 {
		cfg.FrameRate = defaultFrameRate
	}
	if pc := sc.PulseClock; pc != nil {
		cfg.Pulse.Key = pc.Key
		cfg.Pulse.Period = pc.Period
		cfg.Pulse.Dummies = pc.Dummies
		if pc.Tolerance > 0 {
			cfg.Pulse.Tolerance = pc.Tolerance
		}
		if pc.Duration > 0 {
			cfg.Pulse.Duration = pc.Duration
		}
		if pc.Timeout > 0 {
			cfg.Pulse.Timeout = pc.Timeout
		}
	}
	return cfg
}
