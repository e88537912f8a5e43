package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jooh/expcontrol/internal/ir"
)

// Timing selects the discipline of the top-level trial sequence.
type Timing int

const (
	// AbsTime pins every trial to an absolute schedule (default).
	AbsTime Timing = iota
	// RelTime starts every trial when the previous one actually ended. Use it
	// for self-paced trials or trials that end on a pulse.
	RelTime
)

func (t Timing) String() string {
	switch t {
	case AbsTime:
		return "abs"
	case RelTime:
		return "rel"
	default:
		return fmt.Sprintf("Timing(%d)", int(t))
	}
}

// ParseTiming parses "abs" or "rel". The empty string is AbsTime.
func ParseTiming(s string) (Timing, error) {
	switch s {
	case "", "abs":
		return AbsTime, nil
	case "rel":
		return RelTime, nil
	default:
		return 0, ir.NewConfigurationError("unknown timing %q: must be abs or rel", s)
	}
}

// Phase names the part of a run a record came from.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhaseMain Phase = "main"
	PhasePost Phase = "post"
)

// Result holds every log of one experiment run, plus the identity columns
// the persistence layer stores with them.
type Result struct {
	Session string
	Subject string
	Context string
	Started time.Time

	Events    ir.EventLog
	Responses ir.ResponseLog

	PreEvents     ir.EventLog
	PreResponses  ir.ResponseLog
	PostEvents    ir.EventLog
	PostResponses ir.ResponseLog
}

// Experiment runs a sequence of conditions, with optional events before
// (untimed, before the clock starts) and after the main sequence.
type Experiment struct {
	conditions map[string]Runnable
	pre        Runnable
	post       Runnable
	subject    string
	runContext string

	ids    SessionIDGenerator
	now    func() time.Time
	tracer trace.Tracer
	logger *slog.Logger
}

// ExperimentOption configures an Experiment.
type ExperimentOption func(*Experiment)

// WithPreEvent runs r with an infinite end time before the clock starts.
// r should practically always have skip keys.
func WithPreEvent(r Runnable) ExperimentOption {
	return func(e *Experiment) {
		e.pre = r
	}
}

// WithPostEvent runs r with an infinite end time after the main sequence.
func WithPostEvent(r Runnable) ExperimentOption {
	return func(e *Experiment) {
		e.post = r
	}
}

// WithSessionIDs overrides the session identifier generator.
func WithSessionIDs(g SessionIDGenerator) ExperimentOption {
	return func(e *Experiment) {
		e.ids = g
	}
}

// WithWallClock overrides the wall clock used for Result.Started.
func WithWallClock(now func() time.Time) ExperimentOption {
	return func(e *Experiment) {
		e.now = now
	}
}

// WithTracer overrides the tracer (default: the global provider's).
func WithTracer(t trace.Tracer) ExperimentOption {
	return func(e *Experiment) {
		e.tracer = t
	}
}

// WithExperimentLogger sets the logger.
func WithExperimentLogger(logger *slog.Logger) ExperimentOption {
	return func(e *Experiment) {
		e.logger = logger
	}
}

// NewExperiment creates an Experiment. subject and runContext are required;
// runContext is also the key the logs are persisted under.
func NewExperiment(conditions map[string]Runnable, subject, runContext string, opts ...ExperimentOption) (*Experiment, error) {
	if subject == "" {
		return nil, ir.NewConfigurationError("experiment requires a subject")
	}
	if runContext == "" {
		return nil, ir.NewConfigurationError("experiment requires a context")
	}
	if len(conditions) == 0 {
		return nil, ir.NewConfigurationError("experiment requires at least one condition")
	}
	e := &Experiment{
		conditions: conditions,
		subject:    subject,
		runContext: runContext,
		ids:        UUIDv7Generator{},
		now:        time.Now,
		tracer:     otel.Tracer("github.com/jooh/expcontrol/internal/engine"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Sequence builds the unnamed top-level sequence for order. The name is left
// empty so the condition labels of nested sequences are not overwritten.
func (e *Experiment) Sequence(order []string, timing Timing) (Runnable, error) {
	if len(order) == 0 {
		return nil, ir.NewConfigurationError("experiment order is empty")
	}
	children := make([]Runnable, len(order))
	for i, key := range order {
		c, ok := e.conditions[key]
		if !ok {
			return nil, ir.NewConfigurationError("order[%d]: unknown condition %q", i, key)
		}
		children[i] = c
	}
	switch timing {
	case RelTime:
		return NewRelTimeSeq(children)
	case AbsTime:
		return NewAbsTimeSeq(children)
	default:
		return nil, ir.NewConfigurationError("unknown timing %v", timing)
	}
}

// Run executes one run of the experiment:
//
//  1. the pre event (if any) with an infinite end time
//  2. clock start (a PulseClock blocks for its synchronisation pulse here)
//  3. the conditions in order under the chosen timing
//  4. the post event (if any) with an infinite end time
//
// Any error aborts the run; no partial result is returned.
func (e *Experiment) Run(ctx context.Context, ctrl *Controller, order []string, timing Timing) (*Result, error) {
	seq, err := e.Sequence(order, timing)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Session: e.ids.Generate(),
		Subject: e.subject,
		Context: e.runContext,
		Started: e.now(),
	}

	ctx, span := e.tracer.Start(ctx, "experiment.run", trace.WithAttributes(
		attribute.String("expcontrol.subject", res.Subject),
		attribute.String("expcontrol.context", res.Context),
		attribute.String("expcontrol.session", res.Session),
		attribute.String("expcontrol.timing", timing.String()),
		attribute.Int("expcontrol.trials", len(order)),
	))
	defer span.End()

	if err := e.run(ctx, ctrl, seq, res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("experiment aborted", "session", res.Session, "error", err)
		return nil, err
	}

	e.logger.Info("experiment finished",
		"session", res.Session,
		"events", len(res.Events),
		"responses", len(res.Responses),
	)
	return res, nil
}

func (e *Experiment) run(ctx context.Context, ctrl *Controller, seq Runnable, res *Result) error {
	if e.pre != nil {
		events, responses, err := e.phase(ctx, PhasePre, ctrl, e.pre, ir.Forever)
		if err != nil {
			return err
		}
		res.PreEvents, res.PreResponses = events, responses
	}

	if _, err := ctrl.clock.Start(ctx); err != nil {
		return fmt.Errorf("start clock: %w", err)
	}
	e.logger.Info("experiment started", "session", res.Session, "subject", res.Subject, "context", res.Context)

	events, responses, err := e.phase(ctx, PhaseMain, ctrl, seq, 0)
	if err != nil {
		return err
	}
	res.Events, res.Responses = events, responses

	if e.post != nil {
		events, responses, err := e.phase(ctx, PhasePost, ctrl, e.post, ir.Forever)
		if err != nil {
			return err
		}
		res.PostEvents, res.PostResponses = events, responses
	}
	return nil
}

func (e *Experiment) phase(ctx context.Context, phase Phase, ctrl *Controller, r Runnable, end float64) (ir.EventLog, ir.ResponseLog, error) {
	ctx, span := e.tracer.Start(ctx, "experiment."+string(phase))
	defer span.End()

	events, responses, err := r.Run(ctx, ctrl, end, ir.History{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("%s phase: %w", phase, err)
	}
	span.SetAttributes(
		attribute.Int("expcontrol.events", len(events)),
		attribute.Int("expcontrol.responses", len(responses)),
	)
	return events, responses, nil
}
