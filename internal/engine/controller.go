package engine

import (
	"log/slog"

	"github.com/jooh/expcontrol/internal/clock"
	"github.com/jooh/expcontrol/internal/ir"
)

// Display performs a frame swap and returns its completion time on the
// experiment clock.
type Display interface {
	Refresh() float64
}

// Input returns the responses registered since the last poll. It never
// blocks. An error (the abort key) is fatal to the run.
type Input interface {
	Poll() ([]ir.Response, error)
}

// Tracker is a fire-and-forget marker sink, typically an eye tracker.
type Tracker interface {
	Message(msg string)
}

// Drawable is a stimulus drawn once per frame.
type Drawable interface {
	Draw()
}

// Controller couples display refresh and input sampling into one tick.
// Calling Tick at the display refresh rate gives a polling loop synchronised
// to the screen.
type Controller struct {
	display Display
	input   Input
	clock   clock.Timer
	tracker Tracker
	logger  *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithTracker sets the optional marker sink. Every event sends its name on
// entry.
func WithTracker(t Tracker) ControllerOption {
	return func(c *Controller) {
		c.tracker = t
	}
}

// WithLogger sets the logger used by the controller and the events it runs.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a Controller over its collaborators.
func NewController(display Display, input Input, clk clock.Timer, opts ...ControllerOption) *Controller {
	c := &Controller{
		display: display,
		input:   input,
		clock:   clk,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clock returns the controller's clock.
func (c *Controller) Clock() clock.Timer {
	return c.clock
}

// Logger returns the controller's logger.
func (c *Controller) Logger() *slog.Logger {
	return c.logger
}

// Tick polls input once and then refreshes the display once. The frame time
// is always sampled after the responses it is returned with.
func (c *Controller) Tick() (responses []ir.Response, frameTime float64, err error) {
	responses, err = c.input.Poll()
	if err != nil {
		return nil, 0, err
	}
	frameTime = c.display.Refresh()
	return responses, frameTime, nil
}

// mark sends msg to the tracker, if any.
func (c *Controller) mark(msg string) {
	if c.tracker != nil {
		c.tracker.Message(msg)
	}
}
