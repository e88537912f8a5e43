package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jooh/expcontrol/internal/clock"
	"github.com/jooh/expcontrol/internal/testutil"
)

// rig is a controller on virtual time refreshing at 8 Hz, so every frame
// time is exact in floating point.
type rig struct {
	src     *testutil.VirtualSource
	clk     *clock.Clock
	input   *testutil.ScriptedInput
	display *testutil.FrameDisplay
	tracker *testutil.Tracker
	ctrl    *Controller
}

func newRig(t *testing.T, presses ...testutil.Press) *rig {
	t.Helper()
	src := testutil.NewVirtualSource(0)
	clk := clock.New(src)
	in := testutil.NewScriptedInput(src, presses...)
	in.Bind(clk)
	disp := testutil.NewFrameDisplay(src, clk, 8)
	tr := &testutil.Tracker{}
	ctrl := NewController(disp, in, clk, WithTracker(tr), WithLogger(discardLogger()))
	return &rig{src: src, clk: clk, input: in, display: disp, tracker: tr, ctrl: ctrl}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
