// Package device provides the concrete collaborators a Controller runs
// against outside of tests: a channel-fed keyboard, a scanner pulse emulator,
// a refresh-paced headless display and an eye-tracker marker sink that
// writes to the log.
//
// Real hardware backends (a windowing toolkit, a serial trigger box) plug in
// by feeding Keyboard.Press and replacing Limiter with a display whose
// Refresh returns after the buffer swap.
package device

// Nower reads the experiment clock.
type Nower interface {
	Now() float64
}

// Timebase is the view of the experiment clock an input device needs: Raw is
// read from the goroutine delivering presses, FromRaw from the one polling
// them. A clock.Clock satisfies it.
type Timebase interface {
	Raw() float64
	FromRaw(raw float64) float64
}
