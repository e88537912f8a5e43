// Package clock implements the experiment time base.
//
// A Clock measures seconds since its origin on top of a raw monotonic
// Source. The origin moves on Reset (experiment start) and Shift (pulse
// synchronisation); nothing else mutates it. All waits block the calling
// goroutine: the experiment control loop is single-threaded, so a wait
// occupies the loop until the target time or until ctx is cancelled.
//
// PulseClock layers an external pulse train (for example scanner volume
// triggers delivered as key presses) on top of Clock:
//
//	IDLE -> AWAITING_PULSE -> SYNCHRONIZED
//	             |
//	             +-> FAILED (timeout, sticky)
//
// Start blocks for dummies+1 pulses and moves the origin to the accepted
// synchronisation pulse. WaitUntil then catches every pulse expected before
// the target, re-estimating the pulse period as it goes and failing with a
// DRIFT_EXCEEDED error if an estimate leaves tolerance.
package clock
