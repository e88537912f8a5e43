// Package engine implements the expcontrol event execution engine.
//
// The engine runs timed stimulus/response events against a Controller
// (display + input + clock) with non-slip timing, and records one
// EventRecord per event and one ResponseRecord per response.
//
// ARCHITECTURE:
//
// Single-Threaded Control Loop:
// Everything runs on the caller's goroutine. Suspension points are exactly
// the clock waits, the pulse waits inside a PulseClock, and the display
// refresh inside Controller.Tick. Input polling never blocks.
//
// Event Lifecycle:
//
//	CREATED -> CALLED -> RUNNING (poll <-> score) -> ENDED
//
//	1. Run records the start time and calls Hooks.OnCall
//	2. Until the end time (or a skip key), OnFrame then Controller.Tick;
//	   every response is scored with OnResponse
//	3. OnEnd
//
// Composition:
// RelTimeSeq gives each child an end time relative to when the previous
// child actually finished. AbsTimeSeq pins every child to an offset from
// the sequence start, so lag in one child never accumulates into the next.
//
// CRITICAL PATTERNS:
//
// Tick Ordering:
// Within one tick, input is polled before the display refreshes, so frame
// times are always sampled after the responses of the same tick.
//
// Stateless Templates:
// Events are built once per condition and re-run every trial. Scoring
// state lives in a per-invocation State reset at OnCall, and history is
// passed in read-only, so templates never leak state between trials.
//
// Fatal Errors:
// Configuration, timeout, drift and abort errors (see ir.Error) surface
// immediately. Nothing is retried.
package engine
