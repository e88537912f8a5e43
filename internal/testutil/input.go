package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/jooh/expcontrol/internal/ir"
)

// Press is a scripted key press at a raw source time.
type Press struct {
	Key string
	At  float64
}

// PulseTrain returns count presses of key starting at start, period apart.
func PulseTrain(key string, start, period float64, count int) []Press {
	presses := make([]Press, count)
	for i := range presses {
		presses[i] = Press{Key: key, At: start + float64(i)*period}
	}
	return presses
}

// Nower is anything that reads experiment time (a clock.Clock).
type Nower interface {
	Now() float64
}

// ScriptedInput replays presses against a VirtualSource.
//
// Presses are delivered by Poll once virtual time has reached them, stamped
// in the bound clock's frame. WaitPoll jumps virtual time to the next press
// when it falls inside the timeout, which is how a blocking wait behaves on
// a real keyboard.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedInput struct {
	mu       sync.Mutex
	src      *VirtualSource
	clock    Nower
	pending  []Press
	abortKey string
}

// NewScriptedInput creates an input replaying presses on src. Until Bind is
// called, times are stamped in raw source time.
func NewScriptedInput(src *VirtualSource, presses ...Press) *ScriptedInput {
	in := &ScriptedInput{src: src, clock: src}
	in.Add(presses...)
	return in
}

// Bind stamps subsequent responses with clock.
func (in *ScriptedInput) Bind(clock Nower) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.clock = clock
}

// SetAbortKey makes key raise a USER_ABORT error when polled.
func (in *ScriptedInput) SetAbortKey(key string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.abortKey = key
}

// Add schedules more presses.
func (in *ScriptedInput) Add(presses ...Press) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pending = append(in.pending, presses...)
	sort.SliceStable(in.pending, func(i, j int) bool {
		return in.pending[i].At < in.pending[j].At
	})
}

// Pending returns the number of presses not yet delivered.
func (in *ScriptedInput) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}

// Poll returns every press due at the current virtual time.
func (in *ScriptedInput) Poll() ([]ir.Response, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.drain()
}

// WaitPoll blocks (in virtual time) for at most timeout seconds for the next
// press.
func (in *ScriptedInput) WaitPoll(ctx context.Context, timeout float64) ([]ir.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	now := in.src.Now()
	if len(in.pending) > 0 && in.pending[0].At-now <= timeout {
		in.src.Set(in.pending[0].At)
		return in.drain()
	}
	in.src.Advance(timeout)
	return nil, nil
}

// drain must be called with mu held.
func (in *ScriptedInput) drain() ([]ir.Response, error) {
	raw := in.src.Now()
	offset := raw - in.clock.Now()

	var out []ir.Response
	n := 0
	for n < len(in.pending) && in.pending[n].At <= raw {
		p := in.pending[n]
		if in.abortKey != "" && p.Key == in.abortKey {
			in.pending = in.pending[n+1:]
			return nil, ir.NewUserAbortError(p.Key)
		}
		out = append(out, ir.Response{Key: p.Key, Time: p.At - offset})
		n++
	}
	in.pending = in.pending[n:]
	return out, nil
}
