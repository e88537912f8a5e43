package device

import (
	"context"
	"slices"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jooh/expcontrol/internal/ir"
)

const defaultKeyBuffer = 256

// Keyboard is an input source fed by Press. Presses are stamped with raw
// source time the moment they arrive and converted to clock time when
// polled, so the time of a response never depends on when it is polled and
// a press queued before a clock reset reads as negative time.
//
// Keys are NFC-normalised, so a composed and a decomposed accented key are
// the same response.
//
// Thread-safety: Press may be called from any goroutine. Poll and WaitPoll
// are meant for the single goroutine running the experiment.
type Keyboard struct {
	clock    Timebase
	keys     []string
	abortKey string
	presses  chan ir.Response // Time is raw source time until polled
}

// KeyboardOption configures a Keyboard.
type KeyboardOption func(*Keyboard)

// WithKeyList restricts the keys the keyboard reports. Empty means all keys.
// The abort key is always recognised.
func WithKeyList(keys ...string) KeyboardOption {
	return func(k *Keyboard) {
		k.keys = make([]string, len(keys))
		for i, key := range keys {
			k.keys[i] = norm.NFC.String(key)
		}
	}
}

// WithAbortKey sets the key that aborts the run.
func WithAbortKey(key string) KeyboardOption {
	return func(k *Keyboard) {
		k.abortKey = norm.NFC.String(key)
	}
}

// WithKeyBuffer sets how many unpolled presses are held before Press blocks.
func WithKeyBuffer(n int) KeyboardOption {
	return func(k *Keyboard) {
		if n > 0 {
			k.presses = make(chan ir.Response, n)
		}
	}
}

// NewKeyboard creates a keyboard stamping presses with clock.
func NewKeyboard(clock Timebase, opts ...KeyboardOption) *Keyboard {
	k := &Keyboard{clock: clock}
	for _, opt := range opts {
		opt(k)
	}
	if k.presses == nil {
		k.presses = make(chan ir.Response, defaultKeyBuffer)
	}
	return k
}

// Press registers key at the current source time. Keys outside the key list
// are dropped here.
func (k *Keyboard) Press(key string) {
	key = norm.NFC.String(key)
	if key != k.abortKey && len(k.keys) > 0 && !slices.Contains(k.keys, key) {
		return
	}
	k.presses <- ir.Response{Key: key, Time: k.clock.Raw()}
}

func (k *Keyboard) stamp(r ir.Response) ir.Response {
	r.Time = k.clock.FromRaw(r.Time)
	return r
}

// Poll returns every press registered since the last poll without blocking.
// The abort key fails the poll and discards the batch.
func (k *Keyboard) Poll() ([]ir.Response, error) {
	var out []ir.Response
	for {
		select {
		case r := <-k.presses:
			if r.Key == k.abortKey && k.abortKey != "" {
				return nil, ir.NewUserAbortError(r.Key)
			}
			out = append(out, k.stamp(r))
		default:
			return out, nil
		}
	}
}

// WaitPoll blocks for at most timeout seconds until a press arrives, then
// returns it together with anything else already queued.
func (k *Keyboard) WaitPoll(ctx context.Context, timeout float64) ([]ir.Response, error) {
	timer := time.NewTimer(time.Duration(timeout * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case r := <-k.presses:
		if r.Key == k.abortKey && k.abortKey != "" {
			return nil, ir.NewUserAbortError(r.Key)
		}
		rest, err := k.Poll()
		if err != nil {
			return nil, err
		}
		return append([]ir.Response{k.stamp(r)}, rest...), nil
	}
}
