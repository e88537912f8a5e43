package device

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// FeedLines presses one key per non-blank line read from r until r is
// exhausted or ctx is done. Surrounding whitespace is trimmed, so a terminal
// user types a key name and hits enter.
func FeedLines(ctx context.Context, r io.Reader, kb *Keyboard) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := strings.TrimSpace(sc.Text())
		if key == "" {
			continue
		}
		kb.Press(key)
	}
	return sc.Err()
}
