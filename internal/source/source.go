// Package source turns newline-delimited input into a stream of targets.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hamed0406/reconpipe/internal/domain"
)

const maxLine = 1 << 20

// Lines streams the non-blank lines of r as targets. Surrounding whitespace and
// double quotes are stripped. The target channel is closed when r is exhausted
// or a read error occurs. On cancellation it is left open, so a closed channel
// always means the input ran out; consumers must also watch ctx. The error
// channel receives at most one read error and is closed when the reader stops.
//
// Targets are handed over one at a time, so memory use does not grow with the
// size of the input.
func Lines(ctx context.Context, r io.Reader) (<-chan domain.Target, <-chan error) {
	return Stream(ctx, nil, r)
}

// Stream emits the given targets first, then the lines of r when r is non-nil.
func Stream(ctx context.Context, targets []string, r io.Reader) (<-chan domain.Target, <-chan error) {
	out := make(chan domain.Target)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)

		emit := func(s string) bool {
			t := clean(s)
			if t == "" {
				return true
			}
			select {
			case out <- domain.Target(t):
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, s := range targets {
			if !emit(s) {
				return
			}
		}
		if r != nil {
			sc := bufio.NewScanner(r)
			sc.Buffer(make([]byte, 0, 64*1024), maxLine)
			for sc.Scan() {
				if !emit(sc.Text()) {
					return
				}
			}
			if err := sc.Err(); err != nil {
				errc <- fmt.Errorf("read targets: %w", err)
			}
		}
		close(out)
	}()

	return out, errc
}

func clean(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
}
