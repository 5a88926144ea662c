package verification

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// TerminalPrompter asks on a terminal. An empty line confirms, "skip" aborts.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p TerminalPrompter) Confirm(ctx context.Context, reason string) (bool, error) {
	fmt.Fprintf(p.Out, "\n=== verification required ===\n%s\n", reason)
	fmt.Fprint(p.Out, "press Enter when done, or type skip to abort: ")

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if err != nil && line == "" {
			errs <- err
			return
		}
		lines <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errs:
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	case line := <-lines:
		return strings.ToLower(strings.TrimSpace(line)) != "skip", nil
	}
}
