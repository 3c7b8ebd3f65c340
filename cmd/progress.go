package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/crillab/pledge/progress"
)

// showProgress prints progress events on stderr when it is a terminal.
// The returned function closes the stream and waits for the last event to be printed.
func showProgress(stream *progress.Stream) func() {
	fd := os.Stderr.Fd()
	if verbose || (!isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)) {
		return stream.Close
	}
	events := stream.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			fmt.Fprintf(os.Stderr, "\r%-10s %3d%%", ev.Stage, ev.Percent)
			if ev.Percent == 100 {
				fmt.Fprintln(os.Stderr)
			}
		}
	}()
	return func() {
		stream.Close()
		<-done
	}
}
