// Package logging builds the logr.Logger shared by every chatwatch component.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// Options controls logger construction.
type Options struct {
	// Writer receives one line per log entry (default os.Stderr).
	Writer io.Writer
	// Verbosity enables V(n) entries for n <= Verbosity.
	Verbosity int
}

// New returns a logger that writes key/value lines to opts.Writer.
func New(opts Options) logr.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	return funcr.New(func(prefix, args string) {
		ts := time.Now().UTC().Format(time.RFC3339)
		if prefix != "" {
			fmt.Fprintf(w, "%s %s: %s\n", ts, prefix, args)
			return
		}
		fmt.Fprintf(w, "%s %s\n", ts, args)
	}, funcr.Options{Verbosity: opts.Verbosity})
}

// OpenFile opens path for appending log lines, creating it if needed.
func OpenFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
