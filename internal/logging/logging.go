// Package logging configures structured logging via log/slog.
package logging

import (
	"log/slog"
	"os"
)

// Setup installs the default slog logger based on verbosity flags.
//
//   - quiet:   only WARN and ERROR
//   - normal:  INFO and above
//   - verbose: DEBUG and above
//
// Output goes to stderr as text so machine output on stdout stays clean.
func Setup(verbose, quiet bool) {
	var level slog.Level
	switch {
	case quiet:
		level = slog.LevelWarn
	case verbose:
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
