package loop

import "github.com/decred/slog"

// log is the package logger. It is disabled until UseLogger is called.
var log = slog.Disabled

// UseLogger sets the logger used by the loop.
func UseLogger(logger slog.Logger) {
	log = logger
}
