package session

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger sets the logger used by the session helpers.
func UseLogger(logger slog.Logger) {
	log = logger
}
