// Package session holds the setup shared by the command-line tools: configuration,
// logging and a context connected on a loop goroutine.
package session

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/joho/godotenv"

	"github.com/gen2brain/pulse"
	"github.com/gen2brain/pulse/libpulse"
	"github.com/gen2brain/pulse/loop"
)

// Config holds the settings common to all tools.
type Config struct {
	Server       string
	Sink         string
	Source       string
	ClientName   string
	LogLevel     string
	NatsURL      string
	ContextFlags string
}

// LoadConfig reads an optional .env file from the working directory and returns
// the configuration found in the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	return &Config{
		Server:       os.Getenv("PULSE_SERVER"),
		Sink:         os.Getenv("PULSE_SINK"),
		Source:       os.Getenv("PULSE_SOURCE"),
		ClientName:   getenv("PULSE_CLIENT_NAME", filepath.Base(os.Args[0])),
		LogLevel:     getenv("PULSE_LOG_LEVEL", "info"),
		NatsURL:      os.Getenv("PULSE_NATS_URL"),
		ContextFlags: getenv("PULSE_CONTEXT_FLAGS", "noautospawn"),
	}, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

// RegisterFlags adds the connection and logging flags to fs, defaulting to the current values.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Server, "server", c.Server, "The server to connect to (empty = default server)")
	fs.StringVar(&c.ClientName, "client-name", c.ClientName, "The client name announced to the server")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "The log level (trace, debug, info, warn, error, critical, off)")
	fs.StringVar(&c.ContextFlags, "context-flags", c.ContextFlags, "The context flags (noautospawn, nofail)")
}

// CommonFlags lists the names registered by RegisterFlags, for usage output.
var CommonFlags = []string{"server", "client-name", "log-level", "context-flags"}

// Usage returns a flag.Usage function printing synopsis followed by the named flags.
func Usage(fs *flag.FlagSet, synopsis string, names ...string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s\n", filepath.Base(os.Args[0]), synopsis)
		fmt.Fprintln(os.Stderr, "\nOptions:")
		for _, name := range append(names, CommonFlags...) {
			if f := fs.Lookup(name); f != nil {
				fmt.Fprintf(os.Stderr, "  --%s\n    \t%v (default %q)\n", f.Name, f.Usage, f.DefValue)
			}
		}
	}
}

// SetupLogging directs the library loggers to stderr at the configured level and
// returns a logger for the tool itself.
func (c *Config) SetupLogging(tag string) (slog.Logger, error) {
	level, ok := slog.LevelFromString(c.LogLevel)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	backend := slog.NewBackend(os.Stderr)
	logger := func(subsystem string) slog.Logger {
		l := backend.Logger(subsystem)
		l.SetLevel(level)

		return l
	}

	pulse.UseLogger(logger("PULS"))
	loop.UseLogger(logger("LOOP"))
	libpulse.UseLogger(logger("LPUL"))
	UseLogger(logger("SESS"))

	return logger(tag), nil
}
