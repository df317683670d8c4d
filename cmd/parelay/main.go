package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"
	"github.com/nats-io/nats.go"

	"github.com/gen2brain/pulse"
	"github.com/gen2brain/pulse/cmd/internal/session"
)

type options struct {
	subject   string
	device    string
	spec      pulse.SampleSpec
	latency   time.Duration
	flags     pulse.StreamFlags
	queue     int
	fragment  time.Duration
	attempts  int
	retryWait time.Duration
}

func main() {
	cfg, err := session.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	var (
		opts      options
		natsURL   string
		formatStr string
		rate      int
		channels  int
		flagsStr  string
	)

	if cfg.NatsURL == "" {
		cfg.NatsURL = nats.DefaultURL
	}

	flag.StringVar(&natsURL, "nats", cfg.NatsURL, "The NATS server URL")
	flag.StringVar(&opts.subject, "subject", "pulse.relay", "The subject fragments are published on")
	flag.StringVar(&opts.device, "device", "", "The source (publish) or sink (subscribe) to use (empty = PULSE_SOURCE or PULSE_SINK)")
	flag.StringVar(&formatStr, "format", "s16le", "The sample format when publishing")
	flag.IntVar(&rate, "rate", 48000, "The sample rate in Hz when publishing")
	flag.IntVar(&channels, "channels", 2, "The number of channels when publishing")
	flag.DurationVar(&opts.latency, "latency", 0, "The requested stream latency (0 = server default)")
	flag.DurationVar(&opts.fragment, "fragment", 20*time.Millisecond, "The duration of audio per published message")
	flag.StringVar(&flagsStr, "stream-flags", "adjust_latency", "The stream flags")
	flag.IntVar(&opts.queue, "queue", 64, "The number of fragments buffered before dropping")
	flag.IntVar(&opts.attempts, "connect-attempts", 5, "How many times to try connecting to NATS")
	flag.DurationVar(&opts.retryWait, "connect-wait", 2*time.Second, "The pause between NATS connection attempts")
	cfg.RegisterFlags(flag.CommandLine)

	flag.Usage = session.Usage(flag.CommandLine, "[options] publish|subscribe",
		"nats", "subject", "device", "format", "rate", "channels", "latency", "fragment", "stream-flags", "queue",
		"connect-attempts", "connect-wait")

	flag.Parse()

	if flag.NArg() != 1 || (flag.Arg(0) != "publish" && flag.Arg(0) != "subscribe") {
		flag.Usage()
		os.Exit(1)
	}

	logger, err := cfg.SetupLogging("RLAY")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	format, err := pulse.ParseSampleFormat(formatStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	opts.spec = pulse.SampleSpec{Format: format, Rate: uint32(rate), Channels: uint8(channels)}

	opts.flags, err = pulse.ParseStreamFlags(flagsStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, natsURL, flag.Arg(0), opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger slog.Logger, cfg *session.Config, natsURL, mode string, opts options) error {
	nc, err := connect(ctx, logger, natsURL, opts.attempts, opts.retryWait)
	if err != nil {
		return err
	}
	defer nc.Close()

	s, err := session.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if mode == "publish" {
		if opts.device == "" {
			opts.device = cfg.Source
		}

		return publish(ctx, logger, s, nc, opts)
	}

	if opts.device == "" {
		opts.device = cfg.Sink
	}

	return subscribe(ctx, logger, s, nc, opts)
}

// connect dials NATS, retrying a fixed number of times.
func connect(ctx context.Context, logger slog.Logger, url string, attempts int, wait time.Duration) (*nats.Conn, error) {
	var err error

	for i := 0; i < max(attempts, 1); i++ {
		var nc *nats.Conn
		nc, err = nats.Connect(url, nats.Name("parelay"))
		if err == nil {
			logger.Infof("Connected to NATS at %s", url)

			return nc, nil
		}

		logger.Warnf("Failed to connect to NATS (attempt %d/%d): %v", i+1, attempts, err)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", attempts, err)
}
