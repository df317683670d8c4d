package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/gen2brain/pulse"
	"github.com/gen2brain/pulse/cmd/internal/session"
	"github.com/gen2brain/pulse/libpulse"
)

type command struct {
	args  string
	nargs int
	run   func(ctx context.Context, s *session.Session, args []string) error
}

var commands = map[string]command{
	"info":              {"", 0, serverInfo},
	"sinks":             {"", 0, listDevices(pulse.INFO_SINK_LIST)},
	"sources":           {"", 0, listDevices(pulse.INFO_SOURCE_LIST)},
	"modules":           {"", 0, listModules},
	"set-sink-volume":   {"<sink> <volume>...", 2, setVolume(pulse.INFO_SINK_LIST)},
	"set-source-volume": {"<source> <volume>...", 2, setVolume(pulse.INFO_SOURCE_LIST)},
	"set-sink-mute":     {"<sink> <1|0>", 2, setMute(pulse.INFO_SINK_LIST)},
	"set-source-mute":   {"<source> <1|0>", 2, setMute(pulse.INFO_SOURCE_LIST)},
	"load-module":       {"<name> [arguments...]", 1, loadModule},
	"unload-module":     {"<index>", 1, unloadModule},
}

func main() {
	cfg, err := session.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	var timeout time.Duration

	flag.DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the server (or for discovery replies)")
	cfg.RegisterFlags(flag.CommandLine)

	usage := session.Usage(flag.CommandLine, "[options] <command> [args...]", "timeout")
	flag.Usage = func() {
		usage()
		fmt.Fprintln(os.Stderr, "\nCommands:")

		names := make([]string, 0, len(commands)+1)
		for name := range commands {
			names = append(names, name)
		}
		names = append(names, "discover")
		sort.Strings(names)

		for _, name := range names {
			fmt.Fprintf(os.Stderr, "  %s %s\n", name, commands[name].args)
		}
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	logger, err := cfg.SetupLogging("PCTL")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, args := flag.Arg(0), flag.Args()[1:]

	if name == "discover" {
		err = discover(ctx, timeout)
	} else {
		err = run(ctx, cfg, timeout, name, args)
	}

	if err != nil {
		logger.Debugf("%s failed: %v", name, err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *session.Config, timeout time.Duration, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	if len(args) < cmd.nargs {
		return fmt.Errorf("usage: %s %s", name, cmd.args)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, err := session.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	return cmd.run(ctx, s, args)
}

func serverInfo(ctx context.Context, s *session.Session, _ []string) error {
	info, err := session.Call(ctx, s, func(done func(*pulse.ServerInfo, error)) error {
		return s.Context.ServerInfo(done)
	})
	if err != nil {
		return err
	}

	fmt.Println(info)
	fmt.Printf("Client Library: %s\n", libpulse.Version())

	return nil
}

func listDevices(kind pulse.InfoKind) func(context.Context, *session.Session, []string) error {
	return func(ctx context.Context, s *session.Session, _ []string) error {
		devices, err := session.Call(ctx, s, func(done func([]pulse.DeviceInfo, error)) error {
			if kind == pulse.INFO_SOURCE_LIST {
				return s.Context.Sources(done)
			}

			return s.Context.Sinks(done)
		})
		if err != nil {
			return err
		}

		for i := range devices {
			fmt.Println(devices[i].String())
			fmt.Println()
		}

		return nil
	}
}

func listModules(ctx context.Context, s *session.Session, _ []string) error {
	modules, err := session.Call(ctx, s, func(done func([]pulse.ModuleInfo, error)) error {
		return s.Context.Modules(done)
	})
	if err != nil {
		return err
	}

	for i := range modules {
		fmt.Println(modules[i].String())
	}

	return nil
}

// succeed adapts a pulse.SuccessCallback to session.Call.
func succeed(done func(struct{}, error)) pulse.SuccessCallback {
	return func(err error) { done(struct{}{}, err) }
}

func setVolume(kind pulse.InfoKind) func(context.Context, *session.Session, []string) error {
	return func(ctx context.Context, s *session.Session, args []string) error {
		target := parseTarget(args[0])

		vols, err := parseVolumes(args[1:])
		if err != nil {
			return err
		}

		_, err = session.Call(ctx, s, func(done func(struct{}, error)) error {
			return s.Context.SetVolume(kind, target, vols, succeed(done))
		})

		return err
	}
}

func setMute(kind pulse.InfoKind) func(context.Context, *session.Session, []string) error {
	return func(ctx context.Context, s *session.Session, args []string) error {
		target := parseTarget(args[0])

		mute, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid mute value %q", args[1])
		}

		_, err = session.Call(ctx, s, func(done func(struct{}, error)) error {
			return s.Context.SetMute(kind, target, mute, succeed(done))
		})

		return err
	}
}

func loadModule(ctx context.Context, s *session.Session, args []string) error {
	index, err := session.Call(ctx, s, func(done func(uint32, error)) error {
		return s.Context.LoadModule(args[0], joinArgs(args[1:]), done)
	})
	if err != nil {
		return err
	}

	fmt.Println(index)

	return nil
}

func unloadModule(ctx context.Context, s *session.Session, args []string) error {
	index, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid module index %q", args[0])
	}

	_, err = session.Call(ctx, s, func(done func(struct{}, error)) error {
		return s.Context.UnloadModule(uint32(index), succeed(done))
	})

	return err
}
