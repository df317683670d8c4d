package session

import (
	"context"
	"fmt"

	"github.com/gen2brain/pulse"
	"github.com/gen2brain/pulse/libpulse"
	"github.com/gen2brain/pulse/loop"
)

// Session runs a loop on its own goroutine and owns a context connected on it.
// Context and streams must only be touched from functions passed to Do.
type Session struct {
	Loop     *loop.Loop
	Mainloop *pulse.Mainloop
	Context  *pulse.Context

	stopped chan struct{}
	runErr  error
}

// Open connects through the system client library. See OpenLibrary.
func Open(ctx context.Context, cfg *Config) (*Session, error) {
	lib, err := libpulse.Open()
	if err != nil {
		return nil, err
	}

	return OpenLibrary(ctx, cfg, lib)
}

// OpenLibrary starts a loop, connects a context created by lib to the configured
// server and waits until it is ready.
func OpenLibrary(ctx context.Context, cfg *Config, lib pulse.Library) (*Session, error) {
	flags, err := pulse.ParseContextFlags(cfg.ContextFlags)
	if err != nil {
		return nil, err
	}

	l, err := loop.New()
	if err != nil {
		return nil, err
	}

	s := &Session{
		Loop:     l,
		Mainloop: pulse.NewMainloop(l),
		stopped:  make(chan struct{}),
	}

	go func() {
		defer close(s.stopped)
		s.runErr = l.Run(context.Background())
	}()

	ready := make(chan error, 1)
	signalled := false
	listener := func(state pulse.ContextState, err error) {
		log.Debugf("Context %s", state)

		if signalled {
			if state == pulse.PA_CONTEXT_FAILED {
				log.Errorf("Connection lost: %v", err)
			}

			return
		}

		switch state {
		case pulse.PA_CONTEXT_READY:
		case pulse.PA_CONTEXT_FAILED:
		case pulse.PA_CONTEXT_TERMINATED:
			err = pulse.ErrNotConnected
		default:
			return
		}

		signalled = true
		ready <- err
	}

	err = s.Do(func() error {
		c, err := pulse.NewContext(lib, s.Mainloop, cfg.ClientName, pulse.Proplist{
			"application.name": cfg.ClientName,
		}, listener)
		if err != nil {
			return err
		}
		s.Context = c

		return c.Connect(cfg.Server, flags)
	})
	if err == nil {
		select {
		case err = <-ready:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	if err != nil {
		_ = s.Close()

		return nil, fmt.Errorf("failed to connect to %s: %w", serverName(cfg.Server), err)
	}

	log.Infof("Connected to %s", serverName(cfg.Server))

	return s, nil
}

func serverName(server string) string {
	if server == "" {
		return "default server"
	}

	return server
}

// Do runs fn on the loop goroutine and returns its result.
func (s *Session) Do(fn func() error) error {
	select {
	case <-s.stopped:
		return fmt.Errorf("event loop stopped: %w", s.runErr)
	default:
	}

	result := make(chan error, 1)
	s.Loop.Post(func() { result <- fn() })

	select {
	case err := <-result:
		return err
	case <-s.stopped:
		return fmt.Errorf("event loop stopped: %w", s.runErr)
	}
}

// Call starts an asynchronous request on the loop and waits for the callback it was handed.
func Call[T any](ctx context.Context, s *Session, start func(done func(T, error)) error) (T, error) {
	type result struct {
		v   T
		err error
	}

	var zero T
	ch := make(chan result, 1)

	err := s.Do(func() error {
		return start(func(v T, err error) { ch <- result{v, err} })
	})
	if err != nil {
		return zero, err
	}

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.stopped:
		return zero, fmt.Errorf("event loop stopped: %w", s.runErr)
	}
}

// Done is closed once the loop goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.stopped
}

// Close closes the context, stops the loop and releases it.
func (s *Session) Close() error {
	var err error

	select {
	case <-s.stopped:
	default:
		err = s.Do(func() error {
			if s.Context == nil {
				return nil
			}

			return s.Context.Close()
		})
		s.Loop.Stop()
		<-s.stopped
	}

	if cerr := s.Loop.Close(); err == nil {
		err = cerr
	}

	return err
}
