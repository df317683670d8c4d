package session

import (
	"context"
	"fmt"

	"github.com/gen2brain/pulse"
)

// StreamOptions describe a stream opened with OpenStream.
type StreamOptions struct {
	Name      string
	Device    string
	Direction pulse.Direction
	Flags     pulse.StreamFlags
	Config    pulse.StreamConfig
	Props     pulse.Proplist
}

// OpenStream creates and connects a stream, waiting until it is ready.
func (s *Session) OpenStream(ctx context.Context, opts StreamOptions) (*pulse.Stream, error) {
	ready := make(chan error, 1)
	signalled := false
	listener := func(state pulse.StreamState, err error) {
		log.Debugf("Stream %q %s", opts.Name, state)

		if signalled {
			if state == pulse.PA_STREAM_FAILED {
				log.Errorf("Stream %q failed: %v", opts.Name, err)
			}

			return
		}

		switch state {
		case pulse.PA_STREAM_READY:
		case pulse.PA_STREAM_FAILED:
		case pulse.PA_STREAM_TERMINATED:
			err = pulse.ErrNotConnected
		default:
			return
		}

		signalled = true
		ready <- err
	}

	var stream *pulse.Stream
	err := s.Do(func() error {
		var err error
		stream, err = pulse.NewStream(s.Context, opts.Name, &opts.Config, opts.Props, listener)
		if err != nil {
			return err
		}

		return stream.Connect(opts.Device, opts.Direction, opts.Flags)
	})
	if err == nil {
		select {
		case err = <-ready:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	if err != nil {
		if stream != nil {
			_ = s.CloseStream(stream)
		}

		return nil, fmt.Errorf("failed to open stream %q: %w", opts.Name, err)
	}

	log.Infof("Stream %q ready: %s", opts.Name, stream.SampleSpec())

	return stream, nil
}

// CloseStream closes stream on the loop.
func (s *Session) CloseStream(stream *pulse.Stream) error {
	return s.Do(stream.Close)
}
