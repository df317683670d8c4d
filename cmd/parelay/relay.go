package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/gen2brain/pulse"
	"github.com/gen2brain/pulse/cmd/internal/session"
)

// fragmentSize returns the byte size of d worth of audio, rounded down to whole frames.
func fragmentSize(spec pulse.SampleSpec, d time.Duration) int {
	frame := int(spec.FrameSize())
	n := int(spec.UsecToBytes(uint64(d.Microseconds())))

	return max(n/frame, 1) * frame
}

// publish records from the source and sends each fragment as a message.
func publish(ctx context.Context, logger slog.Logger, s *session.Session, nc *nats.Conn, opts options) error {
	stream, err := s.OpenStream(ctx, session.StreamOptions{
		Name:      "relay " + opts.subject,
		Device:    opts.device,
		Direction: pulse.PA_STREAM_RECORD,
		Flags:     opts.flags,
		Config:    pulse.StreamConfig{SampleSpec: opts.spec, Latency: opts.latency},
		Props:     pulse.Proplist{"media.role": "phone"},
	})
	if err != nil {
		return err
	}
	defer s.CloseStream(stream)

	spec := stream.SampleSpec()
	size := fragmentSize(spec, opts.fragment)

	reader := pulse.NewRecordReader(stream, s.Mainloop, opts.queue)
	defer reader.Close()

	stopReading := context.AfterFunc(ctx, func() { _ = reader.Close() })
	defer stopReading()

	if err := reader.Play(); err != nil {
		return err
	}

	f := &frame{stream: uuid.New(), spec: spec}
	logger.Infof("Publishing stream %s (%s) on %s", f.stream, spec, opts.subject)

	for {
		buf := make([]byte, size)

		n, readErr := io.ReadFull(reader, buf)
		n -= n % int(spec.FrameSize())

		if n > 0 {
			f.data = buf[:n]
			if err := nc.PublishMsg(f.message(opts.subject)); err != nil {
				return fmt.Errorf("failed to publish: %w", err)
			}
			f.sequence++
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
				return readErr
			}

			break
		}
	}

	if overruns := reader.Overruns(); overruns > 0 {
		logger.Warnf("%d fragments were dropped before publishing", overruns)
	}

	logger.Infof("Published %d fragments", f.sequence)

	return nc.Flush()
}

// tracker follows the sequence numbers of the stream being played.
type tracker struct {
	stream uuid.UUID
	next   uint64
}

// accept reports whether f should be played, how many fragments went missing
// before it and whether it starts a new stream.
func (t *tracker) accept(f *frame) (ok bool, lost uint64, switched bool) {
	if f.stream != t.stream {
		t.stream = f.stream
		t.next = f.sequence + 1

		return true, 0, true
	}

	if f.sequence < t.next {
		return false, 0, false
	}

	lost = f.sequence - t.next
	t.next = f.sequence + 1

	return true, lost, false
}

// subscribe plays the fragments arriving on the subject.
func subscribe(ctx context.Context, logger slog.Logger, s *session.Session, nc *nats.Conn, opts options) error {
	msgs := make(chan *nats.Msg, opts.queue)

	sub, err := nc.ChanSubscribe(opts.subject, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", opts.subject, err)
	}
	defer sub.Unsubscribe()

	logger.Infof("Subscribed to %s", opts.subject)

	frames := make(chan *frame, opts.queue)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)

		var t tracker
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case msg := <-msgs:
				f, err := parseFrame(msg)
				if err != nil {
					logger.Warnf("Dropping message: %v", err)

					continue
				}

				ok, lost, switched := t.accept(f)
				if switched {
					logger.Infof("Receiving stream %s (%s)", f.stream, f.spec)
				}
				if lost > 0 {
					logger.Warnf("Stream %s lost %d fragments", f.stream, lost)
				}
				if !ok {
					continue
				}

				select {
				case frames <- f:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	g.Go(func() error {
		return playFrames(gctx, ctx, logger, s, opts, frames)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}

	return err
}

// playFrames opens a playback stream matching the first fragment and writes every
// following fragment of the same format to it. Cancelling interrupt discards what is queued.
func playFrames(ctx, interrupt context.Context, logger slog.Logger, s *session.Session, opts options, frames <-chan *frame) error {
	var (
		stream       *pulse.Stream
		w            *pulse.PlaybackWriter
		spec         pulse.SampleSpec
		stopPlayback func() bool
	)

	defer func() {
		if stopPlayback != nil {
			stopPlayback()
		}
		if stream != nil {
			_ = s.CloseStream(stream)
		}
	}()

	for {
		var f *frame
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f = <-frames:
			if f == nil {
				return nil
			}
		}

		if stream == nil {
			var err error
			stream, err = s.OpenStream(ctx, session.StreamOptions{
				Name:      "relay " + opts.subject,
				Device:    opts.device,
				Direction: pulse.PA_STREAM_PLAYBACK,
				Flags:     opts.flags,
				Config:    pulse.StreamConfig{SampleSpec: f.spec, Latency: opts.latency},
				Props:     pulse.Proplist{"media.role": "phone"},
			})
			if err != nil {
				return err
			}

			spec = f.spec
			w = pulse.NewPlaybackWriter(stream, s.Mainloop)

			stopPlayback = context.AfterFunc(interrupt, func() { _ = w.Discard() })
		}

		if f.spec != spec {
			logger.Warnf("Dropping %s fragment, playing %s", f.spec, spec)

			continue
		}

		if _, err := w.Write(f.data); err != nil {
			return err
		}
	}
}
