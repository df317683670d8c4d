package pulse

import (
	"io"
	"sync"
	"sync/atomic"
)

// Poster runs functions on the event loop goroutine. *Mainloop and *loop.Loop implement it.
type Poster interface {
	Post(fn func())
}

// PlaybackWriter adapts a playback Stream to io.Writer for use from other goroutines.
// Write blocks until the data has been handed to the daemon. It is not safe for concurrent Writes.
type PlaybackWriter struct {
	s       *Stream
	post    Poster
	closed  chan struct{}
	once    sync.Once
	stopped atomic.Bool
}

// NewPlaybackWriter returns a writer feeding s. p must schedule on the loop s belongs to.
func NewPlaybackWriter(s *Stream, p Poster) *PlaybackWriter {
	return &PlaybackWriter{
		s:      s,
		post:   p,
		closed: make(chan struct{}),
	}
}

func (w *PlaybackWriter) call(fn func() error) error {
	return callOnLoop(w.post, w.closed, fn)
}

// Write implements io.Writer. It returns len(p) once the data has left the buffer, which
// includes the buffer being dropped by Discard or Stop, so success does not mean the data
// was played. While stopped, Write drops p and returns at once.
func (w *PlaybackWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if w.stopped.Load() {
		select {
		case <-w.closed:
			return 0, ErrClosed
		default:
			return len(p), nil
		}
	}

	buf := make([]byte, len(p))
	copy(buf, p)

	drained := make(chan struct{})
	err := w.call(func() error {
		return w.s.Write(buf, func() { close(drained) })
	})
	if err != nil {
		return 0, err
	}

	select {
	case <-drained:
		return len(p), nil
	case <-w.closed:
		return 0, ErrClosed
	}
}

// Play resumes playback after Stop.
func (w *PlaybackWriter) Play() error {
	err := w.call(func() error { return w.s.setCorked(false) })
	if err == nil {
		w.stopped.Store(false)
	}

	return err
}

// Stop discards the pending write and pauses playback. Writes are dropped until Play.
func (w *PlaybackWriter) Stop() error {
	w.stopped.Store(true)

	return w.Discard()
}

// Discard drops the pending write and pauses playback. A blocked Write returns once the flush completes.
func (w *PlaybackWriter) Discard() error {
	return w.call(func() error { return w.s.Write(nil, nil) })
}

// Close waits for the daemon to play everything written, then unblocks any pending calls.
func (w *PlaybackWriter) Close() error {
	select {
	case <-w.closed:
		return nil
	default:
	}

	done := make(chan error, 1)
	err := w.call(func() error {
		return w.s.Drain(func(err error) { done <- err })
	})
	if err == nil {
		select {
		case err = <-done:
		case <-w.closed:
		}
	}

	w.once.Do(func() { close(w.closed) })

	return err
}

// RecordReader adapts a record Stream to io.Reader for use from other goroutines.
// Chunks arriving while the queue is full are dropped and counted.
type RecordReader struct {
	s        *Stream
	post     Poster
	chunks   chan []byte
	pending  []byte
	closed   chan struct{}
	once     sync.Once
	overruns atomic.Int64
}

// NewRecordReader returns a reader over s queueing at most depth chunks. p must schedule on the loop s belongs to.
func NewRecordReader(s *Stream, p Poster, depth int) *RecordReader {
	if depth <= 0 {
		depth = 16
	}

	return &RecordReader{
		s:      s,
		post:   p,
		chunks: make(chan []byte, depth),
		closed: make(chan struct{}),
	}
}

func (r *RecordReader) push(data []byte) {
	if data == nil {
		return
	}

	select {
	case r.chunks <- data:
	default:
		n := r.overruns.Add(1)
		log.Warnf("Stream %q overrun, dropped %d bytes (%d)", r.s.name, len(data), n)
	}
}

// Play starts delivering recorded data.
func (r *RecordReader) Play() error {
	return callOnLoop(r.post, r.closed, func() error { return r.s.Read(r.push) })
}

// Stop pauses recording.
func (r *RecordReader) Stop() error {
	return callOnLoop(r.post, r.closed, func() error { return r.s.Read(nil) })
}

// Overruns returns how many chunks were dropped because the reader fell behind.
func (r *RecordReader) Overruns() int64 {
	return r.overruns.Load()
}

// Read implements io.Reader. It returns io.EOF once the reader is closed.
func (r *RecordReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		select {
		case chunk := <-r.chunks:
			r.pending = chunk
		case <-r.closed:
			return 0, io.EOF
		}
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]

	return n, nil
}

// Close stops recording and makes pending and future Reads return io.EOF.
func (r *RecordReader) Close() error {
	r.once.Do(func() {
		close(r.closed)
		r.post.Post(func() {
			if !r.s.closed {
				_ = r.s.Read(nil)
			}
		})
	})

	return nil
}

// callOnLoop runs fn on the loop and waits for its result, giving up when closed is closed.
func callOnLoop(p Poster, closed <-chan struct{}, fn func() error) error {
	select {
	case <-closed:
		return ErrClosed
	default:
	}

	result := make(chan error, 1)
	p.Post(func() { result <- fn() })

	select {
	case err := <-result:
		return err
	case <-closed:
		return ErrClosed
	}
}
