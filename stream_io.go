package pulse

import (
	"fmt"
)

// ReadListener receives recorded data. A nil chunk means the daemon had no data to deliver.
// The chunk is owned by the listener.
type ReadListener func(data []byte)

// DrainListener is invoked once when the buffer passed to Write has been handed to the daemon.
type DrainListener func()

// Read installs listener and resumes recording. Any chunk left unconsumed is discarded first.
// A nil listener pauses recording, discards the pending chunk and removes the listener.
//
// Read may be called before the stream is ready. The stream is then uncorked or corked
// once it becomes ready. If resuming fails the previous listener stays in place.
func (s *Stream) Read(listener ReadListener) error {
	if err := s.usable(); err != nil {
		return err
	}

	if listener != nil {
		s.discardPending()

		if err := s.setCorked(false); err != nil {
			return err
		}
		s.readListener = listener

		return nil
	}

	err := s.setCorked(true)
	s.discardPending()
	s.readListener = nil

	return err
}

func (s *Stream) discardPending() {
	_, n, err := s.native.Peek()
	if err == nil && n > 0 {
		_ = s.native.Drop()
	}
}

func (s *Stream) dataReady(nbytes int) {
	if nbytes == 0 || s.readListener == nil {
		return
	}

	data, n, err := s.native.Peek()
	if err != nil {
		log.Errorf("Stream %q peek failed: %v", s.name, err)

		return
	}

	switch {
	case n == 0:
		// Nothing buffered, there is no chunk to drop.
		s.readListener(nil)
	case data == nil:
		log.Debugf("Stream %q dropping %d byte hole", s.name, n)
		_ = s.native.Drop()
	default:
		chunk := make([]byte, len(data))
		copy(chunk, data)

		// Drop before delivering so a listener calling Read cannot drop the same chunk twice.
		if err := s.native.Drop(); err != nil {
			log.Errorf("Stream %q drop failed: %v", s.name, err)
		}

		s.readListener(chunk)
	}
}

// Write queues data for playback. data must be nil, a []byte or a slice of a numeric sample type.
// The slice is referenced, not copied, and must not be modified until the drain listener runs.
//
// A non-nil listener replaces the current drain listener. If an earlier buffer is still pending,
// the stream is flushed and that write's listener is invoked once the flush completes.
// Writing nil corks the stream.
func (s *Stream) Write(data any, listener DrainListener) error {
	if err := s.usable(); err != nil {
		return err
	}

	buf, err := sliceBytes(data)
	if err != nil {
		return fmt.Errorf("invalid data type for Write: %w", err)
	}

	if s.writeBuf != nil {
		if err := s.retire(); err != nil {
			return err
		}
	}

	if listener != nil {
		s.drainListener = listener
	}

	if buf == nil {
		return s.setCorked(true)
	}

	s.writeBuf = buf
	s.writeOffset = 0

	log.Debugf("Stream %q write %d bytes", s.name, len(buf))

	if err := s.setCorked(false); err != nil {
		return err
	}

	if n := s.native.WritableSize(); n > 0 {
		s.request(n)
	}

	return nil
}

// retire abandons the pending buffer. Its unconsumed bytes are flushed from the daemon and
// its listener runs when the flush completes.
func (s *Stream) retire() error {
	listener := s.drainListener
	s.drainListener = nil
	s.writeBuf = nil
	s.writeOffset = 0

	log.Debugf("Stream %q flushing replaced write", s.name)

	err := s.native.Flush(func(bool) {
		s.dispatch(event{kind: eventDrain, done: func(error) {
			if listener != nil {
				listener()
			}
		}})
	})
	if err != nil {
		if listener != nil {
			listener()
		}

		return opError("flush", err)
	}

	return nil
}

// request serves a write credit of nbytes from the pending buffer.
func (s *Stream) request(nbytes int) {
	if s.writeBuf == nil {
		return
	}

	served := min(nbytes, len(s.writeBuf)-s.writeOffset)
	if served > 0 {
		if err := s.native.Write(s.writeBuf[s.writeOffset : s.writeOffset+served]); err != nil {
			log.Errorf("Stream %q write failed: %v", s.name, err)

			return
		}

		s.writeOffset += served
	}

	if s.writeOffset == len(s.writeBuf) {
		s.drain()
	}
}

// drain releases the exhausted buffer and fires the drain listener once.
func (s *Stream) drain() {
	s.writeBuf = nil
	s.writeOffset = 0

	log.Debugf("Stream %q drained", s.name)

	if listener := s.drainListener; listener != nil {
		s.drainListener = nil
		listener()
	}
}

// Pending returns the number of bytes of the current write not yet handed to the daemon.
func (s *Stream) Pending() int {
	if s == nil || s.writeBuf == nil {
		return 0
	}

	return len(s.writeBuf) - s.writeOffset
}
