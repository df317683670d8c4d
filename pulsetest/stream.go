package pulsetest

import (
	"github.com/gen2brain/pulse"
)

type chunk struct {
	data []byte
	hole int
}

// Stream is a simulated stream. Tests drive it with Request, Push, PushHole, NotifyRead, Underflow and Fail.
type Stream struct {
	c *Context

	Name  string
	Spec  pulse.SampleSpec
	Props pulse.Proplist

	Direction    pulse.Direction
	Device       string
	Attr         pulse.BufferAttr
	Flags        pulse.StreamFlags
	UploadLength int

	// Written holds every byte the client wrote.
	Written []byte
	// WriteSizes holds the size of every individual write.
	WriteSizes []int

	Drops   int
	Flushes int
	Drains  int

	Released bool
	// FailCork makes Cork fail synchronously, as libpulse does when it cannot issue the request.
	FailCork bool

	state       pulse.StreamState
	stateCb     func()
	writeCb     func(int)
	readCb      func(int)
	underflowCb func()
	gen         int
	writable    int
	corked      bool
	queue       []chunk
}

func (s *Stream) alive(gen int) bool {
	return !s.Released && s.gen == gen
}

// schedule runs fn on the next loop iteration unless the stream was disconnected or freed meanwhile.
func (s *Stream) schedule(fn func()) {
	gen := s.gen
	s.c.schedule(func() {
		if s.alive(gen) {
			fn()
		}
	})
}

func (s *Stream) setState(state pulse.StreamState) {
	s.state = state
	if s.stateCb != nil {
		s.stateCb()
	}
}

func (s *Stream) terminate(state pulse.StreamState) {
	s.gen++
	s.state = state
	s.schedule(func() {
		if s.stateCb != nil {
			s.stateCb()
		}
	})
}

func (s *Stream) ready() error {
	if s.Released || s.state != pulse.PA_STREAM_READY {
		return pulse.PA_ERR_BADSTATE
	}

	return nil
}

func (s *Stream) SetStateCallback(cb func()) {
	s.stateCb = cb
}

func (s *Stream) SetWriteCallback(cb func(nbytes int)) {
	s.writeCb = cb
}

func (s *Stream) SetReadCallback(cb func(nbytes int)) {
	s.readCb = cb
}

func (s *Stream) SetUnderflowCallback(cb func()) {
	s.underflowCb = cb
}

func (s *Stream) State() pulse.StreamState {
	return s.state
}

func (s *Stream) connect(dir pulse.Direction, device string, attr *pulse.BufferAttr, flags pulse.StreamFlags) error {
	if s.Released || s.state != pulse.PA_STREAM_UNCONNECTED || s.c.state != pulse.PA_CONTEXT_READY {
		return pulse.PA_ERR_BADSTATE
	}

	s.Direction = dir
	s.Device = device
	s.Flags = flags
	if attr != nil {
		s.Attr = *attr
	}
	s.corked = flags&pulse.PA_STREAM_START_CORKED != 0

	s.state = pulse.PA_STREAM_CREATING
	s.schedule(func() {
		if s.stateCb != nil {
			s.stateCb()
		}

		s.schedule(func() {
			if s.c.d.FailStreamConnect {
				s.c.errno = pulse.PA_ERR_NOENTITY
				s.setState(pulse.PA_STREAM_FAILED)

				return
			}

			s.setState(pulse.PA_STREAM_READY)
		})
	})

	return nil
}

func (s *Stream) ConnectPlayback(device string, attr *pulse.BufferAttr, flags pulse.StreamFlags) error {
	return s.connect(pulse.PA_STREAM_PLAYBACK, device, attr, flags)
}

func (s *Stream) ConnectRecord(device string, attr *pulse.BufferAttr, flags pulse.StreamFlags) error {
	return s.connect(pulse.PA_STREAM_RECORD, device, attr, flags)
}

func (s *Stream) ConnectUpload(length int) error {
	if length <= 0 {
		return pulse.PA_ERR_INVALID
	}

	s.UploadLength = length

	return s.connect(pulse.PA_STREAM_UPLOAD, "", nil, pulse.PA_STREAM_NOFLAGS)
}

func (s *Stream) Disconnect() error {
	if s.Released || !s.state.IsGood() {
		return pulse.PA_ERR_BADSTATE
	}

	s.terminate(pulse.PA_STREAM_TERMINATED)

	return nil
}

func (s *Stream) Unref() {
	s.Released = true
	s.stateCb = nil
	s.writeCb = nil
	s.readCb = nil
	s.underflowCb = nil
}

func (s *Stream) Peek() ([]byte, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}

	if len(s.queue) == 0 {
		return nil, 0, nil
	}

	front := s.queue[0]
	if front.data == nil {
		return nil, front.hole, nil
	}

	return front.data, len(front.data), nil
}

func (s *Stream) Drop() error {
	if err := s.ready(); err != nil {
		return err
	}

	if len(s.queue) == 0 {
		return pulse.PA_ERR_BADSTATE
	}

	s.queue = s.queue[1:]
	s.Drops++

	return nil
}

func (s *Stream) Write(data []byte) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.Written = append(s.Written, data...)
	s.WriteSizes = append(s.WriteSizes, len(data))

	s.writable -= len(data)
	if s.writable < 0 {
		s.writable = 0
	}

	return nil
}

func (s *Stream) WritableSize() int {
	if s.ready() != nil {
		return 0
	}

	return s.writable
}

func (s *Stream) Cork(cork bool, cb func(success bool)) error {
	if err := s.ready(); err != nil {
		return err
	}

	if s.FailCork {
		return pulse.PA_ERR_INTERNAL
	}

	s.corked = cork
	if cb != nil {
		s.schedule(func() { cb(true) })
	}

	return nil
}

func (s *Stream) IsCorked() bool {
	return s.corked
}

func (s *Stream) Flush(cb func(success bool)) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.Flushes++
	if cb != nil {
		s.schedule(func() { cb(true) })
	}

	return nil
}

func (s *Stream) Drain(cb func(success bool)) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.Drains++
	if cb != nil {
		s.schedule(func() { cb(true) })
	}

	return nil
}

func (s *Stream) Latency() (uint64, bool, error) {
	if err := s.ready(); err != nil {
		return 0, false, pulse.PA_ERR_NODATA
	}

	return s.c.d.Latency, s.c.d.NegativeLatency, nil
}

// Corked reports whether the client has corked the stream.
func (s *Stream) Corked() bool {
	return s.corked
}

// Queued returns the number of recorded chunks not yet dropped by the client.
func (s *Stream) Queued() int {
	return len(s.queue)
}

// Request grants the client n bytes of write credit on the next loop iteration.
func (s *Stream) Request(n int) {
	s.schedule(func() {
		s.writable += n
		if s.writeCb != nil {
			s.writeCb(n)
		}
	})
}

// Push queues recorded data and signals the client on the next loop iteration.
func (s *Stream) Push(data []byte) {
	buf := append([]byte(nil), data...)
	s.schedule(func() {
		s.queue = append(s.queue, chunk{data: buf})
		if s.readCb != nil {
			s.readCb(len(buf))
		}
	})
}

// PushHole queues a gap of n bytes in the recorded data.
func (s *Stream) PushHole(n int) {
	s.schedule(func() {
		s.queue = append(s.queue, chunk{hole: n})
		if s.readCb != nil {
			s.readCb(n)
		}
	})
}

// NotifyRead signals n readable bytes without queueing anything.
func (s *Stream) NotifyRead(n int) {
	s.schedule(func() {
		if s.readCb != nil {
			s.readCb(n)
		}
	})
}

// Underflow reports a playback underflow.
func (s *Stream) Underflow() {
	s.schedule(func() {
		if s.underflowCb != nil {
			s.underflowCb()
		}
	})
}

// Fail moves the stream to PA_STREAM_FAILED with code as the context error.
func (s *Stream) Fail(code pulse.Error) {
	s.schedule(func() {
		s.c.errno = code
		s.gen++
		s.setState(pulse.PA_STREAM_FAILED)
	})
}
