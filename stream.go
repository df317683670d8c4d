package pulse

import (
	"fmt"
	"math"
	"time"
)

// StreamStateListener is notified of every stream state change.
// err is set only when the state is PA_STREAM_FAILED.
type StreamStateListener func(state StreamState, err error)

// StreamConfig holds the parameters a Stream is created with.
type StreamConfig struct {
	// SampleSpec defaults to DefaultSampleSpec when left zero. A zero Rate or Channels
	// is taken from DefaultSampleSpec, Format is used as given.
	SampleSpec SampleSpec
	// Latency is the requested buffering. Zero lets the daemon choose.
	Latency time.Duration
	// UploadLength is the sample size in bytes for PA_STREAM_UPLOAD.
	UploadLength int
}

// Stream is a playback, record or upload stream on a Context.
//
// Like Context, a Stream must only be used from the event loop goroutine.
type Stream struct {
	ctx      *Context
	native   NativeStream
	name     string
	spec     SampleSpec
	config   StreamConfig
	listener StreamStateListener

	lastState StreamState
	direction Direction
	connected bool
	closed    bool

	readListener ReadListener

	corkPending bool
	corkWanted  bool

	writeBuf      []byte
	writeOffset   int
	drainListener DrainListener

	underflows int
}

// NewStream creates a stream named name on ctx. The stream holds a reference to ctx
// until it is closed. A nil cfg selects the defaults.
func NewStream(ctx *Context, name string, cfg *StreamConfig, props Proplist, listener StreamStateListener) (*Stream, error) {
	if err := ctx.usable(); err != nil {
		return nil, err
	}

	var config StreamConfig
	if cfg != nil {
		config = *cfg
	}

	spec := config.SampleSpec
	if spec == (SampleSpec{}) {
		spec = DefaultSampleSpec
	}
	if spec.Rate == 0 {
		spec.Rate = DefaultSampleSpec.Rate
	}
	if spec.Channels == 0 {
		spec.Channels = DefaultSampleSpec.Channels
	}

	if !spec.Valid() {
		return nil, fmt.Errorf("%w: invalid sample spec %s", ErrInvalidArgument, spec)
	}

	if config.Latency < 0 {
		return nil, fmt.Errorf("%w: negative latency", ErrInvalidArgument)
	}

	if err := props.Validate(); err != nil {
		return nil, err
	}

	if name == "" {
		name = DefaultStreamName
	}

	native, err := ctx.native.NewStream(name, spec, props)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateStream, err)
	}

	ctx.ref()

	s := &Stream{
		ctx:      ctx,
		native:   native,
		name:     name,
		spec:     spec,
		config:   config,
		listener: listener,
	}

	native.SetStateCallback(func() {
		s.dispatch(event{kind: eventStateChanged})
	})

	return s, nil
}

// Name returns the stream name.
func (s *Stream) Name() string {
	return s.name
}

// SampleSpec returns the sample specification of the stream.
func (s *Stream) SampleSpec() SampleSpec {
	return s.spec
}

// Direction returns the direction the stream was connected for.
func (s *Stream) Direction() Direction {
	return s.direction
}

// Context returns the context the stream was created on.
func (s *Stream) Context() *Context {
	return s.ctx
}

// SetStateListener replaces the state listener.
func (s *Stream) SetStateListener(listener StreamStateListener) {
	if s == nil {
		return
	}

	s.listener = listener
}

// State returns the current stream state.
func (s *Stream) State() StreamState {
	if s == nil || s.closed {
		return PA_STREAM_TERMINATED
	}

	return s.native.State()
}

// Underflows returns how many times the daemon reported a playback underflow.
func (s *Stream) Underflows() int {
	return s.underflows
}

// BufferAttr returns the buffer attributes Connect requests for dir.
// The configured latency becomes the target length for playback and the fragment size for record.
func (s *Stream) BufferAttr(dir Direction) BufferAttr {
	var attr BufferAttr

	if s.config.Latency <= 0 {
		return attr
	}

	n := s.spec.UsecToBytes(uint64(s.config.Latency / time.Microsecond))
	if n > math.MaxUint32-1 {
		n = math.MaxUint32 - 1
	}

	switch dir {
	case PA_STREAM_PLAYBACK:
		attr.TargetLength = Some(uint32(n))
	case PA_STREAM_RECORD:
		attr.FragSize = Some(uint32(n))
	}

	return attr
}

// Connect attaches the stream to device, or to the default device when device is empty.
func (s *Stream) Connect(device string, dir Direction, flags StreamFlags) error {
	if err := s.usable(); err != nil {
		return err
	}

	var err error

	switch dir {
	case PA_STREAM_PLAYBACK:
		attr := s.BufferAttr(dir)
		s.native.SetWriteCallback(func(n int) {
			s.dispatch(event{kind: eventWriteCredit, nbytes: n})
		})
		s.native.SetUnderflowCallback(func() {
			s.dispatch(event{kind: eventUnderflow})
		})
		err = s.native.ConnectPlayback(device, &attr, flags)
	case PA_STREAM_RECORD:
		attr := s.BufferAttr(dir)
		s.native.SetReadCallback(func(n int) {
			s.dispatch(event{kind: eventDataReady, nbytes: n})
		})
		err = s.native.ConnectRecord(device, &attr, flags)
	case PA_STREAM_UPLOAD:
		err = s.native.ConnectUpload(s.config.UploadLength)
	default:
		return fmt.Errorf("%w: unknown direction %d", ErrInvalidArgument, dir)
	}

	if err != nil {
		return opError("connect stream", err)
	}

	s.direction = dir
	s.connected = true

	log.Debugf("Stream %q connecting, direction %d device %q", s.name, dir, device)

	return nil
}

// Disconnect detaches the stream from its device. Calling it again, or on a stream
// that was never connected, does nothing.
func (s *Stream) Disconnect() error {
	if s == nil || !s.connected {
		return nil
	}

	s.connected = false
	s.corkPending = false
	if err := s.native.Disconnect(); err != nil {
		return opError("disconnect stream", err)
	}

	return nil
}

// Close disconnects the stream, frees it and releases its Context reference.
// A pending write is discarded without invoking its drain listener.
func (s *Stream) Close() error {
	if s == nil || s.closed {
		return nil
	}

	err := s.Disconnect()

	s.closed = true
	s.listener = nil
	s.readListener = nil
	s.writeBuf = nil
	s.drainListener = nil

	s.native.Unref()
	s.ctx.unref()

	log.Debugf("Stream %q closed", s.name)

	return err
}

// Latency returns the total playback or record latency.
func (s *Stream) Latency() (latency time.Duration, negative bool, err error) {
	if err := s.usable(); err != nil {
		return 0, false, err
	}

	usec, negative, err := s.native.Latency()
	if err != nil {
		return 0, false, opError("get latency", err)
	}

	return time.Duration(usec) * time.Microsecond, negative, nil
}

// Cork pauses (true) or resumes (false) the stream.
func (s *Stream) Cork(cork bool) error {
	if err := s.usable(); err != nil {
		return err
	}

	return s.cork(cork)
}

// Drain waits until the daemon has played everything written so far, then calls cb.
func (s *Stream) Drain(cb func(err error)) error {
	if err := s.usable(); err != nil {
		return err
	}

	err := s.native.Drain(func(ok bool) {
		var err error
		if !ok {
			err = opError("drain", s.ctx.native.Errno())
		}

		s.dispatch(event{kind: eventDrain, done: cb, err: err})
	})
	if err != nil {
		return opError("drain", err)
	}

	return nil
}

// setCorked moves a ready stream into the requested cork state. Before the stream is
// ready the request is remembered and applied on the transition to PA_STREAM_READY.
func (s *Stream) setCorked(cork bool) error {
	if s.native.State() != PA_STREAM_READY {
		s.corkPending = true
		s.corkWanted = cork

		return nil
	}

	s.corkPending = false
	if s.native.IsCorked() == cork {
		return nil
	}

	return s.cork(cork)
}

func (s *Stream) cork(cork bool) error {
	if err := s.native.Cork(cork, nil); err != nil {
		if cork {
			return opError("cork", err)
		}

		return opError("uncork", err)
	}

	return nil
}

func (s *Stream) usable() error {
	if s == nil {
		return fmt.Errorf("%w: nil stream", ErrInvalidArgument)
	}

	if s.closed {
		return ErrClosed
	}

	return nil
}

func (s *Stream) dispatch(ev event) {
	if s.closed {
		return
	}

	switch ev.kind {
	case eventStateChanged:
		s.stateChanged()
	case eventDataReady:
		s.dataReady(ev.nbytes)
	case eventWriteCredit:
		s.request(ev.nbytes)
	case eventDrain:
		if ev.done != nil {
			ev.done(ev.err)
		}
	case eventUnderflow:
		s.underflows++
		log.Warnf("Stream %q underflow (%d)", s.name, s.underflows)
	default:
		log.Errorf("Stream received unexpected %s event", ev.kind)
	}
}

func (s *Stream) stateChanged() {
	state := s.native.State()
	if state == s.lastState {
		return
	}
	s.lastState = state

	var err error

	switch state {
	case PA_STREAM_READY:
		if s.corkPending {
			if cerr := s.setCorked(s.corkWanted); cerr != nil {
				log.Errorf("Stream %q: %v", s.name, cerr)
			}
		}
	case PA_STREAM_FAILED:
		err = opError("stream", s.ctx.native.Errno())
		s.connected = false
		s.corkPending = false
	case PA_STREAM_TERMINATED:
		s.connected = false
		s.corkPending = false
	}

	log.Debugf("Stream %q state %s", s.name, state)

	if s.listener != nil {
		s.listener(state, err)
	}
}
