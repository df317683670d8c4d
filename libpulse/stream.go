//go:build libpulse && cgo

package libpulse

/*
#include <stdlib.h>
#include "glue.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/gen2brain/pulse"
)

type nativeStream struct {
	ctx    *nativeContext
	s      *C.pa_stream
	handle cgo.Handle

	stateCb     func()
	writeCb     func(int)
	readCb      func(int)
	underflowCb func()
}

func (c *nativeContext) NewStream(name string, spec pulse.SampleSpec, props pulse.Proplist) (pulse.NativeStream, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	pl := newProplist(props)
	if pl != nil {
		defer C.pa_proplist_free(pl)
	}

	ss := C.pa_sample_spec{
		format:   C.pa_sample_format_t(spec.Format),
		rate:     C.uint32_t(spec.Rate),
		channels: C.uint8_t(spec.Channels),
	}

	s := C.pa_stream_new_with_proplist(c.c, cname, &ss, nil, pl)
	if s == nil {
		return nil, c.errno()
	}

	ns := &nativeStream{ctx: c, s: s}
	ns.handle = cgo.NewHandle(ns)
	C.glue_stream_set_callbacks(s, C.uintptr_t(ns.handle))

	return ns, nil
}

func (s *nativeStream) SetStateCallback(cb func()) {
	s.stateCb = cb
}

func (s *nativeStream) SetWriteCallback(cb func(nbytes int)) {
	s.writeCb = cb
}

func (s *nativeStream) SetReadCallback(cb func(nbytes int)) {
	s.readCb = cb
}

func (s *nativeStream) SetUnderflowCallback(cb func()) {
	s.underflowCb = cb
}

func (s *nativeStream) State() pulse.StreamState {
	return pulse.StreamState(C.pa_stream_get_state(s.s))
}

// bufferAttr converts attr, mapping unset fields to (uint32_t)-1.
func bufferAttr(attr *pulse.BufferAttr) C.pa_buffer_attr {
	get := func(o pulse.Optional) C.uint32_t {
		if v, ok := o.Get(); ok {
			return C.uint32_t(v)
		}

		return C.uint32_t(pulse.PA_INVALID_INDEX)
	}

	var a pulse.BufferAttr
	if attr != nil {
		a = *attr
	}

	return C.pa_buffer_attr{
		maxlength: get(a.MaxLength),
		tlength:   get(a.TargetLength),
		prebuf:    get(a.Prebuf),
		minreq:    get(a.MinReq),
		fragsize:  get(a.FragSize),
	}
}

func device(name string) *C.char {
	if name == "" {
		return nil
	}

	return C.CString(name)
}

func (s *nativeStream) ConnectPlayback(dev string, attr *pulse.BufferAttr, flags pulse.StreamFlags) error {
	cdev := device(dev)
	if cdev != nil {
		defer C.free(unsafe.Pointer(cdev))
	}

	ba := bufferAttr(attr)
	if C.pa_stream_connect_playback(s.s, cdev, &ba, C.pa_stream_flags_t(flags), nil, nil) < 0 {
		return s.ctx.errno()
	}

	return nil
}

func (s *nativeStream) ConnectRecord(dev string, attr *pulse.BufferAttr, flags pulse.StreamFlags) error {
	cdev := device(dev)
	if cdev != nil {
		defer C.free(unsafe.Pointer(cdev))
	}

	ba := bufferAttr(attr)
	if C.pa_stream_connect_record(s.s, cdev, &ba, C.pa_stream_flags_t(flags)) < 0 {
		return s.ctx.errno()
	}

	return nil
}

func (s *nativeStream) ConnectUpload(length int) error {
	if C.pa_stream_connect_upload(s.s, C.size_t(length)) < 0 {
		return s.ctx.errno()
	}

	return nil
}

func (s *nativeStream) Disconnect() error {
	if C.pa_stream_disconnect(s.s) < 0 {
		return s.ctx.errno()
	}

	return nil
}

func (s *nativeStream) Unref() {
	C.glue_stream_clear_callbacks(s.s)
	C.pa_stream_unref(s.s)
	s.s = nil
	s.handle.Delete()
}

func (s *nativeStream) Peek() ([]byte, int, error) {
	var data unsafe.Pointer
	var n C.size_t

	if C.pa_stream_peek(s.s, &data, &n) < 0 {
		return nil, 0, s.ctx.errno()
	}

	if data == nil {
		return nil, int(n), nil
	}

	return unsafe.Slice((*byte)(data), int(n)), int(n), nil
}

func (s *nativeStream) Drop() error {
	if C.pa_stream_drop(s.s) < 0 {
		return s.ctx.errno()
	}

	return nil
}

// Write copies data into the library's buffers.
func (s *nativeStream) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	if C.pa_stream_write(s.s, unsafe.Pointer(&data[0]), C.size_t(len(data)), nil, 0, C.PA_SEEK_RELATIVE) < 0 {
		return s.ctx.errno()
	}

	return nil
}

func (s *nativeStream) WritableSize() int {
	n := C.pa_stream_writable_size(s.s)
	if n == C.size_t(^uint(0)) {
		return 0
	}

	return int(n)
}

func (s *nativeStream) operation(cb func(bool), start func(h C.uintptr_t) *C.pa_operation) error {
	if cb == nil {
		op := start(0)
		if op == nil {
			return s.ctx.errno()
		}
		C.pa_operation_unref(op)

		return nil
	}

	return s.ctx.issue(cb, start)
}

func (s *nativeStream) Cork(cork bool, cb func(success bool)) error {
	var b C.int
	if cork {
		b = 1
	}

	return s.operation(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_stream_cork(s.s, b, h)
	})
}

func (s *nativeStream) IsCorked() bool {
	return C.pa_stream_is_corked(s.s) == 1
}

func (s *nativeStream) Flush(cb func(success bool)) error {
	return s.operation(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_stream_flush(s.s, h)
	})
}

func (s *nativeStream) Drain(cb func(success bool)) error {
	return s.operation(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_stream_drain(s.s, h)
	})
}

func (s *nativeStream) Latency() (uint64, bool, error) {
	var usec C.pa_usec_t
	var neg C.int

	if r := C.pa_stream_get_latency(s.s, &usec, &neg); r < 0 {
		return 0, false, pulse.Error(-r)
	}

	return uint64(usec), neg != 0, nil
}

//export goStreamState
func goStreamState(h C.uintptr_t) {
	s := cgo.Handle(h).Value().(*nativeStream)
	if s.stateCb != nil {
		s.stateCb()
	}
}

//export goStreamRequest
func goStreamRequest(h C.uintptr_t, nbytes C.size_t, write C.int) {
	s := cgo.Handle(h).Value().(*nativeStream)

	cb := s.readCb
	if write != 0 {
		cb = s.writeCb
	}

	if cb != nil {
		cb(int(nbytes))
	}
}

//export goStreamUnderflow
func goStreamUnderflow(h C.uintptr_t) {
	s := cgo.Handle(h).Value().(*nativeStream)
	if s.underflowCb != nil {
		s.underflowCb()
	}
}
