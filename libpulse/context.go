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

type nativeContext struct {
	bridge  *bridge
	c       *C.pa_context
	handle  cgo.Handle
	stateCb func()

	// Handles of requests whose callback has not run yet. The library drops callbacks
	// of requests outstanding at disconnect, so these are released on Unref.
	pending map[cgo.Handle]struct{}
}

// request is the userdata of an outstanding operation.
type request struct {
	c  *nativeContext
	cb any
}

func (c *nativeContext) errno() pulse.Error {
	if err := c.Errno(); err != pulse.PA_OK {
		return err
	}

	return pulse.PA_ERR_UNKNOWN
}

// issue registers cb and starts the operation returned by start.
func (c *nativeContext) issue(cb any, start func(h C.uintptr_t) *C.pa_operation) error {
	h := cgo.NewHandle(&request{c: c, cb: cb})
	c.pending[h] = struct{}{}

	op := start(C.uintptr_t(h))
	if op == nil {
		c.finish(h)

		return c.errno()
	}

	C.pa_operation_unref(op)

	return nil
}

func (c *nativeContext) finish(h cgo.Handle) {
	delete(c.pending, h)
	h.Delete()
}

// complete returns the callback of the request behind h and releases it.
func complete(h C.uintptr_t) any {
	handle := cgo.Handle(h)
	r := handle.Value().(*request)
	r.c.finish(handle)

	return r.cb
}

// peek returns the callback of the request behind h without releasing it.
func peek(h C.uintptr_t) any {
	return cgo.Handle(h).Value().(*request).cb
}

func (c *nativeContext) SetStateCallback(cb func()) {
	c.stateCb = cb
}

func (c *nativeContext) State() pulse.ContextState {
	return pulse.ContextState(C.pa_context_get_state(c.c))
}

func (c *nativeContext) Errno() pulse.Error {
	return pulse.Error(C.pa_context_errno(c.c))
}

func (c *nativeContext) Connect(server string, flags pulse.ContextFlags) error {
	var cserver *C.char
	if server != "" {
		cserver = C.CString(server)
		defer C.free(unsafe.Pointer(cserver))
	}

	if C.pa_context_connect(c.c, cserver, C.pa_context_flags_t(flags), nil) < 0 {
		return c.errno()
	}

	return nil
}

func (c *nativeContext) Disconnect() {
	C.pa_context_disconnect(c.c)
}

func (c *nativeContext) Unref() {
	C.glue_context_set_state_callback(c.c, 0)
	C.pa_context_unref(c.c)
	c.c = nil

	for h := range c.pending {
		h.Delete()
	}
	c.pending = nil

	c.handle.Delete()
	c.bridge.free()

	log.Trace("context freed")
}

func (c *nativeContext) GetServerInfo(cb func(info *pulse.ServerInfo)) error {
	return c.issue(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_get_server_info(c.c, h)
	})
}

func (c *nativeContext) GetSinkInfoList(cb func(info *pulse.DeviceInfo, eol bool, err error)) error {
	return c.issue(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_get_sink_info_list(c.c, h)
	})
}

func (c *nativeContext) GetSourceInfoList(cb func(info *pulse.DeviceInfo, eol bool, err error)) error {
	return c.issue(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_get_source_info_list(c.c, h)
	})
}

func (c *nativeContext) GetModuleInfoList(cb func(info *pulse.ModuleInfo, eol bool, err error)) error {
	return c.issue(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_get_module_info_list(c.c, h)
	})
}

// target splits t into the arguments of the by-index and by-name calls. The name must be freed.
func target(kind pulse.InfoKind, t pulse.Target) (source C.int, idx C.uint32_t, name *C.char, err error) {
	switch kind {
	case pulse.INFO_SINK_LIST:
	case pulse.INFO_SOURCE_LIST:
		source = 1
	default:
		return 0, 0, nil, pulse.PA_ERR_INVALID
	}

	if n, ok := t.Name(); ok {
		return source, 0, C.CString(n), nil
	}

	i, _ := t.Index()

	return source, C.uint32_t(i), nil, nil
}

func (c *nativeContext) SetMute(kind pulse.InfoKind, t pulse.Target, mute bool, cb func(success bool)) error {
	source, idx, name, err := target(kind, t)
	if err != nil {
		return err
	}
	if name != nil {
		defer C.free(unsafe.Pointer(name))
	}

	var m C.int
	if mute {
		m = 1
	}

	return c.issue(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_set_mute(c.c, source, idx, name, m, h)
	})
}

func (c *nativeContext) SetVolume(kind pulse.InfoKind, t pulse.Target, vols pulse.ChannelVolumes, cb func(success bool)) error {
	source, idx, name, err := target(kind, t)
	if err != nil {
		return err
	}
	if name != nil {
		defer C.free(unsafe.Pointer(name))
	}

	var cv C.pa_cvolume
	cv.channels = C.uint8_t(len(vols))
	for i, v := range vols {
		cv.values[i] = C.pa_volume_t(v)
	}

	return c.issue(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_set_volume(c.c, source, idx, name, &cv, h)
	})
}

func (c *nativeContext) LoadModule(name, argument string, cb func(index uint32)) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	carg := C.CString(argument)
	defer C.free(unsafe.Pointer(carg))

	return c.issue(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_load_module(c.c, cname, carg, h)
	})
}

func (c *nativeContext) UnloadModule(index uint32, cb func(success bool)) error {
	return c.issue(cb, func(h C.uintptr_t) *C.pa_operation {
		return C.glue_unload_module(c.c, C.uint32_t(index), h)
	})
}

func sampleSpec(ss C.pa_sample_spec) pulse.SampleSpec {
	return pulse.SampleSpec{
		Format:   pulse.SampleFormat(ss.format),
		Rate:     uint32(ss.rate),
		Channels: uint8(ss.channels),
	}
}

func volumes(cv *C.pa_cvolume) pulse.ChannelVolumes {
	v := make(pulse.ChannelVolumes, int(cv.channels))
	for i := range v {
		v[i] = uint32(cv.values[i])
	}

	return v
}

//export goContextState
func goContextState(h C.uintptr_t) {
	c := cgo.Handle(h).Value().(*nativeContext)
	if c.stateCb != nil {
		c.stateCb()
	}
}

//export goServerInfo
func goServerInfo(h C.uintptr_t, i *C.pa_server_info) {
	cb := complete(h).(func(*pulse.ServerInfo))

	if i == nil {
		cb(nil)

		return
	}

	cb(&pulse.ServerInfo{
		UserName:          C.GoString(i.user_name),
		HostName:          C.GoString(i.host_name),
		ServerVersion:     C.GoString(i.server_version),
		ServerName:        C.GoString(i.server_name),
		SampleSpec:        sampleSpec(i.sample_spec),
		DefaultSinkName:   C.GoString(i.default_sink_name),
		DefaultSourceName: C.GoString(i.default_source_name),
		Cookie:            uint32(i.cookie),
	})
}

// listItem delivers one entry of a list request. A negative eol reports a failure.
func listItem[T any](h C.uintptr_t, eol C.int, item func() *T) {
	if eol == 0 {
		peek(h).(func(*T, bool, error))(item(), false, nil)

		return
	}

	r := cgo.Handle(h).Value().(*request)
	var err error
	if eol < 0 {
		err = r.c.errno()
	}

	complete(h).(func(*T, bool, error))(nil, true, err)
}

//export goSinkInfo
func goSinkInfo(h C.uintptr_t, i *C.pa_sink_info, eol C.int) {
	listItem(h, eol, func() *pulse.DeviceInfo {
		return &pulse.DeviceInfo{
			Name:        C.GoString(i.name),
			Index:       uint32(i.index),
			Description: C.GoString(i.description),
			SampleSpec:  sampleSpec(i.sample_spec),
			Mute:        i.mute != 0,
			Volume:      volumes(&i.volume),
			Latency:     uint64(i.latency),
			Driver:      C.GoString(i.driver),
		}
	})
}

//export goSourceInfo
func goSourceInfo(h C.uintptr_t, i *C.pa_source_info, eol C.int) {
	listItem(h, eol, func() *pulse.DeviceInfo {
		return &pulse.DeviceInfo{
			Name:        C.GoString(i.name),
			Index:       uint32(i.index),
			Description: C.GoString(i.description),
			SampleSpec:  sampleSpec(i.sample_spec),
			Mute:        i.mute != 0,
			Volume:      volumes(&i.volume),
			Latency:     uint64(i.latency),
			Driver:      C.GoString(i.driver),
		}
	})
}

//export goModuleInfo
func goModuleInfo(h C.uintptr_t, i *C.pa_module_info, eol C.int) {
	listItem(h, eol, func() *pulse.ModuleInfo {
		return &pulse.ModuleInfo{
			Name:     C.GoString(i.name),
			Index:    uint32(i.index),
			Argument: C.GoString(i.argument),
			NUsed:    uint32(i.n_used),
		}
	})
}

//export goSuccess
func goSuccess(h C.uintptr_t, success C.int) {
	if cb := complete(h).(func(bool)); cb != nil {
		cb(success != 0)
	}
}

//export goIndex
func goIndex(h C.uintptr_t, idx C.uint32_t) {
	if cb := complete(h).(func(uint32)); cb != nil {
		cb(uint32(idx))
	}
}
