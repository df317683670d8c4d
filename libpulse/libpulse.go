//go:build libpulse && cgo

package libpulse

/*
#cgo pkg-config: libpulse
#include <stdlib.h>
#include "glue.h"
*/
import "C"

import (
	"runtime/cgo"
	"time"
	"unsafe"

	"github.com/gen2brain/pulse"
)

type library struct{}

// Open returns the system client library.
func Open() (pulse.Library, error) {
	log.Debugf("Using libpulse %s", Version())

	return library{}, nil
}

// Version returns the version of the linked client library.
func Version() string {
	return C.GoString(C.pa_get_library_version())
}

// bridge connects one C pa_mainloop_api vtable to a pulse.MainloopAPI.
type bridge struct {
	api    pulse.MainloopAPI
	capi   *C.pa_mainloop_api
	handle cgo.Handle
}

func newBridge(api pulse.MainloopAPI) *bridge {
	b := &bridge{api: api}
	b.handle = cgo.NewHandle(b)
	b.capi = C.glue_api_new(C.uintptr_t(b.handle))

	return b
}

// free releases the vtable. The library must no longer reference it.
func (b *bridge) free() {
	C.glue_api_free(b.capi)
	b.capi = nil
	b.handle.Delete()
}

func bridgeOf(h C.uintptr_t) *bridge {
	return cgo.Handle(h).Value().(*bridge)
}

func (library) NewContext(api pulse.MainloopAPI, name string, props pulse.Proplist) (pulse.NativeContext, error) {
	b := newBridge(api)
	if b.capi == nil {
		b.handle.Delete()

		return nil, pulse.PA_ERR_INTERNAL
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	pl := newProplist(props)
	if pl != nil {
		defer C.pa_proplist_free(pl)
	}

	c := C.pa_context_new_with_proplist(b.capi, cname, pl)
	if c == nil {
		b.free()

		return nil, pulse.PA_ERR_INTERNAL
	}

	nc := &nativeContext{
		bridge:  b,
		c:       c,
		pending: make(map[cgo.Handle]struct{}),
	}
	nc.handle = cgo.NewHandle(nc)
	C.glue_context_set_state_callback(c, C.uintptr_t(nc.handle))

	return nc, nil
}

func newProplist(props pulse.Proplist) *C.pa_proplist {
	if len(props) == 0 {
		return nil
	}

	pl := C.pa_proplist_new()
	for k, v := range props {
		ck := C.CString(k)
		cv := C.CString(v)
		C.pa_proplist_sets(pl, ck, cv)
		C.free(unsafe.Pointer(ck))
		C.free(unsafe.Pointer(cv))
	}

	return pl
}

func deadline(usec C.int64_t) time.Time {
	if usec < 0 {
		return time.Time{}
	}

	return time.UnixMicro(int64(usec))
}

//export goIONew
func goIONew(b C.uintptr_t, e *C.pa_io_event, fd C.int, events C.int) C.uintptr_t {
	ev := bridgeOf(b).api.IONew(int(fd), pulse.IOEventFlags(events), func(_ pulse.IOEvent, fd int, flags pulse.IOEventFlags) {
		C.glue_io_dispatch(e, C.int(fd), C.int(flags))
	})

	return C.uintptr_t(cgo.NewHandle(ev))
}

//export goIOEnable
func goIOEnable(h C.uintptr_t, events C.int) {
	cgo.Handle(h).Value().(pulse.IOEvent).Enable(pulse.IOEventFlags(events))
}

//export goIOFree
func goIOFree(h C.uintptr_t) {
	handle := cgo.Handle(h)
	handle.Value().(pulse.IOEvent).Free()
	handle.Delete()
}

//export goTimeNew
func goTimeNew(b C.uintptr_t, e *C.pa_time_event, usec C.int64_t) C.uintptr_t {
	ev := bridgeOf(b).api.TimeNew(deadline(usec), func(pulse.TimeEvent, time.Time) {
		C.glue_time_dispatch(e)
	})

	return C.uintptr_t(cgo.NewHandle(ev))
}

//export goTimeRestart
func goTimeRestart(h C.uintptr_t, usec C.int64_t) {
	cgo.Handle(h).Value().(pulse.TimeEvent).Restart(deadline(usec))
}

//export goTimeFree
func goTimeFree(h C.uintptr_t) {
	handle := cgo.Handle(h)
	handle.Value().(pulse.TimeEvent).Free()
	handle.Delete()
}

//export goDeferNew
func goDeferNew(b C.uintptr_t, e *C.pa_defer_event) C.uintptr_t {
	ev := bridgeOf(b).api.DeferNew(func(pulse.DeferEvent) {
		C.glue_defer_dispatch(e)
	})

	return C.uintptr_t(cgo.NewHandle(ev))
}

//export goDeferEnable
func goDeferEnable(h C.uintptr_t, enable C.int) {
	cgo.Handle(h).Value().(pulse.DeferEvent).Enable(enable != 0)
}

//export goDeferFree
func goDeferFree(h C.uintptr_t) {
	handle := cgo.Handle(h)
	handle.Value().(pulse.DeferEvent).Free()
	handle.Delete()
}

//export goQuit
func goQuit(b C.uintptr_t, retval C.int) {
	bridgeOf(b).api.Quit(int(retval))
}
