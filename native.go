package pulse

import "time"

// MainloopAPI is the abstract main loop the client library schedules all of its work on.
// It mirrors pa_mainloop_api. Implementations are not safe for concurrent use.
type MainloopAPI interface {
	// IONew watches fd for the conditions in events.
	IONew(fd int, events IOEventFlags, cb IOEventCallback) IOEvent
	// TimeNew arms a one-shot timer for the absolute wall-clock deadline. A zero deadline leaves it unarmed.
	TimeNew(deadline time.Time, cb TimeEventCallback) TimeEvent
	// DeferNew creates an enabled deferred event that runs once per loop iteration.
	DeferNew(cb DeferEventCallback) DeferEvent
	// Quit asks the loop to exit with retval.
	Quit(retval int)
}

// IOEventCallback receives the ready conditions of an I/O event.
type IOEventCallback func(e IOEvent, fd int, events IOEventFlags)

// TimeEventCallback receives the deadline the timer was armed with.
type TimeEventCallback func(e TimeEvent, deadline time.Time)

// DeferEventCallback is invoked on every loop iteration while the event is enabled.
type DeferEventCallback func(e DeferEvent)

// IOEvent is a descriptor watch created by MainloopAPI.IONew.
type IOEvent interface {
	Enable(events IOEventFlags)
	Free()
	SetDestroy(cb func())
}

// TimeEvent is a timer created by MainloopAPI.TimeNew.
type TimeEvent interface {
	Restart(deadline time.Time)
	Free()
	SetDestroy(cb func())
}

// DeferEvent is an idle callback created by MainloopAPI.DeferNew.
type DeferEvent interface {
	Enable(enable bool)
	Free()
	SetDestroy(cb func())
}

// Library creates native connection objects bound to a main loop.
type Library interface {
	NewContext(api MainloopAPI, name string, props Proplist) (NativeContext, error)
}

// NativeContext is the library's connection object (pa_context).
//
// Callbacks fire only from within main loop callbacks. After Disconnect no further
// callbacks for outstanding requests are made. Request methods return an error when
// the request cannot be issued, for example before the connection is ready.
type NativeContext interface {
	SetStateCallback(cb func())
	State() ContextState
	Errno() Error

	Connect(server string, flags ContextFlags) error
	Disconnect()
	Unref()

	GetServerInfo(cb func(info *ServerInfo)) error
	GetSinkInfoList(cb func(info *DeviceInfo, eol bool, err error)) error
	GetSourceInfoList(cb func(info *DeviceInfo, eol bool, err error)) error
	GetModuleInfoList(cb func(info *ModuleInfo, eol bool, err error)) error

	SetMute(kind InfoKind, target Target, mute bool, cb func(success bool)) error
	SetVolume(kind InfoKind, target Target, volumes ChannelVolumes, cb func(success bool)) error
	LoadModule(name, argument string, cb func(index uint32)) error
	UnloadModule(index uint32, cb func(success bool)) error

	NewStream(name string, spec SampleSpec, props Proplist) (NativeStream, error)
}

// NativeStream is the library's stream object (pa_stream).
type NativeStream interface {
	SetStateCallback(cb func())
	SetWriteCallback(cb func(nbytes int))
	SetReadCallback(cb func(nbytes int))
	SetUnderflowCallback(cb func())
	State() StreamState

	ConnectPlayback(device string, attr *BufferAttr, flags StreamFlags) error
	ConnectRecord(device string, attr *BufferAttr, flags StreamFlags) error
	ConnectUpload(length int) error
	Disconnect() error
	Unref()

	// Peek returns the next chunk of recorded data without consuming it.
	// A nil chunk with n == 0 means no data, a nil chunk with n > 0 is a hole that must be dropped.
	// The returned slice is only valid until Drop.
	Peek() (data []byte, n int, err error)
	Drop() error
	Write(data []byte) error
	WritableSize() int

	Cork(cork bool, cb func(success bool)) error
	IsCorked() bool
	Flush(cb func(success bool)) error
	Drain(cb func(success bool)) error
	Latency() (usec uint64, negative bool, err error)
}
