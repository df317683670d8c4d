package pulse

import (
	"fmt"
)

// ContextStateListener is notified of every context state change.
// err is set only when the state is PA_CONTEXT_FAILED.
type ContextStateListener func(state ContextState, err error)

// InfoCallback receives the result of Context.Info: a *ServerInfo, a []DeviceInfo or a []ModuleInfo.
type InfoCallback func(result any, err error)

// SuccessCallback receives the outcome of a daemon request.
type SuccessCallback func(err error)

// IndexCallback receives the index assigned by the daemon.
type IndexCallback func(index uint32, err error)

// Context is a connection to the sound daemon.
//
// A Context is not safe for concurrent use. All methods must be called from the goroutine
// running the event loop its MainloopAPI schedules on, and all callbacks are invoked there.
type Context struct {
	native   NativeContext
	name     string
	listener ContextStateListener
	ops      operations

	lastState    ContextState
	disconnected bool
	refs         int
	closed       bool
	released     bool
}

// NewContext creates a connection object named name and attaches props to it.
// The connection is not established until Connect is called.
func NewContext(lib Library, api MainloopAPI, name string, props Proplist, listener ContextStateListener) (*Context, error) {
	if lib == nil || api == nil {
		return nil, fmt.Errorf("%w: library and main loop are required", ErrInvalidArgument)
	}

	if err := props.Validate(); err != nil {
		return nil, err
	}

	if name == "" {
		name = DefaultContextName
	}

	native, err := lib.NewContext(api, name, props)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateContext, err)
	}

	c := &Context{
		native:   native,
		name:     name,
		listener: listener,
	}

	native.SetStateCallback(func() {
		c.dispatch(event{kind: eventStateChanged})
	})

	return c, nil
}

// Name returns the application name the context was created with.
func (c *Context) Name() string {
	return c.name
}

// SetStateListener replaces the state listener. A nil listener disables notifications.
func (c *Context) SetStateListener(listener ContextStateListener) {
	if c == nil {
		return
	}

	c.listener = listener
}

// State returns the current connection state.
func (c *Context) State() ContextState {
	if c == nil || c.released {
		return PA_CONTEXT_TERMINATED
	}

	return c.native.State()
}

// Errno returns the last error reported by the daemon for this connection.
func (c *Context) Errno() Error {
	if c == nil || c.released {
		return PA_OK
	}

	return c.native.Errno()
}

// Connect starts connecting to server, or to the default server when server is empty.
// Progress is reported to the state listener.
func (c *Context) Connect(server string, flags ContextFlags) error {
	if err := c.usable(); err != nil {
		return err
	}

	if err := c.native.Connect(server, flags); err != nil {
		return opError("connect", err)
	}

	c.disconnected = false

	return nil
}

// Disconnect closes the connection. Pending requests are abandoned without completion.
// Calling Disconnect more than once has no further effect.
func (c *Context) Disconnect() {
	if c == nil || c.released || c.disconnected {
		return
	}

	c.disconnected = true
	c.native.Disconnect()

	if n := c.ops.abandon(); n > 0 {
		log.Debugf("Context %q abandoned %d pending requests", c.name, n)
	}
}

// Close releases the context. The underlying connection is disconnected and freed
// once every Stream created on it has been closed.
func (c *Context) Close() error {
	if c == nil || c.closed {
		return nil
	}

	c.closed = true
	c.listener = nil
	c.ops.abandon()

	if c.refs == 0 {
		c.release()
	} else {
		log.Debugf("Context %q release deferred, %d streams remaining", c.name, c.refs)
	}

	return nil
}

func (c *Context) ref() {
	c.refs++
}

func (c *Context) unref() {
	c.refs--
	if c.refs == 0 && c.closed {
		c.release()
	}
}

func (c *Context) release() {
	if c.released {
		return
	}

	c.Disconnect()
	c.released = true
	c.native.Unref()

	log.Debugf("Context %q released", c.name)
}

func (c *Context) usable() error {
	if c == nil {
		return fmt.Errorf("%w: nil context", ErrInvalidArgument)
	}

	if c.closed {
		return ErrClosed
	}

	return nil
}

func (c *Context) dispatch(ev event) {
	if c.released {
		return
	}

	switch ev.kind {
	case eventStateChanged:
		c.stateChanged()
	case eventListItem:
		if op := c.ops.get(ev.op); op != nil {
			op.items = append(op.items, ev.item)
		}
	case eventListEnd, eventSingleResult, eventIndexResult, eventSuccess:
		op := c.ops.take(ev.op)
		if op == nil {
			log.Tracef("Dropping %s event for abandoned request %d", ev.kind, ev.op)

			return
		}

		op.complete(op, ev)
	default:
		log.Errorf("Context received unexpected %s event", ev.kind)
	}
}

func (c *Context) stateChanged() {
	state := c.native.State()

	terminal := state == PA_CONTEXT_FAILED || state == PA_CONTEXT_TERMINATED
	if terminal && state == c.lastState {
		return
	}
	c.lastState = state

	var err error
	if state == PA_CONTEXT_FAILED {
		err = opError("connection", c.native.Errno())
	}

	log.Debugf("Context %q state %s", c.name, state)

	if c.listener != nil {
		c.listener(state, err)
	}
}

// Info queries the daemon. The result passed to cb depends on kind:
// INFO_SERVER yields *ServerInfo, INFO_SINK_LIST and INFO_SOURCE_LIST yield []DeviceInfo
// and INFO_MODULE_LIST yields []ModuleInfo, in the order the daemon reported them.
func (c *Context) Info(kind InfoKind, cb InfoCallback) error {
	if err := c.usable(); err != nil {
		return err
	}

	if cb == nil {
		return fmt.Errorf("%w: callback is required", ErrInvalidArgument)
	}

	switch kind {
	case INFO_SERVER:
		return c.serverInfo(cb)
	case INFO_SINK_LIST:
		return c.deviceList("get sink info list", c.native.GetSinkInfoList, cb)
	case INFO_SOURCE_LIST:
		return c.deviceList("get source info list", c.native.GetSourceInfoList, cb)
	case INFO_MODULE_LIST:
		return c.moduleList(cb)
	}

	return fmt.Errorf("%w: unknown info kind %d", ErrInvalidArgument, kind)
}

func (c *Context) serverInfo(cb InfoCallback) error {
	op := c.ops.add("get server info", func(op *operation, ev event) {
		info, _ := ev.item.(*ServerInfo)
		if info == nil {
			cb(nil, opError(op.name, c.native.Errno()))

			return
		}

		cb(info, nil)
	})

	err := c.native.GetServerInfo(func(info *ServerInfo) {
		ev := event{kind: eventSingleResult, op: op.id}
		if info != nil {
			v := *info
			ev.item = &v
		}

		c.dispatch(ev)
	})
	if err != nil {
		c.ops.remove(op.id)

		return opError(op.name, err)
	}

	return nil
}

func (c *Context) deviceList(name string, request func(func(*DeviceInfo, bool, error)) error, cb InfoCallback) error {
	op := c.ops.add(name, func(op *operation, ev event) {
		devices := make([]DeviceInfo, 0, len(op.items))
		for _, item := range op.items {
			devices = append(devices, *item.(*DeviceInfo))
		}

		cb(devices, opError(op.name, ev.err))
	})

	err := request(func(info *DeviceInfo, eol bool, err error) {
		if eol || err != nil {
			c.dispatch(event{kind: eventListEnd, op: op.id, err: err})

			return
		}

		v := *info
		v.Volume = append(ChannelVolumes(nil), info.Volume...)
		c.dispatch(event{kind: eventListItem, op: op.id, item: &v})
	})
	if err != nil {
		c.ops.remove(op.id)

		return opError(name, err)
	}

	return nil
}

func (c *Context) moduleList(cb InfoCallback) error {
	op := c.ops.add("get module info list", func(op *operation, ev event) {
		modules := make([]ModuleInfo, 0, len(op.items))
		for _, item := range op.items {
			modules = append(modules, *item.(*ModuleInfo))
		}

		cb(modules, opError(op.name, ev.err))
	})

	err := c.native.GetModuleInfoList(func(info *ModuleInfo, eol bool, err error) {
		if eol || err != nil {
			c.dispatch(event{kind: eventListEnd, op: op.id, err: err})

			return
		}

		v := *info
		c.dispatch(event{kind: eventListItem, op: op.id, item: &v})
	})
	if err != nil {
		c.ops.remove(op.id)

		return opError(op.name, err)
	}

	return nil
}

// ServerInfo is Info(INFO_SERVER) with a typed callback.
func (c *Context) ServerInfo(cb func(info *ServerInfo, err error)) error {
	if cb == nil {
		return fmt.Errorf("%w: callback is required", ErrInvalidArgument)
	}

	return c.Info(INFO_SERVER, func(v any, err error) {
		info, _ := v.(*ServerInfo)
		cb(info, err)
	})
}

// Sinks is Info(INFO_SINK_LIST) with a typed callback.
func (c *Context) Sinks(cb func(sinks []DeviceInfo, err error)) error {
	return c.devices(INFO_SINK_LIST, cb)
}

// Sources is Info(INFO_SOURCE_LIST) with a typed callback.
func (c *Context) Sources(cb func(sources []DeviceInfo, err error)) error {
	return c.devices(INFO_SOURCE_LIST, cb)
}

func (c *Context) devices(kind InfoKind, cb func([]DeviceInfo, error)) error {
	if cb == nil {
		return fmt.Errorf("%w: callback is required", ErrInvalidArgument)
	}

	return c.Info(kind, func(v any, err error) {
		devices, _ := v.([]DeviceInfo)
		cb(devices, err)
	})
}

// Modules is Info(INFO_MODULE_LIST) with a typed callback.
func (c *Context) Modules(cb func(modules []ModuleInfo, err error)) error {
	if cb == nil {
		return fmt.Errorf("%w: callback is required", ErrInvalidArgument)
	}

	return c.Info(INFO_MODULE_LIST, func(v any, err error) {
		modules, _ := v.([]ModuleInfo)
		cb(modules, err)
	})
}

func checkDeviceKind(kind InfoKind) error {
	if kind != INFO_SINK_LIST && kind != INFO_SOURCE_LIST {
		return fmt.Errorf("%w: kind must be INFO_SINK_LIST or INFO_SOURCE_LIST", ErrInvalidArgument)
	}

	return nil
}

func (c *Context) successOp(name string, cb SuccessCallback) *operation {
	return c.ops.add(name, func(op *operation, ev event) {
		if cb == nil {
			return
		}

		if !ev.ok {
			cb(opError(op.name, c.native.Errno()))

			return
		}

		cb(nil)
	})
}

func (c *Context) successFunc(op *operation) func(bool) {
	return func(ok bool) {
		c.dispatch(event{kind: eventSuccess, op: op.id, ok: ok})
	}
}

// SetMute mutes or unmutes the sink or source selected by kind and target.
func (c *Context) SetMute(kind InfoKind, target Target, mute bool, cb SuccessCallback) error {
	if err := c.usable(); err != nil {
		return err
	}

	if err := checkDeviceKind(kind); err != nil {
		return err
	}

	op := c.successOp("set mute", cb)
	if err := c.native.SetMute(kind, target, mute, c.successFunc(op)); err != nil {
		c.ops.remove(op.id)

		return opError(op.name, err)
	}

	return nil
}

// SetVolume sets per-channel volumes on the sink or source selected by kind and target.
// Entries beyond PA_CHANNELS_MAX are ignored.
func (c *Context) SetVolume(kind InfoKind, target Target, volumes ChannelVolumes, cb SuccessCallback) error {
	if err := c.usable(); err != nil {
		return err
	}

	if err := checkDeviceKind(kind); err != nil {
		return err
	}

	if len(volumes) == 0 {
		return fmt.Errorf("%w: at least one channel volume is required", ErrInvalidArgument)
	}

	vols := append(ChannelVolumes(nil), volumes.clamp()...)

	op := c.successOp("set volume", cb)
	if err := c.native.SetVolume(kind, target, vols, c.successFunc(op)); err != nil {
		c.ops.remove(op.id)

		return opError(op.name, err)
	}

	return nil
}

// LoadModule asks the daemon to load module name with argument and reports its index.
func (c *Context) LoadModule(name, argument string, cb IndexCallback) error {
	if err := c.usable(); err != nil {
		return err
	}

	if name == "" {
		return fmt.Errorf("%w: module name is required", ErrInvalidArgument)
	}

	op := c.ops.add("load module", func(op *operation, ev event) {
		if cb == nil {
			return
		}

		if ev.index == PA_INVALID_INDEX {
			cb(ev.index, opError(op.name, c.native.Errno()))

			return
		}

		cb(ev.index, nil)
	})

	err := c.native.LoadModule(name, argument, func(index uint32) {
		c.dispatch(event{kind: eventIndexResult, op: op.id, index: index})
	})
	if err != nil {
		c.ops.remove(op.id)

		return opError(op.name, err)
	}

	return nil
}

// UnloadModule asks the daemon to unload the module with the given index.
func (c *Context) UnloadModule(index uint32, cb SuccessCallback) error {
	if err := c.usable(); err != nil {
		return err
	}

	op := c.successOp("unload module", cb)
	if err := c.native.UnloadModule(index, c.successFunc(op)); err != nil {
		c.ops.remove(op.id)

		return opError(op.name, err)
	}

	return nil
}

// Pending returns the number of requests awaiting completion.
func (c *Context) Pending() int {
	if c == nil {
		return 0
	}

	return c.ops.len()
}
