// Package pulsetest provides a simulated sound daemon implementing pulse.Library.
//
// Every callback the daemon makes is scheduled through the pulse.MainloopAPI the context
// was created with, so tests exercise the main loop bridge as well as the state machines.
// Nothing happens until the loop is iterated.
package pulsetest

import (
	"strings"
	"time"

	"github.com/gen2brain/pulse"
)

// Daemon holds the simulated server state shared by all contexts created from it.
type Daemon struct {
	Server  pulse.ServerInfo
	Sinks   []pulse.DeviceInfo
	Sources []pulse.DeviceInfo
	Modules []pulse.ModuleInfo

	// RefuseConnections makes every connection attempt fail with PA_ERR_CONNECTIONREFUSED.
	RefuseConnections bool
	// FailContexts makes NewContext fail.
	FailContexts bool
	// FailStreams makes NewStream fail.
	FailStreams bool
	// FailStreamConnect makes stream connections end in PA_STREAM_FAILED with PA_ERR_NOENTITY.
	FailStreamConnect bool

	// Latency is reported by every ready stream, in microseconds.
	Latency         uint64
	NegativeLatency bool

	MuteCalls   []MuteCall
	VolumeCalls []VolumeCall

	contexts   []*Context
	nextModule uint32
}

// MuteCall records a SetMute request as received by the daemon.
type MuteCall struct {
	Kind   pulse.InfoKind
	Target pulse.Target
	Mute   bool
}

// VolumeCall records a SetVolume request as received by the daemon.
type VolumeCall struct {
	Kind    pulse.InfoKind
	Target  pulse.Target
	Volumes pulse.ChannelVolumes
}

// NewDaemon returns a daemon with two sinks, two sources and two modules.
func NewDaemon() *Daemon {
	spec := pulse.SampleSpec{Format: pulse.PA_SAMPLE_S16LE, Rate: 44100, Channels: 2}
	norm := pulse.ChannelVolumes{pulse.PA_VOLUME_NORM, pulse.PA_VOLUME_NORM}

	return &Daemon{
		Server: pulse.ServerInfo{
			UserName:          "pulse",
			HostName:          "localhost",
			ServerVersion:     "16.1",
			ServerName:        "pulsetest",
			SampleSpec:        spec,
			DefaultSinkName:   "sink0",
			DefaultSourceName: "source0",
			Cookie:            0x4c5d6e7f,
		},
		Sinks: []pulse.DeviceInfo{
			{Name: "sink0", Index: 0, Description: "Null Output", SampleSpec: spec, Volume: norm, Latency: 20000, Driver: "module-null-sink.c"},
			{Name: "sink1", Index: 1, Description: "Second Output", SampleSpec: spec, Volume: norm, Latency: 20000, Driver: "module-null-sink.c"},
		},
		Sources: []pulse.DeviceInfo{
			{Name: "source0", Index: 0, Description: "Null Input", SampleSpec: spec, Volume: norm, Latency: 10000, Driver: "module-null-source.c"},
			{Name: "sink0.monitor", Index: 1, Description: "Monitor of Null Output", SampleSpec: spec, Volume: norm, Driver: "module-null-sink.c"},
		},
		Modules: []pulse.ModuleInfo{
			{Name: "module-native-protocol-unix", Index: 0, NUsed: 0xffffffff},
			{Name: "module-null-sink", Index: 1, Argument: "sink_name=sink0", NUsed: 0xffffffff},
		},
		Latency:    25000,
		nextModule: 2,
	}
}

// NewContext implements pulse.Library.
func (d *Daemon) NewContext(api pulse.MainloopAPI, name string, props pulse.Proplist) (pulse.NativeContext, error) {
	if d.FailContexts {
		return nil, pulse.PA_ERR_INTERNAL
	}

	c := &Context{
		d:     d,
		api:   api,
		Name:  name,
		Props: props,
	}
	d.contexts = append(d.contexts, c)

	return c, nil
}

// Contexts returns every context created so far.
func (d *Daemon) Contexts() []*Context {
	return d.contexts
}

// Streams returns every stream created so far.
func (d *Daemon) Streams() []*Stream {
	var streams []*Stream
	for _, c := range d.contexts {
		streams = append(streams, c.streams...)
	}

	return streams
}

func (d *Daemon) device(kind pulse.InfoKind, target pulse.Target) *pulse.DeviceInfo {
	list := d.Sinks
	if kind == pulse.INFO_SOURCE_LIST {
		list = d.Sources
	}

	for i := range list {
		if name, ok := target.Name(); ok && list[i].Name == name {
			return &list[i]
		}
		if index, ok := target.Index(); ok && list[i].Index == index {
			return &list[i]
		}
	}

	return nil
}

// Context is a simulated connection.
type Context struct {
	d   *Daemon
	api pulse.MainloopAPI

	Name   string
	Props  pulse.Proplist
	Server string
	Flags  pulse.ContextFlags

	// Released is set once the client freed the context.
	Released    bool
	Disconnects int

	state   pulse.ContextState
	errno   pulse.Error
	stateCb func()
	gen     int
	streams []*Stream
}

// schedule runs fn on the next loop iteration through a one-shot deferred event.
func (c *Context) schedule(fn func()) {
	c.api.DeferNew(func(e pulse.DeferEvent) {
		e.Free()
		fn()
	})
}

// after runs fn once the wall-clock delay has passed, through a time event.
func (c *Context) after(delay time.Duration, fn func()) {
	c.api.TimeNew(time.Now().Add(delay), func(e pulse.TimeEvent, _ time.Time) {
		e.Free()
		fn()
	})
}

// sequence runs each step on its own loop iteration for as long as the connection generation is unchanged.
func (c *Context) sequence(steps ...func()) {
	gen := c.gen

	var next func(i int)
	next = func(i int) {
		if i == len(steps) {
			return
		}

		c.schedule(func() {
			if !c.alive(gen) {
				return
			}

			steps[i]()
			next(i + 1)
		})
	}

	next(0)
}

func (c *Context) alive(gen int) bool {
	return !c.Released && c.gen == gen
}

func (c *Context) setState(state pulse.ContextState) {
	c.state = state
	if c.stateCb != nil {
		c.stateCb()
	}
}

func (c *Context) ready() error {
	if c.Released || c.state != pulse.PA_CONTEXT_READY {
		return pulse.PA_ERR_BADSTATE
	}

	return nil
}

// Streams returns the streams created on the context.
func (c *Context) Streams() []*Stream {
	return c.streams
}

func (c *Context) SetStateCallback(cb func()) {
	c.stateCb = cb
}

func (c *Context) State() pulse.ContextState {
	return c.state
}

func (c *Context) Errno() pulse.Error {
	return c.errno
}

func (c *Context) Connect(server string, flags pulse.ContextFlags) error {
	if c.Released || c.state != pulse.PA_CONTEXT_UNCONNECTED {
		return pulse.PA_ERR_BADSTATE
	}

	if strings.HasPrefix(server, "invalid:") {
		return pulse.PA_ERR_INVALIDSERVER
	}

	c.Server = server
	c.Flags = flags

	gen := c.gen
	c.after(0, func() {
		if !c.alive(gen) {
			return
		}

		c.setState(pulse.PA_CONTEXT_CONNECTING)

		if c.d.RefuseConnections {
			c.sequence(func() {
				c.errno = pulse.PA_ERR_CONNECTIONREFUSED
				c.setState(pulse.PA_CONTEXT_FAILED)
			})

			return
		}

		c.sequence(
			func() { c.setState(pulse.PA_CONTEXT_AUTHORIZING) },
			func() { c.setState(pulse.PA_CONTEXT_SETTING_NAME) },
			func() { c.setState(pulse.PA_CONTEXT_READY) },
		)
	})

	return nil
}

func (c *Context) Disconnect() {
	if c.Released || !c.state.IsGood() {
		return
	}

	c.gen++
	c.Disconnects++
	c.state = pulse.PA_CONTEXT_TERMINATED

	for _, s := range c.streams {
		if s.state.IsGood() {
			s.terminate(pulse.PA_STREAM_TERMINATED)
		}
	}

	gen := c.gen
	c.schedule(func() {
		if c.alive(gen) && c.stateCb != nil {
			c.stateCb()
		}
	})
}

func (c *Context) Unref() {
	c.Released = true
	c.stateCb = nil
}

func (c *Context) GetServerInfo(cb func(info *pulse.ServerInfo)) error {
	if err := c.ready(); err != nil {
		return err
	}

	info := c.d.Server
	c.sequence(func() { cb(&info) })

	return nil
}

func (c *Context) deviceList(devices []pulse.DeviceInfo, cb func(*pulse.DeviceInfo, bool, error)) error {
	if err := c.ready(); err != nil {
		return err
	}

	items := append([]pulse.DeviceInfo(nil), devices...)

	steps := make([]func(), 0, len(items)+1)
	for i := range items {
		steps = append(steps, func() { cb(&items[i], false, nil) })
	}
	steps = append(steps, func() { cb(nil, true, nil) })

	c.sequence(steps...)

	return nil
}

func (c *Context) GetSinkInfoList(cb func(info *pulse.DeviceInfo, eol bool, err error)) error {
	return c.deviceList(c.d.Sinks, cb)
}

func (c *Context) GetSourceInfoList(cb func(info *pulse.DeviceInfo, eol bool, err error)) error {
	return c.deviceList(c.d.Sources, cb)
}

func (c *Context) GetModuleInfoList(cb func(info *pulse.ModuleInfo, eol bool, err error)) error {
	if err := c.ready(); err != nil {
		return err
	}

	items := append([]pulse.ModuleInfo(nil), c.d.Modules...)

	steps := make([]func(), 0, len(items)+1)
	for i := range items {
		steps = append(steps, func() { cb(&items[i], false, nil) })
	}
	steps = append(steps, func() { cb(nil, true, nil) })

	c.sequence(steps...)

	return nil
}

func (c *Context) SetMute(kind pulse.InfoKind, target pulse.Target, mute bool, cb func(success bool)) error {
	if err := c.ready(); err != nil {
		return err
	}

	c.d.MuteCalls = append(c.d.MuteCalls, MuteCall{Kind: kind, Target: target, Mute: mute})

	c.sequence(func() {
		dev := c.d.device(kind, target)
		if dev == nil {
			c.errno = pulse.PA_ERR_NOENTITY
			cb(false)

			return
		}

		dev.Mute = mute
		cb(true)
	})

	return nil
}

func (c *Context) SetVolume(kind pulse.InfoKind, target pulse.Target, volumes pulse.ChannelVolumes, cb func(success bool)) error {
	if err := c.ready(); err != nil {
		return err
	}

	if len(volumes) == 0 || len(volumes) > pulse.PA_CHANNELS_MAX {
		return pulse.PA_ERR_INVALID
	}

	vols := append(pulse.ChannelVolumes(nil), volumes...)
	c.d.VolumeCalls = append(c.d.VolumeCalls, VolumeCall{Kind: kind, Target: target, Volumes: vols})

	c.sequence(func() {
		dev := c.d.device(kind, target)
		if dev == nil {
			c.errno = pulse.PA_ERR_NOENTITY
			cb(false)

			return
		}

		dev.Volume = vols
		cb(true)
	})

	return nil
}

func (c *Context) LoadModule(name, argument string, cb func(index uint32)) error {
	if err := c.ready(); err != nil {
		return err
	}

	c.sequence(func() {
		if !strings.HasPrefix(name, "module-") {
			c.errno = pulse.PA_ERR_MODINITFAILED
			cb(pulse.PA_INVALID_INDEX)

			return
		}

		index := c.d.nextModule
		c.d.nextModule++
		c.d.Modules = append(c.d.Modules, pulse.ModuleInfo{Name: name, Index: index, Argument: argument})
		cb(index)
	})

	return nil
}

func (c *Context) UnloadModule(index uint32, cb func(success bool)) error {
	if err := c.ready(); err != nil {
		return err
	}

	c.sequence(func() {
		for i, m := range c.d.Modules {
			if m.Index == index {
				c.d.Modules = append(c.d.Modules[:i], c.d.Modules[i+1:]...)
				cb(true)

				return
			}
		}

		c.errno = pulse.PA_ERR_NOENTITY
		cb(false)
	})

	return nil
}

func (c *Context) NewStream(name string, spec pulse.SampleSpec, props pulse.Proplist) (pulse.NativeStream, error) {
	if c.Released {
		return nil, pulse.PA_ERR_BADSTATE
	}

	if c.d.FailStreams || !spec.Valid() {
		return nil, pulse.PA_ERR_INVALID
	}

	s := &Stream{
		c:     c,
		Name:  name,
		Spec:  spec,
		Props: props,
	}
	c.streams = append(c.streams, s)

	return s, nil
}
