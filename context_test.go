package pulse_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pulse"
)

type stateRecord struct {
	state pulse.ContextState
	err   error
}

func TestContextConnect(t *testing.T) {
	h := newHarness(t)

	var states []stateRecord
	ctx, err := pulse.NewContext(h.daemon, h.api, "", pulse.Proplist{"application.id": "org.example.test"}, func(state pulse.ContextState, err error) {
		states = append(states, stateRecord{state, err})
	})
	require.NoError(t, err)
	defer ctx.Close()

	assert.Equal(t, pulse.DefaultContextName, ctx.Name())
	assert.Equal(t, pulse.PA_CONTEXT_UNCONNECTED, ctx.State())

	require.NoError(t, ctx.Connect("", pulse.PA_CONTEXT_NOAUTOSPAWN))
	assert.Empty(t, states, "no notification before the loop runs")

	h.runUntil(func() bool { return ctx.State() == pulse.PA_CONTEXT_READY })

	assert.Equal(t, []stateRecord{
		{pulse.PA_CONTEXT_CONNECTING, nil},
		{pulse.PA_CONTEXT_AUTHORIZING, nil},
		{pulse.PA_CONTEXT_SETTING_NAME, nil},
		{pulse.PA_CONTEXT_READY, nil},
	}, states)

	native := h.daemon.Contexts()[0]
	assert.Equal(t, pulse.DefaultContextName, native.Name)
	assert.Equal(t, "org.example.test", native.Props["application.id"])
	assert.Equal(t, pulse.PA_CONTEXT_NOAUTOSPAWN, native.Flags)
}

func TestContextConnectRefused(t *testing.T) {
	h := newHarness(t)
	h.daemon.RefuseConnections = true

	var states []stateRecord
	ctx, err := pulse.NewContext(h.daemon, h.api, "refused", nil, func(state pulse.ContextState, err error) {
		states = append(states, stateRecord{state, err})
	})
	require.NoError(t, err)
	defer ctx.Close()

	require.NoError(t, ctx.Connect("", pulse.PA_CONTEXT_NOFLAGS))
	h.runUntil(func() bool { return ctx.State() == pulse.PA_CONTEXT_FAILED })

	require.Len(t, states, 2)
	assert.Equal(t, pulse.PA_CONTEXT_CONNECTING, states[0].state)
	assert.NoError(t, states[0].err)
	assert.Equal(t, pulse.PA_CONTEXT_FAILED, states[1].state)
	require.Error(t, states[1].err)
	assert.ErrorIs(t, states[1].err, pulse.PA_ERR_CONNECTIONREFUSED)
	assert.Contains(t, states[1].err.Error(), "Connection refused")
	assert.Equal(t, pulse.PA_ERR_CONNECTIONREFUSED, ctx.Errno())
}

func TestContextConnectSyncError(t *testing.T) {
	h := newHarness(t)

	ctx, err := pulse.NewContext(h.daemon, h.api, "test", nil, nil)
	require.NoError(t, err)
	defer ctx.Close()

	err = ctx.Connect("invalid:server", pulse.PA_CONTEXT_NOFLAGS)
	require.Error(t, err)
	assert.ErrorIs(t, err, pulse.PA_ERR_INVALIDSERVER)

	var opErr *pulse.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "connect", opErr.Op)
}

func TestContextInvalidProperties(t *testing.T) {
	h := newHarness(t)

	for _, props := range []pulse.Proplist{
		{"": "value"},
		{"bad\nkey": "value"},
		{"media.name": "\xff\xfe"},
		{"media.name": "a\x00b"},
	} {
		_, err := pulse.NewContext(h.daemon, h.api, "test", props, nil)
		assert.ErrorIs(t, err, pulse.ErrInvalidProperty)
	}

	assert.Empty(t, h.daemon.Contexts(), "the daemon must not be contacted")
}

func TestContextCreateFailure(t *testing.T) {
	h := newHarness(t)
	h.daemon.FailContexts = true

	_, err := pulse.NewContext(h.daemon, h.api, "test", nil, nil)
	assert.ErrorIs(t, err, pulse.ErrCreateContext)

	_, err = pulse.NewContext(nil, h.api, "test", nil, nil)
	assert.ErrorIs(t, err, pulse.ErrInvalidArgument)
}

func TestContextDisconnectIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx, native := h.connect()
	defer ctx.Close()

	var states []pulse.ContextState
	ctx.SetStateListener(func(state pulse.ContextState, _ error) {
		states = append(states, state)
	})

	ctx.Disconnect()
	ctx.Disconnect()
	h.spin(5)
	ctx.Disconnect()
	h.spin(5)

	assert.Equal(t, []pulse.ContextState{pulse.PA_CONTEXT_TERMINATED}, states)
	assert.Equal(t, 1, native.Disconnects)
}

func TestContextServerInfo(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()

	var info *pulse.ServerInfo
	require.NoError(t, ctx.ServerInfo(func(i *pulse.ServerInfo, err error) {
		require.NoError(t, err)
		info = i
	}))

	h.runUntil(func() bool { return info != nil })
	assert.Equal(t, "pulsetest", info.ServerName)
	assert.Equal(t, "sink0", info.DefaultSinkName)
	assert.Equal(t, "source0", info.DefaultSourceName)
	assert.Contains(t, info.String(), "Server Name: pulsetest")
	assert.Zero(t, ctx.Pending())
}

func TestContextListsInOrder(t *testing.T) {
	h := newHarness(t)
	h.daemon.Sinks = append(h.daemon.Sinks, pulse.DeviceInfo{Name: "sink2", Index: 7})
	ctx, _ := h.connect()
	defer ctx.Close()

	var sinks, sources []pulse.DeviceInfo
	var modules []pulse.ModuleInfo
	calls := 0

	require.NoError(t, ctx.Info(pulse.INFO_SINK_LIST, func(v any, err error) {
		require.NoError(t, err)
		sinks = v.([]pulse.DeviceInfo)
		calls++
	}))
	require.NoError(t, ctx.Sources(func(list []pulse.DeviceInfo, err error) {
		require.NoError(t, err)
		sources = list
		calls++
	}))
	require.NoError(t, ctx.Modules(func(list []pulse.ModuleInfo, err error) {
		require.NoError(t, err)
		modules = list
		calls++
	}))
	assert.Equal(t, 3, ctx.Pending())

	h.runUntil(func() bool { return calls == 3 })
	h.spin(3)
	assert.Equal(t, 3, calls, "each result is delivered exactly once")
	assert.Zero(t, ctx.Pending())

	names := func(list []pulse.DeviceInfo) []string {
		var out []string
		for _, d := range list {
			out = append(out, d.Name)
		}

		return out
	}

	assert.Equal(t, []string{"sink0", "sink1", "sink2"}, names(sinks))
	assert.Equal(t, []string{"source0", "sink0.monitor"}, names(sources))
	require.Len(t, modules, 2)
	assert.Equal(t, "module-null-sink", modules[1].Name)
	assert.Equal(t, "sink_name=sink0", modules[1].Argument)
}

func TestContextInfoArguments(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()

	assert.ErrorIs(t, ctx.Info(pulse.InfoKind(42), func(any, error) {}), pulse.ErrInvalidArgument)
	assert.ErrorIs(t, ctx.Info(pulse.INFO_SERVER, nil), pulse.ErrInvalidArgument)
	assert.ErrorIs(t, ctx.Sinks(nil), pulse.ErrInvalidArgument)
	assert.Zero(t, ctx.Pending())
}

func TestContextInfoBeforeReady(t *testing.T) {
	h := newHarness(t)

	ctx, err := pulse.NewContext(h.daemon, h.api, "test", nil, nil)
	require.NoError(t, err)
	defer ctx.Close()

	err = ctx.Info(pulse.INFO_SINK_LIST, func(any, error) { t.Fatal("callback must not run") })
	assert.ErrorIs(t, err, pulse.PA_ERR_BADSTATE)
	assert.Zero(t, ctx.Pending())
}

func TestContextSetVolumeClamps(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()

	volumes := make(pulse.ChannelVolumes, 64)
	for i := range volumes {
		volumes[i] = pulse.PA_VOLUME_NORM / 2
	}

	done := false
	require.NoError(t, ctx.SetVolume(pulse.INFO_SINK_LIST, pulse.TargetName("sink1"), volumes, func(err error) {
		assert.NoError(t, err)
		done = true
	}))

	h.runUntil(func() bool { return done })
	require.Len(t, h.daemon.VolumeCalls, 1)
	assert.Len(t, h.daemon.VolumeCalls[0].Volumes, pulse.PA_CHANNELS_MAX)
	assert.Len(t, h.daemon.Sinks[1].Volume, pulse.PA_CHANNELS_MAX)
	assert.Len(t, volumes, 64, "the caller's slice is left alone")
}

func TestContextSetVolumeArguments(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()

	assert.ErrorIs(t, ctx.SetVolume(pulse.INFO_SERVER, pulse.TargetIndex(0), pulse.ChannelVolumes{1}, nil), pulse.ErrInvalidArgument)
	assert.ErrorIs(t, ctx.SetVolume(pulse.INFO_SINK_LIST, pulse.TargetIndex(0), nil, nil), pulse.ErrInvalidArgument)
	assert.ErrorIs(t, ctx.SetMute(pulse.INFO_MODULE_LIST, pulse.TargetIndex(0), true, nil), pulse.ErrInvalidArgument)
	assert.Empty(t, h.daemon.VolumeCalls)
	assert.Empty(t, h.daemon.MuteCalls)
}

func TestContextSetMute(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()

	var results []error
	record := func(err error) { results = append(results, err) }

	require.NoError(t, ctx.SetMute(pulse.INFO_SOURCE_LIST, pulse.TargetIndex(1), true, record))
	require.NoError(t, ctx.SetMute(pulse.INFO_SINK_LIST, pulse.TargetName("sink0"), true, record))
	require.NoError(t, ctx.SetMute(pulse.INFO_SINK_LIST, pulse.TargetName("missing"), true, record))

	h.runUntil(func() bool { return len(results) == 3 })

	assert.NoError(t, results[0])
	assert.NoError(t, results[1])
	assert.ErrorIs(t, results[2], pulse.PA_ERR_NOENTITY)

	assert.True(t, h.daemon.Sources[1].Mute)
	assert.False(t, h.daemon.Sources[0].Mute)
	assert.True(t, h.daemon.Sinks[0].Mute)

	name, byName := h.daemon.MuteCalls[1].Target.Name()
	assert.True(t, byName)
	assert.Equal(t, "sink0", name)

	_, byName = h.daemon.MuteCalls[0].Target.Name()
	assert.False(t, byName)
}

func TestContextModules(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()

	index := uint32(0)
	loaded := false
	require.NoError(t, ctx.LoadModule("module-null-sink", "sink_name=test", func(idx uint32, err error) {
		require.NoError(t, err)
		index = idx
		loaded = true
	}))
	h.runUntil(func() bool { return loaded })
	assert.Equal(t, uint32(2), index)
	assert.Equal(t, "sink_name=test", h.daemon.Modules[2].Argument)

	var failed error
	require.NoError(t, ctx.LoadModule("bogus", "", func(idx uint32, err error) {
		assert.Equal(t, pulse.PA_INVALID_INDEX, idx)
		failed = err
	}))
	h.runUntil(func() bool { return failed != nil })
	assert.ErrorIs(t, failed, pulse.PA_ERR_MODINITFAILED)

	var results []error
	require.NoError(t, ctx.UnloadModule(index, func(err error) { results = append(results, err) }))
	require.NoError(t, ctx.UnloadModule(99, func(err error) { results = append(results, err) }))
	h.runUntil(func() bool { return len(results) == 2 })

	assert.NoError(t, results[0])
	assert.ErrorIs(t, results[1], pulse.PA_ERR_NOENTITY)
	assert.Len(t, h.daemon.Modules, 2)

	assert.ErrorIs(t, ctx.LoadModule("", "", nil), pulse.ErrInvalidArgument)
}

func TestContextCloseAbandonsRequests(t *testing.T) {
	h := newHarness(t)
	ctx, native := h.connect()

	require.NoError(t, ctx.Info(pulse.INFO_SINK_LIST, func(any, error) {
		t.Fatal("callback of an abandoned request ran")
	}))

	require.NoError(t, ctx.Close())
	assert.True(t, native.Released)
	assert.Equal(t, 1, native.Disconnects)

	h.spin(10)
	assert.Zero(t, ctx.Pending())
	assert.Equal(t, pulse.PA_CONTEXT_TERMINATED, ctx.State())
	assert.ErrorIs(t, ctx.Connect("", pulse.PA_CONTEXT_NOFLAGS), pulse.ErrClosed)
	assert.ErrorIs(t, ctx.Info(pulse.INFO_SERVER, func(any, error) {}), pulse.ErrClosed)
	assert.NoError(t, ctx.Close())
}

func TestContextNil(t *testing.T) {
	var ctx *pulse.Context

	assert.Equal(t, pulse.PA_CONTEXT_TERMINATED, ctx.State())
	assert.Equal(t, pulse.PA_OK, ctx.Errno())
	assert.ErrorIs(t, ctx.Connect("", pulse.PA_CONTEXT_NOFLAGS), pulse.ErrInvalidArgument)
	assert.NoError(t, ctx.Close())
	assert.Zero(t, ctx.Pending())
	ctx.Disconnect()
}
