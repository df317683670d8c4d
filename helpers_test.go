package pulse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pulse"
	"github.com/gen2brain/pulse/loop"
	"github.com/gen2brain/pulse/pulsetest"
)

// harness wires a loop, its bridge and a simulated daemon together.
type harness struct {
	t      *testing.T
	loop   *loop.Loop
	api    *pulse.Mainloop
	daemon *pulsetest.Daemon
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	l, err := loop.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	return &harness{
		t:      t,
		loop:   l,
		api:    pulse.NewMainloop(l),
		daemon: pulsetest.NewDaemon(),
	}
}

// runUntil iterates the loop until cond holds, failing the test after two seconds.
func (h *harness) runUntil(cond func() bool) {
	h.t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		require.True(h.t, time.Now().Before(deadline), "condition not met before deadline")
		require.NoError(h.t, h.loop.RunOnce(5*time.Millisecond))
	}
}

// spin runs n non-blocking loop iterations.
func (h *harness) spin(n int) {
	h.t.Helper()

	for i := 0; i < n; i++ {
		require.NoError(h.t, h.loop.RunOnce(0))
	}
}

// connect returns a ready context and its daemon-side counterpart.
func (h *harness) connect() (*pulse.Context, *pulsetest.Context) {
	h.t.Helper()

	ctx, err := pulse.NewContext(h.daemon, h.api, "test", nil, nil)
	require.NoError(h.t, err)
	require.NoError(h.t, ctx.Connect("", pulse.PA_CONTEXT_NOFLAGS))

	h.runUntil(func() bool { return ctx.State() == pulse.PA_CONTEXT_READY })

	contexts := h.daemon.Contexts()

	return ctx, contexts[len(contexts)-1]
}

// stream returns a ready stream connected in dir and its daemon-side counterpart.
func (h *harness) stream(ctx *pulse.Context, dir pulse.Direction, cfg *pulse.StreamConfig) (*pulse.Stream, *pulsetest.Stream) {
	h.t.Helper()

	s, err := pulse.NewStream(ctx, "test-stream", cfg, nil, nil)
	require.NoError(h.t, err)
	require.NoError(h.t, s.Connect("", dir, pulse.PA_STREAM_NOFLAGS))

	h.runUntil(func() bool { return s.State() == pulse.PA_STREAM_READY })

	streams := h.daemon.Streams()

	return s, streams[len(streams)-1]
}
