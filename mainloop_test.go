package pulse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/gen2brain/pulse"
)

func pipe(t *testing.T) (r, w int) {
	t.Helper()

	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	t.Cleanup(func() {
		_ = unix.Close(p[0])
		_ = unix.Close(p[1])
	})

	return p[0], p[1]
}

func TestMainloopIOInput(t *testing.T) {
	h := newHarness(t)
	r, w := pipe(t)

	var gotFd int
	var got pulse.IOEventFlags
	e := h.api.IONew(r, pulse.PA_IO_EVENT_INPUT|pulse.PA_IO_EVENT_HANGUP|pulse.PA_IO_EVENT_ERROR, func(_ pulse.IOEvent, fd int, flags pulse.IOEventFlags) {
		gotFd = fd
		got = flags
	})
	defer e.Free()

	_, err := unix.Write(w, []byte{1})
	require.NoError(t, err)

	h.runUntil(func() bool { return got != 0 })
	assert.Equal(t, r, gotFd)
	assert.Equal(t, pulse.PA_IO_EVENT_INPUT, got)
}

func TestMainloopIOEnable(t *testing.T) {
	h := newHarness(t)
	_, w := pipe(t)

	calls := 0
	e := h.api.IONew(w, pulse.PA_IO_EVENT_NULL, func(_ pulse.IOEvent, _ int, flags pulse.IOEventFlags) {
		assert.Equal(t, pulse.PA_IO_EVENT_OUTPUT, flags)
		calls++
	})
	defer e.Free()

	h.spin(3)
	assert.Zero(t, calls)

	e.Enable(pulse.PA_IO_EVENT_OUTPUT)
	h.runUntil(func() bool { return calls > 0 })

	// Same mask again keeps the watch running.
	e.Enable(pulse.PA_IO_EVENT_OUTPUT)
	before := calls
	h.spin(1)
	assert.Greater(t, calls, before)

	e.Enable(pulse.PA_IO_EVENT_NULL)
	before = calls
	h.spin(3)
	assert.Equal(t, before, calls)
}

func TestMainloopIOHangup(t *testing.T) {
	h := newHarness(t)

	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	defer unix.Close(p[0])
	require.NoError(t, unix.Close(p[1]))

	var got pulse.IOEventFlags
	e := h.api.IONew(p[0], pulse.PA_IO_EVENT_INPUT|pulse.PA_IO_EVENT_HANGUP|pulse.PA_IO_EVENT_ERROR, func(_ pulse.IOEvent, _ int, flags pulse.IOEventFlags) {
		got = flags
	})

	h.runUntil(func() bool { return got != 0 })
	assert.Equal(t, pulse.PA_IO_EVENT_HANGUP|pulse.PA_IO_EVENT_ERROR, got)
	assert.Zero(t, got&pulse.PA_IO_EVENT_INPUT)
	e.Free()
}

func TestMainloopIOHangupNotRequested(t *testing.T) {
	h := newHarness(t)

	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	defer unix.Close(p[0])
	require.NoError(t, unix.Close(p[1]))

	calls := 0
	e := h.api.IONew(p[0], pulse.PA_IO_EVENT_INPUT, func(pulse.IOEvent, int, pulse.IOEventFlags) {
		calls++
	})
	defer e.Free()

	h.spin(3)
	assert.Zero(t, calls)
}

func TestMainloopIOFree(t *testing.T) {
	h := newHarness(t)
	r, w := pipe(t)

	calls := 0
	destroyed := 0
	e := h.api.IONew(r, pulse.PA_IO_EVENT_INPUT, func(pulse.IOEvent, int, pulse.IOEventFlags) {
		calls++
	})
	e.SetDestroy(func() { destroyed++ })
	e.Free()
	assert.Equal(t, 1, destroyed)

	_, err := unix.Write(w, []byte{1})
	require.NoError(t, err)

	h.spin(3)
	assert.Zero(t, calls)

	assert.Panics(t, func() { e.Enable(pulse.PA_IO_EVENT_INPUT) })
}

func TestMainloopTimeFiresOnce(t *testing.T) {
	h := newHarness(t)

	deadline := time.Now().Add(5 * time.Millisecond)

	var got []time.Time
	e := h.api.TimeNew(deadline, func(_ pulse.TimeEvent, tv time.Time) {
		got = append(got, tv)
	})

	h.runUntil(func() bool { return len(got) > 0 })
	assert.False(t, time.Now().Before(deadline))

	h.spin(3)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(deadline))

	e.Free()
}

func TestMainloopTimePastDeadline(t *testing.T) {
	h := newHarness(t)

	fired := false
	e := h.api.TimeNew(time.Now().Add(-time.Hour), func(pulse.TimeEvent, time.Time) {
		fired = true
	})
	defer e.Free()

	h.spin(1)
	assert.True(t, fired)
}

func TestMainloopFreeAfterLoopClose(t *testing.T) {
	h := newHarness(t)
	r, _ := pipe(t)

	destroyed := 0
	te := h.api.TimeNew(time.Now().Add(time.Hour), func(pulse.TimeEvent, time.Time) {})
	te.SetDestroy(func() { destroyed++ })
	ie := h.api.IONew(r, pulse.PA_IO_EVENT_INPUT, func(pulse.IOEvent, int, pulse.IOEventFlags) {})
	de := h.api.DeferNew(func(pulse.DeferEvent) {})

	require.NoError(t, h.loop.Close())

	assert.NotPanics(t, func() {
		te.Free()
		ie.Free()
		de.Free()
	})
	assert.Equal(t, 1, destroyed)
}

func TestMainloopTimeRestart(t *testing.T) {
	h := newHarness(t)

	var got []time.Time
	e := h.api.TimeNew(time.Now().Add(time.Hour), func(_ pulse.TimeEvent, tv time.Time) {
		got = append(got, tv)
	})
	defer e.Free()

	next := time.Now().Add(2 * time.Millisecond)
	e.Restart(next)
	h.runUntil(func() bool { return len(got) == 1 })
	assert.True(t, got[0].Equal(next))

	// Restart re-arms a timer that has already fired.
	again := time.Now()
	e.Restart(again)
	h.runUntil(func() bool { return len(got) == 2 })
	assert.True(t, got[1].Equal(again))

	e.Restart(time.Now())
	e.Restart(time.Time{})
	h.spin(3)
	assert.Len(t, got, 2)
}

func TestMainloopTimeZeroDeadline(t *testing.T) {
	h := newHarness(t)

	fired := false
	e := h.api.TimeNew(time.Time{}, func(pulse.TimeEvent, time.Time) {
		fired = true
	})

	h.spin(3)
	assert.False(t, fired)

	e.Restart(time.Now())
	h.runUntil(func() bool { return fired })

	destroyed := false
	e.SetDestroy(func() { destroyed = true })
	e.Free()
	assert.True(t, destroyed)
}

func TestMainloopDefer(t *testing.T) {
	h := newHarness(t)

	calls := 0
	e := h.api.DeferNew(func(pulse.DeferEvent) {
		calls++
	})

	h.spin(3)
	assert.Equal(t, 3, calls)

	// Enabling an enabled event does not register it twice.
	e.Enable(true)
	h.spin(1)
	assert.Equal(t, 4, calls)

	e.Enable(false)
	e.Enable(false)
	h.spin(3)
	assert.Equal(t, 4, calls)

	e.Enable(true)
	h.spin(1)
	assert.Equal(t, 5, calls)

	destroyed := 0
	e.SetDestroy(func() { destroyed++ })
	e.Free()
	assert.Equal(t, 1, destroyed)

	h.spin(2)
	assert.Equal(t, 5, calls)
}

func TestMainloopDeferFreeInCallback(t *testing.T) {
	h := newHarness(t)

	calls := 0
	h.api.DeferNew(func(e pulse.DeferEvent) {
		calls++
		e.Free()
	})

	h.spin(3)
	assert.Equal(t, 1, calls)
}

func TestMainloopQuit(t *testing.T) {
	h := newHarness(t)

	fired := false
	e := h.api.DeferNew(func(pulse.DeferEvent) { fired = true })
	defer e.Free()

	h.api.Quit(1)
	h.spin(1)
	assert.True(t, fired)
}
