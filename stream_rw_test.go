package pulse_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pulse"
)

// await runs fn on another goroutine and drives the loop until it returns.
func (h *harness) await(fn func() error) error {
	h.t.Helper()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	var err error
	h.runUntil(func() bool {
		select {
		case err = <-done:
			return true
		default:
			return false
		}
	})

	return err
}

type writeResult struct {
	n   int
	err error
}

func TestPlaybackWriter(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()
	s, native := h.stream(ctx, pulse.PA_STREAM_PLAYBACK, nil)
	defer s.Close()

	w := pulse.NewPlaybackWriter(s, h.api)
	data := bytes.Repeat([]byte{7}, 600)

	n, err := w.Write(nil)
	assert.NoError(t, err)
	assert.Zero(t, n)

	done := make(chan writeResult, 1)
	go func() {
		n, err := w.Write(data)
		done <- writeResult{n, err}
	}()

	h.runUntil(func() bool { return s.Pending() == 600 })

	native.Request(400)
	h.runUntil(func() bool { return s.Pending() == 200 })

	select {
	case <-done:
		t.Fatal("Write returned before all data was handed over")
	default:
	}

	native.Request(400)

	var res writeResult
	h.runUntil(func() bool {
		select {
		case res = <-done:
			return true
		default:
			return false
		}
	})

	require.NoError(t, res.err)
	assert.Equal(t, 600, res.n)
	assert.Equal(t, data, native.Written)
	assert.Equal(t, []int{400, 200}, native.WriteSizes)
}

func TestPlaybackWriterCork(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()
	s, native := h.stream(ctx, pulse.PA_STREAM_PLAYBACK, nil)
	defer s.Close()

	w := pulse.NewPlaybackWriter(s, h.api)

	require.NoError(t, h.await(w.Stop))
	assert.True(t, native.Corked())

	n, err := w.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, n, "writes while stopped are dropped")
	assert.Zero(t, s.Pending())

	require.NoError(t, h.await(w.Play))
	assert.False(t, native.Corked())

	done := make(chan writeResult, 1)
	go func() {
		n, err := w.Write([]byte{4, 5})
		done <- writeResult{n, err}
	}()

	h.runUntil(func() bool { return s.Pending() == 2 })
	native.Request(2)

	var res writeResult
	h.runUntil(func() bool {
		select {
		case res = <-done:
			return true
		default:
			return false
		}
	})

	require.NoError(t, res.err)
	assert.Equal(t, []byte{4, 5}, native.Written)
}

func TestPlaybackWriterStopDiscards(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()
	s, native := h.stream(ctx, pulse.PA_STREAM_PLAYBACK, nil)
	defer s.Close()

	w := pulse.NewPlaybackWriter(s, h.api)

	done := make(chan writeResult, 1)
	go func() {
		n, err := w.Write(make([]byte, 300))
		done <- writeResult{n, err}
	}()

	h.runUntil(func() bool { return s.Pending() == 300 })

	require.NoError(t, h.await(w.Stop))
	assert.True(t, native.Corked())
	assert.Equal(t, 1, native.Flushes)
	assert.Zero(t, s.Pending())

	var res writeResult
	h.runUntil(func() bool {
		select {
		case res = <-done:
			return true
		default:
			return false
		}
	})

	assert.NoError(t, res.err)
	assert.Empty(t, native.Written)
}

func TestPlaybackWriterDiscard(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()
	s, native := h.stream(ctx, pulse.PA_STREAM_PLAYBACK, nil)
	defer s.Close()

	w := pulse.NewPlaybackWriter(s, h.api)

	done := make(chan writeResult, 1)
	go func() {
		n, err := w.Write(make([]byte, 600))
		done <- writeResult{n, err}
	}()

	h.runUntil(func() bool { return s.Pending() == 600 })

	require.NoError(t, h.await(w.Discard))
	assert.True(t, native.Corked())
	assert.Equal(t, 1, native.Flushes)
	assert.Zero(t, s.Pending())

	var res writeResult
	h.runUntil(func() bool {
		select {
		case res = <-done:
			return true
		default:
			return false
		}
	})

	assert.NoError(t, res.err)
	assert.Empty(t, native.Written)
}

func TestPlaybackWriterClose(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()
	s, native := h.stream(ctx, pulse.PA_STREAM_PLAYBACK, nil)
	defer s.Close()

	w := pulse.NewPlaybackWriter(s, h.api)

	require.NoError(t, h.await(w.Close))
	assert.Equal(t, 1, native.Drains)

	_, err := w.Write([]byte{1})
	assert.ErrorIs(t, err, pulse.ErrClosed)
	assert.ErrorIs(t, w.Play(), pulse.ErrClosed)
	assert.NoError(t, w.Close())
}

func TestRecordReader(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()
	s, native := h.stream(ctx, pulse.PA_STREAM_RECORD, nil)
	defer s.Close()

	r := pulse.NewRecordReader(s, h.loop, 2)

	require.NoError(t, h.await(r.Stop))
	assert.True(t, native.Corked())

	require.NoError(t, h.await(r.Play))
	assert.False(t, native.Corked())

	native.Push([]byte("one"))
	native.Push([]byte("two"))
	native.Push([]byte("three"))
	h.runUntil(func() bool { return native.Drops == 3 })

	assert.Equal(t, int64(1), r.Overruns(), "the third chunk does not fit the queue")

	buf := make([]byte, 6)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "onetwo", string(buf))

	require.NoError(t, r.Close())
	h.runUntil(func() bool { return native.Corked() })

	n, err := r.Read(buf)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	assert.ErrorIs(t, r.Play(), pulse.ErrClosed)
	assert.NoError(t, r.Close())
}

func TestRecordReaderPartialReads(t *testing.T) {
	h := newHarness(t)
	ctx, _ := h.connect()
	defer ctx.Close()
	s, native := h.stream(ctx, pulse.PA_STREAM_RECORD, nil)
	defer s.Close()

	r := pulse.NewRecordReader(s, h.api, 0)
	require.NoError(t, h.await(r.Play))

	native.Push([]byte("abcdef"))
	h.runUntil(func() bool { return native.Drops == 1 })

	small := make([]byte, 4)
	n, err := r.Read(small)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(small[:n]))

	n, err = r.Read(small)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(small[:n]))

	require.NoError(t, r.Close())
}
