package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pulse"
)

var stereo = pulse.SampleSpec{Format: pulse.PA_SAMPLE_S16LE, Rate: 48000, Channels: 2}

func TestFragmentSize(t *testing.T) {
	assert.Equal(t, 3840, fragmentSize(stereo, 20*time.Millisecond))
	assert.Equal(t, 4, fragmentSize(stereo, 0), "at least one frame")

	odd := pulse.SampleSpec{Format: pulse.PA_SAMPLE_S24LE, Rate: 44100, Channels: 1}
	assert.Zero(t, fragmentSize(odd, 10*time.Millisecond)%3)
}

func TestFrameMessage(t *testing.T) {
	f := &frame{stream: uuid.New(), sequence: 42, spec: stereo, data: make([]byte, 16)}

	msg := f.message("pulse.relay")
	assert.Equal(t, "pulse.relay", msg.Subject)
	assert.Equal(t, "s16le", msg.Header.Get(headerFormat))

	parsed, err := parseFrame(msg)
	require.NoError(t, err)
	assert.Equal(t, f, parsed)
}

func TestParseFrameRejects(t *testing.T) {
	valid := func() *frame {
		return &frame{stream: uuid.New(), sequence: 1, spec: stereo, data: make([]byte, 8)}
	}

	msg := valid().message("s")
	msg.Header = nil
	_, err := parseFrame(msg)
	assert.Error(t, err, "no headers")

	msg = valid().message("s")
	msg.Header.Set(headerStream, "not-a-uuid")
	_, err = parseFrame(msg)
	assert.Error(t, err)

	msg = valid().message("s")
	msg.Header.Set(headerFormat, "s12le")
	_, err = parseFrame(msg)
	assert.ErrorIs(t, err, pulse.ErrInvalidArgument)

	msg = valid().message("s")
	msg.Header.Set(headerChannels, "0")
	_, err = parseFrame(msg)
	assert.Error(t, err)

	msg = valid().message("s")
	msg.Data = make([]byte, 6)
	_, err = parseFrame(msg)
	assert.Error(t, err, "partial frame")
}

func TestTracker(t *testing.T) {
	var tr tracker
	first, second := uuid.New(), uuid.New()

	ok, lost, switched := tr.accept(&frame{stream: first, sequence: 5})
	assert.True(t, ok)
	assert.Zero(t, lost)
	assert.True(t, switched)

	ok, lost, switched = tr.accept(&frame{stream: first, sequence: 6})
	assert.True(t, ok)
	assert.Zero(t, lost)
	assert.False(t, switched)

	ok, lost, _ = tr.accept(&frame{stream: first, sequence: 9})
	assert.True(t, ok)
	assert.Equal(t, uint64(2), lost)

	ok, _, _ = tr.accept(&frame{stream: first, sequence: 8})
	assert.False(t, ok, "late fragments are dropped")

	ok, lost, switched = tr.accept(&frame{stream: second, sequence: 0})
	assert.True(t, ok)
	assert.Zero(t, lost)
	assert.True(t, switched)
}
