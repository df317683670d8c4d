package main

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pulse"
)

// fakeDecoder serves samples from memory, a fixed number per call.
type fakeDecoder struct {
	samples  []int
	perCall  int
	bitDepth uint16
	float    bool
}

func (f *fakeDecoder) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	if len(f.samples) == 0 {
		return 0, io.EOF
	}

	n := copy(buf.Data[:min(len(buf.Data), f.perCall)], f.samples)
	f.samples = f.samples[n:]

	return n, nil
}

func (f *fakeDecoder) Duration() (time.Duration, error) { return 0, nil }
func (f *fakeDecoder) NumChans() uint16                 { return 1 }
func (f *fakeDecoder) SampleRate() uint32               { return 8000 }
func (f *fakeDecoder) BitDepth() uint16                 { return f.bitDepth }
func (f *fakeDecoder) IsFloat() bool                    { return f.float }

func TestDetermineFormat(t *testing.T) {
	tests := []struct {
		bitDepth uint16
		expected pulse.SampleFormat
	}{
		{8, pulse.PA_SAMPLE_U8},
		{16, pulse.PA_SAMPLE_S16LE},
		{24, pulse.PA_SAMPLE_S24_32LE},
		{32, pulse.PA_SAMPLE_S32LE},
	}

	for _, tt := range tests {
		format, err := determineFormat("", &fakeDecoder{bitDepth: tt.bitDepth})
		require.NoError(t, err)
		assert.Equal(t, tt.expected, format)
	}

	_, err := determineFormat("", &fakeDecoder{bitDepth: 12})
	assert.Error(t, err)

	_, err = determineFormat("", &fakeDecoder{bitDepth: 32, float: true})
	assert.Error(t, err)

	format, err := determineFormat("f32le", &fakeDecoder{bitDepth: 16})
	require.NoError(t, err)
	assert.Equal(t, pulse.PA_SAMPLE_FLOAT32LE, format)

	_, err = determineFormat("alaw", &fakeDecoder{bitDepth: 16})
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	out, err := convert([]int{32767, -32768, 1}, 16, pulse.PA_SAMPLE_S16LE)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0x7f, 0x00, 0x80, 0x01, 0x00}, out)

	out, err = convert([]int{-32768, 0, 32767}, 16, pulse.PA_SAMPLE_U8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 128, 255}, out)

	out, err = convert([]int{0, 255}, 8, pulse.PA_SAMPLE_S16LE)
	require.NoError(t, err)
	assert.Equal(t, int16(-32768), int16(binary.LittleEndian.Uint16(out)))
	assert.Equal(t, int16(127<<8), int16(binary.LittleEndian.Uint16(out[2:])))

	out, err = convert([]int{-1 << 15}, 16, pulse.PA_SAMPLE_S24_32LE)
	require.NoError(t, err)
	assert.Equal(t, int32(-1<<23), int32(binary.LittleEndian.Uint32(out)))

	out, err = convert([]int{1 << 14}, 16, pulse.PA_SAMPLE_FLOAT32LE)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(out)))

	_, err = convert([]int{0}, 16, pulse.PA_SAMPLE_ALAW)
	assert.Error(t, err)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 32767, clamp(40000, 16))
	assert.Equal(t, -32768, clamp(-40000, 16))
	assert.Equal(t, 5, clamp(5, 16))
}

func TestDecode(t *testing.T) {
	decoder := &fakeDecoder{samples: []int{1, 2, 3, 4, 5}, perCall: 2, bitDepth: 16}
	spec := pulse.SampleSpec{Format: pulse.PA_SAMPLE_S16LE, Rate: 8000, Channels: 1}

	chunks := make(chan []byte, 8)
	require.NoError(t, decode(context.Background(), decoder, spec, chunks))
	close(chunks)

	var sizes []int
	for chunk := range chunks {
		sizes = append(sizes, len(chunk))
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)
}

func TestDecodeCanceled(t *testing.T) {
	decoder := &fakeDecoder{samples: make([]int, 100), perCall: 10, bitDepth: 16}
	spec := pulse.SampleSpec{Format: pulse.PA_SAMPLE_S16LE, Rate: 8000, Channels: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := decode(ctx, decoder, spec, make(chan []byte))
	assert.ErrorIs(t, err, context.Canceled)
}
