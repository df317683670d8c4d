package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pulse"
)

func TestDetermineFormat(t *testing.T) {
	format, depth, err := determineFormat("S24LE")
	require.NoError(t, err)
	assert.Equal(t, pulse.PA_SAMPLE_S24LE, format)
	assert.Equal(t, 24, depth)

	_, _, err = determineFormat("float32le")
	assert.Error(t, err)

	_, _, err = determineFormat("s12")
	assert.Error(t, err)
}

func TestBytesToIntBuffer(t *testing.T) {
	tests := []struct {
		format   pulse.SampleFormat
		data     []byte
		expected []int
	}{
		{pulse.PA_SAMPLE_U8, []byte{0, 128, 255, 1}, []int{0, 128, 255, 1}},
		{pulse.PA_SAMPLE_S16LE, []byte{0xff, 0x7f, 0x00, 0x80}, []int{32767, -32768}},
		{pulse.PA_SAMPLE_S24LE, []byte{0xff, 0xff, 0x7f, 0x00, 0x00, 0x80}, []int{8388607, -8388608}},
		{pulse.PA_SAMPLE_S32LE, []byte{0xfe, 0xff, 0xff, 0xff, 0x01, 0x00, 0x00, 0x00}, []int{-2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			spec := pulse.SampleSpec{Format: tt.format, Rate: 8000, Channels: 2}

			buf, err := bytesToIntBuffer(tt.data, spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, buf.Data)
			assert.Equal(t, 2, buf.Format.NumChannels)
			assert.Equal(t, int(pulse.SampleSize(tt.format))*8, buf.SourceBitDepth)
		})
	}

	_, err := bytesToIntBuffer([]byte{0, 0, 0, 0}, pulse.SampleSpec{Format: pulse.PA_SAMPLE_FLOAT32LE, Rate: 8000, Channels: 1})
	assert.Error(t, err)
}
