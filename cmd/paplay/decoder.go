package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// sampleDecoder yields interleaved integer samples from an encoded file.
type sampleDecoder interface {
	// PCMBuffer fills buf.Data and returns the number of samples (not frames) decoded.
	PCMBuffer(buf *audio.IntBuffer) (n int, err error)
	Duration() (time.Duration, error)
	NumChans() uint16
	SampleRate() uint32
	BitDepth() uint16
	IsFloat() bool
}

// openDecoder picks a decoder from the file extension. WAV is assumed for anything but .mp3.
func openDecoder(f *os.File) (sampleDecoder, error) {
	if strings.EqualFold(filepath.Ext(f.Name()), ".mp3") {
		return newMp3Decoder(f)
	}

	return newWavDecoder(f)
}

type wavDecoder struct {
	*wav.Decoder
}

func newWavDecoder(r io.ReadSeeker) (sampleDecoder, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	return &wavDecoder{Decoder: d}, nil
}

func (w *wavDecoder) SampleRate() uint32 { return w.Decoder.SampleRate }
func (w *wavDecoder) NumChans() uint16   { return w.Decoder.NumChans }
func (w *wavDecoder) BitDepth() uint16   { return w.Decoder.BitDepth }
func (w *wavDecoder) IsFloat() bool      { return w.Decoder.WavAudioFormat == 3 }

// mp3Decoder adapts go-mp3, which always produces 16-bit stereo.
type mp3Decoder struct {
	d      *mp3.Decoder
	raw    []byte
	length int64
}

func newMp3Decoder(r io.Reader) (sampleDecoder, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("invalid MP3 file: %w", err)
	}

	return &mp3Decoder{d: d, length: d.Length()}, nil
}

func (m *mp3Decoder) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	want := len(buf.Data) * 2
	if cap(m.raw) < want {
		m.raw = make([]byte, want)
	}
	raw := m.raw[:want]

	n, err := io.ReadFull(m.d, raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	if samples > 0 && errors.Is(err, io.EOF) {
		err = nil
	}

	return samples, err
}

func (m *mp3Decoder) Duration() (time.Duration, error) {
	if m.length < 0 {
		return 0, errors.New("unknown length")
	}

	frames := m.length / 4

	return time.Duration(frames) * time.Second / time.Duration(m.d.SampleRate()), nil
}

func (m *mp3Decoder) SampleRate() uint32 { return uint32(m.d.SampleRate()) }
func (m *mp3Decoder) NumChans() uint16   { return 2 }
func (m *mp3Decoder) BitDepth() uint16   { return 16 }
func (m *mp3Decoder) IsFloat() bool      { return false }
