package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-audio/audio"
	"golang.org/x/sync/errgroup"

	"github.com/gen2brain/pulse"
	"github.com/gen2brain/pulse/cmd/internal/session"
)

func main() {
	cfg, err := session.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	var (
		device    string
		formatStr string
		latency   time.Duration
		flagsStr  string
	)

	flag.StringVar(&device, "device", cfg.Sink, "The sink to play to (empty = default sink)")
	flag.StringVar(&formatStr, "format", "", "The sample format (u8, s16le, s24-32le, s32le, float32le; empty = from the file)")
	flag.DurationVar(&latency, "latency", 0, "The requested playback latency (0 = server default)")
	flag.StringVar(&flagsStr, "stream-flags", "adjust_latency", "The stream flags")
	cfg.RegisterFlags(flag.CommandLine)

	flag.Usage = session.Usage(flag.CommandLine, "[options] <wav-or-mp3-file>", "device", "format", "latency", "stream-flags")

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if _, err := cfg.SetupLogging("PPLY"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	streamFlags, err := pulse.ParseStreamFlags(flagsStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := play(ctx, cfg, flag.Arg(0), device, formatStr, latency, streamFlags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func play(ctx context.Context, cfg *session.Config, path, device, formatStr string, latency time.Duration, flags pulse.StreamFlags) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	decoder, err := openDecoder(file)
	if err != nil {
		return err
	}

	format, err := determineFormat(formatStr, decoder)
	if err != nil {
		return fmt.Errorf("failed to determine format: %w", err)
	}

	spec := pulse.SampleSpec{Format: format, Rate: decoder.SampleRate(), Channels: uint8(decoder.NumChans())}

	s, err := session.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	stream, err := s.OpenStream(ctx, session.StreamOptions{
		Name:      path,
		Device:    device,
		Direction: pulse.PA_STREAM_PLAYBACK,
		Flags:     flags,
		Config:    pulse.StreamConfig{SampleSpec: spec, Latency: latency},
		Props:     pulse.Proplist{"media.role": "music", "media.filename": path},
	})
	if err != nil {
		return err
	}
	defer s.CloseStream(stream)

	fmt.Printf("Playing file: %s\n", path)
	fmt.Printf("Configuration: %s\n", spec)
	if d, err := decoder.Duration(); err == nil {
		fmt.Printf("Duration: %v\n", d.Round(time.Millisecond))
	}

	w := pulse.NewPlaybackWriter(stream, s.Mainloop)
	chunks := make(chan []byte, 4)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)

	stopPlayback := context.AfterFunc(ctx, func() { _ = w.Discard() })
	defer stopPlayback()

	g.Go(func() error {
		defer close(chunks)

		return decode(gctx, decoder, spec, chunks)
	})

	var written uint64
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case chunk, ok := <-chunks:
				if !ok {
					if err := gctx.Err(); err != nil {
						return err
					}

					return w.Close()
				}

				if _, err := w.Write(chunk); err != nil {
					return err
				}
				written += uint64(len(chunk))
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		fmt.Println("\nPlayback interrupted by user.")
		err = nil
	}

	fmt.Printf("Playback finished in %v. (%d frames played)\n", time.Since(start).Round(time.Millisecond), written/uint64(spec.FrameSize()))

	return err
}

// decode converts the file into chunks of roughly 100ms in the stream's sample format.
func decode(ctx context.Context, decoder sampleDecoder, spec pulse.SampleSpec, chunks chan<- []byte) error {
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(spec.Channels),
			SampleRate:  int(spec.Rate),
		},
		Data: make([]int, int(spec.Rate/10)*int(spec.Channels)),
	}

	for {
		n, err := decoder.PCMBuffer(buf)
		if n > 0 {
			chunk, convErr := convert(buf.Data[:n], int(decoder.BitDepth()), spec.Format)
			if convErr != nil {
				return convErr
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("failed to decode: %w", err)
		}

		if n == 0 {
			return nil
		}
	}
}

// convert encodes decoded integer samples of the given bit depth into format.
func convert(samples []int, bitDepth int, format pulse.SampleFormat) ([]byte, error) {
	out := make([]byte, 0, len(samples)*int(pulse.SampleSize(format)))
	maxVal := float64(int64(1) << (bitDepth - 1))

	for _, s := range samples {
		switch format {
		case pulse.PA_SAMPLE_U8:
			if bitDepth == 8 {
				out = append(out, byte(s))
			} else {
				out = append(out, byte((s>>(bitDepth-8))+128))
			}
		case pulse.PA_SAMPLE_S16LE:
			out = binary.LittleEndian.AppendUint16(out, uint16(int16(clamp(scale(s, bitDepth, 16), 16))))
		case pulse.PA_SAMPLE_S24_32LE:
			out = binary.LittleEndian.AppendUint32(out, uint32(int32(clamp(scale(s, bitDepth, 24), 24))))
		case pulse.PA_SAMPLE_S32LE:
			out = binary.LittleEndian.AppendUint32(out, uint32(int32(clamp(scale(s, bitDepth, 32), 32))))
		case pulse.PA_SAMPLE_FLOAT32LE:
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(float64(scale(s, bitDepth, bitDepth))/maxVal)))
		default:
			return nil, fmt.Errorf("format %s not handled in conversion", format)
		}
	}

	return out, nil
}

// scale moves s from one bit depth to another. 8-bit input is unsigned.
func scale(s, from, to int) int {
	if from == 8 {
		s -= 128
	}

	switch {
	case to > from:
		return s << (to - from)
	case to < from:
		return s >> (from - to)
	default:
		return s
	}
}

func clamp(s, bits int) int {
	hi := 1<<(bits-1) - 1
	lo := -(1 << (bits - 1))

	return min(max(s, lo), hi)
}

// determineFormat selects the stream format from the flag or from the decoder.
func determineFormat(formatStr string, decoder sampleDecoder) (pulse.SampleFormat, error) {
	if formatStr != "" {
		format, err := pulse.ParseSampleFormat(formatStr)
		if err != nil {
			return pulse.PA_SAMPLE_INVALID, err
		}

		switch format {
		case pulse.PA_SAMPLE_U8, pulse.PA_SAMPLE_S16LE, pulse.PA_SAMPLE_S24_32LE, pulse.PA_SAMPLE_S32LE, pulse.PA_SAMPLE_FLOAT32LE:
			return format, nil
		default:
			return pulse.PA_SAMPLE_INVALID, fmt.Errorf("unsupported format: %s", format)
		}
	}

	if decoder.IsFloat() {
		return pulse.PA_SAMPLE_INVALID, fmt.Errorf("unsupported float WAV file (%d bits)", decoder.BitDepth())
	}

	switch decoder.BitDepth() {
	case 8:
		return pulse.PA_SAMPLE_U8, nil
	case 16:
		return pulse.PA_SAMPLE_S16LE, nil
	case 24:
		return pulse.PA_SAMPLE_S24_32LE, nil
	case 32:
		return pulse.PA_SAMPLE_S32LE, nil
	default:
		return pulse.PA_SAMPLE_INVALID, fmt.Errorf("unsupported integer bit depth: %d", decoder.BitDepth())
	}
}
