package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

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
		channels  int
		rate      int
		formatStr string
		latency   time.Duration
		duration  time.Duration
		flagsStr  string
		depth     int
	)

	flag.StringVar(&device, "device", cfg.Source, "The source to record from (empty = default source)")
	flag.IntVar(&channels, "channels", 2, "The number of channels")
	flag.IntVar(&rate, "rate", 44100, "The sample rate in Hz")
	flag.StringVar(&formatStr, "format", "s16le", "The sample format (u8, s16le, s24le, s32le)")
	flag.DurationVar(&latency, "latency", 0, "The requested fragment latency (0 = server default)")
	flag.DurationVar(&duration, "duration", 5*time.Second, "The duration of the recording (0 = until interrupted)")
	flag.StringVar(&flagsStr, "stream-flags", "adjust_latency", "The stream flags")
	flag.IntVar(&depth, "queue", 32, "The number of fragments buffered between the stream and the file")
	cfg.RegisterFlags(flag.CommandLine)

	flag.Usage = session.Usage(flag.CommandLine, "[options] <output-wav-file>",
		"device", "channels", "rate", "format", "latency", "duration", "stream-flags", "queue")

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	logger, err := cfg.SetupLogging("PREC")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	format, bitDepth, err := determineFormat(formatStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error determining format: %v\n", err)
		os.Exit(1)
	}

	streamFlags, err := pulse.ParseStreamFlags(flagsStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := session.StreamOptions{
		Name:      "parec",
		Device:    device,
		Direction: pulse.PA_STREAM_RECORD,
		Flags:     streamFlags,
		Config: pulse.StreamConfig{
			SampleSpec: pulse.SampleSpec{Format: format, Rate: uint32(rate), Channels: uint8(channels)},
			Latency:    latency,
		},
		Props: pulse.Proplist{"media.role": "production"},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := record(ctx, logger, cfg, opts, bitDepth, duration, depth, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func record(ctx context.Context, logger slog.Logger, cfg *session.Config, opts session.StreamOptions,
	bitDepth int, duration time.Duration, depth int, outputPath string) error {

	s, err := session.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	stream, err := s.OpenStream(ctx, opts)
	if err != nil {
		return err
	}
	defer s.CloseStream(stream)

	spec := stream.SampleSpec()

	wavFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	defer wavFile.Close()

	encoder := wav.NewEncoder(wavFile, int(spec.Rate), bitDepth, int(spec.Channels), 1)

	fmt.Printf("Recording from: %s\n", deviceName(opts.Device))
	fmt.Printf("Configuration: %s\n", spec)
	if duration > 0 {
		fmt.Printf("Recording duration: %v\n", duration)
	}
	fmt.Println("Starting recording... Press Ctrl+C to stop early.")

	reader := pulse.NewRecordReader(stream, s.Mainloop, depth)
	stopReading := context.AfterFunc(ctx, func() { _ = reader.Close() })
	defer stopReading()

	if err := reader.Play(); err != nil {
		return err
	}

	var total uint64
	if duration > 0 {
		total = spec.UsecToBytes(uint64(duration.Microseconds()))
	}

	frameSize := int(spec.FrameSize())
	buffer := make([]byte, int(spec.UsecToBytes(100_000))/frameSize*frameSize)

	var captured uint64
	for total == 0 || captured < total {
		chunk := buffer
		if total > 0 && total-captured < uint64(len(chunk)) {
			chunk = chunk[:total-captured]
		}

		n, readErr := io.ReadFull(reader, chunk)
		n -= n % frameSize

		if n > 0 {
			intBuffer, err := bytesToIntBuffer(chunk[:n], spec)
			if err != nil {
				return err
			}

			if err := encoder.Write(intBuffer); err != nil {
				return fmt.Errorf("failed to write WAV file: %w", err)
			}

			captured += uint64(n)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				fmt.Println("\nRecording interrupted by user.")

				break
			}

			return readErr
		}
	}

	_ = reader.Close()

	if overruns := reader.Overruns(); overruns > 0 {
		logger.Warnf("%d fragments were dropped", overruns)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finish WAV file: %w", err)
	}

	fmt.Printf("Recording finished. Wrote %d frames (%.2f seconds) to %s\n",
		captured/uint64(frameSize), float64(spec.BytesToUsec(captured))/1e6, outputPath)

	return nil
}

func deviceName(device string) string {
	if device == "" {
		return "default source"
	}

	return device
}

// determineFormat maps a format name to a sample format the WAV encoder can store, and its bit depth.
func determineFormat(formatStr string) (pulse.SampleFormat, int, error) {
	format, err := pulse.ParseSampleFormat(formatStr)
	if err != nil {
		return pulse.PA_SAMPLE_INVALID, 0, err
	}

	switch format {
	case pulse.PA_SAMPLE_U8:
		return format, 8, nil
	case pulse.PA_SAMPLE_S16LE:
		return format, 16, nil
	case pulse.PA_SAMPLE_S24LE:
		return format, 24, nil
	case pulse.PA_SAMPLE_S32LE:
		return format, 32, nil
	default:
		return pulse.PA_SAMPLE_INVALID, 0, fmt.Errorf("unsupported format: %s. Supported formats are u8, s16le, s24le, s32le", format)
	}
}

// bytesToIntBuffer converts recorded samples into an audio.IntBuffer for the WAV encoder.
func bytesToIntBuffer(data []byte, spec pulse.SampleSpec) (*audio.IntBuffer, error) {
	size := int(pulse.SampleSize(spec.Format))
	samples := make([]int, len(data)/size)

	for i := range samples {
		b := data[i*size:]

		switch spec.Format {
		case pulse.PA_SAMPLE_U8:
			samples[i] = int(b[0])
		case pulse.PA_SAMPLE_S16LE:
			samples[i] = int(int16(binary.LittleEndian.Uint16(b)))
		case pulse.PA_SAMPLE_S24LE:
			v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
			if v&0x800000 != 0 {
				v |= 0xff000000
			}
			samples[i] = int(int32(v))
		case pulse.PA_SAMPLE_S32LE:
			samples[i] = int(int32(binary.LittleEndian.Uint32(b)))
		default:
			return nil, fmt.Errorf("unhandled sample format in conversion: %s", spec.Format)
		}
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(spec.Channels),
			SampleRate:  int(spec.Rate),
		},
		Data:           samples,
		SourceBitDepth: size * 8,
	}, nil
}
