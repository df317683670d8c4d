package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/gen2brain/pulse"
)

// Header keys carried by every relayed fragment.
const (
	headerStream   = "Pulse-Stream"
	headerSequence = "Pulse-Sequence"
	headerFormat   = "Pulse-Format"
	headerRate     = "Pulse-Rate"
	headerChannels = "Pulse-Channels"
)

// frame is one fragment of recorded audio.
type frame struct {
	stream   uuid.UUID
	sequence uint64
	spec     pulse.SampleSpec
	data     []byte
}

func (f *frame) message(subject string) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Header.Set(headerStream, f.stream.String())
	msg.Header.Set(headerSequence, strconv.FormatUint(f.sequence, 10))
	msg.Header.Set(headerFormat, f.spec.Format.String())
	msg.Header.Set(headerRate, strconv.FormatUint(uint64(f.spec.Rate), 10))
	msg.Header.Set(headerChannels, strconv.FormatUint(uint64(f.spec.Channels), 10))
	msg.Data = f.data

	return msg
}

func parseFrame(msg *nats.Msg) (*frame, error) {
	if msg.Header == nil {
		return nil, fmt.Errorf("message on %s has no headers", msg.Subject)
	}

	id, err := uuid.Parse(msg.Header.Get(headerStream))
	if err != nil {
		return nil, fmt.Errorf("invalid stream id: %w", err)
	}

	seq, err := strconv.ParseUint(msg.Header.Get(headerSequence), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid sequence: %w", err)
	}

	format, err := pulse.ParseSampleFormat(msg.Header.Get(headerFormat))
	if err != nil {
		return nil, err
	}

	rate, err := strconv.ParseUint(msg.Header.Get(headerRate), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid rate: %w", err)
	}

	channels, err := strconv.ParseUint(msg.Header.Get(headerChannels), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid channel count: %w", err)
	}

	spec := pulse.SampleSpec{Format: format, Rate: uint32(rate), Channels: uint8(channels)}
	if !spec.Valid() {
		return nil, fmt.Errorf("invalid sample spec %s", spec)
	}

	if len(msg.Data)%int(spec.FrameSize()) != 0 {
		return nil, fmt.Errorf("fragment of %d bytes is not a whole number of %s frames", len(msg.Data), spec)
	}

	return &frame{
		stream:   id,
		sequence: seq,
		spec:     spec,
		data:     msg.Data,
	}, nil
}
