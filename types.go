package pulse

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SampleSpec describes the sample format, rate and channel count of a stream.
type SampleSpec struct {
	Format   SampleFormat
	Rate     uint32
	Channels uint8
}

// DefaultSampleSpec is used for streams created without an explicit format.
var DefaultSampleSpec = SampleSpec{Format: PA_SAMPLE_S16LE, Rate: 44100, Channels: 2}

// Valid reports whether the spec can be used to create a stream.
func (s SampleSpec) Valid() bool {
	return SampleSize(s.Format) > 0 && s.Rate > 0 && s.Rate <= 384000 && s.Channels > 0 && s.Channels <= PA_CHANNELS_MAX
}

// FrameSize returns the size in bytes of one frame (one sample for every channel).
func (s SampleSpec) FrameSize() uint32 {
	return SampleSize(s.Format) * uint32(s.Channels)
}

// BytesPerSecond returns the byte rate of the spec.
func (s SampleSpec) BytesPerSecond() uint64 {
	return uint64(s.Rate) * uint64(s.FrameSize())
}

// UsecToBytes converts a duration in microseconds to a byte count, rounded down to whole frames.
func (s SampleSpec) UsecToBytes(usec uint64) uint64 {
	return (usec * uint64(s.Rate) / 1000000) * uint64(s.FrameSize())
}

// BytesToUsec converts a byte count to a duration in microseconds, ignoring partial frames.
func (s SampleSpec) BytesToUsec(n uint64) uint64 {
	fs := uint64(s.FrameSize())
	if fs == 0 || s.Rate == 0 {
		return 0
	}

	return (n / fs) * 1000000 / uint64(s.Rate)
}

func (s SampleSpec) String() string {
	return fmt.Sprintf("%s %dch %dHz", s.Format, s.Channels, s.Rate)
}

// Optional is a buffer metric that is either set to a value or left to the daemon.
type Optional struct {
	value uint32
	set   bool
}

// Some returns an Optional holding v.
func Some(v uint32) Optional {
	return Optional{value: v, set: true}
}

// Get returns the value and whether it is set.
func (o Optional) Get() (uint32, bool) {
	return o.value, o.set
}

// IsSet reports whether a value is present.
func (o Optional) IsSet() bool {
	return o.set
}

func (o Optional) String() string {
	if !o.set {
		return "default"
	}

	return fmt.Sprintf("%d", o.value)
}

// BufferAttr holds the playback and record buffer metrics of a stream, in bytes.
// Unset fields let the daemon choose.
type BufferAttr struct {
	MaxLength    Optional
	TargetLength Optional
	Prebuf       Optional
	MinReq       Optional
	FragSize     Optional
}

// ChannelVolumes holds one volume per channel. Only the first PA_CHANNELS_MAX entries are used.
type ChannelVolumes []uint32

func (v ChannelVolumes) clamp() ChannelVolumes {
	if len(v) > PA_CHANNELS_MAX {
		return v[:PA_CHANNELS_MAX]
	}

	return v
}

// Proplist holds string properties attached to contexts and streams, e.g. "application.id".
type Proplist map[string]string

// Validate checks that every key is non-empty printable ASCII and every value is valid UTF-8.
func (p Proplist) Validate() error {
	for k, v := range p {
		if k == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidProperty)
		}

		for i := 0; i < len(k); i++ {
			if k[i] < 0x20 || k[i] >= 0x7f {
				return fmt.Errorf("%w: key %q contains invalid characters", ErrInvalidProperty, k)
			}
		}

		if !utf8.ValidString(v) || strings.IndexByte(v, 0) >= 0 {
			return fmt.Errorf("%w: value of %q is not a valid string", ErrInvalidProperty, k)
		}
	}

	return nil
}

// Target selects a sink or source either by index or by name.
type Target struct {
	index  uint32
	name   string
	byName bool
}

// TargetIndex selects a device by its index.
func TargetIndex(index uint32) Target {
	return Target{index: index}
}

// TargetName selects a device by its name.
func TargetName(name string) Target {
	return Target{name: name, byName: true}
}

// Index returns the device index and true when the target was selected by index.
func (t Target) Index() (uint32, bool) {
	return t.index, !t.byName
}

// Name returns the device name and true when the target was selected by name.
func (t Target) Name() (string, bool) {
	return t.name, t.byName
}

func (t Target) String() string {
	if t.byName {
		return t.name
	}

	return fmt.Sprintf("#%d", t.index)
}

// ServerInfo describes the daemon.
type ServerInfo struct {
	UserName          string
	HostName          string
	ServerVersion     string
	ServerName        string
	SampleSpec        SampleSpec
	DefaultSinkName   string
	DefaultSourceName string
	Cookie            uint32
}

// DeviceInfo describes a sink or a source.
type DeviceInfo struct {
	Name        string
	Index       uint32
	Description string
	SampleSpec  SampleSpec
	Mute        bool
	Volume      ChannelVolumes
	Latency     uint64 // In microseconds
	Driver      string
}

// ModuleInfo describes a loaded daemon module.
type ModuleInfo struct {
	Name     string
	Index    uint32
	Argument string
	NUsed    uint32
}

func (i *ServerInfo) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Server String: %s\n", i.HostName)
	fmt.Fprintf(&b, "User Name: %s\n", i.UserName)
	fmt.Fprintf(&b, "Server Name: %s\n", i.ServerName)
	fmt.Fprintf(&b, "Server Version: %s\n", i.ServerVersion)
	fmt.Fprintf(&b, "Default Sample Specification: %s\n", i.SampleSpec)
	fmt.Fprintf(&b, "Default Sink: %s\n", i.DefaultSinkName)
	fmt.Fprintf(&b, "Default Source: %s\n", i.DefaultSourceName)
	fmt.Fprintf(&b, "Cookie: %04x:%04x", i.Cookie>>16, i.Cookie&0xffff)

	return b.String()
}

func (i *DeviceInfo) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "#%d %s\n", i.Index, i.Name)
	fmt.Fprintf(&b, "\tDescription: %s\n", i.Description)
	fmt.Fprintf(&b, "\tDriver: %s\n", i.Driver)
	fmt.Fprintf(&b, "\tSample Specification: %s\n", i.SampleSpec)
	fmt.Fprintf(&b, "\tMute: %t\n", i.Mute)

	vols := make([]string, len(i.Volume))
	for n, v := range i.Volume {
		vols[n] = fmt.Sprintf("%d%%", (uint64(v)*100+uint64(PA_VOLUME_NORM)/2)/uint64(PA_VOLUME_NORM))
	}
	fmt.Fprintf(&b, "\tVolume: %s\n", strings.Join(vols, " "))
	fmt.Fprintf(&b, "\tLatency: %d usec", i.Latency)

	return b.String()
}

func (i *ModuleInfo) String() string {
	return fmt.Sprintf("#%d %s %s (used: %d)", i.Index, i.Name, i.Argument, int32(i.NUsed))
}
