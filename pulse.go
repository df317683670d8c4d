// Package pulse provides a Go interface to the PulseAudio client library, driven from a host event loop.
//
// The native library is reached through the Library interface. The libpulse subpackage implements it with cgo,
// the pulsetest subpackage with an in-process simulated daemon. Mainloop exposes a loop.Loop to the library
// as its abstract main loop, and Context and Stream wrap the library's connection and stream objects.
package pulse

// ContextState defines the connection state of a Context.
// These values correspond to the PA_CONTEXT_* constants in pulse/def.h.
type ContextState int32

const (
	PA_CONTEXT_UNCONNECTED  ContextState = 0 // Not connected yet.
	PA_CONTEXT_CONNECTING   ContextState = 1 // A connection is being established.
	PA_CONTEXT_AUTHORIZING  ContextState = 2 // The client is authorizing itself to the daemon.
	PA_CONTEXT_SETTING_NAME ContextState = 3 // The client is passing its application name to the daemon.
	PA_CONTEXT_READY        ContextState = 4 // The connection is established.
	PA_CONTEXT_FAILED       ContextState = 5 // The connection failed or was disconnected.
	PA_CONTEXT_TERMINATED   ContextState = 6 // The connection was terminated cleanly.
)

// StreamState defines the state of a Stream.
// These values correspond to the PA_STREAM_* state constants.
type StreamState int32

const (
	PA_STREAM_UNCONNECTED StreamState = 0 // The stream is not yet connected to any sink or source.
	PA_STREAM_CREATING    StreamState = 1 // The stream is being created.
	PA_STREAM_READY       StreamState = 2 // The stream is established.
	PA_STREAM_FAILED      StreamState = 3 // An error occurred that made the stream invalid.
	PA_STREAM_TERMINATED  StreamState = 4 // The stream has been terminated cleanly.
)

// SampleFormat defines the sample format of a stream.
// These values correspond to the PA_SAMPLE_* constants in pulse/sample.h.
type SampleFormat int32

const (
	PA_SAMPLE_INVALID   SampleFormat = -1
	PA_SAMPLE_U8        SampleFormat = 0
	PA_SAMPLE_ALAW      SampleFormat = 1
	PA_SAMPLE_ULAW      SampleFormat = 2
	PA_SAMPLE_S16LE     SampleFormat = 3
	PA_SAMPLE_S16BE     SampleFormat = 4
	PA_SAMPLE_FLOAT32LE SampleFormat = 5
	PA_SAMPLE_FLOAT32BE SampleFormat = 6
	PA_SAMPLE_S32LE     SampleFormat = 7
	PA_SAMPLE_S32BE     SampleFormat = 8
	PA_SAMPLE_S24LE     SampleFormat = 9
	PA_SAMPLE_S24BE     SampleFormat = 10
	PA_SAMPLE_S24_32LE  SampleFormat = 11
	PA_SAMPLE_S24_32BE  SampleFormat = 12
)

// ContextFlags defines flags for Context.Connect.
type ContextFlags uint32

const (
	PA_CONTEXT_NOFLAGS     ContextFlags = 0x0000
	PA_CONTEXT_NOAUTOSPAWN ContextFlags = 0x0001 // Disable autospawning of the daemon if required.
	PA_CONTEXT_NOFAIL      ContextFlags = 0x0002 // Don't fail if the daemon is not available, wait for it to appear.
)

// Direction defines what a stream is connected for.
type Direction int32

const (
	PA_STREAM_NODIRECTION Direction = 0
	PA_STREAM_PLAYBACK    Direction = 1
	PA_STREAM_RECORD      Direction = 2
	PA_STREAM_UPLOAD      Direction = 3
)

// StreamFlags defines flags for Stream.Connect.
// These values correspond to the PA_STREAM_* flag constants.
type StreamFlags uint32

const (
	PA_STREAM_NOFLAGS                   StreamFlags = 0x00000
	PA_STREAM_START_CORKED              StreamFlags = 0x00001
	PA_STREAM_INTERPOLATE_TIMING        StreamFlags = 0x00002
	PA_STREAM_NOT_MONOTONIC             StreamFlags = 0x00004
	PA_STREAM_AUTO_TIMING_UPDATE        StreamFlags = 0x00008
	PA_STREAM_NO_REMAP_CHANNELS         StreamFlags = 0x00010
	PA_STREAM_NO_REMIX_CHANNELS         StreamFlags = 0x00020
	PA_STREAM_FIX_FORMAT                StreamFlags = 0x00040
	PA_STREAM_FIX_RATE                  StreamFlags = 0x00080
	PA_STREAM_FIX_CHANNELS              StreamFlags = 0x00100
	PA_STREAM_DONT_MOVE                 StreamFlags = 0x00200
	PA_STREAM_VARIABLE_RATE             StreamFlags = 0x00400
	PA_STREAM_PEAK_DETECT               StreamFlags = 0x00800
	PA_STREAM_START_MUTED               StreamFlags = 0x01000
	PA_STREAM_ADJUST_LATENCY            StreamFlags = 0x02000
	PA_STREAM_EARLY_REQUESTS            StreamFlags = 0x04000
	PA_STREAM_DONT_INHIBIT_AUTO_SUSPEND StreamFlags = 0x08000
	PA_STREAM_START_UNMUTED             StreamFlags = 0x10000
	PA_STREAM_FAIL_ON_SUSPEND           StreamFlags = 0x20000
	PA_STREAM_RELATIVE_VOLUME           StreamFlags = 0x40000
	PA_STREAM_PASSTHROUGH               StreamFlags = 0x80000
)

// IOEventFlags is the set of conditions an I/O event is interested in or reports.
// These values correspond to the PA_IO_EVENT_* constants in pulse/mainloop-api.h.
type IOEventFlags int32

const (
	PA_IO_EVENT_NULL   IOEventFlags = 0
	PA_IO_EVENT_INPUT  IOEventFlags = 1
	PA_IO_EVENT_OUTPUT IOEventFlags = 2
	PA_IO_EVENT_HANGUP IOEventFlags = 4
	PA_IO_EVENT_ERROR  IOEventFlags = 8
)

// InfoKind selects the introspection query of Context.Info.
// The sink and source list kinds also select the device class for SetMute and SetVolume.
type InfoKind int32

const (
	INFO_SERVER      InfoKind = 0
	INFO_SOURCE_LIST InfoKind = 1
	INFO_SINK_LIST   InfoKind = 2
	INFO_MODULE_LIST InfoKind = 3
)

const (
	// PA_CHANNELS_MAX is the maximum number of channels the daemon supports.
	PA_CHANNELS_MAX = 32
	// PA_INVALID_INDEX is the index value returned by the daemon for failed operations.
	PA_INVALID_INDEX uint32 = 0xffffffff

	PA_VOLUME_MUTED uint32 = 0
	PA_VOLUME_NORM  uint32 = 0x10000
	PA_VOLUME_MAX   uint32 = 0x7fffffff
)

const (
	// DefaultContextName is the application name used when none is given.
	DefaultContextName = "go-pulse"
	// DefaultStreamName is the stream name used when none is given.
	DefaultStreamName = "go-stream"
)

// ContextStateNames maps context states to their short names.
var ContextStateNames = map[ContextState]string{
	PA_CONTEXT_UNCONNECTED:  "unconnected",
	PA_CONTEXT_CONNECTING:   "connecting",
	PA_CONTEXT_AUTHORIZING:  "authorizing",
	PA_CONTEXT_SETTING_NAME: "setting_name",
	PA_CONTEXT_READY:        "ready",
	PA_CONTEXT_FAILED:       "failed",
	PA_CONTEXT_TERMINATED:   "terminated",
}

// StreamStateNames maps stream states to their short names.
var StreamStateNames = map[StreamState]string{
	PA_STREAM_UNCONNECTED: "unconnected",
	PA_STREAM_CREATING:    "creating",
	PA_STREAM_READY:       "ready",
	PA_STREAM_FAILED:      "failed",
	PA_STREAM_TERMINATED:  "terminated",
}

// SampleFormatNames maps sample formats to their names as used by the daemon.
var SampleFormatNames = map[SampleFormat]string{
	PA_SAMPLE_U8:        "u8",
	PA_SAMPLE_ALAW:      "aLaw",
	PA_SAMPLE_ULAW:      "uLaw",
	PA_SAMPLE_S16LE:     "s16le",
	PA_SAMPLE_S16BE:     "s16be",
	PA_SAMPLE_FLOAT32LE: "float32le",
	PA_SAMPLE_FLOAT32BE: "float32be",
	PA_SAMPLE_S32LE:     "s32le",
	PA_SAMPLE_S32BE:     "s32be",
	PA_SAMPLE_S24LE:     "s24le",
	PA_SAMPLE_S24BE:     "s24be",
	PA_SAMPLE_S24_32LE:  "s24-32le",
	PA_SAMPLE_S24_32BE:  "s24-32be",
}

var sampleSizes = map[SampleFormat]uint32{
	PA_SAMPLE_U8:        1,
	PA_SAMPLE_ALAW:      1,
	PA_SAMPLE_ULAW:      1,
	PA_SAMPLE_S16LE:     2,
	PA_SAMPLE_S16BE:     2,
	PA_SAMPLE_FLOAT32LE: 4,
	PA_SAMPLE_FLOAT32BE: 4,
	PA_SAMPLE_S32LE:     4,
	PA_SAMPLE_S32BE:     4,
	PA_SAMPLE_S24LE:     3,
	PA_SAMPLE_S24BE:     3,
	PA_SAMPLE_S24_32LE:  4,
	PA_SAMPLE_S24_32BE:  4,
}

func (s ContextState) String() string {
	if name, ok := ContextStateNames[s]; ok {
		return name
	}

	return "unknown"
}

func (s StreamState) String() string {
	if name, ok := StreamStateNames[s]; ok {
		return name
	}

	return "unknown"
}

func (f SampleFormat) String() string {
	if name, ok := SampleFormatNames[f]; ok {
		return name
	}

	return "invalid"
}

// IsGood reports whether the context is connecting or connected.
func (s ContextState) IsGood() bool {
	return s == PA_CONTEXT_CONNECTING || s == PA_CONTEXT_AUTHORIZING || s == PA_CONTEXT_SETTING_NAME || s == PA_CONTEXT_READY
}

// IsGood reports whether the stream is being created or is established.
func (s StreamState) IsGood() bool {
	return s == PA_STREAM_CREATING || s == PA_STREAM_READY
}

// SampleSize returns the size in bytes of a single sample of the format, or 0 for an invalid format.
func SampleSize(f SampleFormat) uint32 {
	return sampleSizes[f]
}
