package pulse

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

var contextFlagNames = map[string]ContextFlags{
	"noflags":     PA_CONTEXT_NOFLAGS,
	"noautospawn": PA_CONTEXT_NOAUTOSPAWN,
	"nofail":      PA_CONTEXT_NOFAIL,
}

var streamFlagNames = map[string]StreamFlags{
	"noflags":                   PA_STREAM_NOFLAGS,
	"start_corked":              PA_STREAM_START_CORKED,
	"interpolate_timing":        PA_STREAM_INTERPOLATE_TIMING,
	"not_monotonic":             PA_STREAM_NOT_MONOTONIC,
	"auto_timing_update":        PA_STREAM_AUTO_TIMING_UPDATE,
	"no_remap_channels":         PA_STREAM_NO_REMAP_CHANNELS,
	"no_remix_channels":         PA_STREAM_NO_REMIX_CHANNELS,
	"fix_format":                PA_STREAM_FIX_FORMAT,
	"fix_rate":                  PA_STREAM_FIX_RATE,
	"fix_channels":              PA_STREAM_FIX_CHANNELS,
	"dont_move":                 PA_STREAM_DONT_MOVE,
	"variable_rate":             PA_STREAM_VARIABLE_RATE,
	"peak_detect":               PA_STREAM_PEAK_DETECT,
	"start_muted":               PA_STREAM_START_MUTED,
	"adjust_latency":            PA_STREAM_ADJUST_LATENCY,
	"early_requests":            PA_STREAM_EARLY_REQUESTS,
	"dont_inhibit_auto_suspend": PA_STREAM_DONT_INHIBIT_AUTO_SUSPEND,
	"start_unmuted":             PA_STREAM_START_UNMUTED,
	"fail_on_suspend":           PA_STREAM_FAIL_ON_SUSPEND,
	"relative_volume":           PA_STREAM_RELATIVE_VOLUME,
	"passthrough":               PA_STREAM_PASSTHROUGH,
}

// Short names accepted in addition to SampleFormatNames.
var sampleFormatAliases = map[string]SampleFormat{
	"alaw":     PA_SAMPLE_ALAW,
	"ulaw":     PA_SAMPLE_ULAW,
	"f32le":    PA_SAMPLE_FLOAT32LE,
	"f32be":    PA_SAMPLE_FLOAT32BE,
	"s24_32le": PA_SAMPLE_S24_32LE,
	"s24_32be": PA_SAMPLE_S24_32BE,
}

// flagWords splits a flag expression such as "noautospawn+nofail" or "adjust_latency, start_corked".
func flagWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",.+|", r)
	})
}

// ParseContextFlags parses a set of context flag names separated by spaces, commas, dots, '+' or '|'.
func ParseContextFlags(s string) (ContextFlags, error) {
	var flags ContextFlags

	for _, w := range flagWords(s) {
		f, ok := contextFlagNames[strings.ToLower(w)]
		if !ok {
			return 0, fmt.Errorf("%w: unknown context flag %q", ErrInvalidArgument, w)
		}

		flags |= f
	}

	return flags, nil
}

// ParseStreamFlags parses a set of stream flag names separated by spaces, commas, dots, '+' or '|'.
func ParseStreamFlags(s string) (StreamFlags, error) {
	var flags StreamFlags

	for _, w := range flagWords(s) {
		f, ok := streamFlagNames[strings.ToLower(w)]
		if !ok {
			return 0, fmt.Errorf("%w: unknown stream flag %q", ErrInvalidArgument, w)
		}

		flags |= f
	}

	return flags, nil
}

// ParseSampleFormat returns the format named s, ignoring case. Both daemon names ("float32le")
// and short names ("F32LE") are accepted.
func ParseSampleFormat(s string) (SampleFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))

	for f, n := range SampleFormatNames {
		if strings.ToLower(n) == name {
			return f, nil
		}
	}

	if f, ok := sampleFormatAliases[name]; ok {
		return f, nil
	}

	return PA_SAMPLE_INVALID, fmt.Errorf("%w: unknown sample format %q", ErrInvalidArgument, s)
}

// StreamFlagNames returns the names of the flags set in f, sorted.
func StreamFlagNames(f StreamFlags) []string {
	var names []string
	for name, bit := range streamFlagNames {
		if bit != 0 && f&bit == bit {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}
