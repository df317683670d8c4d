package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gen2brain/pulse"
)

// parseTarget selects a device by index when s is numeric and by name otherwise.
func parseTarget(s string) pulse.Target {
	if idx, err := strconv.ParseUint(s, 10, 32); err == nil {
		return pulse.TargetIndex(uint32(idx))
	}

	return pulse.TargetName(s)
}

// parseVolumes converts one volume per channel. A value is either a percentage
// of the normal volume ("80%"), a linear factor ("0.8") or a raw volume ("52428").
func parseVolumes(args []string) (pulse.ChannelVolumes, error) {
	if len(args) > pulse.PA_CHANNELS_MAX {
		return nil, fmt.Errorf("too many volumes: %d > %d", len(args), pulse.PA_CHANNELS_MAX)
	}

	vols := make(pulse.ChannelVolumes, len(args))
	for i, arg := range args {
		v, err := parseVolume(arg)
		if err != nil {
			return nil, err
		}
		vols[i] = v
	}

	return vols, nil
}

func parseVolume(s string) (uint32, error) {
	var f float64
	var err error

	switch {
	case strings.HasSuffix(s, "%"):
		f, err = strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		f /= 100
	case strings.Contains(s, "."):
		f, err = strconv.ParseFloat(s, 64)
	default:
		var raw uint64
		raw, err = strconv.ParseUint(s, 0, 32)
		if err == nil && raw > uint64(pulse.PA_VOLUME_MAX) {
			err = fmt.Errorf("above maximum")
		}

		return uint32(raw), volumeError(s, err)
	}

	if err == nil && (f < 0 || math.IsNaN(f)) {
		err = fmt.Errorf("negative")
	}
	if err != nil {
		return 0, volumeError(s, err)
	}

	v := math.Round(f * float64(pulse.PA_VOLUME_NORM))
	if v > float64(pulse.PA_VOLUME_MAX) {
		return 0, volumeError(s, fmt.Errorf("above maximum"))
	}

	return uint32(v), nil
}

func volumeError(s string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("invalid volume %q: %w", s, err)
}

// joinArgs quotes module arguments the way the daemon's argument parser expects.
func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if ok && strings.ContainsAny(value, " \t") && !strings.ContainsAny(value, `"'`) {
			arg = key + `="` + value + `"`
		}
		quoted[i] = arg
	}

	return strings.Join(quoted, " ")
}
