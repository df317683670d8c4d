//go:build !libpulse || !cgo

package libpulse

import "github.com/gen2brain/pulse"

// Open returns the system client library.
func Open() (pulse.Library, error) {
	log.Debug("libpulse support not compiled in")

	return nil, ErrUnavailable
}

// Version returns the version of the linked client library, or an empty string.
func Version() string {
	return ""
}
