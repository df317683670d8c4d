// Package libpulse binds the system libpulse client library to the pulse package.
//
// The binding is only compiled with cgo and the libpulse build tag:
//
//	go build -tags libpulse
//
// Without it Open returns ErrUnavailable, which lets programs fall back gracefully.
package libpulse

import "errors"

// ErrUnavailable is returned by Open when the binary was built without libpulse support.
var ErrUnavailable = errors.New("libpulse: support not compiled in (build with -tags libpulse)")
