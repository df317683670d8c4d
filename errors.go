package pulse

import (
	"errors"
	"fmt"
)

// Error is a daemon error code.
// These values correspond to the PA_ERR_* constants in pulse/def.h.
type Error int32

const (
	PA_OK                       Error = 0
	PA_ERR_ACCESS               Error = 1
	PA_ERR_COMMAND              Error = 2
	PA_ERR_INVALID              Error = 3
	PA_ERR_EXIST                Error = 4
	PA_ERR_NOENTITY             Error = 5
	PA_ERR_CONNECTIONREFUSED    Error = 6
	PA_ERR_PROTOCOL             Error = 7
	PA_ERR_TIMEOUT              Error = 8
	PA_ERR_AUTHKEY              Error = 9
	PA_ERR_INTERNAL             Error = 10
	PA_ERR_CONNECTIONTERMINATED Error = 11
	PA_ERR_KILLED               Error = 12
	PA_ERR_INVALIDSERVER        Error = 13
	PA_ERR_MODINITFAILED        Error = 14
	PA_ERR_BADSTATE             Error = 15
	PA_ERR_NODATA               Error = 16
	PA_ERR_VERSION              Error = 17
	PA_ERR_TOOLARGE             Error = 18
	PA_ERR_NOTSUPPORTED         Error = 19
	PA_ERR_UNKNOWN              Error = 20
	PA_ERR_NOEXTENSION          Error = 21
	PA_ERR_OBSOLETE             Error = 22
	PA_ERR_NOTIMPLEMENTED       Error = 23
	PA_ERR_FORKED               Error = 24
	PA_ERR_IO                   Error = 25
	PA_ERR_BUSY                 Error = 26
)

var errorText = [...]string{
	PA_OK:                       "OK",
	PA_ERR_ACCESS:               "Access denied",
	PA_ERR_COMMAND:              "Unknown command",
	PA_ERR_INVALID:              "Invalid argument",
	PA_ERR_EXIST:                "Entity exists",
	PA_ERR_NOENTITY:             "No such entity",
	PA_ERR_CONNECTIONREFUSED:    "Connection refused",
	PA_ERR_PROTOCOL:             "Protocol error",
	PA_ERR_TIMEOUT:              "Timeout",
	PA_ERR_AUTHKEY:              "No authentication key",
	PA_ERR_INTERNAL:             "Internal error",
	PA_ERR_CONNECTIONTERMINATED: "Connection terminated",
	PA_ERR_KILLED:               "Entity killed",
	PA_ERR_INVALIDSERVER:        "Invalid server",
	PA_ERR_MODINITFAILED:        "Module initialization failed",
	PA_ERR_BADSTATE:             "Bad state",
	PA_ERR_NODATA:               "No data",
	PA_ERR_VERSION:              "Incompatible protocol version",
	PA_ERR_TOOLARGE:             "Too large",
	PA_ERR_NOTSUPPORTED:         "Not supported",
	PA_ERR_UNKNOWN:              "Unknown error code",
	PA_ERR_NOEXTENSION:          "No such extension",
	PA_ERR_OBSOLETE:             "Obsolete functionality",
	PA_ERR_NOTIMPLEMENTED:       "Missing implementation",
	PA_ERR_FORKED:               "Client forked",
	PA_ERR_IO:                   "Input/Output error",
	PA_ERR_BUSY:                 "Device or resource busy",
}

// Error returns the daemon's description of the code.
func (e Error) Error() string {
	if e < 0 || int(e) >= len(errorText) {
		return errorText[PA_ERR_UNKNOWN]
	}

	return errorText[e]
}

var (
	// ErrInvalidArgument is returned when an operation is called with arguments of the wrong shape.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidProperty is returned when a property list has a malformed key or value.
	ErrInvalidProperty = errors.New("invalid property")
	// ErrCreateContext is returned when the library cannot create a context.
	ErrCreateContext = errors.New("unable to create context")
	// ErrCreateStream is returned when the library cannot create a stream.
	ErrCreateStream = errors.New("unable to create stream")
	// ErrClosed is returned by operations on a closed Context or Stream.
	ErrClosed = errors.New("use of closed handle")
	// ErrNotConnected is returned by stream operations that need an established stream.
	ErrNotConnected = errors.New("stream not connected")
)

// OpError records a failed native operation together with the daemon's error code.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	if err == nil {
		return nil
	}

	return &OpError{Op: op, Err: err}
}
