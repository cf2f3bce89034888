package forward

import (
	"errors"
	"fmt"
)

// Operations reported in a FatalError.
const (
	OpDeviceRead    = "device read"
	OpDeviceWrite   = "device write"
	OpSocketReceive = "socket receive"
	OpSocketSend    = "socket send"
)

var errEmptyRead = errors.New("empty read")

// FatalError is a transport fault during steady-state forwarding: an I/O error
// or a short read/write on the device or the socket. It is never retried; the
// process is expected to exit and be restarted by its supervisor.
type FatalError struct {
	Op   string
	N    int
	Want int
	Err  error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: short transfer %d/%d bytes", e.Op, e.N, e.Want)
}

// Unwrap returns the underlying I/O error, if any.
func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is, or wraps, a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

func ioFault(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}

func shortFault(op string, n, want int) error {
	return &FatalError{Op: op, N: n, Want: want}
}
