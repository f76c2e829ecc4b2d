package cabfile

import (
	"errors"
	"fmt"

	"github.com/pchchv/cabfile/fdi"
)

var (
	// ErrPlatformUnavailable is returned when no decoder engine is registered
	// or the requested engine is unknown.
	ErrPlatformUnavailable = errors.New("cabfile: decoder engine unavailable")

	// ErrCorrupt matches every *CabinetError.
	ErrCorrupt = errors.New("cabfile: corrupt or unreadable cabinet")

	// ErrNotFound is returned when a named member is not in the cabinet.
	ErrNotFound = errors.New("cabfile: member not found")

	// ErrStop may be returned by a VisitFunc or a completion action to end
	// a visit early. Visit reports it as an incomplete visit, never as an error.
	ErrStop = errors.New("cabfile: stop visit")

	// ErrBusy is returned when a visit starts while another one on the same
	// Cabinet is still running, including a visit started from inside a callback.
	ErrBusy = errors.New("cabfile: cabinet is busy with another visit")

	// ErrProtocol is returned when the engine sends a notification the
	// dispatcher does not handle.
	ErrProtocol = errors.New("cabfile: unexpected engine notification")

	// ErrUnsafePath is returned when a member name would be extracted
	// outside of the target directory.
	ErrUnsafePath = errors.New("cabfile: unsafe member path")

	// ErrNotImplemented is returned by operations cabinets do not support,
	// such as password protected extraction.
	ErrNotImplemented = errors.New("cabfile: not implemented")
)

// CabinetError is a failure reported by the decoder engine:
// a malformed header, truncated data, a checksum mismatch or a decoding failure.
type CabinetError struct {
	Code   fdi.ErrorCode
	Detail int
}

func (e *CabinetError) Error() string {
	if e.Detail != 0 {
		return fmt.Sprintf("cabfile: %s (%d)", e.Code, e.Detail)
	}
	return "cabfile: " + e.Code.String()
}

func (e *CabinetError) Is(target error) bool {
	return target == ErrCorrupt
}

// IOError is a host I/O failure raised while the engine was running.
type IOError struct {
	Op     string
	Handle int
	Path   string
	Err    error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("cabfile: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("cabfile: %s handle %d: %v", e.Op, e.Handle, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// notFound wraps ErrNotFound with the member name.
func notFound(name string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

// isArchiveFailure reports whether err is a cabinet or host I/O failure.
func isArchiveFailure(err error) bool {
	var ioErr *IOError
	return errors.Is(err, ErrCorrupt) || errors.As(err, &ioErr)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
