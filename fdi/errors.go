package fdi

import "fmt"

// ErrorCode is the failure reported by an engine in ERF.Oper.
// The values match the FDIERROR enumeration.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrCabinetNotFound
	ErrNotACabinet
	ErrUnknownCabinetVersion
	ErrCorruptCabinet
	ErrAllocFail
	ErrBadCompressionType
	ErrMDIFail
	ErrTargetFile
	ErrReserveMismatch
	ErrWrongCabinet
	ErrUserAbort
	ErrEOF
)

var codeMessages = [...]string{
	ErrNone:                  "no error",
	ErrCabinetNotFound:       "cabinet not found",
	ErrNotACabinet:           "not a cabinet",
	ErrUnknownCabinetVersion: "unknown cabinet version",
	ErrCorruptCabinet:        "corrupt cabinet",
	ErrAllocFail:             "memory allocation failed",
	ErrBadCompressionType:    "unknown compression type",
	ErrMDIFail:               "failure decompressing data",
	ErrTargetFile:            "failure writing to target file",
	ErrReserveMismatch:       "cabinets in set have different reserve sizes",
	ErrWrongCabinet:          "cabinet returned on next-cabinet is incorrect",
	ErrUserAbort:             "application aborted",
	ErrEOF:                   "unexpected end of file",
}

func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(codeMessages) {
		return codeMessages[c]
	}
	return fmt.Sprintf("error code %d", int(c))
}

// ERF is the session error slot filled by an engine when Copy fails.
type ERF struct {
	// Oper is the failure code.
	Oper ErrorCode

	// Type is an engine specific detail, such as the folder or block involved.
	Type int

	// Error is set when Oper is meaningful.
	Error bool
}

// Set records a failure.
func (e *ERF) Set(code ErrorCode, detail int) {
	e.Oper, e.Type, e.Error = code, detail, true
}

// Reset clears the slot.
func (e *ERF) Reset() {
	*e = ERF{}
}
