package mscf

import (
	"errors"
	"io"

	"github.com/pchchv/cabfile/fdi"
)

// errHostIO is returned when the host reports a failed I/O call.
// The host keeps the underlying cause.
var errHostIO = errors.New("mscf: host i/o failure")

// handleReader adapts a host handle to io.ReadSeeker.
type handleReader struct {
	io fdi.IO
	h  int
}

func (r *handleReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := r.io.Read(r.h, p)
	switch {
	case n < 0:
		return 0, errHostIO
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

func (r *handleReader) Seek(offset int64, whence int) (int64, error) {
	pos := r.io.Seek(r.h, offset, whence)
	if pos < 0 {
		return 0, errHostIO
	}
	return pos, nil
}

func writeAll(hostIO fdi.IO, h int, p []byte) error {
	for len(p) > 0 {
		n := hostIO.Write(h, p)
		switch {
		case n < 0:
			return errHostIO
		case n == 0:
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
