package cabfile

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"

	"github.com/pchchv/cabfile/fdi"
)

var (
	errNotReadable = errors.New("stream is not readable")
	errNotWritable = errors.New("stream is not writable")
	errNotSeekable = errors.New("stream is not seekable")
)

// hostIO serves the engine's virtual I/O calls from a HandleTable.
// Paths name either a caller supplied stream or a file on fs.
// No call panics or returns an error: the first failure is captured
// in the current visitState and -1 is returned to the engine.
type hostIO struct {
	fs      afero.Fs
	handles *HandleTable
	virtual map[string]io.ReadSeeker
	state   *visitState
}

var _ fdi.IO = (*hostIO)(nil)

func (h *hostIO) Open(path string, flag int) int {
	if rs, ok := h.virtual[path]; ok {
		if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
			return h.fail(&IOError{Op: "open", Path: path, Err: fs.ErrPermission})
		}
		return h.track(h.handles.register(handleEntry{stream: rs, path: path}))
	}

	f, err := h.fs.OpenFile(path, flag, 0o644)
	if err != nil {
		return h.fail(&IOError{Op: "open", Path: path, Err: err})
	}
	return h.track(h.handles.register(handleEntry{stream: f, path: path, owned: true}))
}

func (h *hostIO) Read(hd int, p []byte) int {
	stream, ok := h.handles.Lookup(hd)
	if !ok {
		return h.fail(&IOError{Op: "read", Handle: hd, Err: fs.ErrClosed})
	}
	r, ok := stream.(io.Reader)
	if !ok {
		return h.fail(&IOError{Op: "read", Handle: hd, Err: errNotReadable})
	}

	n, err := io.ReadFull(r, p)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return h.fail(&IOError{Op: "read", Handle: hd, Err: err})
	}
	return n
}

func (h *hostIO) Write(hd int, p []byte) int {
	stream, ok := h.handles.Lookup(hd)
	if !ok {
		return h.fail(&IOError{Op: "write", Handle: hd, Err: fs.ErrClosed})
	}
	w, ok := stream.(io.Writer)
	if !ok {
		return h.fail(&IOError{Op: "write", Handle: hd, Err: errNotWritable})
	}

	n, err := w.Write(p)
	if err != nil {
		return h.fail(&IOError{Op: "write", Handle: hd, Err: err})
	}
	return n
}

func (h *hostIO) Seek(hd int, offset int64, whence int) int64 {
	stream, ok := h.handles.Lookup(hd)
	if !ok {
		return int64(h.fail(&IOError{Op: "seek", Handle: hd, Err: fs.ErrClosed}))
	}
	s, ok := stream.(io.Seeker)
	if !ok {
		return int64(h.fail(&IOError{Op: "seek", Handle: hd, Err: errNotSeekable}))
	}

	pos, err := s.Seek(offset, whence)
	if err != nil {
		return int64(h.fail(&IOError{Op: "seek", Handle: hd, Err: err}))
	}
	return pos
}

func (h *hostIO) Close(hd int) int {
	if !h.handles.Contains(hd) {
		return h.fail(&IOError{Op: "close", Handle: hd, Err: fs.ErrClosed})
	}

	e := h.handles.release(hd)
	if h.state != nil {
		delete(h.state.opened, hd)
	}
	if e.owned {
		if err := closeStream(e.stream); err != nil {
			return h.fail(&IOError{Op: "close", Handle: hd, Path: e.path, Err: err})
		}
	}
	return 0
}

func (h *hostIO) track(hd int) int {
	if h.state != nil {
		h.state.opened[hd] = true
	}
	return hd
}

func (h *hostIO) fail(err error) int {
	if h.state != nil {
		h.state.capture(err)
	}
	return -1
}
