package cabfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding"

	"github.com/pchchv/cabfile/fdi"
)

// streamName is the path under which a caller supplied stream is offered to the engine.
const streamName = "<stream>"

// Cabinet is an open cabinet.
//
// All traversal happens inside Visit, which drives one decoder engine session.
// The session is created on the first visit, destroyed by Close and created
// again by the next visit. Only one visit may run at a time: a Cabinet can be
// shared between goroutines, but callers that need parallel traversal should
// open one Cabinet each.
type Cabinet struct {
	name            string
	fs              afero.Fs
	engine          string
	textEncoding    string
	continueOnError bool
	encoding        encoding.Encoding

	mu      sync.Mutex // held while the engine runs
	handles HandleTable
	io      *hostIO
	erf     fdi.ERF
	session fdi.Decoder
}

// Open opens the cabinet at path.
// Cabinets wrapped in a registered compression format, such as .cab.gz,
// are decompressed into memory first.
func Open(path string, opts ...Option) (*Cabinet, error) {
	c, err := newCabinet(path, opts)
	if err != nil {
		return nil, err
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	format, stream, err := Identify(filepath.Base(path), f)
	if err != nil {
		// unknown content is left to the engine, which reports it as not a cabinet
		return c, nil
	}

	comp := compressionOf(format)
	if comp == nil {
		return c, nil
	}

	spooled, err := spool(comp, stream)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.io.virtual[path] = spooled

	return c, nil
}

// New returns a Cabinet reading from r. The engine reads r from its beginning.
// The caller keeps ownership of r and must not use it while a visit runs.
func New(r io.ReadSeeker, opts ...Option) (*Cabinet, error) {
	c, err := newCabinet(streamName, opts)
	if err != nil {
		return nil, err
	}

	var source io.ReadSeeker = r
	if format, stream, err := Identify("", r); err == nil {
		if comp := compressionOf(format); comp != nil {
			spooled, err := spool(comp, stream)
			if err != nil {
				return nil, err
			}
			source = spooled
		}
	}
	c.io.virtual[streamName] = source

	return c, nil
}

func newCabinet(name string, opts []Option) (*Cabinet, error) {
	c := &Cabinet{
		name: name,
		fs:   afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(c)
	}

	enc, err := lookupEncoding(c.textEncoding)
	if err != nil {
		return nil, err
	}
	c.encoding = enc

	c.io = &hostIO{
		fs:      c.fs,
		handles: &c.handles,
		virtual: make(map[string]io.ReadSeeker),
	}

	return c, nil
}

// Name returns the path the cabinet was opened from.
func (c *Cabinet) Name() string {
	return c.name
}

// FileManager returns the handle table shared with the decoder engine.
// It must not be used while a visit runs.
func (c *Cabinet) FileManager() *HandleTable {
	return &c.handles
}

// Visit offers every member to fn, in cabinet order, exactly once each.
//
// It returns true when every member was offered and the engine finished,
// and false when fn or a completion action returned ErrStop.
// Engine failures are returned as *CabinetError, host I/O failures as *IOError,
// and errors returned by fn or a completion action unchanged.
// Handles left open by an aborted visit are released before Visit returns.
func (c *Cabinet) Visit(ctx context.Context, fn VisitFunc) (bool, error) {
	if !c.mu.TryLock() {
		return false, ErrBusy
	}
	defer c.mu.Unlock()

	session, err := c.open()
	if err != nil {
		return false, err
	}

	state := newVisitState()
	d := newDispatcher(ctx, c, state, fn)

	c.io.state = state
	defer func() {
		d.teardown()
		c.io.state = nil
	}()

	c.erf.Reset()
	ok := session.Copy(c.name, d.notify)

	out, err := state.result(ok, c.erf)
	return out == completed, err
}

// Close ends the engine session. The Cabinet stays usable:
// the next visit starts a new session.
func (c *Cabinet) Close() error {
	if !c.mu.TryLock() {
		return ErrBusy
	}
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}

	err := c.session.Destroy()
	c.session = nil
	return err
}

// open returns the engine session, creating it on first use.
func (c *Cabinet) open() (fdi.Decoder, error) {
	if c.session != nil {
		return c.session, nil
	}

	engine, ok := fdi.Lookup(c.engine)
	if !ok {
		if c.engine == "" {
			return nil, ErrPlatformUnavailable
		}
		return nil, fmt.Errorf("%w: %q", ErrPlatformUnavailable, c.engine)
	}

	session, err := engine.Create(c.io, &c.erf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}
	c.session = session

	return session, nil
}

// spool decompresses the whole stream into memory,
// the engine needs a seekable source.
func spool(comp Decompressor, r io.Reader) (*bytes.Reader, error) {
	rc, err := comp.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening decompressor: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return bytes.NewReader(data), nil
}
