package cabfile

import (
	"fmt"
	"io"
)

// HandleTable maps small integer handles to streams for the decoder engine.
// Handles start at 1, because 0 tells the engine to skip a member,
// and the lowest released handle is reused first.
// A HandleTable is not safe for concurrent use.
type HandleTable struct {
	entries []handleEntry
	live    int
}

type handleEntry struct {
	stream any
	path   string
	owned  bool // closed on release
	live   bool
}

// Register adds stream to the table and returns its handle.
// The stream should implement some of io.Reader, io.Writer and io.Seeker.
func (t *HandleTable) Register(stream any) int {
	return t.register(handleEntry{stream: stream})
}

func (t *HandleTable) register(e handleEntry) int {
	e.live = true
	t.live++

	for i := range t.entries {
		if !t.entries[i].live {
			t.entries[i] = e
			return i + 1
		}
	}

	t.entries = append(t.entries, e)
	return len(t.entries)
}

// Lookup returns the stream registered under h.
func (t *HandleTable) Lookup(h int) (any, bool) {
	e, ok := t.entry(h)
	if !ok {
		return nil, false
	}
	return e.stream, true
}

// Contains reports whether h is registered.
func (t *HandleTable) Contains(h int) bool {
	_, ok := t.entry(h)
	return ok
}

// Len returns the number of registered handles.
func (t *HandleTable) Len() int {
	return t.live
}

// Handles returns the registered handles in ascending order.
func (t *HandleTable) Handles() []int {
	hs := make([]int, 0, t.live)
	for i, e := range t.entries {
		if e.live {
			hs = append(hs, i+1)
		}
	}
	return hs
}

// Release removes h from the table and returns its stream.
// Releasing a handle that is not registered is a programming error and panics.
func (t *HandleTable) Release(h int) any {
	return t.release(h).stream
}

func (t *HandleTable) release(h int) handleEntry {
	e, ok := t.entry(h)
	if !ok {
		panic(fmt.Sprintf("cabfile: release of unregistered handle %d", h))
	}

	t.entries[h-1] = handleEntry{}
	t.live--

	// keep the address space dense
	for n := len(t.entries); n > 0 && !t.entries[n-1].live; n-- {
		t.entries = t.entries[:n-1]
	}

	return e
}

// Mapped registers stream for the duration of fn and then releases it.
// The stream is closed after release if it implements io.Closer.
func (t *HandleTable) Mapped(stream any, fn func(h int) error) (err error) {
	h := t.Register(stream)
	defer func() {
		if cerr := closeStream(t.Release(h)); err == nil {
			err = cerr
		}
	}()

	return fn(h)
}

func (t *HandleTable) entry(h int) (handleEntry, bool) {
	if h < 1 || h > len(t.entries) || !t.entries[h-1].live {
		return handleEntry{}, false
	}
	return t.entries[h-1], true
}

func closeStream(stream any) error {
	if c, ok := stream.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
