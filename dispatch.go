package cabfile

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pchchv/golog"

	"github.com/pchchv/cabfile/fdi"
)

// Decision is what a VisitFunc wants done with a member.
// The zero value is Skip.
type Decision struct {
	sink io.Writer
	done func() error
}

// Skip leaves the member data unread.
var Skip = Decision{}

// Copy asks for the member data to be written to sink.
// done runs once, after the last byte was written; it may return ErrStop.
// If done is nil, sink is closed at that point when it implements io.Closer.
// A nil sink is a programming error and panics; use Skip to leave a member unread.
func Copy(sink io.Writer, done func() error) Decision {
	if sink == nil {
		panic("cabfile: Copy with nil sink")
	}
	return Decision{sink: sink, done: done}
}

// IsCopy reports whether the decision copies data.
func (d Decision) IsCopy() bool {
	return d.sink != nil
}

// VisitFunc is called once per member, in cabinet order.
// Returning ErrStop ends the visit early; any other error aborts it
// and is returned by Visit unchanged.
type VisitFunc func(m *Member) (Decision, error)

// pendingCopy is a member whose data is being written to a handle.
type pendingCopy struct {
	member *Member
	sink   io.Writer
	done   func() error
}

// dispatcher turns engine notifications into VisitFunc calls.
type dispatcher struct {
	ctx     context.Context
	cab     *Cabinet
	state   *visitState
	visit   VisitFunc
	pending map[int]pendingCopy
}

func newDispatcher(ctx context.Context, cab *Cabinet, state *visitState, visit VisitFunc) *dispatcher {
	return &dispatcher{
		ctx:     ctx,
		cab:     cab,
		state:   state,
		visit:   visit,
		pending: make(map[int]pendingCopy),
	}
}

func (d *dispatcher) notify(kind fdi.Kind, n *fdi.Notification) int {
	switch kind {
	case fdi.CabinetHeader, fdi.Enumerate:
		return 0
	case fdi.CopyFile:
		return d.copyFile(n)
	case fdi.CloseFileInfo:
		return d.closeFile(n)
	default:
		d.state.capture(fmt.Errorf("%w: %s", ErrProtocol, kind))
		return -1
	}
}

func (d *dispatcher) copyFile(n *fdi.Notification) int {
	if err := d.ctx.Err(); err != nil {
		d.state.capture(err)
		return -1
	}

	m, err := d.cab.member(n)
	if err != nil {
		d.state.capture(err)
		return -1
	}

	decision, err := d.visit(m)
	if err != nil {
		d.state.capture(err)
		return -1
	}
	if !decision.IsCopy() {
		return 0
	}

	h := d.cab.handles.register(handleEntry{stream: decision.sink, path: m.Name})
	d.state.opened[h] = true
	d.pending[h] = pendingCopy{member: m, sink: decision.sink, done: decision.done}

	return h
}

func (d *dispatcher) closeFile(n *fdi.Notification) int {
	p, ok := d.pending[n.Handle]
	if !ok {
		return 0
	}

	delete(d.pending, n.Handle)
	delete(d.state.opened, n.Handle)
	d.cab.handles.release(n.Handle)

	var err error
	if p.done != nil {
		err = p.done()
	} else {
		err = closeStream(p.sink)
	}
	if err != nil {
		d.state.capture(err)
		return -1
	}

	return 0
}

// teardown releases every handle the visit left open.
// Owned streams and unfinished sinks are closed; completion actions do not run.
func (d *dispatcher) teardown() {
	handles := make([]int, 0, len(d.state.opened))
	for h := range d.state.opened {
		handles = append(handles, h)
	}
	sort.Ints(handles)

	for _, h := range handles {
		e := d.cab.handles.release(h)
		_, unfinished := d.pending[h]
		if !e.owned && !unfinished {
			continue
		}
		if err := closeStream(e.stream); err != nil {
			golog.Info("[ERROR] closing handle %d (%s): %v", h, e.path, err)
		}
	}

	clear(d.state.opened)
	clear(d.pending)
}
