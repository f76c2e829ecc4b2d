package cabfile

import (
	"io"
	"os"

	"github.com/pchchv/cabfile/fdi"
)

// Probe reads the cabinet header without enumerating members.
func (c *Cabinet) Probe() (fdi.CabinetInfo, error) {
	if !c.mu.TryLock() {
		return fdi.CabinetInfo{}, ErrBusy
	}
	defer c.mu.Unlock()

	session, err := c.open()
	if err != nil {
		return fdi.CabinetInfo{}, err
	}

	state := newVisitState()
	c.io.state = state
	defer func() {
		c.io.state = nil
	}()

	h := c.io.Open(c.name, os.O_RDONLY)
	if h < 0 {
		return fdi.CabinetInfo{}, state.fault
	}
	defer c.io.Close(h)

	info, ok := session.IsCabinet(h)
	if state.fault != nil {
		return fdi.CabinetInfo{}, state.fault
	}
	if !ok {
		return fdi.CabinetInfo{}, &CabinetError{Code: fdi.ErrNotACabinet}
	}
	return info, nil
}

// Probe reads the header of the cabinet in r.
func Probe(r io.ReadSeeker, opts ...Option) (fdi.CabinetInfo, error) {
	c, err := New(r, opts...)
	if err != nil {
		return fdi.CabinetInfo{}, err
	}
	defer c.Close()

	return c.Probe()
}

// ProbeFile reads the header of the cabinet at path.
func ProbeFile(path string, opts ...Option) (fdi.CabinetInfo, error) {
	c, err := Open(path, opts...)
	if err != nil {
		return fdi.CabinetInfo{}, err
	}
	defer c.Close()

	return c.Probe()
}

// IsCabinet reports whether r holds a cabinet the default engine can read.
func IsCabinet(r io.ReadSeeker) bool {
	_, err := Probe(r)
	return err == nil
}
