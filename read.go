package cabfile

import (
	"bytes"
	"context"
	"io"
)

// maxPrealloc bounds the buffer reserved for a member up front.
// The declared size is not verified until the data has been decoded.
const maxPrealloc = 1 << 20

// Entry is a member together with its data.
type Entry struct {
	Member *Member
	Data   []byte
}

// Members returns every member in cabinet order.
func (c *Cabinet) Members(ctx context.Context) ([]*Member, error) {
	var members []*Member
	_, err := c.Visit(ctx, func(m *Member) (Decision, error) {
		members = append(members, m)
		return Skip, nil
	})
	if err != nil {
		return nil, err
	}

	return members, nil
}

// Names returns the member names in cabinet order.
func (c *Cabinet) Names(ctx context.Context) ([]string, error) {
	members, err := c.Members(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names, nil
}

// Len returns the number of members.
func (c *Cabinet) Len(ctx context.Context) (int, error) {
	n := 0
	_, err := c.Visit(ctx, func(*Member) (Decision, error) {
		n++
		return Skip, nil
	})
	return n, err
}

// Member returns the first member called name.
func (c *Cabinet) Member(ctx context.Context, name string) (*Member, error) {
	var found *Member
	_, err := c.Visit(ctx, func(m *Member) (Decision, error) {
		if m.Name != name {
			return Skip, nil
		}
		found = m
		return Skip, ErrStop
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, notFound(name)
	}

	return found, nil
}

// Contains reports whether a member called name exists.
func (c *Cabinet) Contains(ctx context.Context, name string) (bool, error) {
	_, err := c.Member(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	}
	return false, err
}

// Read returns the data of the first member called name.
func (c *Cabinet) Read(ctx context.Context, name string) ([]byte, error) {
	var (
		buf   bytes.Buffer
		found bool
	)
	_, err := c.Visit(ctx, func(m *Member) (Decision, error) {
		if m.Name != name {
			return Skip, nil
		}
		buf.Grow(sizeHint(m))
		return Copy(&buf, func() error {
			found = true
			return ErrStop
		}), nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(name)
	}

	return buf.Bytes(), nil
}

// ReadMany returns the entries for names, in the order the names are given.
// Names that are not in the cabinet are left out, duplicates are returned once.
// When a name occurs more than once in the cabinet, the first member wins.
func (c *Cabinet) ReadMany(ctx context.Context, names ...string) ([]Entry, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	if len(wanted) == 0 {
		return []Entry{}, nil
	}

	read := make(map[string]Entry, len(wanted))
	_, err := c.Visit(ctx, func(m *Member) (Decision, error) {
		if !wanted[m.Name] {
			return Skip, nil
		}
		if _, ok := read[m.Name]; ok {
			return Skip, nil
		}

		buf := bytes.NewBuffer(make([]byte, 0, sizeHint(m)))
		return Copy(buf, func() error {
			read[m.Name] = Entry{Member: m, Data: buf.Bytes()}
			if len(read) == len(wanted) {
				return ErrStop
			}
			return nil
		}), nil
	})
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(read))
	for _, name := range names {
		if e, ok := read[name]; ok {
			entries = append(entries, e)
			delete(read, name)
		}
	}
	return entries, nil
}

// ReadAll returns every member with its data, in cabinet order.
func (c *Cabinet) ReadAll(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	_, err := c.Visit(ctx, func(m *Member) (Decision, error) {
		buf := bytes.NewBuffer(make([]byte, 0, sizeHint(m)))
		return Copy(buf, func() error {
			entries = append(entries, Entry{Member: m, Data: buf.Bytes()})
			return nil
		}), nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Test decodes every member and reports whether the cabinet is intact.
// Failures of the cabinet itself yield false with a nil error;
// other failures, such as an unavailable engine, are returned.
func (c *Cabinet) Test(ctx context.Context) (bool, error) {
	ok, err := c.Visit(ctx, func(*Member) (Decision, error) {
		return Copy(io.Discard, nil), nil
	})
	if err != nil {
		if isArchiveFailure(err) {
			return false, nil
		}
		return false, err
	}

	return ok, nil
}

func sizeHint(m *Member) int {
	return int(min(m.Size, maxPrealloc))
}
