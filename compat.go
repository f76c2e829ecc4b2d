package cabfile

import (
	"context"
	"fmt"
	"io"
	"time"
)

// The methods below mirror the member listing API of zip archive readers.

// Namelist returns the member names in cabinet order.
func (c *Cabinet) Namelist(ctx context.Context) ([]string, error) {
	return c.Names(ctx)
}

// Infolist returns every member in cabinet order.
func (c *Cabinet) Infolist(ctx context.Context) ([]*Member, error) {
	return c.Members(ctx)
}

// GetInfo returns the member called name.
func (c *Cabinet) GetInfo(ctx context.Context, name string) (*Member, error) {
	return c.Member(ctx, name)
}

// NameToInfo maps member names to members.
// When a name occurs more than once, the last member wins.
func (c *Cabinet) NameToInfo(ctx context.Context) (map[string]*Member, error) {
	members, err := c.Members(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Member, len(members))
	for _, m := range members {
		byName[m.Name] = m
	}
	return byName, nil
}

// PrintDir writes a table of the members to w.
func (c *Cabinet) PrintDir(ctx context.Context, w io.Writer) error {
	members, err := c.Members(ctx)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%-46s %19s %12s\n", "File Name", "Modified    ", "Size"); err != nil {
		return err
	}
	for _, m := range members {
		modified := m.Modified.Format(time.DateTime)
		if m.Modified.IsZero() {
			modified = fmt.Sprintf("%19s", "-")
		}
		if _, err := fmt.Fprintf(w, "%-46s %s %12d\n", m.Name, modified, m.Size); err != nil {
			return err
		}
	}
	return nil
}

// SetPassword always fails: cabinets are never encrypted.
func (c *Cabinet) SetPassword(password []byte) error {
	return fmt.Errorf("%w: cabinet passwords", ErrNotImplemented)
}

// ReadPassword is Read with a password. Only an empty password is accepted.
func (c *Cabinet) ReadPassword(ctx context.Context, name string, password []byte) ([]byte, error) {
	if len(password) > 0 {
		return nil, fmt.Errorf("%w: cabinet passwords", ErrNotImplemented)
	}
	return c.Read(ctx, name)
}

// ExtractPassword is Extract with a password. Only an empty password is accepted.
func (c *Cabinet) ExtractPassword(ctx context.Context, name, dir string, password []byte) (string, error) {
	if len(password) > 0 {
		return "", fmt.Errorf("%w: cabinet passwords", ErrNotImplemented)
	}
	return c.Extract(ctx, name, dir)
}
