package cabfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pchchv/golog"
	"github.com/spf13/afero"
)

// Extract writes the first member called name below dir
// and returns the path of the written file.
func (c *Cabinet) Extract(ctx context.Context, name, dir string) (string, error) {
	var (
		written string
		pending afero.File
	)
	_, err := c.Visit(ctx, func(m *Member) (Decision, error) {
		if m.Name != name {
			return Skip, nil
		}

		target, err := targetPath(dir, name)
		if err != nil {
			return Skip, err
		}
		f, err := c.create(target)
		if err != nil {
			return Skip, err
		}
		pending = f
		return Copy(f, func() error {
			pending = nil
			if err := c.finish(f, m); err != nil {
				c.remove(f)
				return err
			}
			written = target
			return ErrStop
		}), nil
	})
	if err != nil {
		if pending != nil {
			c.remove(pending)
		}
		return "", err
	}
	if written == "" {
		return "", notFound(name)
	}

	return written, nil
}

// ExtractAll writes members below dir, in cabinet order, and returns the extracted members.
// With no names every member is extracted; otherwise only the named ones,
// and names that are not in the cabinet are ignored.
// A member that cannot be created aborts the extraction,
// unless the Cabinet was opened WithContinueOnError.
// A file whose data was not completely written is removed.
func (c *Cabinet) ExtractAll(ctx context.Context, dir string, names ...string) ([]*Member, error) {
	var wanted map[string]bool
	if len(names) > 0 {
		wanted = make(map[string]bool, len(names))
		for _, name := range names {
			wanted[name] = true
		}
	}

	var (
		extracted []*Member
		pending   afero.File
	)
	_, err := c.Visit(ctx, func(m *Member) (Decision, error) {
		if wanted != nil && !wanted[m.Name] {
			return Skip, nil
		}

		f, err := c.createMember(dir, m)
		if err != nil {
			if c.continueOnError && ctx.Err() == nil {
				golog.Info("[ERROR] %v", err)
				return Skip, nil
			}
			return Skip, err
		}
		pending = f
		return Copy(f, func() error {
			pending = nil
			if err := c.finish(f, m); err != nil {
				c.remove(f)
				return err
			}
			extracted = append(extracted, m)
			return nil
		}), nil
	})
	if err != nil {
		if pending != nil {
			c.remove(pending)
		}
		return extracted, err
	}

	return extracted, nil
}

func (c *Cabinet) createMember(dir string, m *Member) (afero.File, error) {
	target, err := targetPath(dir, m.Name)
	if err != nil {
		return nil, err
	}

	f, err := c.create(target)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", m.Name, err)
	}
	return f, nil
}

// create opens target for writing, creating its parent directories.
func (c *Cabinet) create(target string) (afero.File, error) {
	if err := c.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}

	f, err := c.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	return f, nil
}

// finish closes an extracted file and applies the member timestamp.
func (c *Cabinet) finish(f afero.File, m *Member) error {
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: f.Name(), Err: err}
	}

	if !m.Modified.IsZero() {
		if err := c.fs.Chtimes(f.Name(), m.Modified, m.Modified); err != nil {
			golog.Info("[ERROR] setting modification time of %s: %v", f.Name(), err)
		}
	}
	return nil
}

// remove deletes a partially written file. The visit has already closed it.
func (c *Cabinet) remove(f afero.File) {
	if err := c.fs.Remove(f.Name()); err != nil {
		golog.Info("[ERROR] removing unfinished file %s: %v", f.Name(), err)
	}
}

// targetPath maps a member name to a path below dir.
// Backslashes separate directories; names that would escape dir are rejected.
func targetPath(dir, name string) (string, error) {
	local := filepath.FromSlash(slashName(name))
	if !filepath.IsLocal(local) || filepath.Clean(local) == "." {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	return filepath.Join(dir, local), nil
}
