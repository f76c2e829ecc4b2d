package cabfile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// FS is a read-only fs.FS over the members of a cabinet.
// Directories are inferred from the member paths, backslashes separate them.
// Members whose paths are not valid fs paths are not visible.
// Every Open of a regular file decodes the member into memory.
type FS struct {
	Cabinet *Cabinet

	// Context is used for every visit the file system makes.
	// If nil, context.Background() is used.
	Context context.Context
}

// implicitDirInfo is a fs.FileInfo for an implicit directory (implicitDirEntry) value.
// This is used when the archive may not contain actual entries for a directory,
// but we need to pretend it exists so its contents can be discovered and traversed.
type implicitDirInfo struct {
	implicitDirEntry
}

// implicitDirEntry represents a directory that does not actually exist in the archive,
// but is inferred from the paths of actual files in the archive.
type implicitDirEntry struct {
	name string
}

// dirFile implements the fs.ReadDirFile interface.
type dirFile struct {
	info        fs.FileInfo
	entries     []fs.DirEntry
	entriesRead int
}

// memberFile is an opened regular member.
type memberFile struct {
	*bytes.Reader
	info fs.FileInfo
}

// Interface guards
var (
	_ fs.ReadDirFS = (*FS)(nil)
	_ fs.StatFS    = (*FS)(nil)
)

// FS returns a file system view of the cabinet.
func (c *Cabinet) FS(ctx context.Context) *FS {
	return &FS{Cabinet: c, Context: ctx}
}

// Open opens the named file.
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	members, err := f.members()
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if m := findMember(members, name); m != nil {
		data, err := f.Cabinet.Read(f.context(), m.Name)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &memberFile{Reader: bytes.NewReader(data), info: m.FileInfo()}, nil
	}

	entries, ok := dirEntries(members, name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	return &dirFile{info: implicitDirInfo{implicitDirEntry{path.Base(name)}}, entries: entries}, nil
}

// ReadDir returns a listing of all the files in the named directory, sorted by name.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	members, err := f.members()
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}

	if findMember(members, name) != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errors.New("not a directory")}
	}

	entries, ok := dirEntries(members, name)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	return entries, nil
}

// Stat returns info about the named file.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}

	members, err := f.members()
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}

	if m := findMember(members, name); m != nil {
		return m.FileInfo(), nil
	}
	if _, ok := dirEntries(members, name); ok {
		return implicitDirInfo{implicitDirEntry{path.Base(name)}}, nil
	}

	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (f *FS) members() ([]*Member, error) {
	members, err := f.Cabinet.Members(f.context())
	if err != nil {
		return nil, err
	}

	visible := members[:0]
	for _, m := range members {
		if fs.ValidPath(m.Path()) {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

func (f *FS) context() context.Context {
	if f.Context == nil {
		return context.Background()
	}
	return f.Context
}

// findMember returns the first member stored at name.
func findMember(members []*Member, name string) *Member {
	for _, m := range members {
		if m.Path() == name {
			return m
		}
	}
	return nil
}

// dirEntries lists the direct children of dir.
// It reports false if no member lies below dir.
func dirEntries(members []*Member, dir string) ([]fs.DirEntry, bool) {
	seen := make(map[string]bool)
	entries := []fs.DirEntry{}
	found := dir == "."

	for _, m := range members {
		rel := m.Path()
		if dir != "." {
			if !strings.HasPrefix(rel, dir+"/") {
				continue
			}
			rel = rel[len(dir)+1:]
		}
		found = true

		name := topDir(rel)
		if seen[name] {
			continue
		}
		seen[name] = true

		if name != rel {
			entries = append(entries, implicitDirEntry{name})
		} else {
			entries = append(entries, fs.FileInfoToDirEntry(m.FileInfo()))
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	return entries, found
}

// topDir returns the top or first directory in the path.
// It expects a path with a forward slash.
// For example, "a/b/c" => "a".
func topDir(dir string) string {
	if len(dir) > 0 && dir[0] == '/' {
		dir = dir[1:]
	}

	if pos := strings.Index(dir, "/"); pos >= 0 {
		return dir[:pos]
	}

	return dir
}

func (e implicitDirEntry) Name() string {
	return e.name
}

func (implicitDirEntry) IsDir() bool {
	return true
}

func (implicitDirEntry) Type() fs.FileMode {
	return fs.ModeDir
}

func (e implicitDirEntry) Info() (fs.FileInfo, error) {
	return implicitDirInfo{e}, nil
}

func (d implicitDirInfo) Name() string {
	return d.name
}

func (implicitDirInfo) Size() int64 {
	return 0
}

func (d implicitDirInfo) Mode() fs.FileMode {
	return d.Type() | 0o555
}

func (implicitDirInfo) ModTime() time.Time {
	return time.Time{}
}

func (implicitDirInfo) Sys() interface{} {
	return nil
}

func (df *dirFile) Stat() (fs.FileInfo, error) {
	return df.info, nil
}

func (df *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: df.info.Name(), Err: errors.New("is a directory")}
}

func (*dirFile) Close() error {
	return nil
}

func (df *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if n <= 0 {
		entries := df.entries[df.entriesRead:]
		df.entriesRead = len(df.entries)
		return entries, nil
	}

	if df.entriesRead >= len(df.entries) {
		return nil, io.EOF
	}

	if df.entriesRead+n > len(df.entries) {
		n = len(df.entries) - df.entriesRead
	}

	entries := df.entries[df.entriesRead : df.entriesRead+n]
	df.entriesRead += n

	return entries, nil
}

func (mf *memberFile) Stat() (fs.FileInfo, error) {
	return mf.info, nil
}

func (*memberFile) Close() error {
	return nil
}
