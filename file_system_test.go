package cabfile

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pchchv/cabfile/internal/cabtest"
)

func treeCabinet(t *testing.T) *Cabinet {
	data := cabtest.MustBuild(t, []cabtest.File{
		{Name: `.github\FUNDING.yml`, Data: []byte("funding")},
		{Name: `.github\workflows\ci.yml`, Data: []byte("ci")},
		{Name: "README.md", Data: []byte("# readme")},
		{Name: `cmd\arc\main.go`, Data: []byte("package main")},
		{Name: "go.mod", Data: []byte("module x")},
		{Name: `..\outside.txt`, Data: []byte("hidden")},
	}, cabtest.Options{FilesPerFolder: 2})

	return openBytes(t, data)
}

func TestTopDir(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  string
	}{
		{input: "a/b/c", want: "a"},
		{input: "a", want: "a"},
		{input: "abc/def", want: "abc"},
		{input: "/abc/def", want: "abc"},
	} {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			got := topDir(tc.input)
			if got != tc.want {
				t.Errorf("want: '%s', got: '%s')", tc.want, got)
			}
		})
	}
}

func TestFS_ReadDir(t *testing.T) {
	fsys := treeCabinet(t).FS(context.Background())

	want := map[string][]string{
		".":                 {".github", "README.md", "cmd", "go.mod"},
		".github":           {"FUNDING.yml", "workflows"},
		".github/workflows": {"ci.yml"},
		"cmd":               {"arc"},
		"cmd/arc":           {"main.go"},
	}

	for baseDir, wantLS := range want {
		baseDir := baseDir
		wantLS := wantLS
		t.Run(fmt.Sprintf("ReadDir(%s)", baseDir), func(t *testing.T) {
			dis, err := fsys.ReadDir(baseDir)
			require.NoError(t, err)

			dirs := []string{}
			for _, di := range dis {
				dirs = append(dirs, di.Name())
			}
			assert.Equal(t, wantLS, dirs)
		})
		t.Run(fmt.Sprintf("Open(%s)", baseDir), func(t *testing.T) {
			f, err := fsys.Open(baseDir)
			require.NoError(t, err)
			defer f.Close()

			rdf, ok := f.(fs.ReadDirFile)
			require.True(t, ok, "'%s' did not return a fs.ReadDirFile, %+v", baseDir, f)

			dis, err := rdf.ReadDir(-1)
			require.NoError(t, err)

			dirs := []string{}
			for _, di := range dis {
				dirs = append(dirs, di.Name())
			}

			// Stabilize the sort order
			sort.Strings(dirs)
			assert.Equal(t, wantLS, dirs)
		})
	}
}

func TestFS_ReadDirPaging(t *testing.T) {
	f, err := treeCabinet(t).FS(context.Background()).Open(".")
	require.NoError(t, err)

	rdf := f.(fs.ReadDirFile)
	var names []string
	for {
		dis, err := rdf.ReadDir(3)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.LessOrEqual(t, len(dis), 3)
		for _, di := range dis {
			names = append(names, di.Name())
		}
	}
	assert.Equal(t, []string{".github", "README.md", "cmd", "go.mod"}, names)
}

func TestFS_OpenAndStat(t *testing.T) {
	fsys := treeCabinet(t).FS(context.Background())

	data, err := fs.ReadFile(fsys, "cmd/arc/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main", string(data))

	info, err := fsys.Stat(".github/workflows")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "workflows", info.Name())

	info, err = fsys.Stat("go.mod")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, int64(len("module x")), info.Size())
	assert.Equal(t, cabtest.DefaultTime, info.ModTime())

	_, err = fsys.Open("missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = fsys.Open("../outside.txt")
	assert.ErrorIs(t, err, fs.ErrInvalid)

	_, err = fsys.ReadDir("go.mod")
	assert.Error(t, err)
}

func TestFS_Conformance(t *testing.T) {
	fsys := treeCabinet(t).FS(context.Background())

	require.NoError(t, fstest.TestFS(fsys,
		".github/FUNDING.yml",
		".github/workflows/ci.yml",
		"README.md",
		"cmd/arc/main.go",
		"go.mod",
	))
}
