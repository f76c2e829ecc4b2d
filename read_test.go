package cabfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"runtime"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pchchv/cabfile/fdi/mscf"
	"github.com/pchchv/cabfile/internal/cabtest"
)

func TestHelloScenario(t *testing.T) {
	c := openBytes(t, cabtest.Text(t, "hello.txt", "hello from cabfile\n"))
	ctx := context.Background()

	names, err := c.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello.txt"}, names)

	data, err := c.Read(ctx, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello from cabfile\n", string(data))

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNamesMatchMembers(t *testing.T) {
	c := openBytes(t, threeMembers(t))
	ctx := context.Background()

	names, err := c.Names(ctx)
	require.NoError(t, err)
	members, err := c.Members(ctx)
	require.NoError(t, err)

	require.Len(t, members, len(names))
	for i, m := range members {
		assert.Equal(t, names[i], m.Name)
	}

	again, err := c.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, names, again)
}

func TestReadNotFound(t *testing.T) {
	c := openBytes(t, threeMembers(t))
	ctx := context.Background()

	_, err := c.Read(ctx, "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Member(ctx, "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := c.Contains(ctx, "missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Contains(ctx, "beta.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	m, err := c.Member(ctx, "gamma.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(len("gamma\n")), m.Size)
}

func TestReadFirstOfDuplicates(t *testing.T) {
	data := cabtest.Text(t, "dup.txt", "first", "other.txt", "x", "dup.txt", "second")
	c := openBytes(t, data)
	ctx := context.Background()

	got, err := c.Read(ctx, "dup.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	byName, err := c.NameToInfo(ctx)
	require.NoError(t, err)
	assert.Len(t, byName, 2)
	assert.Equal(t, uint64(len("second")), byName["dup.txt"].Size)
}

func TestReadMany(t *testing.T) {
	c := openBytes(t, threeMembers(t))
	ctx := context.Background()

	for _, tc := range []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "caller order", input: []string{"gamma.txt", "alpha.txt"}, want: []string{"gamma.txt", "alpha.txt"}},
		{name: "missing omitted", input: []string{"beta.txt", "missing.txt"}, want: []string{"beta.txt"}},
		{name: "duplicates once", input: []string{"beta.txt", "beta.txt"}, want: []string{"beta.txt"}},
		{name: "nothing found", input: []string{"missing.txt"}, want: []string{}},
		{name: "no names", input: nil, want: []string{}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			entries, err := c.ReadMany(ctx, tc.input...)
			require.NoError(t, err)

			got := []string{}
			for _, e := range entries {
				got = append(got, e.Member.Name)
				assert.Equal(t, e.Member.Name[:len(e.Member.Name)-len(".txt")]+"\n", string(e.Data))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReadAll(t *testing.T) {
	c := openBytes(t, threeMembers(t))

	entries, err := c.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	want := map[string]string{"alpha.txt": "alpha\n", "beta.txt": "beta\n", "gamma.txt": "gamma\n"}
	for i, name := range []string{"alpha.txt", "beta.txt", "gamma.txt"} {
		assert.Equal(t, name, entries[i].Member.Name)
		assert.Equal(t, want[name], string(entries[i].Data))
	}
}

func TestReadAllMatchesExtractAll(t *testing.T) {
	data := cabtest.MustBuild(t, []cabtest.File{
		{Name: `dir\one.bin`, Data: []byte("one")},
		{Name: `dir\sub\two.bin`, Data: make([]byte, 70_000)},
		{Name: "three.bin", Data: []byte("three")},
	}, cabtest.Options{Compression: mscf.CompressionMSZIP, Checksum: true, FilesPerFolder: 2})

	fsys := afero.NewMemMapFs()
	c := openBytes(t, data, WithFs(fsys))
	ctx := context.Background()

	entries, err := c.ReadAll(ctx)
	require.NoError(t, err)

	extracted, err := c.ExtractAll(ctx, "/out")
	require.NoError(t, err)
	require.Len(t, extracted, len(entries))

	for i, e := range entries {
		assert.Equal(t, e.Member.Name, extracted[i].Name)

		got, err := afero.ReadFile(fsys, "/out/"+e.Member.Path())
		require.NoError(t, err)
		assert.Equal(t, e.Data, got)
	}
}

func TestTruncatedScenario(t *testing.T) {
	data := threeMembers(t)
	c := openBytes(t, data[:len(data)/3])
	ctx := context.Background()

	ok, err := c.Test(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.ReadAll(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestTest(t *testing.T) {
	c := openBytes(t, threeMembers(t))

	ok, err := c.Test(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	c = openBytes(t, threeMembers(t), WithEngine("missing"))
	_, err = c.Test(context.Background())
	assert.ErrorIs(t, err, ErrPlatformUnavailable)
}

// withFirstMemberSize rewrites the declared size of the first member.
func withFirstMemberSize(data []byte, size uint32) []byte {
	patched := bytes.Clone(data)
	filesOffset := binary.LittleEndian.Uint32(patched[16:])
	binary.LittleEndian.PutUint32(patched[filesOffset:], size)
	return patched
}

func TestReadOversizedMember(t *testing.T) {
	c := openBytes(t, withFirstMemberSize(threeMembers(t), 0xFFFFFFF0))
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		read func() error
	}{
		{name: "read", read: func() error {
			_, err := c.Read(ctx, "alpha.txt")
			return err
		}},
		{name: "read many", read: func() error {
			_, err := c.ReadMany(ctx, "alpha.txt", "beta.txt")
			return err
		}},
		{name: "read all", read: func() error {
			_, err := c.ReadAll(ctx)
			return err
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			err := tc.read()
			runtime.ReadMemStats(&after)

			assert.ErrorIs(t, err, ErrCorrupt)
			assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20))
			assert.Equal(t, 0, c.FileManager().Len())
		})
	}
}
