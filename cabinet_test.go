package cabfile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pchchv/cabfile/fdi"
	_ "github.com/pchchv/cabfile/fdi/mscf"
	"github.com/pchchv/cabfile/internal/cabtest"
)

// openBytes returns a Cabinet over data that is closed when the test ends.
func openBytes(t *testing.T, data []byte, opts ...Option) *Cabinet {
	t.Helper()

	c, err := New(bytes.NewReader(data), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c
}

func threeMembers(t *testing.T) []byte {
	return cabtest.Text(t, "alpha.txt", "alpha\n", "beta.txt", "beta\n", "gamma.txt", "gamma\n")
}

type failingWriter struct {
	err error
}

func (w failingWriter) Write([]byte) (int, error) {
	return 0, w.err
}

func TestVisitOffersEveryMember(t *testing.T) {
	c := openBytes(t, threeMembers(t))

	var names []string
	ok, err := c.Visit(context.Background(), func(m *Member) (Decision, error) {
		names = append(names, m.Name)
		return Skip, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"alpha.txt", "beta.txt", "gamma.txt"}, names)
	assert.Equal(t, 0, c.FileManager().Len())
}

func TestVisitStop(t *testing.T) {
	c := openBytes(t, threeMembers(t))

	var names []string
	ok, err := c.Visit(context.Background(), func(m *Member) (Decision, error) {
		names = append(names, m.Name)
		if m.Name == "beta.txt" {
			return Skip, ErrStop
		}
		return Skip, nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"alpha.txt", "beta.txt"}, names)
}

func TestVisitStopFromCompletion(t *testing.T) {
	c := openBytes(t, threeMembers(t))

	var (
		buf   bytes.Buffer
		calls int
	)
	ok, err := c.Visit(context.Background(), func(m *Member) (Decision, error) {
		calls++
		return Copy(&buf, func() error { return ErrStop }), nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "alpha\n", buf.String())
	assert.Equal(t, 0, c.FileManager().Len())
}

func TestVisitWrappedStop(t *testing.T) {
	c := openBytes(t, threeMembers(t))

	ok, err := c.Visit(context.Background(), func(*Member) (Decision, error) {
		return Skip, errors.Join(errors.New("enough"), ErrStop)
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVisitCallbackErrorsAreReturnedUnchanged(t *testing.T) {
	boom := errors.New("boom")

	t.Run("visit", func(t *testing.T) {
		c := openBytes(t, threeMembers(t))
		ok, err := c.Visit(context.Background(), func(*Member) (Decision, error) {
			return Skip, boom
		})
		assert.False(t, ok)
		assert.Same(t, boom, err)
	})

	t.Run("completion", func(t *testing.T) {
		c := openBytes(t, threeMembers(t))
		var calls int
		ok, err := c.Visit(context.Background(), func(*Member) (Decision, error) {
			calls++
			return Copy(io.Discard, func() error { return boom }), nil
		})
		assert.False(t, ok)
		assert.Same(t, boom, err)
		assert.Equal(t, 1, calls)
	})
}

func TestVisitSinkFailure(t *testing.T) {
	c := openBytes(t, threeMembers(t))
	diskFull := errors.New("disk full")

	_, err := c.Visit(context.Background(), func(*Member) (Decision, error) {
		return Copy(failingWriter{diskFull}, nil), nil
	})

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, 0, c.FileManager().Len())
}

func TestVisitAutoClosesSinks(t *testing.T) {
	c := openBytes(t, threeMembers(t))
	boom := errors.New("boom")

	var sinks []*closeTracker
	_, err := c.Visit(context.Background(), func(m *Member) (Decision, error) {
		if m.Name == "gamma.txt" {
			return Skip, boom
		}
		sink := new(closeTracker)
		sinks = append(sinks, sink)
		return Copy(sink, nil), nil
	})
	require.ErrorIs(t, err, boom)

	// finished sinks without a completion action are closed once
	require.Len(t, sinks, 2)
	for _, s := range sinks {
		assert.Equal(t, 1, s.closed)
	}
	assert.Equal(t, 0, c.FileManager().Len())
}

type failingCloser struct {
	failingWriter
	closed int
}

func (f *failingCloser) Close() error {
	f.closed++
	return nil
}

func TestVisitTeardownClosesUnfinishedSinks(t *testing.T) {
	c := openBytes(t, threeMembers(t))

	sink := &failingCloser{failingWriter: failingWriter{errors.New("no space")}}
	done := false
	_, err := c.Visit(context.Background(), func(*Member) (Decision, error) {
		return Copy(sink, func() error {
			done = true
			return nil
		}), nil
	})
	require.Error(t, err)

	assert.Equal(t, 1, sink.closed)
	assert.False(t, done)
	assert.Equal(t, 0, c.FileManager().Len())
}

func TestVisitCompletionSkipsAutoClose(t *testing.T) {
	c := openBytes(t, threeMembers(t))

	sink := new(closeTracker)
	done := 0
	ok, err := c.Visit(context.Background(), func(m *Member) (Decision, error) {
		if m.Name != "beta.txt" {
			return Skip, nil
		}
		return Copy(sink, func() error {
			done++
			return nil
		}), nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, done)
	assert.Equal(t, 0, sink.closed)
	assert.Equal(t, "beta\n", sink.String())
}

func TestVisitNestedIsBusy(t *testing.T) {
	c := openBytes(t, threeMembers(t))

	var nestedErr error
	ok, err := c.Visit(context.Background(), func(*Member) (Decision, error) {
		_, nestedErr = c.Visit(context.Background(), func(*Member) (Decision, error) {
			return Skip, nil
		})
		return Skip, ErrStop
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, nestedErr, ErrBusy)
}

func TestVisitContextCanceled(t *testing.T) {
	c := openBytes(t, threeMembers(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := c.Visit(ctx, func(*Member) (Decision, error) {
		t.Fatal("callback called after cancel")
		return Skip, nil
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVisitRepeatAndReopen(t *testing.T) {
	c := openBytes(t, threeMembers(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		names, err := c.Names(ctx)
		require.NoError(t, err)
		assert.Len(t, names, 3)

		require.NoError(t, c.Close())
		require.NoError(t, c.Close())
	}
}

func TestVisitCorruptCabinet(t *testing.T) {
	data := threeMembers(t)
	c := openBytes(t, data[:len(data)-3])

	ok, err := c.Visit(context.Background(), func(*Member) (Decision, error) {
		return Copy(io.Discard, nil), nil
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCorrupt)

	var cabErr *CabinetError
	require.ErrorAs(t, err, &cabErr)
	assert.Equal(t, fdi.ErrCorruptCabinet, cabErr.Code)
}

func TestVisitNotACabinet(t *testing.T) {
	c := openBytes(t, []byte("this is plain text, not a cabinet"))

	_, err := c.Visit(context.Background(), func(*Member) (Decision, error) {
		return Skip, nil
	})

	var cabErr *CabinetError
	require.ErrorAs(t, err, &cabErr)
	assert.Equal(t, fdi.ErrNotACabinet, cabErr.Code)
}

func TestPlatformUnavailable(t *testing.T) {
	c := openBytes(t, threeMembers(t), WithEngine("no-such-engine"))

	_, err := c.Visit(context.Background(), func(*Member) (Decision, error) {
		return Skip, nil
	})
	assert.ErrorIs(t, err, ErrPlatformUnavailable)

	_, err = c.Probe()
	assert.ErrorIs(t, err, ErrPlatformUnavailable)
}

func TestOpenPath(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/cabs/sample.cab", threeMembers(t), 0o644))

	c, err := Open("/cabs/sample.cab", WithFs(fsys))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "/cabs/sample.cab", c.Name())

	data, err := c.Read(context.Background(), "gamma.txt")
	require.NoError(t, err)
	assert.Equal(t, "gamma\n", string(data))
	assert.Equal(t, 0, c.FileManager().Len())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/nowhere.cab", WithFs(afero.NewMemMapFs()))

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "/nowhere.cab", ioErr.Path)
}

func TestUnknownTextEncoding(t *testing.T) {
	_, err := New(bytes.NewReader(threeMembers(t)), WithTextEncoding("no-such-charset"))
	assert.Error(t, err)
}

func TestMemberMetadata(t *testing.T) {
	modified := cabtest.DefaultTime.Add(-48 * time.Hour)
	data := cabtest.MustBuild(t, []cabtest.File{
		{Name: `docs\readme.txt`, Data: []byte("read me"), Modified: modified, Attributes: uint16(AttrReadOnly | AttrArchive)},
		{Name: "plain.txt", Data: []byte("plain")},
	}, cabtest.Options{FilesPerFolder: 1})
	c := openBytes(t, data)

	members, err := c.Members(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 2)

	m := members[0]
	assert.Equal(t, `docs\readme.txt`, m.Name)
	assert.Equal(t, "docs/readme.txt", m.Path())
	assert.Equal(t, uint64(7), m.Size)
	assert.Equal(t, modified, m.Modified)
	assert.Equal(t, AttrReadOnly|AttrArchive, m.Attributes)
	assert.Equal(t, "r--a--", m.Attributes.String())
	assert.Equal(t, 0, m.Folder)

	fi := m.FileInfo()
	assert.Equal(t, "readme.txt", fi.Name())
	assert.Equal(t, int64(7), fi.Size())
	assert.Equal(t, "-r--r--r--", fi.Mode().String())
	assert.False(t, fi.IsDir())

	assert.Equal(t, 1, members[1].Folder)
	assert.Equal(t, cabtest.DefaultTime, members[1].Modified)
	assert.Equal(t, "<Member plain.txt, size=5, date=2024-03-09 14:30:22, attrib=0>", members[1].String())
}

func TestDecodeFATTime(t *testing.T) {
	for _, tc := range []struct {
		name       string
		date, time uint16
		want       string
	}{
		{name: "epoch", date: 1<<5 | 1, time: 0, want: "1980-01-01T00:00:00Z"},
		{name: "odd seconds round down", date: 44<<9 | 3<<5 | 9, time: 14<<11 | 30<<5 | 11, want: "2024-03-09T14:30:22Z"},
		{name: "zero day", date: 44<<9 | 3<<5, time: 0, want: "0001-01-01T00:00:00Z"},
		{name: "month 13", date: 44<<9 | 13<<5 | 1, time: 0, want: "0001-01-01T00:00:00Z"},
		{name: "hour 24", date: 44<<9 | 1<<5 | 1, time: 24 << 11, want: "0001-01-01T00:00:00Z"},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeFATTime(tc.date, tc.time)
			assert.Equal(t, tc.want, got.Format("2006-01-02T15:04:05Z07:00"))
		})
	}
}

func TestMemberNameEncodings(t *testing.T) {
	data := cabtest.MustBuild(t, []cabtest.File{
		{Name: "café.txt", Data: []byte("utf")},            // stored with the UTF-8 attribute
		{Name: "na\xefve.txt", Data: []byte("latin")},     // windows-1252 0xef
		{Name: "\x8e\x84.txt", Data: []byte("cyrillic")}, // ibm866 / windows-1252
	}, cabtest.Options{})

	c := openBytes(t, data)
	names, err := c.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"café.txt", "naïve.txt", "Ž„.txt"}, names)

	c = openBytes(t, data, WithTextEncoding("IBM866"))
	names, err = c.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "café.txt", names[0])
	assert.Equal(t, "ОД.txt", names[2])
}
