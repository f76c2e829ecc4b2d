// Package cabtest builds small cabinet files for tests.
package cabtest

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"

	"github.com/pchchv/cabfile/fdi/mscf"
)

// AttrNameIsUTF marks a member name as UTF-8.
const AttrNameIsUTF = 0x80

// File is a member to store in a built cabinet.
type File struct {
	Name       string
	Data       []byte
	Modified   time.Time
	Attributes uint16
}

// Options controls the layout of a built cabinet.
type Options struct {
	// Compression is mscf.CompressionNone or mscf.CompressionMSZIP.
	Compression uint16

	// Checksum enables CFDATA checksums.
	Checksum bool

	// BlockSize is the uncompressed size of a data block.
	// If 0, mscf.MaxBlockSize is used.
	BlockSize int

	// FilesPerFolder splits members into several folders. If 0, one folder holds all.
	FilesPerFolder int

	// Reserved area sizes.
	HeaderReserve uint16
	FolderReserve uint8
	DataReserve   uint8

	SetID uint16
	Index uint16
}

// DefaultTime is the timestamp of members without one.
var DefaultTime = time.Date(2024, time.March, 9, 14, 30, 22, 0, time.UTC)

type block struct {
	payload      []byte
	uncompressed int
}

// Build returns the bytes of a cabinet holding files.
func Build(files []File, opts Options) ([]byte, error) {
	if opts.BlockSize <= 0 || opts.BlockSize > mscf.MaxBlockSize {
		opts.BlockSize = mscf.MaxBlockSize
	}

	groups := [][]int{}
	for i := range files {
		if len(groups) == 0 || (opts.FilesPerFolder > 0 && len(groups[len(groups)-1]) >= opts.FilesPerFolder) {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], i)
	}
	if len(groups) == 0 {
		groups = append(groups, nil)
	}

	folderOf := make([]int, len(files))
	offsetOf := make([]int, len(files))
	blocks := make([][]block, len(groups))
	for g, members := range groups {
		var stream []byte
		for _, i := range members {
			folderOf[i] = g
			offsetOf[i] = len(stream)
			stream = append(stream, files[i].Data...)
		}

		var err error
		if blocks[g], err = encodeFolder(stream, opts); err != nil {
			return nil, err
		}
	}

	flags := uint16(0)
	headerSize := 36
	if opts.HeaderReserve > 0 || opts.FolderReserve > 0 || opts.DataReserve > 0 {
		flags |= 0x0004
		headerSize += 4 + int(opts.HeaderReserve)
	}
	filesOffset := headerSize + len(groups)*(8+int(opts.FolderReserve))
	dataOffset := filesOffset
	for _, f := range files {
		dataOffset += 16 + len(f.Name) + 1
	}

	folderOffsets := make([]int, len(groups))
	total := dataOffset
	for g := range groups {
		folderOffsets[g] = total
		for _, b := range blocks[g] {
			total += 8 + int(opts.DataReserve) + len(b.payload)
		}
	}

	var buf bytes.Buffer
	le := binary.LittleEndian
	put := func(v any) {
		_ = binary.Write(&buf, le, v)
	}

	buf.WriteString("MSCF")
	put(uint32(0))
	put(uint32(total))
	put(uint32(0))
	put(uint32(filesOffset))
	put(uint32(0))
	put(uint8(3))
	put(uint8(1))
	put(uint16(len(groups)))
	put(uint16(len(files)))
	put(flags)
	put(opts.SetID)
	put(opts.Index)
	if flags&0x0004 != 0 {
		put(opts.HeaderReserve)
		put(opts.FolderReserve)
		put(opts.DataReserve)
		buf.Write(make([]byte, opts.HeaderReserve))
	}

	for g := range groups {
		put(uint32(folderOffsets[g]))
		put(uint16(len(blocks[g])))
		put(opts.Compression)
		buf.Write(make([]byte, opts.FolderReserve))
	}

	for i, f := range files {
		modified := f.Modified
		if modified.IsZero() {
			modified = DefaultTime
		}
		date, tm := fatTime(modified)

		attrs := f.Attributes
		if !isASCII(f.Name) && utf8.ValidString(f.Name) {
			attrs |= AttrNameIsUTF
		}

		put(uint32(len(f.Data)))
		put(uint32(offsetOf[i]))
		put(uint16(folderOf[i]))
		put(date)
		put(tm)
		put(attrs)
		buf.WriteString(f.Name)
		buf.WriteByte(0)
	}

	for g := range groups {
		for _, b := range blocks[g] {
			var csum uint32
			if opts.Checksum {
				csum = mscf.BlockChecksum(b.payload, uint16(len(b.payload)), uint16(b.uncompressed))
			}
			put(csum)
			put(uint16(len(b.payload)))
			put(uint16(b.uncompressed))
			buf.Write(make([]byte, opts.DataReserve))
			buf.Write(b.payload)
		}
	}

	return buf.Bytes(), nil
}

// MustBuild is Build for tests.
func MustBuild(tb testing.TB, files []File, opts Options) []byte {
	tb.Helper()

	b, err := Build(files, opts)
	if err != nil {
		tb.Fatalf("building cabinet: %v", err)
	}
	return b
}

// Text builds an MSZIP cabinet with checksums from name/content pairs, in order.
func Text(tb testing.TB, pairs ...string) []byte {
	tb.Helper()

	if len(pairs)%2 != 0 {
		tb.Fatalf("odd number of name/content arguments")
	}
	files := make([]File, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		files = append(files, File{Name: pairs[i], Data: []byte(pairs[i+1])})
	}
	return MustBuild(tb, files, Options{Compression: mscf.CompressionMSZIP, Checksum: true})
}

func encodeFolder(stream []byte, opts Options) ([]block, error) {
	var (
		blocks []block
		window []byte
	)
	for len(stream) > 0 {
		n := min(opts.BlockSize, len(stream))
		chunk := stream[:n]
		stream = stream[n:]

		switch opts.Compression {
		case mscf.CompressionMSZIP:
			var buf bytes.Buffer
			buf.WriteString("CK")
			w, err := flate.NewWriterDict(&buf, flate.DefaultCompression, window)
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(chunk); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			blocks = append(blocks, block{payload: buf.Bytes(), uncompressed: n})

			window = append(window, chunk...)
			if len(window) > mscf.MaxBlockSize {
				window = append([]byte(nil), window[len(window)-mscf.MaxBlockSize:]...)
			}
		default:
			blocks = append(blocks, block{payload: append([]byte(nil), chunk...), uncompressed: n})
		}
	}
	return blocks, nil
}

func fatTime(t time.Time) (date, tm uint16) {
	date = uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tm = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, tm
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
