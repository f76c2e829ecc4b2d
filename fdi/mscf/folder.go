package mscf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/pchchv/cabfile/fdi"
)

const (
	// MaxBlockSize is the largest uncompressed CFDATA payload.
	MaxBlockSize = 32768

	// maxCompressedBlock allows for the worst-case expansion of a block.
	maxCompressedBlock = MaxBlockSize + 6144

	windowSize = 32768
)

var mszipSignature = []byte{'C', 'K'}

// folderReader yields the uncompressed byte stream of one folder.
// It reads data blocks on demand and keeps the MSZIP history window
// between blocks.
type folderReader struct {
	r       io.ReadSeeker
	folder  rawFolder
	index   int
	reserve int64

	block int   // next block number
	off   int64 // cabinet offset of the next block
	pos   int64 // uncompressed bytes consumed

	buf    []byte // unread part of the current block
	out    []byte
	comp   []byte
	window []byte

	inflater io.ReadCloser
}

func newFolderReader(r io.ReadSeeker, folder rawFolder, index int, reserve uint8) (*folderReader, error) {
	switch folder.Compression & compressionMask {
	case CompressionNone, CompressionMSZIP:
	default:
		return nil, fail(fdi.ErrBadCompressionType, index,
			fmt.Errorf("folder %d: compression type %d", index, folder.Compression&compressionMask))
	}

	return &folderReader{
		r:       r,
		folder:  folder,
		index:   index,
		reserve: int64(reserve),
		off:     int64(folder.DataOffset),
	}, nil
}

func (fr *folderReader) Read(p []byte) (int, error) {
	for len(fr.buf) == 0 {
		if fr.block >= int(fr.folder.Blocks) {
			return 0, io.EOF
		}
		if err := fr.next(); err != nil {
			return 0, err
		}
	}

	n := copy(p, fr.buf)
	fr.buf = fr.buf[n:]
	fr.pos += int64(n)

	return n, nil
}

// discard skips n uncompressed bytes.
func (fr *folderReader) discard(n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, fr, n); err != nil {
		if errors.Is(err, io.EOF) {
			return fail(fdi.ErrCorruptCabinet, fr.index, fmt.Errorf("folder %d ends before offset %d", fr.index, fr.pos+n))
		}
		return err
	}
	return nil
}

// next reads, verifies and decodes the next data block.
func (fr *folderReader) next() error {
	if _, err := fr.r.Seek(fr.off, io.SeekStart); err != nil {
		return fail(fdi.ErrCorruptCabinet, fr.index, err)
	}

	var hdr rawData
	if err := binary.Read(fr.r, binary.LittleEndian, &hdr); err != nil {
		return fail(fdi.ErrCorruptCabinet, fr.index, fmt.Errorf("block %d: %w", fr.block, err))
	}
	if hdr.Compressed > maxCompressedBlock || hdr.Uncompressed > MaxBlockSize {
		return fail(fdi.ErrCorruptCabinet, fr.index, fmt.Errorf("block %d: bad sizes %d/%d", fr.block, hdr.Compressed, hdr.Uncompressed))
	}
	if fr.reserve > 0 {
		if _, err := fr.r.Seek(fr.reserve, io.SeekCurrent); err != nil {
			return fail(fdi.ErrCorruptCabinet, fr.index, err)
		}
	}

	fr.comp = grow(fr.comp, int(hdr.Compressed))
	if _, err := io.ReadFull(fr.r, fr.comp); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fail(fdi.ErrCorruptCabinet, fr.index, fmt.Errorf("block %d: %w", fr.block, err))
	}
	if hdr.Checksum != 0 && BlockChecksum(fr.comp, hdr.Compressed, hdr.Uncompressed) != hdr.Checksum {
		return fail(fdi.ErrCorruptCabinet, fr.index, fmt.Errorf("block %d: checksum mismatch", fr.block))
	}

	fr.off += int64(binary.Size(hdr)) + fr.reserve + int64(hdr.Compressed)
	fr.block++

	switch fr.folder.Compression & compressionMask {
	case CompressionNone:
		if hdr.Compressed != hdr.Uncompressed {
			return fail(fdi.ErrCorruptCabinet, fr.index, fmt.Errorf("block %d: stored sizes differ", fr.block-1))
		}
		fr.out = append(fr.out[:0], fr.comp...)
	case CompressionMSZIP:
		if err := fr.inflate(int(hdr.Uncompressed)); err != nil {
			return fail(fdi.ErrMDIFail, fr.index, fmt.Errorf("block %d: %w", fr.block-1, err))
		}
	}

	fr.buf = fr.out
	return nil
}

// inflate decodes an MSZIP block. Each block is a complete deflate stream
// whose history is the previous block's output.
func (fr *folderReader) inflate(size int) error {
	if !bytes.HasPrefix(fr.comp, mszipSignature) {
		return errors.New("missing MSZIP signature")
	}

	src := bytes.NewReader(fr.comp[len(mszipSignature):])
	if fr.inflater == nil {
		fr.inflater = flate.NewReaderDict(src, fr.window)
	} else if err := fr.inflater.(flate.Resetter).Reset(src, fr.window); err != nil {
		return err
	}

	fr.out = grow(fr.out, size)
	if _, err := io.ReadFull(fr.inflater, fr.out); err != nil {
		return err
	}

	window := append(fr.window, fr.out...)
	if len(window) > windowSize {
		window = append([]byte(nil), window[len(window)-windowSize:]...)
	}
	fr.window = window

	return nil
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}
