package mscf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pchchv/cabfile/fdi"
)

var signature = [4]byte{'M', 'S', 'C', 'F'}

const (
	flagPrevCabinet    = 0x0001
	flagNextCabinet    = 0x0002
	flagReservePresent = 0x0004

	folderContinuedFromPrev    = 0xfffd
	folderContinuedToNext      = 0xfffe
	folderContinuedPrevAndNext = 0xffff

	compressionMask = 0x000f

	// maxName bounds every NUL-terminated string in the layout.
	maxName = 256
)

// Compression types stored in the low bits of a folder's compression field.
const (
	CompressionNone    = 0
	CompressionMSZIP   = 1
	CompressionQuantum = 2
	CompressionLZX     = 3
)

// rawHeader is the fixed part of CFHEADER.
type rawHeader struct {
	Signature    [4]byte
	Reserved1    uint32
	Size         uint32
	Reserved2    uint32
	FilesOffset  uint32
	Reserved3    uint32
	VersionMinor uint8
	VersionMajor uint8
	Folders      uint16
	Files        uint16
	Flags        uint16
	SetID        uint16
	Index        uint16
}

type rawReserve struct {
	Header uint16
	Folder uint8
	Data   uint8
}

type rawFolder struct {
	DataOffset  uint32
	Blocks      uint16
	Compression uint16
}

type rawFile struct {
	Size    uint32
	Offset  uint32
	Folder  uint16
	Date    uint16
	Time    uint16
	Attribs uint16
}

type rawData struct {
	Checksum     uint32
	Compressed   uint16
	Uncompressed uint16
}

type cabinet struct {
	rawHeader
	reserve     rawReserve
	prevCabinet []byte
	prevDisk    []byte
	nextCabinet []byte
	nextDisk    []byte
	folders     []rawFolder
	files       []member
}

type member struct {
	rawFile
	name []byte
}

// codeError ties a failure to the engine error code reported in the ERF.
type codeError struct {
	code   fdi.ErrorCode
	detail int
	err    error
}

func (e *codeError) Error() string {
	if e.err == nil {
		return e.code.String()
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *codeError) Unwrap() error {
	return e.err
}

func fail(code fdi.ErrorCode, detail int, err error) error {
	return &codeError{code: code, detail: detail, err: err}
}

func (cab *cabinet) info() fdi.CabinetInfo {
	return fdi.CabinetInfo{
		Size:    cab.Size,
		Folders: int(cab.Folders),
		Files:   int(cab.Files),
		SetID:   cab.SetID,
		Index:   cab.Index,
		Version: uint16(cab.VersionMajor)<<8 | uint16(cab.VersionMinor),
		Reserve: cab.Flags&flagReservePresent != 0,
		HasPrev: cab.Flags&flagPrevCabinet != 0,
		HasNext: cab.Flags&flagNextCabinet != 0,
	}
}

// folderIndex resolves the folder a member's data lives in.
// Members continued from a previous cabinet have no folder here and yield -1.
func (cab *cabinet) folderIndex(m *member) int {
	switch m.Folder {
	case folderContinuedFromPrev, folderContinuedPrevAndNext:
		return -1
	case folderContinuedToNext:
		return len(cab.folders) - 1
	default:
		return int(m.Folder)
	}
}

// readHeader reads CFHEADER including its optional fields.
func readHeader(r io.ReadSeeker) (*cabinet, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fail(fdi.ErrNotACabinet, 0, err)
	}

	cab := new(cabinet)
	if err := binary.Read(r, binary.LittleEndian, &cab.rawHeader); err != nil {
		return nil, fail(fdi.ErrNotACabinet, 0, err)
	}
	if cab.Signature != signature {
		return nil, fail(fdi.ErrNotACabinet, 0, nil)
	}
	if cab.VersionMajor != 1 {
		return nil, fail(fdi.ErrUnknownCabinetVersion, int(cab.VersionMajor), nil)
	}

	if cab.Flags&flagReservePresent != 0 {
		if err := binary.Read(r, binary.LittleEndian, &cab.reserve); err != nil {
			return nil, fail(fdi.ErrCorruptCabinet, 0, err)
		}
		if _, err := r.Seek(int64(cab.reserve.Header), io.SeekCurrent); err != nil {
			return nil, fail(fdi.ErrCorruptCabinet, 0, err)
		}
	}

	var err error
	if cab.Flags&flagPrevCabinet != 0 {
		if cab.prevCabinet, err = readString(r); err != nil {
			return nil, err
		}
		if cab.prevDisk, err = readString(r); err != nil {
			return nil, err
		}
	}
	if cab.Flags&flagNextCabinet != 0 {
		if cab.nextCabinet, err = readString(r); err != nil {
			return nil, err
		}
		if cab.nextDisk, err = readString(r); err != nil {
			return nil, err
		}
	}

	return cab, nil
}

// readCabinet reads the header, the folder table and the file table.
func readCabinet(r io.ReadSeeker) (*cabinet, error) {
	cab, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	cab.folders = make([]rawFolder, cab.Folders)
	for i := range cab.folders {
		if err := binary.Read(r, binary.LittleEndian, &cab.folders[i]); err != nil {
			return nil, fail(fdi.ErrCorruptCabinet, i, fmt.Errorf("folder %d: %w", i, err))
		}
		if cab.reserve.Folder > 0 {
			if _, err := r.Seek(int64(cab.reserve.Folder), io.SeekCurrent); err != nil {
				return nil, fail(fdi.ErrCorruptCabinet, i, err)
			}
		}
	}

	if _, err := r.Seek(int64(cab.FilesOffset), io.SeekStart); err != nil {
		return nil, fail(fdi.ErrCorruptCabinet, 0, err)
	}

	cab.files = make([]member, cab.Files)
	for i := range cab.files {
		m := &cab.files[i]
		if err := binary.Read(r, binary.LittleEndian, &m.rawFile); err != nil {
			return nil, fail(fdi.ErrCorruptCabinet, i, fmt.Errorf("file %d: %w", i, err))
		}
		if m.name, err = readString(r); err != nil {
			return nil, err
		}
		if idx := cab.folderIndex(m); idx >= len(cab.folders) || (idx < 0 && m.Folder == folderContinuedToNext) {
			return nil, fail(fdi.ErrCorruptCabinet, i, fmt.Errorf("file %d: folder %d out of range", i, m.Folder))
		}
	}

	return cab, nil
}

// readString reads a NUL-terminated string.
func readString(r io.Reader) ([]byte, error) {
	var (
		s [maxName]byte
		b [1]byte
	)
	for i := 0; i < len(s); i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fail(fdi.ErrCorruptCabinet, 0, err)
		}
		if b[0] == 0 {
			return append([]byte(nil), s[:i]...), nil
		}
		s[i] = b[0]
	}
	return nil, fail(fdi.ErrCorruptCabinet, 0, errors.New("string exceeds 255 bytes"))
}
