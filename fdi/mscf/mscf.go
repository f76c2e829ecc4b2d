// Package mscf is a decoder engine for Microsoft cabinet files.
//
// It decodes stored and MSZIP folders. Quantum and LZX folders are reported
// with fdi.ErrBadCompressionType. Importing the package registers the engine
// under the name "mscf":
//
//	import _ "github.com/pchchv/cabfile/fdi/mscf"
package mscf

import (
	"errors"
	"io"
	"os"

	"github.com/pchchv/cabfile/fdi"
)

// Name is the name the engine is registered under.
const Name = "mscf"

const copyBufferSize = 32 * 1024

// Engine creates mscf decoder sessions.
type Engine struct{}

type decoder struct {
	io        fdi.IO
	erf       *fdi.ERF
	destroyed bool
}

// Interface guards
var (
	_ fdi.Engine  = Engine{}
	_ fdi.Decoder = (*decoder)(nil)
)

func init() {
	fdi.Register(Name, Engine{})
}

// Create starts a session that performs all I/O through hostIO
// and reports failures in erf.
func (Engine) Create(hostIO fdi.IO, erf *fdi.ERF) (fdi.Decoder, error) {
	if hostIO == nil || erf == nil {
		return nil, errors.New("mscf: nil io or error slot")
	}
	return &decoder{io: hostIO, erf: erf}, nil
}

func (d *decoder) IsCabinet(h int) (fdi.CabinetInfo, bool) {
	cab, err := readHeader(&handleReader{io: d.io, h: h})
	if err != nil {
		return fdi.CabinetInfo{}, false
	}
	return cab.info(), true
}

func (d *decoder) Copy(path string, notify fdi.NotifyFunc) bool {
	if d.destroyed {
		d.erf.Set(fdi.ErrAllocFail, 0)
		return false
	}

	h := d.io.Open(path, os.O_RDONLY)
	if h < 0 {
		d.erf.Set(fdi.ErrCabinetNotFound, 0)
		return false
	}
	defer d.io.Close(h)

	r := &handleReader{io: d.io, h: h}
	cab, err := readCabinet(r)
	if err != nil {
		return d.fail(err, fdi.ErrCorruptCabinet)
	}

	info := fdi.Notification{
		Name:  cab.nextCabinet,
		Disk:  cab.nextDisk,
		SetID: cab.SetID,
		Index: cab.Index,
	}
	if notify(fdi.CabinetHeader, &info) < 0 {
		return d.abort()
	}

	var fr *folderReader
	for i := range cab.files {
		m := &cab.files[i]
		idx := cab.folderIndex(m)
		n := m.notification(idx)

		if idx < 0 {
			if notify(fdi.PartialFile, &n) < 0 {
				return d.abort()
			}
			continue
		}

		out := notify(fdi.CopyFile, &n)
		if out < 0 {
			return d.abort()
		}
		if out == 0 {
			continue
		}

		// members are usually stored in folder order,
		// a member that lies behind the current position restarts the folder
		if fr == nil || fr.index != idx || fr.pos > int64(m.Offset) {
			if fr, err = newFolderReader(r, cab.folders[idx], idx, cab.reserve.Data); err != nil {
				return d.fail(err, fdi.ErrBadCompressionType)
			}
		}
		if err := fr.discard(int64(m.Offset) - fr.pos); err != nil {
			return d.fail(err, fdi.ErrCorruptCabinet)
		}
		if err := d.copyMember(out, fr, int64(m.Size)); err != nil {
			return d.fail(err, fdi.ErrCorruptCabinet)
		}

		closing := m.notification(idx)
		closing.Handle = out
		if notify(fdi.CloseFileInfo, &closing) < 0 {
			return d.abort()
		}
	}

	if notify(fdi.Enumerate, &fdi.Notification{Folder: len(cab.folders)}) < 0 {
		return d.abort()
	}

	return true
}

func (d *decoder) Destroy() error {
	d.destroyed = true
	return nil
}

// copyMember writes the next size bytes of the folder to handle out.
func (d *decoder) copyMember(out int, fr *folderReader, size int64) error {
	buf := make([]byte, copyBufferSize)
	for size > 0 {
		chunk := buf
		if int64(len(chunk)) > size {
			chunk = chunk[:size]
		}

		n, err := io.ReadFull(fr, chunk)
		if n > 0 {
			if werr := writeAll(d.io, out, chunk[:n]); werr != nil {
				return fail(fdi.ErrTargetFile, fr.index, werr)
			}
			size -= int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fail(fdi.ErrCorruptCabinet, fr.index, io.ErrUnexpectedEOF)
			}
			return err
		}
	}
	return nil
}

func (d *decoder) fail(err error, code fdi.ErrorCode) bool {
	detail := 0
	var ce *codeError
	if errors.As(err, &ce) {
		code, detail = ce.code, ce.detail
	}
	d.erf.Set(code, detail)
	return false
}

func (d *decoder) abort() bool {
	d.erf.Set(fdi.ErrUserAbort, 0)
	return false
}

func (m *member) notification(folder int) fdi.Notification {
	return fdi.Notification{
		Name:    m.name,
		Size:    m.Size,
		Date:    m.Date,
		Time:    m.Time,
		Attribs: m.Attribs,
		Folder:  folder,
	}
}
