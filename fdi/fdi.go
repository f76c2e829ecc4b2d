// Package fdi defines the contract between cabfile and a cabinet decoder engine.
//
// The engine owns the compression codec and the cabinet layout. It never touches
// host storage directly: every open, read, write, seek and close goes through the
// IO the host hands to Engine.Create, and every per-member decision is made by the
// host's NotifyFunc. Streams are addressed by small integer handles.
package fdi

import "fmt"

// IO is the virtual I/O surface an engine calls back into.
// All methods report failure by returning -1; the host keeps the cause.
type IO interface {
	// Open opens path with os-style flags and returns a handle.
	Open(path string, flag int) int

	// Read reads up to len(p) bytes from the handle and returns the count, 0 at end of stream.
	Read(h int, p []byte) int

	// Write writes p to the handle and returns the count written.
	Write(h int, p []byte) int

	// Seek sets the offset of the handle, interpreted according to whence,
	// and returns the new position.
	Seek(h int, offset int64, whence int) int64

	// Close releases the handle. It returns 0 on success.
	Close(h int) int
}

// Kind is the kind of a notification sent by an engine during Copy.
type Kind int

const (
	// CabinetHeader reports the cabinet header once per Copy.
	CabinetHeader Kind = iota

	// PartialFile reports a member that starts in a previous cabinet.
	PartialFile

	// CopyFile asks whether a member should be copied.
	// Return 0 to skip, a handle to copy into, or a negative value to abort.
	CopyFile

	// CloseFileInfo reports that all data of a member was written to its handle.
	CloseFileInfo

	// NextCabinet asks for the next cabinet of a set.
	NextCabinet

	// Enumerate reports the end of the member enumeration.
	Enumerate
)

var kindNames = [...]string{
	CabinetHeader: "cabinet-info",
	PartialFile:   "partial-file",
	CopyFile:      "copy-file",
	CloseFileInfo: "close-file-info",
	NextCabinet:   "next-cabinet",
	Enumerate:     "enumerate",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Notification carries the data of one engine event.
// Which fields are set depends on the Kind.
type Notification struct {
	// Name is the raw member name (CopyFile, CloseFileInfo, PartialFile)
	// or the next cabinet name (CabinetHeader).
	Name []byte

	// Disk is the next disk name (CabinetHeader).
	Disk []byte

	// Size is the uncompressed member size.
	Size uint32

	// Date and Time are the FAT timestamp of the member.
	Date uint16
	Time uint16

	// Attribs is the member attribute bitmask.
	Attribs uint16

	// Handle is the handle the member was written to (CloseFileInfo).
	Handle int

	// Folder is the folder index of the member.
	Folder int

	// SetID and Index identify the cabinet within its set (CabinetHeader).
	SetID uint16
	Index uint16
}

// NotifyFunc receives engine events. A negative return value aborts the Copy.
type NotifyFunc func(kind Kind, n *Notification) int

// CabinetInfo describes a cabinet header.
type CabinetInfo struct {
	Size    uint32
	Folders int
	Files   int
	SetID   uint16
	Index   uint16
	Version uint16
	Reserve bool
	HasPrev bool
	HasNext bool
}

// Decoder is one engine session.
// A Decoder is not safe for concurrent use.
type Decoder interface {
	// IsCabinet reports whether the stream behind h is a cabinet and describes it.
	IsCabinet(h int) (CabinetInfo, bool)

	// Copy enumerates the cabinet at path, notifying for every member.
	// It returns false on failure, in which case the ERF passed to Create is filled.
	Copy(path string, notify NotifyFunc) bool

	// Destroy ends the session.
	Destroy() error
}

// Engine creates decoder sessions.
type Engine interface {
	Create(io IO, erf *ERF) (Decoder, error)
}
