package cabfile

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"
)

// Attr is the attribute bitmask of a member.
type Attr uint16

const (
	AttrReadOnly  Attr = 0x01
	AttrHidden    Attr = 0x02
	AttrSystem    Attr = 0x04
	AttrArchive   Attr = 0x20
	AttrExec      Attr = 0x40
	AttrNameIsUTF Attr = 0x80
)

var attrLetters = []struct {
	attr   Attr
	letter byte
}{
	{AttrReadOnly, 'r'},
	{AttrHidden, 'h'},
	{AttrSystem, 's'},
	{AttrArchive, 'a'},
	{AttrExec, 'x'},
	{AttrNameIsUTF, 'u'},
}

func (a Attr) String() string {
	b := make([]byte, len(attrLetters))
	for i, l := range attrLetters {
		b[i] = '-'
		if a&l.attr != 0 {
			b[i] = l.letter
		}
	}
	return string(b)
}

// Member describes one file stored in a cabinet.
// A Member is created for every enumerated entry and never changes afterwards.
type Member struct {
	// Name is the member path as stored, with backslash separators.
	Name string

	// Modified is the member timestamp. It is the zero time
	// when the stored FAT timestamp is invalid.
	Modified time.Time

	// Size is the uncompressed size in bytes.
	Size uint64

	Attributes Attr

	// Folder is the index of the folder holding the member data.
	Folder int
}

func (m *Member) String() string {
	return fmt.Sprintf("<Member %s, size=%d, date=%s, attrib=%x>",
		m.Name, m.Size, m.Modified.Format(time.DateTime), uint16(m.Attributes))
}

// Path returns the member name with forward slashes.
func (m *Member) Path() string {
	return slashName(m.Name)
}

// FileInfo returns an fs.FileInfo describing the member.
func (m *Member) FileInfo() fs.FileInfo {
	return memberInfo{m}
}

// DecodeFATTime converts a FAT date and time to a time.Time in UTC.
// Invalid stamps yield the zero time.
func DecodeFATTime(date, tm uint16) time.Time {
	day := int(date & 0x1f)
	month := int(date>>5) & 0xf
	year := 1980 + int(date>>9)
	sec := 2 * int(tm&0x1f)
	minute := int(tm>>5) & 0x3f
	hour := int(tm >> 11)

	if day == 0 || month == 0 || month > 12 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}
	}

	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
}

// memberInfo is the fs.FileInfo of a member.
type memberInfo struct {
	m *Member
}

func (fi memberInfo) Name() string {
	return path.Base(fi.m.Path())
}

func (fi memberInfo) Size() int64 {
	return int64(fi.m.Size)
}

func (fi memberInfo) Mode() fs.FileMode {
	if fi.m.Attributes&AttrReadOnly != 0 {
		return 0o444
	}
	return 0o644
}

func (fi memberInfo) ModTime() time.Time {
	return fi.m.Modified
}

func (memberInfo) IsDir() bool {
	return false
}

func (fi memberInfo) Sys() interface{} {
	return fi.m
}

func slashName(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}
