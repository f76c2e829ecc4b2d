package cabfile

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/pchchv/cabfile/fdi"
)

// lookupEncoding resolves the encoding of names without the UTF-8 attribute.
func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return charmap.Windows1252, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("text encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("text encoding %q is not supported", name)
	}
	return enc, nil
}

// decodeName converts a raw member name to UTF-8.
func decodeName(raw []byte, attrs Attr, enc encoding.Encoding) (string, error) {
	if attrs&AttrNameIsUTF != 0 {
		if !utf8.Valid(raw) {
			return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), nil
		}
		return string(raw), nil
	}
	if isASCII(raw) {
		return string(raw), nil
	}

	b, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding member name %q: %w", raw, err)
	}
	return string(b), nil
}

// member builds the Member of a copy-file notification.
func (c *Cabinet) member(n *fdi.Notification) (*Member, error) {
	attrs := Attr(n.Attribs)
	name, err := decodeName(n.Name, attrs, c.encoding)
	if err != nil {
		return nil, err
	}

	return &Member{
		Name:       name,
		Modified:   DecodeFATTime(n.Date, n.Time),
		Size:       uint64(n.Size),
		Attributes: attrs,
		Folder:     n.Folder,
	}, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
