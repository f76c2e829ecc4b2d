package cabfile

import (
	"bytes"
	"io"
	"strings"
)

// Cab is the Microsoft cabinet format.
type Cab struct{}

// magic number at the beginning of cabinet files
var cabHeader = []byte("MSCF")

func init() {
	RegisterFormat(Cab{})
}

func (Cab) Name() string {
	return ".cab"
}

func (cb Cab) Match(filename string, stream io.Reader) (MatchResult, error) {
	var mr MatchResult

	// match filename
	if strings.Contains(strings.ToLower(filename), cb.Name()) {
		mr.ByName = true
	}

	// match file header
	buf, err := readAtMost(stream, len(cabHeader))
	if err != nil {
		return mr, err
	}

	mr.ByStream = bytes.Equal(buf, cabHeader)

	return mr, nil
}

// Open returns a Cabinet reading from r.
func (Cab) Open(r io.ReadSeeker, opts ...Option) (*Cabinet, error) {
	return New(r, opts...)
}
