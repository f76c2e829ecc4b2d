package mscf

import "encoding/binary"

// Checksum folds p into seed four little-endian bytes at a time.
// Trailing bytes are combined most significant first.
func Checksum(p []byte, seed uint32) uint32 {
	csum := seed
	for len(p) >= 4 {
		csum ^= binary.LittleEndian.Uint32(p)
		p = p[4:]
	}

	var ul uint32
	switch len(p) {
	case 3:
		ul = uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
	case 2:
		ul = uint32(p[0])<<8 | uint32(p[1])
	case 1:
		ul = uint32(p[0])
	}

	return csum ^ ul
}

// BlockChecksum returns the CFDATA checksum of a data block:
// the payload first, then the two size fields.
func BlockChecksum(payload []byte, compressed, uncompressed uint16) uint32 {
	var sizes [4]byte
	binary.LittleEndian.PutUint16(sizes[0:], compressed)
	binary.LittleEndian.PutUint16(sizes[2:], uncompressed)
	return Checksum(sizes[:], Checksum(payload, 0))
}
