// Package revmeta encodes the revision metadata stored at the start of every
// document's opaque rev_meta blob.
//
// Layout (16 bytes, big-endian regardless of host byte order):
//
//	bytes 0..7    CAS (uint64)
//	bytes 8..11   expiration (uint32)
//	bytes 12..15  flags (uint32)
//
// This layout is persisted in database files and must not change.
//
// Reads are lenient: a blob shorter than Size decodes as the zero Meta.
// Writes always emit the full layout.
package revmeta

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const Size = 8 + 4 + 4

const (
	casOff   = 0
	expOff   = 8
	flagsOff = 12
)

var ErrShort = errors.New("revision metadata too short")

type Meta struct {
	CAS        uint64
	Expiration uint32
	Flags      uint32
}

func Encode(cas uint64, exp, flags uint32) []byte {
	return Meta{cas, exp, flags}.Bytes()
}

func (m Meta) Bytes() []byte {
	return m.Append(make([]byte, 0, Size))
}

// Append appends the 16-byte encoding of m to buf.
func (m Meta) Append(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint64(buf, m.CAS)
	buf = binary.BigEndian.AppendUint32(buf, m.Expiration)
	buf = binary.BigEndian.AppendUint32(buf, m.Flags)
	return buf
}

func (m Meta) IsZero() bool {
	return m == Meta{}
}

func (m Meta) String() string {
	return fmt.Sprintf("cas=%d exp=%d flags=0x%x", m.CAS, m.Expiration, m.Flags)
}

// Decode reads the metadata from the start of b. Bytes past Size are ignored.
func Decode(b []byte) Meta {
	m, _ := DecodeStrict(b)
	return m
}

func DecodeStrict(b []byte) (Meta, error) {
	if len(b) < Size {
		return Meta{}, fmt.Errorf("%w: %d bytes, wanted %d", ErrShort, len(b), Size)
	}
	return Meta{
		CAS:        binary.BigEndian.Uint64(b[casOff:]),
		Expiration: binary.BigEndian.Uint32(b[expOff:]),
		Flags:      binary.BigEndian.Uint32(b[flagsOff:]),
	}, nil
}
