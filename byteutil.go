package docstore

import (
	"encoding/binary"
	"io"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

func appendRaw(buf []byte, chunk []byte) []byte {
	off := len(buf)
	buf = ensureCapacity(buf, off+len(chunk))[:off+len(chunk)]
	copy(buf[off:], chunk)
	return buf
}

// bytesBuilder accumulates a record into a (usually pooled) buffer. It is
// also the io.Writer msgpack encodes into.
type bytesBuilder struct {
	Buf []byte
}

var (
	_ io.Writer     = (*bytesBuilder)(nil)
	_ io.ByteWriter = (*bytesBuilder)(nil)
)

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = appendRaw(bb.Buf, b)
	return len(b), nil
}

func (bb *bytesBuilder) WriteByte(v byte) error {
	bb.Buf = append(ensureCapacity(bb.Buf, len(bb.Buf)+1), v)
	return nil
}

func (bb *bytesBuilder) AppendFixedUint64(v uint64) {
	bb.Buf = binary.BigEndian.AppendUint64(ensureCapacity(bb.Buf, len(bb.Buf)+8), v)
}

func (bb *bytesBuilder) AppendUvarint(v uint64) {
	bb.Buf = binary.AppendUvarint(ensureCapacity(bb.Buf, len(bb.Buf)+binary.MaxVarintLen64), v)
}

// byteDecoder reads record fields front to back. Errors carry the whole
// record and the offset of the bad field.
type byteDecoder struct {
	Orig []byte
	Buf  []byte
}

func makeByteDecoder(buf []byte) byteDecoder {
	return byteDecoder{buf, buf}
}

func (d *byteDecoder) off() int {
	return len(d.Orig) - len(d.Buf)
}

func (d *byteDecoder) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.Buf)
	if n <= 0 {
		return 0, dataErrf(d.Orig, d.off(), nil, "invalid uvarint")
	}
	d.Buf = d.Buf[n:]
	return v, nil
}

func (d *byteDecoder) FixedUint64() (uint64, error) {
	if len(d.Buf) < 8 {
		return 0, dataErrf(d.Orig, d.off(), nil, "not enough data: %d bytes remaining, 8 wanted", len(d.Buf))
	}
	v := binary.BigEndian.Uint64(d.Buf)
	d.Buf = d.Buf[8:]
	return v, nil
}

func (d *byteDecoder) Rest() []byte {
	v := d.Buf
	d.Buf = d.Buf[len(d.Buf):]
	return v
}

// seqKey encodes a sequence number as a by_seq/bodies key. Big-endian keeps
// Bolt's byte order equal to numeric order.
func seqKey(buf []byte, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(buf[:0], seq)
}

func decodeSeqKey(k []byte) (uint64, error) {
	if len(k) != 8 {
		return 0, dataErrf(k, 0, nil, "invalid sequence key")
	}
	return binary.BigEndian.Uint64(k), nil
}
