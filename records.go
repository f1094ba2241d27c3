package docstore

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
)

const (
	formatVer1      = 1
	formatVerLatest = formatVer1
)

const (
	metaBucket   = "meta"
	byIDBucket   = "by_id"
	bySeqBucket  = "by_seq"
	bodiesBucket = "bodies"
	localBucket  = "local"
)

var (
	allBuckets = []string{metaBucket, byIDBucket, bySeqBucket, bodiesBucket, localBucket}
	headerKey  = []byte("header")
)

type header struct {
	Format       uint64 `msgpack:"f"`
	UpdateSeq    uint64 `msgpack:"s"`
	DocCount     uint64 `msgpack:"d"`
	DeletedCount uint64 `msgpack:"x"`
}

func (h *header) decode(raw []byte) error {
	if err := decodeMsgpack(raw, h); err != nil {
		return err
	}
	if h.Format == 0 || h.Format > formatVerLatest {
		return dataErrf(raw, 0, nil, "unsupported header format %d", h.Format)
	}
	return nil
}

type recordFlags uint64

const (
	rfVerBit0 = recordFlags(1 << iota)
	rfVerBit1
	rfHasBody

	rfVerMask       = (rfVerBit0 | rfVerBit1)
	rfVer1          = rfVerBit0
	rfSupportedMask = (rfVerMask | rfHasBody)
)

func (rf recordFlags) ver() recordFlags {
	return rf & rfVerMask
}

type docInfoRecord struct {
	DBSeq       uint64 `msgpack:"s"`
	RevSeq      uint64 `msgpack:"r"`
	Deleted     bool   `msgpack:"d,omitempty"`
	ContentMeta uint8  `msgpack:"m,omitempty"`
	Size        uint64 `msgpack:"z,omitempty"`
	RevMeta     []byte `msgpack:"v,omitempty"`
}

func encodeDocInfo(buf []byte, info *DocInfo) []byte {
	flags := rfVer1
	if info.hasBody {
		flags |= rfHasBody
	}
	buf = binary.AppendUvarint(buf, uint64(flags))
	return encodeMsgpack(buf, &docInfoRecord{
		DBSeq:       info.DBSeq,
		RevSeq:      info.RevSeq,
		Deleted:     info.Deleted,
		ContentMeta: info.ContentMeta,
		Size:        info.Size,
		RevMeta:     info.RevMeta,
	})
}

// decodeDocInfo copies everything it needs out of raw, so the result
// outlives the transaction.
func decodeDocInfo(id, raw []byte) (*DocInfo, error) {
	d := makeByteDecoder(raw)
	v, err := d.Uvarint()
	if err != nil {
		return nil, err
	}
	flags := recordFlags(v)
	if (flags&^rfSupportedMask) != 0 || flags.ver() != rfVer1 {
		return nil, dataErrf(raw, 0, nil, "invalid doc info: unsupported flags %x", v)
	}

	var rec docInfoRecord
	if err := decodeMsgpack(d.Rest(), &rec); err != nil {
		return nil, err
	}

	buf := docInfoBytesPool.Get().([]byte)
	buf = append(buf, id...)
	buf = append(buf, rec.RevMeta...)
	n := len(id)

	info := &DocInfo{
		ID:          buf[:n:n],
		DBSeq:       rec.DBSeq,
		RevSeq:      rec.RevSeq,
		Deleted:     rec.Deleted,
		ContentMeta: rec.ContentMeta,
		Size:        rec.Size,
		hasBody:     (flags & rfHasBody) != 0,
		buf:         buf,
	}
	if len(rec.RevMeta) > 0 {
		info.RevMeta = buf[n:len(buf):len(buf)]
	}
	return info, nil
}

type bodyFlags uint64

const (
	bfCompressed bodyFlags = 1 << iota

	bfSupportedMask = bfCompressed
)

// encodeBody appends a body record for data to buf and returns it along with
// the number of bytes the stored data occupies.
func encodeBody(buf []byte, data []byte, compress bool) ([]byte, int) {
	var flags bodyFlags
	stored := data
	if compress {
		stored = snappy.Encode(nil, data)
		flags |= bfCompressed
	}

	bb := bytesBuilder{buf}
	bb.AppendUvarint(uint64(flags))
	bb.AppendFixedUint64(xxhash.Sum64(stored))
	bb.Write(stored)
	return bb.Buf, len(stored)
}

// decodeBody verifies the checksum of a body record and returns the data in
// a buffer owned by the caller (taken from bodyBytesPool).
func decodeBody(raw []byte, decompress bool) ([]byte, error) {
	d := makeByteDecoder(raw)
	v, err := d.Uvarint()
	if err != nil {
		return nil, err
	}
	flags := bodyFlags(v)
	if (flags &^ bfSupportedMask) != 0 {
		return nil, dataErrf(raw, 0, nil, "invalid body: unsupported flags %x", v)
	}
	sum, err := d.FixedUint64()
	if err != nil {
		return nil, err
	}
	stored := d.Rest()
	if actual := xxhash.Sum64(stored); actual != sum {
		return nil, dataErrf(raw, 0, nil, "invalid body: checksum %016x, expected %016x", actual, sum)
	}

	out := bodyBytesPool.Get().([]byte)
	if (flags&bfCompressed) != 0 && decompress {
		n, err := snappy.DecodedLen(stored)
		if err != nil {
			releaseBodyBytes(out)
			return nil, dataErrf(raw, 0, nil, "invalid body: %v", err)
		}
		out = ensureCapacity(out, n)[:n]
		out, err = snappy.Decode(out, stored)
		if err != nil {
			releaseBodyBytes(out)
			return nil, dataErrf(raw, 0, nil, "invalid body: %v", err)
		}
		return out, nil
	}
	return appendRaw(out, stored), nil
}

// A by_seq record keeps the revision written at its sequence, so the change
// feed and stale DocInfo values can still see it after the document moves
// on. supersededBy is the sequence of the next revision, or 0 while this one
// is the latest.
//
//	uvarint superseded_by | uvarint len(id) | id | docinfo record
type seqRecord struct {
	ID           []byte
	SupersededBy uint64
	DocInfo      []byte
}

func encodeSeqRecord(buf []byte, rec seqRecord) []byte {
	bb := bytesBuilder{buf}
	bb.AppendUvarint(rec.SupersededBy)
	bb.AppendUvarint(uint64(len(rec.ID)))
	bb.Write(rec.ID)
	bb.Write(rec.DocInfo)
	return bb.Buf
}

// decodeSeqRecord returns slices into raw.
func decodeSeqRecord(raw []byte) (seqRecord, error) {
	var rec seqRecord
	d := makeByteDecoder(raw)
	var err error
	rec.SupersededBy, err = d.Uvarint()
	if err != nil {
		return rec, err
	}
	n, err := d.Uvarint()
	if err != nil {
		return rec, err
	}
	rest := d.Rest()
	if n == 0 || n > uint64(len(rest)) {
		return rec, dataErrf(raw, len(raw)-len(rest), nil, "invalid by_seq record: id length %d", n)
	}
	rec.ID, rec.DocInfo = rest[:n], rest[n:]
	return rec, nil
}

func (rec seqRecord) decodeDocInfo() (*DocInfo, error) {
	return decodeDocInfo(rec.ID, rec.DocInfo)
}

// isLatestAt reports whether the revision was still current when the
// database was at sequence end.
func (rec seqRecord) isLatestAt(end uint64) bool {
	return rec.SupersededBy == 0 || rec.SupersededBy > end
}
