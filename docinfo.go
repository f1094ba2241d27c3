package docstore

import (
	"fmt"
	"slices"
)

// Content meta values. The low bits classify the body, DocIsCompressed marks a
// body that the engine may store Snappy-compressed.
const (
	DocIsJSON         uint8 = 0
	DocInvalidJSON    uint8 = 1
	DocInvalidJSONKey uint8 = 2
	DocNonJSONMode    uint8 = 3
	DocIsCompressed   uint8 = 128

	maxIDSize   = 32768 // max key size in Bolt
	maxBodySize = 0x7FFFFFFF - 64
)

type Doc struct {
	ID   []byte
	Data []byte

	pooled bool
	freed  bool
}

// DocInfo describes one revision of a document independently of its body.
//
// DocInfo values returned by the engine must be released with Free exactly
// once. Values built by the caller (e.g. for SaveDoc) don't need to be.
type DocInfo struct {
	ID          []byte
	DBSeq       uint64
	RevSeq      uint64
	RevMeta     []byte
	Deleted     bool
	ContentMeta uint8
	// Size is the number of bytes the body occupies in storage (after
	// compression). Zero for tombstones without a body.
	Size uint64

	hasBody bool
	buf     []byte
	freed   bool
}

type LocalDoc struct {
	ID      []byte
	JSON    []byte
	Deleted bool

	freed bool
}

func (info *DocInfo) String() string {
	if info == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%q seq=%d rev=%d deleted=%v meta=%d size=%d", info.ID, info.DBSeq, info.RevSeq, info.Deleted, info.ContentMeta, info.Size)
}

// HasBody reports whether a body was stored with this revision. Tombstones
// saved without data have no body.
func (info *DocInfo) HasBody() bool {
	return info.hasBody
}

func (info *DocInfo) IsFreed() bool {
	return info.freed
}

// Free releases the buffers backing the DocInfo. Calling Free twice on the
// same value panics: it always indicates an ownership bug in the caller.
func (info *DocInfo) Free() {
	if info.freed {
		panic(fmt.Errorf("docstore: DocInfo %q freed twice", info.ID))
	}
	info.freed = true
	if info.buf != nil {
		clear(info.buf[:cap(info.buf)])
		docInfoBytesPool.Put(info.buf[:0])
	}
	info.buf = nil
	info.ID = nil
	info.RevMeta = nil
}

// Clone returns an unpooled copy that is independent of the original.
func (info *DocInfo) Clone() *DocInfo {
	c := *info
	c.ID = slices.Clone(info.ID)
	c.RevMeta = slices.Clone(info.RevMeta)
	c.buf = nil
	return &c
}

func (doc *Doc) Free() {
	if doc.freed {
		panic(fmt.Errorf("docstore: Doc %q freed twice", doc.ID))
	}
	doc.freed = true
	if doc.pooled {
		releaseBodyBytes(doc.Data)
	}
	doc.Data = nil
	doc.ID = nil
}

func (doc *LocalDoc) Free() {
	if doc.freed {
		panic(fmt.Errorf("docstore: LocalDoc %q freed twice", doc.ID))
	}
	doc.freed = true
	doc.JSON = nil
	doc.ID = nil
}

func validateID(id []byte) error {
	if len(id) == 0 {
		return fmt.Errorf("%w: empty document id", ErrInvalidArguments)
	}
	if len(id) > maxIDSize {
		return fmt.Errorf("%w: document id is %d bytes, max %d", ErrInvalidArguments, len(id), maxIDSize)
	}
	return nil
}
