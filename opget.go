package docstore

import (
	"fmt"
	"slices"
)

type OpenOptions uint64

const (
	// DecompressBodies returns the uncompressed data of bodies stored with
	// CompressBodies. Without it, compressed bodies are returned as stored.
	DecompressBodies OpenOptions = 1 << iota
)

func (v OpenOptions) Contains(f OpenOptions) bool {
	return (v & f) == f
}

// DocInfoByID looks up the latest revision of a document, including
// tombstones. The caller owns the result and must Free it.
func (db *DB) DocInfoByID(id []byte) (*DocInfo, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	var info *DocInfo
	err := db.view(func(tx *Tx) error {
		var err error
		info, err = tx.docInfoByID(id)
		return err
	})
	return info, err
}

// DocInfoBySeq returns the document whose latest revision has the given
// database sequence. Superseded sequences fail with ErrDocNotFound.
func (db *DB) DocInfoBySeq(seq uint64) (*DocInfo, error) {
	var info *DocInfo
	err := db.view(func(tx *Tx) error {
		var raw []byte
		var key [8]byte
		if bySeq := tx.bucket(bySeqBucket); bySeq != nil {
			raw = bySeq.Get(seqKey(key[:0], seq))
		}
		if raw == nil {
			return fmt.Errorf("sequence %d: %w", seq, ErrDocNotFound)
		}
		rec, err := decodeSeqRecord(raw)
		if err != nil {
			return fmt.Errorf("sequence %d: %w", seq, err)
		}
		if rec.SupersededBy != 0 {
			return docErrf(rec.ID, ErrDocNotFound, "sequence %d superseded by %d", seq, rec.SupersededBy)
		}
		info, err = rec.decodeDocInfo()
		return err
	})
	return info, err
}

func (tx *Tx) docInfoByID(id []byte) (*DocInfo, error) {
	var raw []byte
	if b := tx.bucket(byIDBucket); b != nil {
		raw = b.Get(id)
	}
	if raw == nil {
		return nil, docErrf(id, ErrDocNotFound, "")
	}
	info, err := decodeDocInfo(id, raw)
	if err != nil {
		return nil, docErrf(id, err, "decoding doc info")
	}
	return info, nil
}

// OpenDocWithDocInfo reads the body of the revision described by info, which
// need not be the latest one. Revisions without a body (tombstones) fail
// with ErrDocNotFound, and so do superseded revisions once Compact has
// removed them.
func (db *DB) OpenDocWithDocInfo(info *DocInfo, opt OpenOptions) (*Doc, error) {
	if info == nil || info.freed {
		return nil, fmt.Errorf("%w: nil or freed DocInfo", ErrInvalidArguments)
	}
	if !info.hasBody {
		return nil, docErrf(info.ID, ErrDocNotFound, "revision %d has no body", info.RevSeq)
	}

	var data []byte
	err := db.view(func(tx *Tx) error {
		var err error
		data, err = tx.openBody(info, opt.Contains(DecompressBodies))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Doc{ID: slices.Clone(info.ID), Data: data, pooled: true}, nil
}

// openBody returns the body data in a buffer from bodyBytesPool.
func (tx *Tx) openBody(info *DocInfo, decompress bool) ([]byte, error) {
	var raw []byte
	if b := tx.bucket(bodiesBucket); b != nil {
		var key [8]byte
		raw = b.Get(seqKey(key[:0], info.DBSeq))
	}
	if raw == nil {
		return nil, docErrf(info.ID, ErrDocNotFound, "body of seq %d is gone", info.DBSeq)
	}
	data, err := decodeBody(raw, decompress)
	if err != nil {
		return nil, docErrf(info.ID, err, "reading body of seq %d", info.DBSeq)
	}
	return data, nil
}

// OpenDoc reads the latest revision of a document.
func (db *DB) OpenDoc(id []byte, opt OpenOptions) (*Doc, *DocInfo, error) {
	info, err := db.DocInfoByID(id)
	if err != nil {
		return nil, nil, err
	}
	doc, err := db.OpenDocWithDocInfo(info, opt)
	if err != nil {
		info.Free()
		return nil, nil, err
	}
	return doc, info, nil
}
