package docstore

import (
	"bytes"
	"fmt"
)

type SaveOptions uint64

const (
	// CompressBodies stores the bodies of documents whose ContentMeta has
	// DocIsCompressed set using Snappy.
	CompressBodies SaveOptions = 1 << iota
)

func (v SaveOptions) Contains(f SaveOptions) bool {
	return (v & f) == f
}

// SaveDoc writes a new revision of the document identified by info.ID.
//
// The revision gets the next database sequence. info.RevSeq is used as the
// revision sequence when non-zero; otherwise the previous revision sequence
// plus one is used. A nil doc, or a deleted info with empty data, stores no
// body. On success info.DBSeq, info.RevSeq and info.Size are updated.
func (db *DB) SaveDoc(doc *Doc, info *DocInfo, opt SaveOptions) error {
	return db.SaveDocs([]*Doc{doc}, []*DocInfo{info}, opt)
}

// SaveDocs saves several documents within the same pending transaction.
func (db *DB) SaveDocs(docs []*Doc, infos []*DocInfo, opt SaveOptions) error {
	if len(docs) != len(infos) {
		return fmt.Errorf("%w: %d docs, %d infos", ErrInvalidArguments, len(docs), len(infos))
	}
	for i, info := range infos {
		if info == nil {
			return fmt.Errorf("%w: nil DocInfo", ErrInvalidArguments)
		}
		if err := validateID(info.ID); err != nil {
			return err
		}
		if doc := docs[i]; doc != nil {
			if len(doc.ID) != 0 && !bytes.Equal(doc.ID, info.ID) {
				return docErrf(info.ID, ErrInvalidArguments, "doc id %q does not match", doc.ID)
			}
			if len(doc.Data) > maxBodySize {
				return docErrf(info.ID, ErrInvalidArguments, "body of %d bytes is too large", len(doc.Data))
			}
		}
	}

	return db.update(func(tx *Tx) error {
		for i, info := range infos {
			if err := tx.saveDoc(docs[i], info, opt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (tx *Tx) saveDoc(doc *Doc, info *DocInfo, opt SaveOptions) error {
	byID, err := tx.writableBucket(byIDBucket)
	if err != nil {
		return err
	}
	bySeq, err := tx.writableBucket(bySeqBucket)
	if err != nil {
		return err
	}

	var prev *DocInfo
	if raw := byID.Get(info.ID); raw != nil {
		prev, err = decodeDocInfo(info.ID, raw)
		if err != nil {
			return docErrf(info.ID, err, "decoding previous revision")
		}
		defer prev.Free()
	}

	seq := tx.hdr.UpdateSeq + 1
	revSeq := info.RevSeq
	if revSeq == 0 {
		revSeq = 1
		if prev != nil {
			revSeq = prev.RevSeq + 1
		}
	}

	var data []byte
	if doc != nil {
		data = doc.Data
	}
	hasBody := doc != nil && (!info.Deleted || len(data) > 0)

	var bodyRaw []byte
	var size int
	if hasBody {
		compress := opt.Contains(CompressBodies) && (info.ContentMeta&DocIsCompressed) != 0
		bodyRaw, size = encodeBody(bodyBytesPool.Get().([]byte), data, compress)
		tx.keep(bodyRaw, bodyBytesPool)
	}

	id := tx.own(info.ID)
	stored := &DocInfo{
		ID:          id,
		DBSeq:       seq,
		RevSeq:      revSeq,
		RevMeta:     info.RevMeta,
		Deleted:     info.Deleted,
		ContentMeta: info.ContentMeta,
		Size:        uint64(size),
		hasBody:     hasBody,
	}
	rec := tx.keep(encodeDocInfo(recordBytesPool.Get().([]byte), stored), recordBytesPool)
	seqRec := tx.keep(encodeSeqRecord(recordBytesPool.Get().([]byte), seqRecord{ID: id, DocInfo: rec}), recordBytesPool)
	key := tx.keep(seqKey(keyBytesPool.Get().([]byte), seq), keyBytesPool)

	var prevKey, prevRec []byte
	if prev != nil {
		prevKey = tx.keep(seqKey(keyBytesPool.Get().([]byte), prev.DBSeq), keyBytesPool)
		raw := bySeq.Get(prevKey)
		if raw == nil {
			return docErrf(info.ID, dataErrf(prevKey, 0, nil, "missing by_seq entry"), "previous revision at seq %d", prev.DBSeq)
		}
		r, err := decodeSeqRecord(raw)
		if err != nil {
			return docErrf(info.ID, err, "previous revision at seq %d", prev.DBSeq)
		}
		r.SupersededBy = seq
		prevRec = tx.keep(encodeSeqRecord(recordBytesPool.Get().([]byte), r), recordBytesPool)
	}

	tx.markWritten()

	if prev != nil {
		// The previous body and by_seq entry stay until Compact, for the
		// change feed and for DocInfo values still held by callers.
		if err := bySeq.Put(prevKey, prevRec); err != nil {
			return err
		}
		if prev.Deleted {
			tx.hdr.DeletedCount--
		} else {
			tx.hdr.DocCount--
		}
	}

	if hasBody {
		bodies, err := tx.writableBucket(bodiesBucket)
		if err != nil {
			return err
		}
		if err := bodies.Put(key, bodyRaw); err != nil {
			return err
		}
	}
	if err := bySeq.Put(key, seqRec); err != nil {
		return err
	}
	if err := byID.Put(id, rec); err != nil {
		return err
	}

	tx.hdr.UpdateSeq = seq
	if info.Deleted {
		tx.hdr.DeletedCount++
	} else {
		tx.hdr.DocCount++
	}

	info.DBSeq = seq
	info.RevSeq = revSeq
	info.Size = uint64(size)
	info.hasBody = hasBody

	if tx.db.verbose {
		tx.db.logf("db: SAVE %q => seq=%d rev=%d deleted=%v meta=%d size=%d", id, seq, revSeq, info.Deleted, info.ContentMeta, size)
	}
	return nil
}
