package docstore

import (
	"slices"
)

// SaveLocalDoc stores a local document. Local documents live in their own
// namespace: they get no sequence number and never show up in changes.
// A LocalDoc with Deleted set removes the key.
func (db *DB) SaveLocalDoc(doc *LocalDoc) error {
	if doc == nil {
		return ErrInvalidArguments
	}
	if err := validateID(doc.ID); err != nil {
		return err
	}
	return db.update(func(tx *Tx) error {
		local, err := tx.writableBucket(localBucket)
		if err != nil {
			return err
		}
		id := tx.own(doc.ID)
		tx.markWritten()
		if doc.Deleted {
			err = local.Delete(id)
		} else {
			err = local.Put(id, tx.own(doc.JSON))
		}
		if err != nil {
			return err
		}
		if tx.db.verbose {
			tx.db.logf("db: SAVE_LOCAL %q deleted=%v size=%d", id, doc.Deleted, len(doc.JSON))
		}
		return nil
	})
}

// OpenLocalDoc returns a copy of the local document stored under id.
func (db *DB) OpenLocalDoc(id []byte) (*LocalDoc, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	var doc *LocalDoc
	err := db.view(func(tx *Tx) error {
		local := tx.bucket(localBucket)
		if local == nil {
			return docErrf(id, ErrLocalDocNotFound, "")
		}
		raw := local.Get(id)
		if raw == nil {
			return docErrf(id, ErrLocalDocNotFound, "")
		}
		doc = &LocalDoc{
			ID:   slices.Clone(id),
			JSON: slices.Clone(raw),
		}
		return nil
	})
	return doc, err
}
