package docstore

import (
	"fmt"
	"time"
)

// Compact removes superseded revisions: their by_seq entries and bodies.
// DocInfo values describing them can no longer be opened afterwards. Like
// any write, compaction is part of the pending transaction until Commit.
//
// Compact refuses to run while a ChangesSince scan is in progress, since the
// scan may still need the revisions it would remove.
func (db *DB) Compact() (removed int, err error) {
	if db.scans.Load() > 0 {
		return 0, fmt.Errorf("%w: cannot compact during a changes scan", ErrInvalidArguments)
	}
	start := time.Now()
	err = db.update(func(tx *Tx) error {
		var err error
		removed, err = tx.compact()
		return err
	})
	if err == nil && db.verbose {
		db.logf("db: COMPACT %s removed=%d in %v", db.path, removed, time.Since(start))
	}
	return removed, err
}

func (tx *Tx) compact() (int, error) {
	bySeq := tx.bucket(bySeqBucket)
	if bySeq == nil {
		return 0, nil
	}

	var stale [][]byte
	c := bySeq.Cursor()
	for k, raw := c.First(); k != nil; k, raw = c.Next() {
		rec, err := decodeSeqRecord(raw)
		if err != nil {
			return 0, fmt.Errorf("by_seq entry %x: %w", k, err)
		}
		if rec.SupersededBy != 0 {
			stale = append(stale, tx.own(k))
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	bodies, err := tx.writableBucket(bodiesBucket)
	if err != nil {
		return 0, err
	}
	tx.markWritten()
	for _, k := range stale {
		if err := bySeq.Delete(k); err != nil {
			return 0, err
		}
		if err := bodies.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
