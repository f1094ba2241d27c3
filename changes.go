package docstore

import (
	"fmt"
	"math"
)

type (
	ChangesOptions uint64

	// ChangesAction tells ChangesSince what to do with the DocInfo it passed
	// to the callback.
	ChangesAction int

	// ChangesFunc is called once per change. Returning an error stops the
	// iteration and makes ChangesSince return that error.
	ChangesFunc func(db *DB, info *DocInfo) (ChangesAction, error)
)

const (
	// ChangesNoDeletes skips tombstones.
	ChangesNoDeletes ChangesOptions = 1 << iota
)

const (
	// FreeDocInfo makes ChangesSince free the DocInfo after the callback.
	FreeDocInfo ChangesAction = iota
	// KeepDocInfo transfers ownership of the DocInfo to the callback.
	KeepDocInfo
)

func (v ChangesOptions) Contains(f ChangesOptions) bool {
	return (v & f) == f
}

func (v ChangesAction) String() string {
	switch v {
	case FreeDocInfo:
		return "free"
	case KeepDocInfo:
		return "keep"
	default:
		return fmt.Sprintf("invalid action %d", int(v))
	}
}

// ChangesSince calls fn for every document whose latest revision has a
// database sequence greater than since, in ascending sequence order.
//
// The scan sees the database as of the call: it is bounded by the last
// sequence at that time, and a document updated by fn before the scan
// reaches it is still reported with its pre-scan revision. fn runs without
// any database lock held and may read or write through db.
func (db *DB) ChangesSince(since uint64, opt ChangesOptions, fn ChangesFunc) error {
	var end uint64
	err := db.view(func(tx *Tx) error {
		end = tx.hdr.UpdateSeq
		return nil
	})
	if err != nil {
		return err
	}
	if since == math.MaxUint64 {
		return nil
	}

	db.scans.Add(1)
	defer db.scans.Add(-1)

	next := since + 1
	var visited int
	for next <= end {
		var info *DocInfo
		err := db.view(func(tx *Tx) error {
			var err error
			info, next, err = tx.nextChange(next, end)
			return err
		})
		if err != nil {
			return err
		}
		if info == nil {
			break
		}
		if opt.Contains(ChangesNoDeletes) && info.Deleted {
			info.Free()
			continue
		}

		visited++
		action, err := fn(db, info)
		if action != KeepDocInfo {
			info.Free()
		}
		if err != nil {
			return err
		}
	}

	if db.verbose {
		db.logf("db: CHANGES %s since=%d end=%d visited=%d", db.path, since, end, visited)
	}
	return nil
}

// nextChange finds the first revision in [from, end] that was the latest
// one of its document at sequence end, and returns it along with the
// sequence to continue from. Revisions superseded after end are still
// returned, so writes made during a scan never hide pre-scan changes.
func (tx *Tx) nextChange(from, end uint64) (*DocInfo, uint64, error) {
	bySeq := tx.bucket(bySeqBucket)
	if bySeq == nil {
		return nil, 0, nil
	}

	var key [8]byte
	c := bySeq.Cursor()
	for k, raw := c.Seek(seqKey(key[:0], from)); k != nil; k, raw = c.Next() {
		seq, err := decodeSeqKey(k)
		if err != nil {
			return nil, 0, err
		}
		if seq > end {
			break
		}
		rec, err := decodeSeqRecord(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("by_seq entry %d: %w", seq, err)
		}
		if !rec.isLatestAt(end) {
			continue
		}
		info, err := rec.decodeDocInfo()
		if err != nil {
			return nil, 0, docErrf(rec.ID, err, "by_seq entry %d", seq)
		}
		if info.DBSeq != seq {
			err := dataErrf(k, 0, nil, "by_seq entry %d holds %q at seq %d", seq, info.ID, info.DBSeq)
			info.Free()
			return nil, 0, err
		}
		return info, seq + 1, nil
	}
	return nil, 0, nil
}
