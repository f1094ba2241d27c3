package docstore

import (
	"path/filepath"
)

// Info summarizes the state of a database as seen by the next read,
// including uncommitted writes.
type Info struct {
	FileName     string
	LastSequence uint64
	DocCount     uint64
	DeletedCount uint64
	// SpaceUsed is the total size of the storage file in bytes, or the
	// approximate size of the live data for in-memory databases.
	SpaceUsed int64
	Pending   bool
}

// Stats describes the buckets of a database.
type Stats struct {
	Docs       int
	Tombstones int
	// Revisions counts by_seq entries, superseded ones included.
	Revisions int
	Bodies    int
	LocalDocs int

	IndexSize  int64
	BodySize   int64
	LocalSize  int64
	TotalAlloc int64
}

func (s *Stats) TotalSize() int64 {
	return s.IndexSize + s.BodySize + s.LocalSize
}

// Superseded is the number of revisions Compact would remove.
func (s *Stats) Superseded() int {
	return s.Revisions - s.Docs - s.Tombstones
}

func (db *DB) Info() (Info, error) {
	var info Info
	err := db.view(func(tx *Tx) error {
		info = Info{
			FileName:     db.path,
			LastSequence: tx.hdr.UpdateSeq,
			DocCount:     tx.hdr.DocCount,
			DeletedCount: tx.hdr.DeletedCount,
			SpaceUsed:    tx.stx.Size(),
			Pending:      tx.IsWritable() && tx.writes > 0,
		}
		return nil
	})
	if db.path != InMemory {
		info.FileName = filepath.Base(db.path)
	}
	return info, err
}

func (db *DB) Stats() (Stats, error) {
	var s Stats
	err := db.view(func(tx *Tx) error {
		s = tx.stats()
		return nil
	})
	return s, err
}

func (tx *Tx) stats() Stats {
	var result Stats
	if b := tx.bucket(byIDBucket); b != nil {
		bs := b.Stats()
		result.IndexSize += bs.LeafInuse
		result.TotalAlloc += bs.TotalAlloc()
	}
	if b := tx.bucket(bySeqBucket); b != nil {
		bs := b.Stats()
		result.Revisions = bs.KeyN
		result.IndexSize += bs.LeafInuse
		result.TotalAlloc += bs.TotalAlloc()
	}
	if b := tx.bucket(bodiesBucket); b != nil {
		bs := b.Stats()
		result.Bodies = bs.KeyN
		result.BodySize = bs.LeafInuse
		result.TotalAlloc += bs.TotalAlloc()
	}
	if b := tx.bucket(localBucket); b != nil {
		bs := b.Stats()
		result.LocalDocs = bs.KeyN
		result.LocalSize = bs.LeafInuse
		result.TotalAlloc += bs.TotalAlloc()
	}
	result.Docs = int(tx.hdr.DocCount)
	result.Tombstones = int(tx.hdr.DeletedCount)
	return result
}
