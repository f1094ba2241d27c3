package docstore

// storage is the ordered key-value layer under the document buckets. Bolt
// is the real backend; the in-memory one backs InMemory databases.
type storage interface {
	BeginTx(writable bool) (storageTx, error)
	Close() error
}

type storageTx interface {
	Writable() bool

	// Bucket returns nil if the bucket does not exist.
	Bucket(name string) storageBucket

	// CreateBucket returns the existing bucket if there is one.
	CreateBucket(name string) (storageBucket, error)

	Commit() error

	// Rollback may be called after Commit or a previous Rollback.
	Rollback() error

	// Size is the size of the database file, or an estimate for backends
	// without one.
	Size() int64
}

// storageBucket is a sorted key-value collection.
//
// Slices returned by Get and by cursors are only valid until the end of the
// transaction or the next modification of the bucket, whichever comes first.
type storageBucket interface {
	Get(key []byte) []byte
	Put(key, value []byte) error
	Delete(key []byte) error
	Cursor() storageCursor

	// Stats only has KeyN and LeafInuse meaningful for the in-memory backend.
	Stats() bucketStats
}

type bucketStats struct {
	KeyN        int
	LeafInuse   int64
	LeafAlloc   int64
	BranchAlloc int64
}

func (s bucketStats) TotalAlloc() int64 { return s.BranchAlloc + s.LeafAlloc }

// storageCursor walks a bucket in key order; by_seq relies on that order
// being numeric.
type storageCursor interface {
	First() (key, value []byte)

	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)

	Next() (key, value []byte)
}
