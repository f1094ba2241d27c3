package docstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
)

// InMemory can be passed to Open instead of a path to get a transient
// database that lives only as long as the DB value.
const InMemory = ":memory:"

type OpenFlags uint64

const (
	// OpenCreate creates the database file if it does not exist.
	OpenCreate OpenFlags = 1 << iota
	OpenReadOnly
)

func (f OpenFlags) Contains(v OpenFlags) bool {
	return (f & v) == v
}

type DB struct {
	stor     storage
	bdb      *bbolt.DB
	path     string
	logf     func(format string, args ...any)
	verbose  bool
	readOnly bool

	mu      sync.Mutex
	closed  bool
	header  header // as of the last commit
	pending *Tx

	// scans counts running ChangesSince calls, which rely on superseded
	// revisions staying in by_seq.
	scans atomic.Int32

	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64
	CommitCount atomic.Uint64
}

type Options struct {
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool
	NoSync    bool
	MmapSize  int
	Timeout   time.Duration
}

func Open(path string, flags OpenFlags, opt Options) (*DB, error) {
	if opt.Logf == nil {
		opt.Logf = func(format string, args ...any) {}
	}
	readOnly := flags.Contains(OpenReadOnly)

	var stor storage
	var bdb *bbolt.DB
	if path == InMemory {
		if readOnly {
			return nil, fmt.Errorf("docstore: %w: in-memory database cannot be read-only", ErrInvalidArguments)
		}
		stor = newMemStorage()
	} else {
		if !flags.Contains(OpenCreate) || readOnly {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("docstore: %s: %w", path, ErrNoSuchFile)
			}
		}

		bopt := *bbolt.DefaultOptions
		bopt.Timeout = 10 * time.Second
		bopt.ReadOnly = readOnly
		if opt.IsTesting {
			bopt.NoSync = true
			bopt.NoFreelistSync = true
			bopt.InitialMmapSize = 1024 * 1024 * 5
		} else {
			bopt.InitialMmapSize = 1024 * 1024 * 64
			bopt.FreelistType = bbolt.FreelistMapType
		}
		if opt.NoSync {
			bopt.NoSync = true
		}
		if opt.MmapSize != 0 {
			bopt.InitialMmapSize = opt.MmapSize
		}
		if opt.Timeout != 0 {
			bopt.Timeout = opt.Timeout
		}

		var err error
		bdb, err = bbolt.Open(path, 0666, &bopt)
		if err != nil {
			return nil, fmt.Errorf("docstore: %w", err)
		}
		stor = newBoltStorage(bdb)
	}

	db := &DB{
		stor:     stor,
		bdb:      bdb,
		path:     path,
		logf:     opt.Logf,
		verbose:  opt.Verbose,
		readOnly: readOnly,
	}

	err := db.prepare()
	if err != nil {
		stor.Close()
		return nil, fmt.Errorf("docstore: %s: %w", path, err)
	}
	if db.verbose {
		db.logf("db: OPEN %s seq=%d docs=%d deleted=%d", path, db.header.UpdateSeq, db.header.DocCount, db.header.DeletedCount)
	}
	return db, nil
}

// prepare creates the buckets of a fresh database and loads the header.
func (db *DB) prepare() error {
	stx, err := db.stor.BeginTx(!db.readOnly)
	if err != nil {
		return err
	}
	tx := db.newTx(stx, header{})
	if db.readOnly {
		defer tx.rollback()
		db.header, err = tx.loadHeader()
		return err
	}

	for _, name := range allBuckets {
		if _, err := tx.writableBucket(name); err != nil {
			tx.rollback()
			return err
		}
	}
	tx.hdr, err = tx.loadHeader()
	if err != nil {
		tx.rollback()
		return err
	}
	err = tx.commit()
	if err != nil {
		return err
	}
	db.header = tx.hdr
	return nil
}

func (db *DB) Path() string {
	return db.path
}

// Bolt returns the underlying Bolt database, or nil for in-memory databases.
func (db *DB) Bolt() *bbolt.DB {
	return db.bdb
}

func (db *DB) IsReadOnly() bool {
	return db.readOnly
}

// Close releases the database. Writes made since the last Commit are
// discarded.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	db.closed = true
	if tx := db.pending; tx != nil {
		db.pending = nil
		if db.verbose {
			db.logf("db: CLOSE %s discarding %d uncommitted writes", db.path, tx.writes)
		}
		tx.rollback()
	}
	return db.stor.Close()
}

// Commit makes all pending writes durable. A failed commit discards the
// pending writes; nothing is retried.
func (db *DB) Commit() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	tx := db.pending
	if tx == nil {
		return nil
	}
	db.pending = nil

	start := time.Now()
	err := tx.commit()
	if err != nil {
		return fmt.Errorf("docstore: commit: %w", err)
	}
	db.header = tx.hdr
	db.CommitCount.Add(1)
	if db.verbose {
		db.logf("db: COMMIT %s seq=%d writes=%d in %v", db.path, tx.hdr.UpdateSeq, tx.writes, time.Since(start))
	}
	return nil
}

// view runs f against the pending transaction if there is one, or a fresh
// read-only transaction otherwise.
func (db *DB) view(f func(tx *Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	db.ReadCount.Add(1)
	if db.pending != nil {
		return safelyCall(f, db.pending)
	}

	stx, err := db.stor.BeginTx(false)
	if err != nil {
		return err
	}
	tx := db.newTx(stx, db.header)
	defer tx.rollback()
	return safelyCall(f, tx)
}

// update runs f against the pending transaction, starting one if needed.
// If f fails after it started modifying the database, the pending
// transaction is rolled back, since it may hold a partial write.
func (db *DB) update(f func(tx *Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	if db.readOnly {
		return ErrReadOnly
	}
	if db.pending == nil {
		stx, err := db.stor.BeginTx(true)
		if err != nil {
			return err
		}
		db.pending = db.newTx(stx, db.header)
	}
	db.WriteCount.Add(1)

	tx := db.pending
	before := tx.writes
	err := safelyCall(f, tx)
	if err != nil && tx.writes != before {
		db.pending = nil
		tx.rollback()
		if db.verbose {
			db.logf("db: ROLLBACK %s after failed write: %v", db.path, err)
		}
		return fmt.Errorf("%w (uncommitted changes discarded)", err)
	}
	return err
}
