package docstore

import (
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
)

// Tx is a single storage transaction as seen by the document operations.
//
// A DB has at most one writable Tx at a time: the pending transaction that
// accumulates writes until Commit. Reads reuse the pending Tx when there is
// one, so they observe uncommitted writes.
type Tx struct {
	db  *DB
	stx storageTx
	hdr header

	writes int

	// Bolt references keys and values passed to Put until the transaction
	// ends, so pooled buffers handed to it are only released by release().
	kept []keptBuf
}

type keptBuf struct {
	buf  []byte
	pool *sync.Pool
}

func (db *DB) newTx(stx storageTx, hdr header) *Tx {
	return &Tx{
		db:  db,
		stx: stx,
		hdr: hdr,
	}
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

func (tx *Tx) markWritten() {
	tx.writes++
}

// keep hands buf to the transaction; it goes back to pool when the
// transaction ends.
func (tx *Tx) keep(buf []byte, pool *sync.Pool) []byte {
	tx.kept = append(tx.kept, keptBuf{buf, pool})
	return buf
}

// own returns a copy of b that stays valid for the life of the transaction.
func (tx *Tx) own(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return slices.Clone(b)
}

func (tx *Tx) release() {
	for i, k := range tx.kept {
		if k.pool != nil {
			k.pool.Put(k.buf[:0])
		}
		tx.kept[i] = keptBuf{}
	}
	tx.kept = nil
}

// bucket returns nil when the bucket doesn't exist, which only happens for
// read-only databases that have never been written to.
func (tx *Tx) bucket(name string) storageBucket {
	return tx.stx.Bucket(name)
}

func (tx *Tx) writableBucket(name string) (storageBucket, error) {
	if b := tx.stx.Bucket(name); b != nil {
		return b, nil
	}
	return tx.stx.CreateBucket(name)
}

func (tx *Tx) putHeader() error {
	b, err := tx.writableBucket(metaBucket)
	if err != nil {
		return err
	}
	raw := encodeMsgpack(nil, &tx.hdr)
	return b.Put(headerKey, raw)
}

func (tx *Tx) loadHeader() (header, error) {
	var h header
	b := tx.bucket(metaBucket)
	if b == nil {
		return header{Format: formatVerLatest}, nil
	}
	raw := b.Get(headerKey)
	if raw == nil {
		return header{Format: formatVerLatest}, nil
	}
	err := h.decode(raw)
	return h, err
}

func (tx *Tx) commit() error {
	defer tx.release()
	err := tx.putHeader()
	if err != nil {
		tx.stx.Rollback()
		return err
	}
	return tx.stx.Commit()
}

func (tx *Tx) rollback() {
	err := tx.stx.Rollback()
	tx.release()
	if err != nil {
		panic(err) // not expected to happen unless the storage API changes
	}
}

type panicked struct {
	reason interface{}
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}
