package docstore

import (
	"bytes"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
)

var errMemTxNotWritable = errors.New("in-memory transaction is read-only")

// memStorage keeps committed buckets immutable: a writable transaction
// copies a bucket the first time it modifies it, so readers can share the
// committed maps without snapshotting.
type memStorage struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets map[string]*memBucket
	closed  bool
	writer  bool
}

func newMemStorage() storage {
	s := &memStorage{buckets: make(map[string]*memBucket)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
	}
	if s.closed {
		return nil, ErrClosed
	}
	if writable {
		s.writer = true
	}
	return &memTx{
		base:     s,
		writable: writable,
		buckets:  maps.Clone(s.buckets),
	}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	s.cond.Broadcast()
	return nil
}

type memTx struct {
	base     *memStorage
	writable bool
	buckets  map[string]*memBucket
	dirty    map[string]bool
	done     bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) Bucket(name string) storageBucket {
	if tx.buckets[name] == nil {
		return nil
	}
	return memBucketHandle{tx, name}
}

func (tx *memTx) CreateBucket(name string) (storageBucket, error) {
	if !tx.writable {
		return nil, errMemTxNotWritable
	}
	if tx.buckets[name] == nil {
		tx.buckets[name] = &memBucket{}
		tx.markDirty(name)
	}
	return memBucketHandle{tx, name}, nil
}

func (tx *memTx) markDirty(name string) {
	if tx.dirty == nil {
		tx.dirty = make(map[string]bool)
	}
	tx.dirty[name] = true
}

// mutable returns a bucket this transaction is allowed to modify.
func (tx *memTx) mutable(name string) (*memBucket, error) {
	if !tx.writable {
		return nil, errMemTxNotWritable
	}
	b := tx.buckets[name]
	if !tx.dirty[name] {
		b = &memBucket{items: slices.Clone(b.items)}
		tx.buckets[name] = b
		tx.markDirty(name)
	}
	return b, nil
}

func (tx *memTx) Commit() error {
	if !tx.writable {
		return errMemTxNotWritable
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.done {
		return nil
	}
	defer tx.finishLocked()
	if tx.base.closed {
		return ErrClosed
	}
	tx.base.buckets = tx.buckets
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.finishLocked()
	return nil
}

func (tx *memTx) finishLocked() {
	if tx.done {
		return
	}
	tx.done = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) Size() int64 {
	var n int64
	for _, b := range tx.buckets {
		n += b.inuse()
	}
	return n
}

// memBucket items never change once committed; Put stores fresh copies.
type memBucket struct {
	items []memKV // sorted by key
}

type memKV struct {
	key   []byte
	value []byte
}

func (b *memBucket) inuse() int64 {
	var n int64
	for _, kv := range b.items {
		n += int64(len(kv.key) + len(kv.value))
	}
	return n
}

func (b *memBucket) search(key []byte) (int, bool) {
	i := sort.Search(len(b.items), func(i int) bool {
		return bytes.Compare(b.items[i].key, key) >= 0
	})
	return i, i < len(b.items) && bytes.Equal(b.items[i].key, key)
}

type memBucketHandle struct {
	tx   *memTx
	name string
}

func (h memBucketHandle) bucket() *memBucket {
	return h.tx.buckets[h.name]
}

func (h memBucketHandle) Get(key []byte) []byte {
	b := h.bucket()
	if i, ok := b.search(key); ok {
		return b.items[i].value
	}
	return nil
}

func (h memBucketHandle) Put(key, value []byte) error {
	b, err := h.tx.mutable(h.name)
	if err != nil {
		return err
	}
	kv := memKV{slices.Clone(key), slices.Clone(value)}
	if kv.value == nil {
		kv.value = []byte{}
	}
	if i, ok := b.search(key); ok {
		b.items[i] = kv
	} else {
		b.items = slices.Insert(b.items, i, kv)
	}
	return nil
}

func (h memBucketHandle) Delete(key []byte) error {
	b, err := h.tx.mutable(h.name)
	if err != nil {
		return err
	}
	if i, ok := b.search(key); ok {
		b.items = slices.Delete(b.items, i, i+1)
	}
	return nil
}

func (h memBucketHandle) Cursor() storageCursor {
	return &memCursor{items: h.bucket().items, pos: -1}
}

func (h memBucketHandle) Stats() bucketStats {
	b := h.bucket()
	inuse := b.inuse()
	return bucketStats{
		KeyN:      len(b.items),
		LeafInuse: inuse,
		LeafAlloc: inuse,
	}
}

// memCursor iterates the items as of its creation, like a Bolt cursor it
// should not outlive a modification of the bucket.
type memCursor struct {
	items []memKV
	pos   int
}

func (c *memCursor) First() ([]byte, []byte) {
	c.pos = 0
	return c.current()
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	c.pos = sort.Search(len(c.items), func(i int) bool {
		return bytes.Compare(c.items[i].key, seek) >= 0
	})
	return c.current()
}

func (c *memCursor) Next() ([]byte, []byte) {
	c.pos++
	return c.current()
}

func (c *memCursor) current() ([]byte, []byte) {
	if c.pos < 0 || c.pos >= len(c.items) {
		return nil, nil
	}
	kv := c.items[c.pos]
	return kv.key, kv.value
}
