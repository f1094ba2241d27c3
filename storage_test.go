package docstore

import (
	"testing"

	"go.etcd.io/bbolt"
)

func eachStorage(t *testing.T, f func(t *testing.T, stor storage)) {
	t.Run("bolt", func(t *testing.T) {
		bdb := must(bbolt.Open(tempDBFile(t), 0666, &bbolt.Options{NoSync: true, InitialMmapSize: 1 << 20}))
		stor := newBoltStorage(bdb)
		t.Cleanup(func() { stor.Close() })
		f(t, stor)
	})
	t.Run("memory", func(t *testing.T) {
		stor := newMemStorage()
		t.Cleanup(func() { stor.Close() })
		f(t, stor)
	})
}

func TestStorage_ReaderIsolation(t *testing.T) {
	eachStorage(t, func(t *testing.T, stor storage) {
		wtx := must(stor.BeginTx(true))
		b := must(wtx.CreateBucket(bySeqBucket))
		ensure(b.Put(seqKey(nil, 1), []byte("a")))
		ensure(wtx.Commit())

		rtx := must(stor.BeginTx(false))
		defer rtx.Rollback()

		wtx = must(stor.BeginTx(true))
		b = wtx.Bucket(bySeqBucket)
		ensure(b.Put(seqKey(nil, 1), []byte("changed")))
		ensure(b.Put(seqKey(nil, 2), []byte("b")))
		ensure(wtx.Commit())

		rb := rtx.Bucket(bySeqBucket)
		deepEqual(t, string(rb.Get(seqKey(nil, 1))), "a")
		if v := rb.Get(seqKey(nil, 2)); v != nil {
			t.Errorf("** reader sees %q written after it began", v)
		}

		rtx2 := must(stor.BeginTx(false))
		defer rtx2.Rollback()
		deepEqual(t, string(rtx2.Bucket(bySeqBucket).Get(seqKey(nil, 1))), "changed")
	})
}

func TestStorage_RollbackDiscards(t *testing.T) {
	eachStorage(t, func(t *testing.T, stor storage) {
		wtx := must(stor.BeginTx(true))
		b := must(wtx.CreateBucket(localBucket))
		ensure(b.Put([]byte("k"), []byte("v")))
		ensure(wtx.Commit())

		wtx = must(stor.BeginTx(true))
		ensure(wtx.Bucket(localBucket).Delete([]byte("k")))
		ensure(wtx.Rollback())
		ensure(wtx.Rollback())

		rtx := must(stor.BeginTx(false))
		defer rtx.Rollback()
		deepEqual(t, string(rtx.Bucket(localBucket).Get([]byte("k"))), "v")
		if rtx.Bucket("missing") != nil {
			t.Errorf("** Bucket(missing) != nil")
		}
	})
}

func TestStorage_CursorOrder(t *testing.T) {
	eachStorage(t, func(t *testing.T, stor storage) {
		wtx := must(stor.BeginTx(true))
		b := must(wtx.CreateBucket(bySeqBucket))
		for _, seq := range []uint64{300, 2, 70000, 1} {
			ensure(b.Put(seqKey(nil, seq), []byte{}))
		}

		var seqs []uint64
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			seqs = append(seqs, must(decodeSeqKey(k)))
		}
		deepEqual(t, seqs, []uint64{1, 2, 300, 70000})

		k, _ := b.Cursor().Seek(seqKey(nil, 3))
		deepEqual(t, must(decodeSeqKey(k)), uint64(300))
		k, _ = b.Cursor().Seek(seqKey(nil, 70001))
		if k != nil {
			t.Errorf("** Seek past end = %x, wanted nil", k)
		}
		deepEqual(t, b.Stats().KeyN, 4)
		ensure(wtx.Rollback())
	})
}

func TestMemStorage_ReadOnlyTx(t *testing.T) {
	stor := newMemStorage()
	defer stor.Close()

	tx := must(stor.BeginTx(false))
	defer tx.Rollback()
	_, err := tx.CreateBucket(metaBucket)
	isErr(t, err, errMemTxNotWritable)
}

func TestMemStorage_Closed(t *testing.T) {
	stor := newMemStorage()
	ensure(stor.Close())
	_, err := stor.BeginTx(false)
	isErr(t, err, ErrClosed)
}
