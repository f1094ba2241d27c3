package docstore

import (
	"errors"
	"strings"
	"testing"
)

func TestTx_FailedWriteDiscardsPending(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		save(t, db, "a", "1")
		ensure(db.Commit())
		save(t, db, "b", "1")

		err := db.update(func(tx *Tx) error {
			ensure(tx.saveDoc(&Doc{Data: []byte("2")}, &DocInfo{ID: []byte("c")}, 0))
			return errors.New("boom")
		})
		if err == nil || !strings.Contains(err.Error(), "uncommitted changes discarded") {
			t.Fatalf("update err = %v, wanted discarded changes", err)
		}

		// both the failed write and the earlier uncommitted one are gone
		deepEqual(t, changes(t, db, 0, 0), []string{"a@1"})
	})
}

func TestTx_FailureBeforeWriteKeepsPending(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		save(t, db, "a", "1")
		err := db.update(func(tx *Tx) error {
			return errors.New("boom")
		})
		if err == nil || err.Error() != "boom" {
			t.Fatalf("update err = %v, wanted boom", err)
		}
		deepEqual(t, changes(t, db, 0, 0), []string{"a@1"})
	})
}

func TestTx_PanicBecomesError(t *testing.T) {
	db := setup(t)

	err := db.view(func(tx *Tx) error {
		panic("boom")
	})
	if err == nil {
		t.Fatalf("db.view err = nil, wanted error")
	}
	if !strings.Contains(err.Error(), "panic: boom") {
		t.Fatalf("db.view err = %q, wanted it to include %q", err.Error(), "panic: boom")
	}
}

func TestTx_CloseDiscardsPending(t *testing.T) {
	fn := tempDBFile(t)
	db := must(Open(fn, OpenCreate, Options{IsTesting: true}))
	save(t, db, "a", "1")
	if db.pending == nil || db.pending.writes != 1 {
		t.Fatalf("pending = %v, wanted a transaction with 1 write", db.pending)
	}
	ensure(db.Close())

	db = must(Open(fn, 0, Options{IsTesting: true}))
	defer db.Close()
	_, err := db.DocInfoByID([]byte("a"))
	isErr(t, err, ErrDocNotFound)
}

func TestTx_CommitCounters(t *testing.T) {
	db := setup(t)
	ensure(db.Commit()) // no-op without pending writes
	deepEqual(t, db.CommitCount.Load(), uint64(0))

	save(t, db, "a", "1")
	save(t, db, "b", "1")
	ensure(db.Commit())
	deepEqual(t, db.CommitCount.Load(), uint64(1))
	deepEqual(t, db.WriteCount.Load(), uint64(2))
	isnil(t, db.pending)
	deepEqual(t, db.header.UpdateSeq, uint64(2))
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}
