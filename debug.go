package docstore

import (
	"fmt"
	"strings"

	"github.com/andreyvit/docstore/revmeta"
)

type DumpFlags uint64

const (
	DumpHeader = DumpFlags(1 << iota)
	DumpStats
	DumpDocs
	DumpBodies
	DumpLocalDocs

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

const maxDumpedBody = 256

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the contents of the database in a human-readable form for
// debugging. Bodies are shown decompressed and truncated.
func (db *DB) Dump(f DumpFlags) (string, error) {
	var buf strings.Builder
	err := db.view(func(tx *Tx) error {
		return tx.dump(&buf, f)
	})
	return buf.String(), err
}

func (tx *Tx) dump(w *strings.Builder, f DumpFlags) error {
	if f.Contains(DumpHeader) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (format %d): seq = %d, docs = %d, deleted = %d\n", tx.db.path, tx.hdr.Format, tx.hdr.UpdateSeq, tx.hdr.DocCount, tx.hdr.DeletedCount)
	}
	if f.Contains(DumpStats) {
		s := tx.stats()
		fmt.Fprintf(w, "stats: revisions = %d, superseded = %d, bodies = %d, locals = %d, index_size = %d, body_size = %d, local_size = %d, total_alloc = %d\n", s.Revisions, s.Superseded(), s.Bodies, s.LocalDocs, s.IndexSize, s.BodySize, s.LocalSize, s.TotalAlloc)
	}

	if f.Contains(DumpDocs) {
		fmt.Fprintln(w, dumpSep2)
		if bySeq := tx.bucket(bySeqBucket); bySeq != nil {
			c := bySeq.Cursor()
			for k, raw := c.First(); k != nil; k, raw = c.Next() {
				tx.dumpDoc(w, f, k, raw)
			}
		}
	}

	if f.Contains(DumpLocalDocs) {
		fmt.Fprintln(w, dumpSep2)
		if local := tx.bucket(localBucket); local != nil {
			c := local.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				fmt.Fprintf(w, "_local/%s = %s\n", k, truncateForDump(v))
			}
		}
	}
	return nil
}

func (tx *Tx) dumpDoc(w *strings.Builder, f DumpFlags, k, raw []byte) {
	seq, err := decodeSeqKey(k)
	if err != nil {
		fmt.Fprintf(w, "%s ** ERROR: %v\n", hexstr(k), err)
		return
	}
	rec, err := decodeSeqRecord(raw)
	if err != nil {
		fmt.Fprintf(w, "%d: ** ERROR: %v\n", seq, err)
		return
	}
	info, err := rec.decodeDocInfo()
	if err != nil {
		fmt.Fprintf(w, "%d: %q ** ERROR: %v\n", seq, rec.ID, err)
		return
	}
	defer info.Free()

	var flags string
	if info.Deleted {
		flags = " DELETED"
	}
	if rec.SupersededBy != 0 {
		flags += fmt.Sprintf(" (superseded by %d)", rec.SupersededBy)
	}
	if meta, err := revmeta.DecodeStrict(info.RevMeta); err == nil && !meta.IsZero() {
		fmt.Fprintf(w, "%d: %q rev=%d meta=%d size=%d %v%s\n", seq, info.ID, info.RevSeq, info.ContentMeta, info.Size, meta, flags)
	} else {
		fmt.Fprintf(w, "%d: %q rev=%d meta=%d size=%d revmeta=%s%s\n", seq, info.ID, info.RevSeq, info.ContentMeta, info.Size, hexstr(info.RevMeta), flags)
	}

	if f.Contains(DumpBodies) && info.hasBody {
		data, err := tx.openBody(info, true)
		if err != nil {
			fmt.Fprintf(w, "  ** ERROR: %v\n", err)
			return
		}
		fmt.Fprintf(w, "  %s\n", truncateForDump(data))
		releaseBodyBytes(data)
	}
}

func truncateForDump(b []byte) string {
	if len(b) > maxDumpedBody {
		return fmt.Sprintf("%s... (%d bytes)", b[:maxDumpedBody], len(b))
	}
	return string(b)
}
