/*
Package docstore implements a couchstore-style document database on top of a
key-value store (in this case, on top of Bolt).

We implement:

1. Versioned documents, identified by an opaque byte-string id. Every write
(including a deletion) is assigned the next database sequence number and a
per-document revision sequence number.

2. A change feed, visiting the latest revision of every document whose
database sequence is above a given value, in sequence order.

3. Local documents, an unversioned key-value namespace that is not part of
the change feed.

# Technical Details

**Buckets.**
All data lives in five flat buckets: meta, by_id, by_seq, bodies and local.

**Pending writes.**
Writes go into a single pending read-write transaction which stays open until
Commit. Reads made through the same DB see the pending writes. Close without
Commit discards them, just like an uncommitted couchstore header.

**Sequences.**
The header (in the meta bucket) holds the last assigned database sequence.
by_seq keeps every revision under its sequence. When a document is updated,
the entry of its previous revision is marked as superseded instead of being
removed, and the previous body stays too. A change feed therefore sees the
database as of the moment it started, and a DocInfo obtained earlier can
still open its revision. Compact drops superseded revisions.

## Binary encoding

**Header**: msgpack of the header struct.

**Doc info record** (by_id value):
1. Flags (uvarint).
2. msgpack of the record struct.

**Sequence record** (by_seq value):
1. Sequence of the superseding revision, or 0 (uvarint).
2. Document id length (uvarint) and id.
3. Doc info record, as in by_id.

**Body record** (bodies value, keyed by 8-byte big-endian sequence):
1. Flags (uvarint), bit 0 = Snappy-compressed.
2. Checksum (fixed 64-bit big-endian xxhash of the stored data).
3. Stored data.

Revision metadata (CAS, expiration, flags) is opaque to this package; see
package revmeta for its layout.
*/
package docstore
