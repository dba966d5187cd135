/*
Package sova implements a typed, ordered key-value access layer on top of a
sorted storage engine (Pebble by default; Bolt and an in-memory engine are
also available).

We implement:

1. Databases, named keyspaces with a declared multi-part key and value schema.

2. Order-preserving tuple encoding, so that range scans over encoded bytes
match the natural ordering of the typed key parts.

3. Cursors, for range, prefix and pivot scans in either direction.

4. Views, immutable point-in-time snapshots of one database.

5. Transactions, optimistic multi-database mutation scopes with first-committer-wins
conflict detection.

# Technical Details

**Keyspaces.**
Every database owns a key prefix derived from its name (escaped the same way
as variable-length key fields), so all databases of one environment share a
single flat engine keyspace without collisions.

## Binary encoding

**Key encoding.**
Keys are tuples encoded field by field. Fixed-width unsigned integers are
written big-endian; descending variants store the bitwise complement. Strings
and byte fields are escaped (0x00 becomes 0x00 0xFF) and terminated with
0x00 0x01, which preserves ordering and keeps fields self-delimiting.

**Value encoding.**
Values are tuples too, encoded with the same field codecs, then framed:
1. Compression tag (1 byte).
2. Payload (possibly compressed: Snappy, LZ4 or Zstandard per schema).
3. XXH3 checksum of the payload (8 bytes, big-endian).

## Concurrency

Committed state advances under a per-environment sequence number. A
transaction captures an engine snapshot and the sequence at Begin; Commit
validates that no overlapping key was committed at a higher sequence, blocks
on still-active writers of overlapping keys, and applies its write buffer as
a single engine batch.
*/
package sova
