package sova

// Engine is the sorted key-value store everything above it funnels into.
// Implementations must keep keys in byte-wise lexicographic order. Durability
// and compaction are the engine's business; this layer only relies on the
// primitives below.
//
// Get returns (nil, nil) for an absent key; this layer never stores empty
// values, so nil is unambiguous.
type Engine interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error

	// NewIterator returns an iterator over the whole keyspace. Callers
	// position it with First/Last/SeekGE/SeekLT and must Close it.
	NewIterator() (Iterator, error)

	// NewBatch returns a write batch; Commit applies all buffered operations
	// as one atomic unit.
	NewBatch() Batch

	// NewSnapshot returns a point-in-time read view. The snapshot never
	// observes writes applied after its creation and must be Closed.
	NewSnapshot() (Snapshot, error)

	Close() error
}

// Iterator walks engine keys in byte order. Key and Value are only valid
// until the next positioning call; callers copy when they need to retain.
type Iterator interface {
	First() bool
	Last() bool
	// SeekGE positions at the first key >= key.
	SeekGE(key []byte) bool
	// SeekLT positions at the last key < key.
	SeekLT(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Close() error
}

// Batch buffers writes for a single atomic apply.
type Batch interface {
	Set(key, value []byte)
	Delete(key []byte)
	Commit() error
	Close() error
}

// Snapshot is an immutable read view of the engine.
type Snapshot interface {
	Get(key []byte) ([]byte, error)
	NewIterator() (Iterator, error)
	Close() error
}
