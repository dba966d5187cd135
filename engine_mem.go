package sova

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// memEngine is a transient in-memory Engine intended for tests. Snapshots and
// iterators are O(1) copy-on-write clones of the underlying B-tree.
type memEngine struct {
	mu   sync.Mutex
	tree *btree.BTreeG[memItem]
}

type memItem struct {
	key, value []byte
}

func memLess(a, b memItem) bool {
	return bytes.Compare(a.key, b.key) < 0
}

func newMemEngine() *memEngine {
	return &memEngine{tree: btree.NewG(16, memLess)}
}

func (e *memEngine) Get(key []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.tree.Get(memItem{key: key})
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), item.value...), nil
}

func (e *memEngine) Set(key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setLocked(key, value)
	return nil
}

func (e *memEngine) setLocked(key, value []byte) {
	e.tree.ReplaceOrInsert(memItem{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (e *memEngine) Delete(key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tree.Delete(memItem{key: key})
	return nil
}

func (e *memEngine) NewIterator() (Iterator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &memIterator{tree: e.tree.Clone()}, nil
}

func (e *memEngine) NewBatch() Batch {
	return &memBatch{e: e}
}

func (e *memEngine) NewSnapshot() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &memSnapshot{tree: e.tree.Clone()}, nil
}

// Close is a no-op: the tree is retained so that an Environment can close and
// reopen without losing data, mirroring the on-disk backends.
func (e *memEngine) Close() error {
	return nil
}

type memBatch struct {
	e   *memEngine
	ops []memOp
}

type memOp struct {
	key, value []byte
	delete     bool
}

func (b *memBatch) Set(key, value []byte) {
	b.ops = append(b.ops, memOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), delete: true})
}

func (b *memBatch) Commit() error {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			b.e.tree.Delete(memItem{key: op.key})
		} else {
			b.e.tree.ReplaceOrInsert(memItem{key: op.key, value: op.value})
		}
	}
	b.ops = nil
	return nil
}

func (b *memBatch) Close() error {
	b.ops = nil
	return nil
}

type memSnapshot struct {
	tree *btree.BTreeG[memItem]
}

func (s *memSnapshot) Get(key []byte) ([]byte, error) {
	item, ok := s.tree.Get(memItem{key: key})
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), item.value...), nil
}

func (s *memSnapshot) NewIterator() (Iterator, error) {
	return &memIterator{tree: s.tree.Clone()}, nil
}

func (s *memSnapshot) Close() error {
	s.tree = nil
	return nil
}

// memIterator steps through a cloned tree; each move is a bounded descend
// from the current key.
type memIterator struct {
	tree  *btree.BTreeG[memItem]
	cur   memItem
	valid bool
}

func (it *memIterator) First() bool {
	it.cur, it.valid = it.tree.Min()
	return it.valid
}

func (it *memIterator) Last() bool {
	it.cur, it.valid = it.tree.Max()
	return it.valid
}

func (it *memIterator) SeekGE(key []byte) bool {
	it.valid = false
	it.tree.AscendGreaterOrEqual(memItem{key: key}, func(item memItem) bool {
		it.cur, it.valid = item, true
		return false
	})
	return it.valid
}

func (it *memIterator) SeekLT(key []byte) bool {
	it.valid = false
	it.tree.DescendLessOrEqual(memItem{key: key}, func(item memItem) bool {
		if bytes.Equal(item.key, key) {
			return true
		}
		it.cur, it.valid = item, true
		return false
	})
	return it.valid
}

func (it *memIterator) Next() bool {
	if !it.valid {
		return false
	}
	prev := it.cur.key
	it.valid = false
	it.tree.AscendGreaterOrEqual(memItem{key: prev}, func(item memItem) bool {
		if bytes.Equal(item.key, prev) {
			return true
		}
		it.cur, it.valid = item, true
		return false
	})
	return it.valid
}

func (it *memIterator) Prev() bool {
	if !it.valid {
		return false
	}
	prev := it.cur.key
	it.valid = false
	it.tree.DescendLessOrEqual(memItem{key: prev}, func(item memItem) bool {
		if bytes.Equal(item.key, prev) {
			return true
		}
		it.cur, it.valid = item, true
		return false
	})
	return it.valid
}

func (it *memIterator) Valid() bool { return it.valid }

func (it *memIterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return it.cur.key
}

func (it *memIterator) Value() []byte {
	if !it.valid {
		return nil
	}
	return it.cur.value
}

func (it *memIterator) Close() error {
	it.tree = nil
	it.valid = false
	return nil
}
