package sova

import (
	"errors"
	"io"

	"github.com/cockroachdb/pebble"
)

// pebbleEngine is the default Engine: an LSM store, like the layer's
// semantics assume (cheap snapshots, atomic batches, sorted iteration).
type pebbleEngine struct {
	db   *pebble.DB
	wopt *pebble.WriteOptions
}

func openPebbleEngine(path string, isTesting bool) (*pebbleEngine, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 * 1024 * 1024),
		MemTableSize: 32 * 1024 * 1024,
	}
	defer opts.Cache.Unref()

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}
	wopt := pebble.Sync
	if isTesting {
		wopt = pebble.NoSync
	}
	return &pebbleEngine{db: db, wopt: wopt}, nil
}

func (e *pebbleEngine) Get(key []byte) ([]byte, error) {
	return pebbleGet(e.db, key)
}

type pebbleGetter interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func (e *pebbleEngine) Set(key, value []byte) error {
	return e.db.Set(key, value, e.wopt)
}

func (e *pebbleEngine) Delete(key []byte) error {
	return e.db.Delete(key, e.wopt)
}

func (e *pebbleEngine) NewIterator() (Iterator, error) {
	it, err := e.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	return &pebbleIterator{it: it}, nil
}

func (e *pebbleEngine) NewBatch() Batch {
	return &pebbleBatch{b: e.db.NewBatch(), wopt: e.wopt}
}

func (e *pebbleEngine) NewSnapshot() (Snapshot, error) {
	return &pebbleSnapshot{snap: e.db.NewSnapshot()}, nil
}

func (e *pebbleEngine) Close() error {
	return e.db.Close()
}

func pebbleGet(g pebbleGetter, key []byte) ([]byte, error) {
	value, closer, err := g.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), value...), nil
}

type pebbleBatch struct {
	b    *pebble.Batch
	wopt *pebble.WriteOptions
}

func (b *pebbleBatch) Set(key, value []byte) {
	_ = b.b.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) {
	_ = b.b.Delete(key, nil)
}

func (b *pebbleBatch) Commit() error {
	return b.b.Commit(b.wopt)
}

func (b *pebbleBatch) Close() error {
	return b.b.Close()
}

type pebbleSnapshot struct {
	snap *pebble.Snapshot
}

func (s *pebbleSnapshot) Get(key []byte) ([]byte, error) {
	return pebbleGet(s.snap, key)
}

func (s *pebbleSnapshot) NewIterator() (Iterator, error) {
	it, err := s.snap.NewIter(nil)
	if err != nil {
		return nil, err
	}
	return &pebbleIterator{it: it}, nil
}

func (s *pebbleSnapshot) Close() error {
	return s.snap.Close()
}

type pebbleIterator struct {
	it *pebble.Iterator
}

func (it *pebbleIterator) First() bool             { return it.it.First() }
func (it *pebbleIterator) Last() bool              { return it.it.Last() }
func (it *pebbleIterator) SeekGE(key []byte) bool  { return it.it.SeekGE(key) }
func (it *pebbleIterator) SeekLT(key []byte) bool  { return it.it.SeekLT(key) }
func (it *pebbleIterator) Next() bool              { return it.it.Next() }
func (it *pebbleIterator) Prev() bool              { return it.it.Prev() }
func (it *pebbleIterator) Valid() bool             { return it.it.Valid() }
func (it *pebbleIterator) Key() []byte             { return it.it.Key() }
func (it *pebbleIterator) Value() []byte           { return it.it.Value() }
func (it *pebbleIterator) Close() error            { return it.it.Close() }
