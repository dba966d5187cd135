package sova

import (
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var boltDataBucket = []byte("data")

// boltEngine keeps the whole keyspace in a single Bolt bucket. Read
// transactions double as snapshots and back iterators.
type boltEngine struct {
	bdb *bbolt.DB
}

func openBoltEngine(path string, isTesting bool) (*boltEngine, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if isTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}

	bdb, err := bbolt.Open(filepath.Join(path, "data.bolt"), 0666, &bopt)
	if err != nil {
		return nil, err
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(boltDataBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return &boltEngine{bdb: bdb}, nil
}

func (e *boltEngine) Get(key []byte) ([]byte, error) {
	var value []byte
	err := e.bdb.View(func(btx *bbolt.Tx) error {
		v := btx.Bucket(boltDataBucket).Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, err
}

func (e *boltEngine) Set(key, value []byte) error {
	return e.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(boltDataBucket).Put(key, value)
	})
}

func (e *boltEngine) Delete(key []byte) error {
	return e.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(boltDataBucket).Delete(key)
	})
}

func (e *boltEngine) NewIterator() (Iterator, error) {
	btx, err := e.bdb.Begin(false)
	if err != nil {
		return nil, err
	}
	return &boltIterator{btx: btx, cur: btx.Bucket(boltDataBucket).Cursor()}, nil
}

func (e *boltEngine) NewBatch() Batch {
	return &boltBatch{e: e}
}

func (e *boltEngine) NewSnapshot() (Snapshot, error) {
	btx, err := e.bdb.Begin(false)
	if err != nil {
		return nil, err
	}
	return &boltSnapshot{btx: btx}, nil
}

func (e *boltEngine) Close() error {
	return e.bdb.Close()
}

type boltBatch struct {
	e   *boltEngine
	ops []memOp
}

func (b *boltBatch) Set(key, value []byte) {
	b.ops = append(b.ops, memOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (b *boltBatch) Delete(key []byte) {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), delete: true})
}

func (b *boltBatch) Commit() error {
	return b.e.bdb.Update(func(btx *bbolt.Tx) error {
		buck := btx.Bucket(boltDataBucket)
		for _, op := range b.ops {
			var err error
			if op.delete {
				err = buck.Delete(op.key)
			} else {
				err = buck.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltBatch) Close() error {
	b.ops = nil
	return nil
}

// boltSnapshot holds a read transaction open until Close.
type boltSnapshot struct {
	btx    *bbolt.Tx
	closed bool
}

func (s *boltSnapshot) Get(key []byte) ([]byte, error) {
	if s.closed {
		return nil, fmt.Errorf("snapshot closed")
	}
	v := s.btx.Bucket(boltDataBucket).Get(key)
	if v == nil {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *boltSnapshot) NewIterator() (Iterator, error) {
	if s.closed {
		return nil, fmt.Errorf("snapshot closed")
	}
	// The iterator shares the snapshot's transaction; its Close must not end it.
	return &boltIterator{cur: s.btx.Bucket(boltDataBucket).Cursor()}, nil
}

func (s *boltSnapshot) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.btx.Rollback()
}

// boltIterator adapts a Bolt cursor. When btx is set, the iterator owns the
// read transaction and releases it on Close.
type boltIterator struct {
	btx   *bbolt.Tx
	cur   *bbolt.Cursor
	key   []byte
	value []byte
}

func (it *boltIterator) set(k, v []byte) bool {
	it.key, it.value = k, v
	return k != nil
}

func (it *boltIterator) First() bool { return it.set(it.cur.First()) }
func (it *boltIterator) Last() bool  { return it.set(it.cur.Last()) }

func (it *boltIterator) SeekGE(key []byte) bool {
	return it.set(it.cur.Seek(key))
}

func (it *boltIterator) SeekLT(key []byte) bool {
	k, _ := it.cur.Seek(key)
	if k == nil {
		return it.set(it.cur.Last())
	}
	return it.set(it.cur.Prev())
}

func (it *boltIterator) Next() bool {
	if it.key == nil {
		return false
	}
	return it.set(it.cur.Next())
}

func (it *boltIterator) Prev() bool {
	if it.key == nil {
		return false
	}
	return it.set(it.cur.Prev())
}

func (it *boltIterator) Valid() bool   { return it.key != nil }
func (it *boltIterator) Key() []byte   { return it.key }
func (it *boltIterator) Value() []byte { return it.value }

func (it *boltIterator) Close() error {
	it.key, it.value = nil, nil
	if it.btx != nil {
		btx := it.btx
		it.btx = nil
		return btx.Rollback()
	}
	return nil
}
