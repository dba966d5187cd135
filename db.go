package sova

// source is the byte-level read surface shared by Database, View and
// transaction-scoped databases. Cursors and the read ops in reads are built
// entirely on top of it.
type source interface {
	dbName() string
	dbSchema() *Schema
	dbPrefix() []byte
	environment() *Environment

	// getRaw returns the stored value bytes for a full encoded key
	// (prefix included), or nil when absent.
	getRaw(ekey []byte) ([]byte, error)

	// newRawIterator returns an engine-level iterator covering at least this
	// database's keyspace.
	newRawIterator() (Iterator, error)
}

// reads implements the decoded read surface over any source.
type reads struct {
	src source
}

// Get returns the decoded value for key, or nil when absent.
func (r reads) Get(key any) (any, error) {
	return r.GetDefault(key, nil)
}

// GetDefault returns the decoded value for key, or def when absent.
func (r reads) GetDefault(key, def any) (any, error) {
	raw, err := r.rawLookup(key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return def, nil
	}
	return r.src.dbSchema().decodeValue(raw)
}

// Fetch is Get that reports NotFoundError for absent keys.
func (r reads) Fetch(key any) (any, error) {
	raw, err := r.rawLookup(key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, notFoundErr(r.src.dbName(), key)
	}
	return r.src.dbSchema().decodeValue(raw)
}

// Has reports whether key is present.
func (r reads) Has(key any) (bool, error) {
	raw, err := r.rawLookup(key)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// MultiGet returns decoded values for every key, preserving input order;
// absent keys yield nil entries.
func (r reads) MultiGet(keys ...any) ([]any, error) {
	result := make([]any, len(keys))
	for i, key := range keys {
		v, err := r.Get(key)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

// MultiGetDict returns present keys with their values, omitting absent keys.
// (Composite keys are not comparable in Go, so this is an association list
// rather than a map.)
func (r reads) MultiGetDict(keys ...any) ([]KV, error) {
	var result []KV
	for _, key := range keys {
		raw, err := r.rawLookup(key)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		v, err := r.src.dbSchema().decodeValue(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, KV{Key: key, Value: v})
	}
	return result, nil
}

// Len returns the live key count, by scanning.
func (r reads) Len() (int, error) {
	c := newFullCursor(r.src, false)
	defer c.Close()
	var n int
	for c.next(false) {
		n++
	}
	return n, c.Err()
}

// IndexCount is the engine-facing name for Len.
func (r reads) IndexCount() (int, error) {
	return r.Len()
}

// Items returns an unbounded ascending cursor over the keyspace.
func (r reads) Items() *Cursor {
	return newFullCursor(r.src, false)
}

// Keys returns every key in ascending order, skipping value decoding.
func (r reads) Keys() ([]any, error) {
	return AllKeys(r.Items())
}

// Values returns every value in ascending key order.
func (r reads) Values() ([]any, error) {
	return AllValues(r.Items())
}

// Slice returns a range cursor with inferred direction: when start > stop
// byte-wise, the scan is descending regardless of reverse; when reverse is
// set with a single bound, the scan descends from that bound to the beginning
// of the keyspace. Bounds are inclusive; nil means unbounded. Partial key
// tuples act as prefix bounds.
func (r reads) Slice(start, stop any, reverse bool) *Cursor {
	return newRangeCursor(r.src, start, stop, reverse)
}

// Cursor returns a pivot- or prefix-anchored cursor; see CursorOptions.
func (r reads) Cursor(opt CursorOptions) *Cursor {
	return newOptsCursor(r.src, opt)
}

func (r reads) rawLookup(key any) ([]byte, error) {
	ekey, err := r.encodeFullKey(key)
	if err != nil {
		return nil, err
	}
	defer releaseKeyBytes(ekey)
	return r.src.getRaw(ekey)
}

// encodeFullKey encodes the database prefix plus key into a pooled buffer.
// Callers that do not hand the buffer off may releaseKeyBytes it.
func (r reads) encodeFullKey(key any) ([]byte, error) {
	buf := append(borrowKeyBytes(), r.src.dbPrefix()...)
	return r.src.dbSchema().encodeKey(buf, key)
}

// Database is the CRUD and range-query facade over one named keyspace.
// Direct writes are auto-committed to the engine; transactional writes go
// through Txn.On(db).
type Database struct {
	reads
	env    *Environment
	name   string
	schema *Schema
	keyPfx []byte
}

func (db *Database) Name() string         { return db.name }
func (db *Database) Schema() *Schema      { return db.schema }
func (db *Database) Env() *Environment    { return db.env }

func (db *Database) dbName() string            { return db.name }
func (db *Database) dbSchema() *Schema         { return db.schema }
func (db *Database) dbPrefix() []byte          { return db.keyPfx }
func (db *Database) environment() *Environment { return db.env }

func (db *Database) getRaw(ekey []byte) ([]byte, error) {
	engine, err := db.env.engineHandle()
	if err != nil {
		return nil, err
	}
	raw, err := engine.Get(ekey)
	if err != nil {
		return nil, engineErr("get", err)
	}
	return raw, nil
}

func (db *Database) newRawIterator() (Iterator, error) {
	engine, err := db.env.engineHandle()
	if err != nil {
		return nil, err
	}
	it, err := engine.NewIterator()
	if err != nil {
		return nil, engineErr("iterate", err)
	}
	return it, nil
}

// Set upserts, unconditionally overwriting any existing value.
func (db *Database) Set(key, value any) error {
	ekey, err := db.encodeFullKey(key)
	if err != nil {
		return err
	}
	defer releaseKeyBytes(ekey)
	evalue, err := db.schema.encodeValue(value)
	if err != nil {
		return err
	}
	engine, err := db.env.engineHandle()
	if err != nil {
		return err
	}
	return engineErr("set", engine.Set(ekey, evalue))
}

// Delete removes key if present and reports whether a removal occurred.
// Deleting an absent key is not an error. The report is best-effort under
// concurrent direct writers: presence is checked in a separate engine read
// from the delete, so a racing Set or Delete of the same key can make it
// stale. Use a transaction when the flag must be exact.
func (db *Database) Delete(key any) (bool, error) {
	ekey, err := db.encodeFullKey(key)
	if err != nil {
		return false, err
	}
	defer releaseKeyBytes(ekey)
	engine, err := db.env.engineHandle()
	if err != nil {
		return false, err
	}
	existing, err := engine.Get(ekey)
	if err != nil {
		return false, engineErr("get", err)
	}
	if existing == nil {
		return false, nil
	}
	if err := engine.Delete(ekey); err != nil {
		return false, engineErr("delete", err)
	}
	return true, nil
}

// Remove is Delete that reports NotFoundError when nothing was removed.
func (db *Database) Remove(key any) error {
	removed, err := db.Delete(key)
	if err != nil {
		return err
	}
	if !removed {
		return notFoundErr(db.name, key)
	}
	return nil
}

// Update upserts many pairs as a single engine batch, so the visible result
// set changes atomically.
func (db *Database) Update(pairs []KV) error {
	engine, err := db.env.engineHandle()
	if err != nil {
		return err
	}
	b := engine.NewBatch()
	defer b.Close()
	for _, kv := range pairs {
		ekey, err := db.encodeFullKey(kv.Key)
		if err != nil {
			return err
		}
		evalue, err := db.schema.encodeValue(kv.Value)
		if err != nil {
			return err
		}
		b.Set(ekey, evalue)
	}
	return engineErr("batch", b.Commit())
}
