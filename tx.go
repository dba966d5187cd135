package sova

import (
	"bytes"
	"sort"
)

// TxnState is the transaction lifecycle state. Committed, RolledBack and
// Conflicted are terminal; no transitions lead out of them.
type TxnState int

const (
	TxnPending TxnState = iota
	TxnActive
	TxnCommitted
	TxnRolledBack
	TxnConflicted
)

func (s TxnState) String() string {
	switch s {
	case TxnPending:
		return "pending"
	case TxnActive:
		return "active"
	case TxnCommitted:
		return "committed"
	case TxnRolledBack:
		return "rolled_back"
	case TxnConflicted:
		return "conflicted"
	default:
		return "unknown"
	}
}

// Txn is an optimistic mutation scope spanning any number of databases of one
// environment. Reads observe the transaction's own writes overlaid on the
// committed state captured at Begin. Commit applies all buffered writes as a
// single engine batch, after validating that no other transaction committed
// an overlapping write since Begin. Not safe for concurrent use by multiple
// goroutines without external synchronization.
type Txn struct {
	env        *Environment
	state      TxnState
	snap       Snapshot
	beginSeq   uint64
	writes     map[string]txnWrite
	dbs        map[*Database]*TxnDatabase
	committing bool
}

type txnWrite struct {
	value  []byte
	delete bool
}

// Transaction returns a new pending transaction; call Begin before use.
func (env *Environment) Transaction() *Txn {
	return &Txn{
		env:    env,
		state:  TxnPending,
		writes: make(map[string]txnWrite),
		dbs:    make(map[*Database]*TxnDatabase),
	}
}

// Update runs fn inside a transaction: commit on nil return, rollback on
// error or panic. fn may resolve the transaction itself (e.g. Rollback), in
// which case Update leaves it alone.
func (env *Environment) Update(fn func(txn *Txn) error) error {
	txn := env.Transaction()
	if err := txn.Begin(); err != nil {
		return err
	}
	defer func() {
		if txn.State() == TxnActive {
			_ = txn.Rollback()
		}
	}()
	if err := fn(txn); err != nil {
		return err
	}
	if txn.State() == TxnActive {
		return txn.Commit()
	}
	return nil
}

func (t *Txn) State() TxnState {
	t.env.mu.Lock()
	defer t.env.mu.Unlock()
	return t.state
}

// Begin captures the committed state. Only valid on a pending transaction.
func (t *Txn) Begin() error {
	env := t.env
	env.mu.Lock()
	defer env.mu.Unlock()
	if t.state != TxnPending {
		return invalidStateErr("begin", "transaction is "+t.state.String())
	}
	if env.status != StatusOpen {
		return invalidStateErr("begin", "environment is closed")
	}
	snap, err := env.engine.NewSnapshot()
	if err != nil {
		return engineErr("snapshot", err)
	}
	t.snap = snap
	t.beginSeq = env.seq
	t.state = TxnActive
	env.active[t] = struct{}{}
	return nil
}

// On returns the transaction-scoped facade over db, with the same CRUD and
// cursor surface as Database.
func (t *Txn) On(db *Database) *TxnDatabase {
	if tdb := t.dbs[db]; tdb != nil {
		return tdb
	}
	tdb := &TxnDatabase{txn: t, db: db}
	tdb.reads = reads{src: tdb}
	t.dbs[db] = tdb
	return tdb
}

// Commit validates and applies the buffered writes. If another still-active
// transaction has written overlapping keys, Commit blocks until it resolves,
// then re-evaluates: an overlapping committed write since Begin fails this
// transaction with ConflictError and moves it to the conflicted state.
func (t *Txn) Commit() error {
	env := t.env
	env.mu.Lock()
	defer env.mu.Unlock()
	if t.state != TxnActive {
		return invalidStateErr("commit", "transaction is "+t.state.String())
	}

	t.committing = true
	for t.overlapsActiveLocked() {
		env.cond.Wait()
	}

	for k := range t.writes {
		if env.commits[k] > t.beginSeq {
			t.finishLocked(TxnConflicted)
			return &ConflictError{Key: []byte(k)}
		}
	}

	if len(t.writes) > 0 {
		b := env.engine.NewBatch()
		for k, w := range t.writes {
			if w.delete {
				b.Delete([]byte(k))
			} else {
				b.Set([]byte(k), w.value)
			}
		}
		err := b.Commit()
		b.Close()
		if err != nil {
			// The engine refused the batch; the transaction stays active so
			// the caller can retry or roll back.
			t.committing = false
			env.cond.Broadcast()
			return engineErr("commit", err)
		}
		env.seq++
		for k := range t.writes {
			env.commits[k] = env.seq
		}
	}
	t.finishLocked(TxnCommitted)
	return nil
}

// Rollback discards all buffered writes. Only valid on an active transaction;
// the transaction moves to the terminal rolled_back state. To discard writes
// but keep working in the same scope, use Reset.
func (t *Txn) Rollback() error {
	env := t.env
	env.mu.Lock()
	defer env.mu.Unlock()
	if t.state != TxnActive {
		return invalidStateErr("rollback", "transaction is "+t.state.String())
	}
	t.finishLocked(TxnRolledBack)
	return nil
}

// Reset discards all buffered writes and re-captures the committed state,
// leaving the transaction active. Reads after Reset observe pre-transaction
// values again.
func (t *Txn) Reset() error {
	env := t.env
	env.mu.Lock()
	defer env.mu.Unlock()
	if t.state != TxnActive {
		return invalidStateErr("reset", "transaction is "+t.state.String())
	}
	snap, err := env.engine.NewSnapshot()
	if err != nil {
		return engineErr("snapshot", err)
	}
	t.snap.Close()
	t.snap = snap
	t.beginSeq = env.seq
	clear(t.writes)
	env.pruneCommitsLocked()
	return nil
}

// pruneCommitsLocked drops commit log entries no transaction can conflict
// with anymore: a conflict requires commits[k] > beginSeq, so entries at or
// below the minimum begin sequence of the active set are dead weight. Without
// this the log would retain every key ever committed until Close.
func (env *Environment) pruneCommitsLocked() {
	if len(env.active) == 0 {
		clear(env.commits)
		return
	}
	min := ^uint64(0)
	for t := range env.active {
		if t.beginSeq < min {
			min = t.beginSeq
		}
	}
	for k, seq := range env.commits {
		if seq <= min {
			delete(env.commits, k)
		}
	}
}

// overlapsActiveLocked reports whether another active transaction (not
// itself inside Commit) has written keys this transaction also wrote.
// Committing transactions are excluded so that two racing commits never wait
// on each other; the environment lock serializes their validation instead.
func (t *Txn) overlapsActiveLocked() bool {
	for other := range t.env.active {
		if other == t || other.committing {
			continue
		}
		small, big := t.writes, other.writes
		if len(big) < len(small) {
			small, big = big, small
		}
		for k := range small {
			if _, ok := big[k]; ok {
				return true
			}
		}
	}
	return false
}

func (t *Txn) finishLocked(state TxnState) {
	t.state = state
	t.committing = false
	delete(t.env.active, t)
	if t.snap != nil {
		t.snap.Close()
		t.snap = nil
	}
	t.env.pruneCommitsLocked()
	t.env.cond.Broadcast()
}

// TxnDatabase is the transaction-scoped facade over one database: the same
// surface as Database, reading through the transaction's write buffer and
// begin-time snapshot, writing into the buffer.
type TxnDatabase struct {
	reads
	txn *Txn
	db  *Database
}

func (tdb *TxnDatabase) Database() *Database { return tdb.db }

func (tdb *TxnDatabase) dbName() string            { return tdb.db.name }
func (tdb *TxnDatabase) dbSchema() *Schema         { return tdb.db.schema }
func (tdb *TxnDatabase) dbPrefix() []byte          { return tdb.db.keyPfx }
func (tdb *TxnDatabase) environment() *Environment { return tdb.db.env }

// requireActiveLocked rejects buffer access once the transaction resolved.
// Callers hold env.mu: a concurrent committer iterates this transaction's
// write buffer under that lock, so every buffer read and write takes it too.
func (t *Txn) requireActiveLocked() error {
	if t.state != TxnActive {
		return invalidStateErr("access", "transaction is "+t.state.String())
	}
	return nil
}

func (tdb *TxnDatabase) getRaw(ekey []byte) ([]byte, error) {
	t := tdb.txn
	t.env.mu.Lock()
	if err := t.requireActiveLocked(); err != nil {
		t.env.mu.Unlock()
		return nil, err
	}
	w, buffered := t.writes[string(ekey)]
	snap := t.snap
	t.env.mu.Unlock()

	if buffered {
		if w.delete {
			return nil, nil
		}
		return w.value, nil
	}
	raw, err := snap.Get(ekey)
	if err != nil {
		return nil, engineErr("get", err)
	}
	return raw, nil
}

func (tdb *TxnDatabase) newRawIterator() (Iterator, error) {
	t := tdb.txn
	pfx := tdb.db.keyPfx

	t.env.mu.Lock()
	if err := t.requireActiveLocked(); err != nil {
		t.env.mu.Unlock()
		return nil, err
	}
	var ents []txnEntry
	for k, w := range t.writes {
		if bytes.HasPrefix([]byte(k), pfx) {
			ents = append(ents, txnEntry{key: []byte(k), value: w.value, del: w.delete})
		}
	}
	snap := t.snap
	t.env.mu.Unlock()

	sort.Slice(ents, func(i, j int) bool {
		return bytes.Compare(ents[i].key, ents[j].key) < 0
	})
	base, err := snap.NewIterator()
	if err != nil {
		return nil, engineErr("iterate", err)
	}
	return &mergeIterator{base: base, ents: ents}, nil
}

// Set buffers an upsert.
func (tdb *TxnDatabase) Set(key, value any) error {
	ekey, err := tdb.encodeFullKey(key)
	if err != nil {
		return err
	}
	defer releaseKeyBytes(ekey)
	evalue, err := tdb.db.schema.encodeValue(value)
	if err != nil {
		return err
	}
	t := tdb.txn
	t.env.mu.Lock()
	defer t.env.mu.Unlock()
	if err := t.requireActiveLocked(); err != nil {
		return err
	}
	t.writes[string(ekey)] = txnWrite{value: evalue}
	return nil
}

// Delete buffers a removal and reports whether the key was visible to this
// transaction before the call.
func (tdb *TxnDatabase) Delete(key any) (bool, error) {
	ekey, err := tdb.encodeFullKey(key)
	if err != nil {
		return false, err
	}
	defer releaseKeyBytes(ekey)
	existing, err := tdb.getRaw(ekey)
	if err != nil {
		return false, err
	}
	t := tdb.txn
	t.env.mu.Lock()
	defer t.env.mu.Unlock()
	if err := t.requireActiveLocked(); err != nil {
		return false, err
	}
	t.writes[string(ekey)] = txnWrite{delete: true}
	return existing != nil, nil
}

// Remove is Delete that reports NotFoundError when nothing was removed.
func (tdb *TxnDatabase) Remove(key any) error {
	removed, err := tdb.Delete(key)
	if err != nil {
		return err
	}
	if !removed {
		return notFoundErr(tdb.db.name, key)
	}
	return nil
}

// Update buffers many upserts.
func (tdb *TxnDatabase) Update(pairs []KV) error {
	for _, kv := range pairs {
		if err := tdb.Set(kv.Key, kv.Value); err != nil {
			return err
		}
	}
	return nil
}

type txnEntry struct {
	key   []byte
	value []byte
	del   bool
}

// mergeIterator overlays a transaction's sorted write buffer on a snapshot
// iterator. Buffered writes shadow snapshot values; buffered deletions hide
// them. Supports one positioning call followed by unidirectional stepping,
// which is all the cursor machinery uses.
type mergeIterator struct {
	base Iterator
	ents []txnEntry

	baseOK  bool
	entIdx  int
	valid   bool
	fromEnt bool
	useBase bool
	key     []byte
	value   []byte
}

func (m *mergeIterator) First() bool {
	m.baseOK = m.base.First()
	m.entIdx = 0
	return m.settleForward()
}

func (m *mergeIterator) Last() bool {
	m.baseOK = m.base.Last()
	m.entIdx = len(m.ents) - 1
	return m.settleBackward()
}

func (m *mergeIterator) SeekGE(key []byte) bool {
	m.baseOK = m.base.SeekGE(key)
	m.entIdx = sort.Search(len(m.ents), func(i int) bool {
		return bytes.Compare(m.ents[i].key, key) >= 0
	})
	return m.settleForward()
}

func (m *mergeIterator) SeekLT(key []byte) bool {
	m.baseOK = m.base.SeekLT(key)
	m.entIdx = sort.Search(len(m.ents), func(i int) bool {
		return bytes.Compare(m.ents[i].key, key) >= 0
	}) - 1
	return m.settleBackward()
}

func (m *mergeIterator) Next() bool {
	if !m.valid {
		return false
	}
	if m.useBase {
		m.baseOK = m.base.Next()
	}
	if m.fromEnt {
		m.entIdx++
	}
	return m.settleForward()
}

func (m *mergeIterator) Prev() bool {
	if !m.valid {
		return false
	}
	if m.useBase {
		m.baseOK = m.base.Prev()
	}
	if m.fromEnt {
		m.entIdx--
	}
	return m.settleBackward()
}

// settleForward resolves the current position after a forward move, skipping
// shadowed snapshot keys and buffered deletions.
func (m *mergeIterator) settleForward() bool {
	for {
		var ent *txnEntry
		if m.entIdx >= 0 && m.entIdx < len(m.ents) {
			ent = &m.ents[m.entIdx]
		}
		switch {
		case ent == nil && !m.baseOK:
			m.valid = false
			return false
		case ent == nil:
			return m.setCurrent(m.base.Key(), m.base.Value(), false, true)
		case !m.baseOK:
			if ent.del {
				m.entIdx++
				continue
			}
			return m.setCurrent(ent.key, ent.value, true, false)
		}
		switch c := bytes.Compare(ent.key, m.base.Key()); {
		case c < 0:
			if ent.del {
				m.entIdx++
				continue
			}
			return m.setCurrent(ent.key, ent.value, true, false)
		case c > 0:
			return m.setCurrent(m.base.Key(), m.base.Value(), false, true)
		default:
			if ent.del {
				m.entIdx++
				m.baseOK = m.base.Next()
				continue
			}
			return m.setCurrent(ent.key, ent.value, true, true)
		}
	}
}

func (m *mergeIterator) settleBackward() bool {
	for {
		var ent *txnEntry
		if m.entIdx >= 0 && m.entIdx < len(m.ents) {
			ent = &m.ents[m.entIdx]
		}
		switch {
		case ent == nil && !m.baseOK:
			m.valid = false
			return false
		case ent == nil:
			return m.setCurrent(m.base.Key(), m.base.Value(), false, true)
		case !m.baseOK:
			if ent.del {
				m.entIdx--
				continue
			}
			return m.setCurrent(ent.key, ent.value, true, false)
		}
		switch c := bytes.Compare(ent.key, m.base.Key()); {
		case c > 0:
			if ent.del {
				m.entIdx--
				continue
			}
			return m.setCurrent(ent.key, ent.value, true, false)
		case c < 0:
			return m.setCurrent(m.base.Key(), m.base.Value(), false, true)
		default:
			if ent.del {
				m.entIdx--
				m.baseOK = m.base.Prev()
				continue
			}
			return m.setCurrent(ent.key, ent.value, true, true)
		}
	}
}

func (m *mergeIterator) setCurrent(key, value []byte, fromEnt, useBase bool) bool {
	m.key, m.value = key, value
	m.fromEnt, m.useBase = fromEnt, useBase
	m.valid = true
	return true
}

func (m *mergeIterator) Valid() bool   { return m.valid }
func (m *mergeIterator) Key() []byte   { return m.key }
func (m *mergeIterator) Value() []byte { return m.value }

func (m *mergeIterator) Close() error {
	m.valid = false
	m.ents = nil
	return m.base.Close()
}
