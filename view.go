package sova

// View is a read-only snapshot of one database, pinned to the committed state
// at the moment of creation. Writes committed afterwards are invisible to it.
// Close releases the underlying engine snapshot; reads after Close report
// InvalidStateError.
type View struct {
	reads
	name   string
	db     *Database
	snap   Snapshot
	closed bool
}

// View captures a read-only snapshot of the database's current committed
// state under the given label. The caller must Close it when done.
func (db *Database) View(name string) (*View, error) {
	engine, err := db.env.engineHandle()
	if err != nil {
		return nil, err
	}
	snap, err := engine.NewSnapshot()
	if err != nil {
		return nil, engineErr("snapshot", err)
	}
	v := &View{name: name, db: db, snap: snap}
	v.reads = reads{src: v}
	return v, nil
}

func (v *View) Name() string { return v.name }

// Close releases the snapshot. Idempotent.
func (v *View) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	return v.snap.Close()
}

func (v *View) Database() *Database { return v.db }

func (v *View) dbName() string            { return v.db.name }
func (v *View) dbSchema() *Schema         { return v.db.schema }
func (v *View) dbPrefix() []byte          { return v.db.keyPfx }
func (v *View) environment() *Environment { return v.db.env }

func (v *View) getRaw(ekey []byte) ([]byte, error) {
	if v.closed {
		return nil, invalidStateErr("get", "view is closed")
	}
	raw, err := v.snap.Get(ekey)
	if err != nil {
		return nil, engineErr("get", err)
	}
	return raw, nil
}

func (v *View) newRawIterator() (Iterator, error) {
	if v.closed {
		return nil, invalidStateErr("iterate", "view is closed")
	}
	it, err := v.snap.NewIterator()
	if err != nil {
		return nil, engineErr("iterate", err)
	}
	return it, nil
}
