package sova

import (
	"bytes"
	"context"
	"log/slog"
)

const debugLogRawScans = false

// Order anchors a pivot- or prefix-mode cursor: > and >= scan ascending
// (strictly after / at-or-after the pivot), < and <= scan descending
// (strictly before / at-or-before).
type Order string

const (
	Lt  Order = "<"
	Lte Order = "<="
	Gt  Order = ">"
	Gte Order = ">="
)

// CursorOptions selects pivot- or prefix-anchored iteration. Key and Prefix
// accept partial tuples (and bare scalars); both may be combined. Order
// defaults to ">=".
type CursorOptions struct {
	Key    any
	Prefix any
	Order  Order
}

// rawRange is a resolved scan over encoded bytes: an optional prefix every
// produced key must carry, plus lower/upper bounds (inclusive unless the Exc
// flag is set) and a direction.
type rawRange struct {
	prefix   []byte
	lower    []byte
	upper    []byte
	lowerExc bool
	upperExc bool
	reverse  bool
}

// start positions it at the first key of the range; returns false when empty.
func (r *rawRange) start(it Iterator) bool {
	if r.reverse {
		hi := r.upper
		switch {
		case hi != nil && r.upperExc:
			return it.SeekLT(hi)
		case hi != nil:
			return it.SeekLT(keySuccessor(hi))
		default:
			if succ := prefixSuccessor(r.prefix); succ != nil {
				return it.SeekLT(succ)
			}
			return it.Last()
		}
	}
	lo := r.lower
	switch {
	case lo != nil && r.lowerExc:
		return it.SeekGE(keySuccessor(lo))
	case lo != nil:
		return it.SeekGE(lo)
	default:
		return it.SeekGE(r.prefix)
	}
}

// match reports whether the key at the iterator's position is still inside
// the range; a false result terminates the scan.
func (r *rawRange) match(key []byte) bool {
	if !bytes.HasPrefix(key, r.prefix) {
		return false
	}
	if r.reverse {
		if r.lower != nil {
			c := bytes.Compare(key, r.lower)
			if c < 0 || (c == 0 && r.lowerExc) {
				return false
			}
		}
	} else {
		if r.upper != nil {
			c := bytes.Compare(key, r.upper)
			if c > 0 || (c == 0 && r.upperExc) {
				return false
			}
		}
	}
	return true
}

// Cursor is a lazy, single-pass producer of decoded key/value pairs over a
// keyspace region. It is not restartable; it releases its engine iterator on
// Close or when exhausted. Not safe for concurrent use.
type Cursor struct {
	src     source
	rng     rawRange
	it      Iterator
	started bool
	closed  bool
	err     error
	key     any
	value   any
}

func newErrCursor(src source, err error) *Cursor {
	return &Cursor{src: src, closed: true, err: err}
}

func newFullCursor(src source, reverse bool) *Cursor {
	return &Cursor{src: src, rng: rawRange{prefix: src.dbPrefix(), reverse: reverse}}
}

// newRangeCursor implements the slice semantics: inclusive bounds on encoded
// bytes, direction inferred as descending when start > stop, reverse flipping
// the direction otherwise. Partial tuples encode as prefix bounds.
func newRangeCursor(src source, start, stop any, reverse bool) *Cursor {
	s, err := encodeBound(src, start)
	if err != nil {
		return newErrCursor(src, err)
	}
	t, err := encodeBound(src, stop)
	if err != nil {
		return newErrCursor(src, err)
	}

	rng := rawRange{prefix: src.dbPrefix(), reverse: reverse}
	switch {
	case s != nil && t != nil && bytes.Compare(s, t) > 0:
		// db[hi:lo] means descending from hi to lo; an explicit reverse flag
		// has no effect since endpoint order already implies the direction.
		rng.lower, rng.upper, rng.reverse = t, s, true
	case reverse && s != nil && t == nil:
		// A lone start bound under reversal anchors the descent: scan from
		// start down to the beginning of the keyspace.
		rng.upper = s
	default:
		rng.lower, rng.upper = s, t
	}
	return &Cursor{src: src, rng: rng}
}

func newOptsCursor(src source, opt CursorOptions) *Cursor {
	order := opt.Order
	if order == "" {
		order = Gte
	}

	rng := rawRange{prefix: src.dbPrefix()}
	if opt.Prefix != nil {
		pfx, err := encodePrefixBound(src, opt.Prefix)
		if err != nil {
			return newErrCursor(src, err)
		}
		rng.prefix = pfx
	}
	var pivot []byte
	if opt.Key != nil {
		var err error
		pivot, err = encodeBound(src, opt.Key)
		if err != nil {
			return newErrCursor(src, err)
		}
	}

	switch order {
	case Gt:
		rng.lower, rng.lowerExc = pivot, pivot != nil
	case Gte:
		rng.lower = pivot
	case Lt:
		rng.upper, rng.upperExc, rng.reverse = pivot, pivot != nil, true
	case Lte:
		rng.upper, rng.reverse = pivot, true
	default:
		return newErrCursor(src, &InvalidStateError{Op: "cursor", State: "order " + string(order)})
	}

	// A pivot lying byte-wise outside the prefix region would seek past every
	// prefixed key; clamp it to the region (keys that carry the prefix all
	// satisfy such a pivot anyway).
	if rng.lower != nil && bytes.Compare(rng.lower, rng.prefix) < 0 {
		rng.lower, rng.lowerExc = nil, false
	}
	if rng.upper != nil {
		if succ := prefixSuccessor(rng.prefix); succ != nil && bytes.Compare(rng.upper, succ) >= 0 {
			rng.upper, rng.upperExc = nil, false
		}
	}
	return &Cursor{src: src, rng: rng}
}

func encodeBound(src source, bound any) ([]byte, error) {
	if bound == nil {
		return nil, nil
	}
	pfx := src.dbPrefix()
	buf := make([]byte, len(pfx), len(pfx)+16)
	copy(buf, pfx)
	return src.dbSchema().encodeKeyBound(buf, bound)
}

func encodePrefixBound(src source, bound any) ([]byte, error) {
	pfx := src.dbPrefix()
	buf := make([]byte, len(pfx), len(pfx)+16)
	copy(buf, pfx)
	return src.dbSchema().encodeKeyPrefix(buf, bound)
}

// Next advances to the next pair, decoding key and value. It returns false
// when the range is exhausted or an error occurred (see Err); either way the
// engine iterator has been released.
func (c *Cursor) Next() bool {
	return c.next(true)
}

func (c *Cursor) next(decodeValue bool) bool {
	if c.closed {
		return false
	}
	if c.it == nil {
		it, err := c.src.newRawIterator()
		if err != nil {
			c.fail(err)
			return false
		}
		c.it = it
	}

	var ok bool
	if !c.started {
		c.started = true
		ok = c.rng.start(c.it)
	} else if c.rng.reverse {
		ok = c.it.Prev()
	} else {
		ok = c.it.Next()
	}
	if debugLogRawScans && ok {
		c.src.environment().logger.LogAttrs(context.Background(), slog.LevelDebug, "scan step",
			slog.Bool("reverse", c.rng.reverse), hexAttr("key", c.it.Key()))
	}
	if !ok || !c.rng.match(c.it.Key()) {
		c.Close()
		return false
	}

	dbPfx := c.src.dbPrefix()
	key, err := c.src.dbSchema().decodeKey(c.it.Key()[len(dbPfx):])
	if err != nil {
		c.fail(err)
		return false
	}
	c.key = key
	c.value = nil
	if decodeValue {
		value, err := c.src.dbSchema().decodeValue(c.it.Value())
		if err != nil {
			c.fail(err)
			return false
		}
		c.value = value
	}
	return true
}

func (c *Cursor) fail(err error) {
	c.err = err
	c.Close()
}

// Key returns the decoded key at the current position (a bare scalar for
// single-part key schemas, a Tuple otherwise).
func (c *Cursor) Key() any { return c.key }

// Value returns the decoded value at the current position.
func (c *Cursor) Value() any { return c.value }

// Err returns the first error encountered by the cursor, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the engine iterator. Safe to call multiple times; called
// automatically on exhaustion and on error.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.it != nil {
		err := c.it.Close()
		c.it = nil
		return err
	}
	return nil
}

// All consumes the cursor and returns every key/value pair.
func All(c *Cursor) ([]KV, error) {
	defer c.Close()
	var result []KV
	for c.Next() {
		result = append(result, KV{Key: c.Key(), Value: c.Value()})
	}
	return result, c.Err()
}

// AllKeys consumes the cursor and returns the keys, skipping value decoding.
func AllKeys(c *Cursor) ([]any, error) {
	defer c.Close()
	var result []any
	for c.next(false) {
		result = append(result, c.Key())
	}
	return result, c.Err()
}

// AllValues consumes the cursor and returns the values.
func AllValues(c *Cursor) ([]any, error) {
	defer c.Close()
	var result []any
	for c.Next() {
		result = append(result, c.Value())
	}
	return result, c.Err()
}
