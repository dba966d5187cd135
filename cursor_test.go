package sova

import (
	"testing"
)

func TestSliceRanges(t *testing.T) {
	db := openKV(t)
	for _, k := range []string{"k1", "k2", "k3", "k4"} {
		ensure(db.Set(k, "val-"+k))
	}

	o := func(name string, c *Cursor, want ...any) {
		t.Helper()
		got := allKeys(t, c)
		if len(got) == 0 && len(want) == 0 {
			return
		}
		eq(t, got, want)
	}

	o("full", db.Slice(nil, nil, false), "k1", "k2", "k3", "k4")
	o("full reverse", db.Slice(nil, nil, true), "k4", "k3", "k2", "k1")

	o("from k2", db.Slice("k2", nil, false), "k2", "k3", "k4")
	o("to k2 inclusive", db.Slice(nil, "k2", false), "k1", "k2")
	o("k2 to k3 inclusive", db.Slice("k2", "k3", false), "k2", "k3")
	o("single key range", db.Slice("k2", "k2", false), "k2")

	// start > stop scans descending; the reverse flag changes nothing then.
	o("hi to lo", db.Slice("k3", "k2", false), "k3", "k2")
	o("hi to lo with reverse", db.Slice("k3", "k2", true), "k3", "k2")

	// With both bounds, reverse flips direction over the same bound set.
	o("k2 to k3 reverse", db.Slice("k2", "k3", true), "k3", "k2")

	// With a single bound, reverse anchors the descent at that bound.
	o("from k2 reverse", db.Slice("k2", nil, true), "k2", "k1")
	o("to k3 reverse", db.Slice(nil, "k3", true), "k3", "k2", "k1")

	// Bounds need not be present keys.
	o("between absent bounds", db.Slice("k15", "k25", false), "k2")
	o("beyond data", db.Slice("x", "z", false))
	o("before data", db.Slice("a", "b", false))
}

func TestPivotCursor(t *testing.T) {
	db := openKV(t)
	for _, k := range []string{"k1", "k2", "k3", "k4"} {
		ensure(db.Set(k, "val-"+k))
	}

	o := func(name string, opt CursorOptions, want ...any) {
		t.Helper()
		got := allKeys(t, db.Cursor(opt))
		if len(got) == 0 && len(want) == 0 {
			return
		}
		eq(t, got, want)
	}

	o("default order is >=", CursorOptions{Key: "k2"}, "k2", "k3", "k4")
	o("gte", CursorOptions{Key: "k2", Order: Gte}, "k2", "k3", "k4")
	o("gt", CursorOptions{Key: "k2", Order: Gt}, "k3", "k4")
	o("lte", CursorOptions{Key: "k3", Order: Lte}, "k3", "k2", "k1")
	o("lt", CursorOptions{Key: "k3", Order: Lt}, "k2", "k1")

	// Absent pivots anchor between keys.
	o("gte absent", CursorOptions{Key: "k25", Order: Gte}, "k3", "k4")
	o("lt absent", CursorOptions{Key: "k25", Order: Lt}, "k2", "k1")

	// No pivot scans the whole database in the order's direction.
	o("no pivot forward", CursorOptions{Order: Gte}, "k1", "k2", "k3", "k4")
	o("no pivot backward", CursorOptions{Order: Lte}, "k4", "k3", "k2", "k1")

	c := db.Cursor(CursorOptions{Key: "k1", Order: Order("><")})
	if c.Next() {
		t.Fatalf("cursor with bogus order should not produce")
	}
	if c.Err() == nil {
		t.Fatalf("cursor with bogus order should report an error")
	}
}

func TestPrefixCursor(t *testing.T) {
	db := openKV(t)
	for _, k := range []string{"aaa", "aab", "aba", "abb", "baa"} {
		ensure(db.Set(k, "val-"+k))
	}

	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: "ab"})), []any{"aba", "abb"})
	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: "a"})), []any{"aaa", "aab", "aba", "abb"})
	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: "ab", Order: Lte})), []any{"abb", "aba"})
	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: "aba"})), []any{"aba"})
	if got := allKeys(t, db.Cursor(CursorOptions{Prefix: "ac"})); len(got) != 0 {
		t.Fatalf("prefix ac matched %v, wanted nothing", got)
	}

	// Prefix combined with a pivot inside it.
	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: "a", Key: "aab"})), []any{"aab", "aba", "abb"})
	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: "a", Key: "aab", Order: Lt})), []any{"aaa"})

	// A pivot byte-wise outside the prefix region is clamped to it: every
	// prefixed key satisfies the pivot, none lies beyond it.
	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: "b", Key: "a", Order: Gte})), []any{"baa"})
	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: "b", Key: "a", Order: Gt})), []any{"baa"})
	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: "a", Key: "z", Order: Lte})), []any{"abb", "aba", "aab", "aaa"})
	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: "a", Key: "z", Order: Lt})), []any{"abb", "aba", "aab", "aaa"})
	if got := allKeys(t, db.Cursor(CursorOptions{Prefix: "b", Key: "z", Order: Gte})); len(got) != 0 {
		t.Fatalf("pivot past the prefix region matched %v, wanted nothing", got)
	}
	if got := allKeys(t, db.Cursor(CursorOptions{Prefix: "b", Key: "a", Order: Lte})); len(got) != 0 {
		t.Fatalf("pivot before the prefix region matched %v, wanted nothing", got)
	}
}

func TestCompositePrefixCursor(t *testing.T) {
	env := setup(t)
	db := must(env.AddDatabase("events", NewSchema(
		[]Index{U32Index("stream"), U64Index("seq")},
		[]Index{StringIndex("payload")},
	)))
	must(env.Open())

	ensure(db.Set(Tuple{1, 1}, "a"))
	ensure(db.Set(Tuple{1, 2}, "b"))
	ensure(db.Set(Tuple{2, 1}, "c"))

	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: Tuple{1}})), []any{
		Tuple{uint32(1), uint64(1)},
		Tuple{uint32(1), uint64(2)},
	})
	eq(t, allKeys(t, db.Cursor(CursorOptions{Prefix: Tuple{2}})), []any{
		Tuple{uint32(2), uint64(1)},
	})

	// Partial tuples also work as range bounds.
	eq(t, allKeys(t, db.Slice(Tuple{2}, nil, false)), []any{
		Tuple{uint32(2), uint64(1)},
	})
}

func TestDescendingKeyKind(t *testing.T) {
	env := setup(t)
	db := must(env.AddDatabase("latest", NewSchema(
		[]Index{U16RevIndex("age")},
		[]Index{StringIndex("value")},
	)))
	must(env.Open())

	for i := 0; i < 100; i++ {
		ensure(db.Set(i, "x"))
	}

	keys := allKeys(t, db.Items())
	eq(t, len(keys), 100)
	for i, k := range keys {
		if k != uint16(99-i) {
			t.Fatalf("keys[%d] = %v, wanted %v", i, k, uint16(99-i))
		}
	}
}

func TestCursorValues(t *testing.T) {
	db := openKV(t)
	ensure(db.Set("k1", "v1"))
	ensure(db.Set("k2", "v2"))

	values, err := AllValues(db.Slice(nil, nil, false))
	ensure(err)
	eq(t, values, []any{"v1", "v2"})

	c := db.Items()
	defer c.Close()
	if !c.Next() {
		t.Fatalf("Next returned false on non-empty database")
	}
	eq(t, c.Key(), "k1")
	eq(t, c.Value(), "v1")
	if !c.Next() || c.Key() != "k2" {
		t.Fatalf("second Next should land on k2")
	}
	if c.Next() {
		t.Fatalf("cursor should be exhausted")
	}
	ensure(c.Err())

	// Exhausted cursors stay exhausted; Close is idempotent.
	if c.Next() {
		t.Fatalf("exhausted cursor restarted")
	}
	ensure(c.Close())
	ensure(c.Close())
}
