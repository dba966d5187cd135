package sova

import (
	"errors"
	"log/slog"
	"os"
	"reflect"
	"testing"
)

func init() {
	// slog.SetLogLoggerLevel requires Go 1.22; this is the 1.21 equivalent.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestCRUD(t *testing.T) {
	db := openKV(t)

	ensure(db.Set("k1", "v1"))
	ensure(db.Set("k2", "v2"))
	ensure(db.Set("k3", "v3"))

	eq(t, must(db.Get("k1")), "v1")
	eq(t, must(db.Get("k2")), "v2")
	eq(t, must(db.Get("kx")), nil)
	eq(t, must(db.GetDefault("kx", "fallback")), "fallback")
	eq(t, must(db.GetDefault("k1", "fallback")), "v1")
	eq(t, must(db.Has("k1")), true)
	eq(t, must(db.Has("kx")), false)
	eq(t, must(db.Len()), 3)
	eq(t, must(db.IndexCount()), 3)

	// Overwrite.
	ensure(db.Set("k2", "v2b"))
	eq(t, must(db.Get("k2")), "v2b")
	eq(t, must(db.Len()), 3)

	_, err := db.Fetch("kx")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch(kx) err = %v, wanted ErrNotFound", err)
	}
	var nfe *NotFoundError
	if !errors.As(err, &nfe) || nfe.Database != "kv" {
		t.Fatalf("Fetch(kx) err = %#v, wanted NotFoundError for kv", err)
	}

	eq(t, must(db.Delete("k2")), true)
	eq(t, must(db.Delete("k2")), false)
	eq(t, must(db.Get("k2")), nil)
	eq(t, must(db.Len()), 2)

	ensure(db.Remove("k3"))
	if err := db.Remove("k3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Remove(k3) twice err = %v, wanted ErrNotFound", err)
	}
}

func TestBatchUpdate(t *testing.T) {
	db := openKV(t)
	ensure(db.Update([]KV{
		{"b", "2"},
		{"a", "1"},
		{"c", "3"},
	}))
	eq(t, must(db.Len()), 3)
	eq(t, must(db.Keys()), []any{"a", "b", "c"})
	eq(t, must(db.Values()), []any{"1", "2", "3"})
}

func TestMultiGet(t *testing.T) {
	db := openKV(t)
	ensure(db.Set("k1", "v1"))
	ensure(db.Set("k3", "v3"))

	eq(t, must(db.MultiGet("k1", "k2", "k3")), []any{"v1", nil, "v3"})
	eq(t, must(db.MultiGetDict("k1", "k2", "k3")), []KV{
		{"k1", "v1"},
		{"k3", "v3"},
	})
}

func TestItems(t *testing.T) {
	db := openKV(t)
	ensure(db.Set("k2", "v2"))
	ensure(db.Set("k1", "v1"))

	pairs, err := All(db.Items())
	ensure(err)
	eq(t, pairs, []KV{{"k1", "v1"}, {"k2", "v2"}})
}

func TestStringAndBytesKeysInterchangeable(t *testing.T) {
	db := openKV(t)
	ensure(db.Set([]byte("k1"), "v1"))
	eq(t, must(db.Get("k1")), "v1")
	eq(t, must(db.Get([]byte("k1"))), "v1")
}

func TestMultiPartValueTuple(t *testing.T) {
	env := setup(t)
	db := must(env.AddDatabase("points", NewSchema(
		[]Index{StringIndex("name")},
		[]Index{U32Index("x"), U32Index("y"), StringIndex("label")},
	)))
	must(env.Open())

	ensure(db.Set("origin", Tuple{0, 0, "zero"}))
	eq(t, must(db.Get("origin")), any(Tuple{uint32(0), uint32(0), "zero"}))

	err := db.Set("bad", Tuple{1, 2})
	var ae *ArityError
	if !errors.As(err, &ae) || ae.Got != 2 || ae.Want != 3 {
		t.Fatalf("Set with short tuple err = %v, wanted ArityError{2,3}", err)
	}
}

func TestCompositeKeys(t *testing.T) {
	env := setup(t)
	db := must(env.AddDatabase("multi", NewSchema(
		[]Index{U32Index("major"), U32Index("minor"), StringIndex("tag")},
		[]Index{StringIndex("value")},
	)))
	must(env.Open())

	ensure(db.Set(Tuple{1, 2, "a"}, "v12a"))
	ensure(db.Set(Tuple{1, 1, "z"}, "v11z"))
	ensure(db.Set(Tuple{2, 0, "m"}, "v20m"))

	eq(t, must(db.Get(Tuple{1, 2, "a"})), "v12a")
	eq(t, must(db.Keys()), []any{
		Tuple{uint32(1), uint32(1), "z"},
		Tuple{uint32(1), uint32(2), "a"},
		Tuple{uint32(2), uint32(0), "m"},
	})

	if _, err := db.Get(Tuple{1, 2}); err == nil {
		t.Fatalf("Get with short key tuple should fail")
	}
}

func TestDatabaseIsolation(t *testing.T) {
	env := setup(t)
	a := must(env.AddDatabase("a", stringsSchema()))
	b := must(env.AddDatabase("b", stringsSchema()))
	must(env.Open())

	ensure(a.Set("k", "from-a"))
	ensure(b.Set("k", "from-b"))

	eq(t, must(a.Get("k")), "from-a")
	eq(t, must(b.Get("k")), "from-b")
	eq(t, must(a.Len()), 1)
	eq(t, must(b.Len()), 1)

	eq(t, must(a.Delete("k")), true)
	eq(t, must(a.Get("k")), nil)
	eq(t, must(b.Get("k")), "from-b")
}

func stringsSchema() *Schema {
	return NewSchema(
		[]Index{StringIndex("key")},
		[]Index{StringIndex("value")},
	)
}

func setup(t testing.TB) *Environment {
	t.Helper()
	env := New(t.TempDir(), Options{Engine: EngineMemory, IsTesting: true})
	t.Cleanup(func() {
		_, _ = env.Close()
	})
	return env
}

func openKV(t testing.TB) *Database {
	t.Helper()
	env := setup(t)
	db := must(env.AddDatabase("kv", stringsSchema()))
	must(env.Open())
	return db
}

func eq(t testing.TB, got, want any) {
	t.Helper()
	if got == nil && want == nil {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("** got %v, wanted %v", got, want)
	}
}

func allKeys(t testing.TB, c *Cursor) []any {
	t.Helper()
	keys, err := AllKeys(c)
	if err != nil {
		t.Fatalf("cursor failed: %v", err)
	}
	return keys
}
