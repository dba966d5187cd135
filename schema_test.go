package sova

import (
	"bytes"
	"errors"
	"testing"
)

func TestScalarSugar(t *testing.T) {
	s := NewSchema([]Index{StringIndex("k")}, []Index{StringIndex("v")})

	// Scalars and one-element tuples encode identically.
	a := must(s.encodeKey(nil, "hello"))
	b := must(s.encodeKey(nil, Tuple{"hello"}))
	if !bytes.Equal(a, b) {
		t.Fatalf("scalar and tuple encodings differ: %x vs %x", a, b)
	}

	// Single-part keys decode back to a bare scalar.
	eq(t, must(s.decodeKey(a)), "hello")
}

func TestKeyArity(t *testing.T) {
	s := NewSchema([]Index{U32Index("a"), U32Index("b")}, []Index{StringIndex("v")})

	var ae *ArityError
	_, err := s.encodeKey(nil, Tuple{1})
	if !errors.As(err, &ae) || ae.Got != 1 || ae.Want != 2 || !ae.IsKey {
		t.Fatalf("short key err = %#v, wanted ArityError{1,2,key}", err)
	}
	if _, err := s.encodeKey(nil, Tuple{1, 2, 3}); err == nil {
		t.Fatalf("long key should fail")
	}
	// A bare scalar against a multi-part key is an arity error too.
	if _, err := s.encodeKey(nil, 1); err == nil {
		t.Fatalf("scalar against two-part key should fail")
	}
}

func TestKeyBoundAllowsPartialTuples(t *testing.T) {
	s := NewSchema([]Index{U32Index("a"), U32Index("b")}, []Index{StringIndex("v")})

	partial := must(s.encodeKeyBound(nil, Tuple{7}))
	full := must(s.encodeKey(nil, Tuple{7, 9}))
	if !bytes.HasPrefix(full, partial) {
		t.Fatalf("partial bound %x is not a prefix of full key %x", partial, full)
	}
	if _, err := s.encodeKeyBound(nil, Tuple{1, 2, 3}); err == nil {
		t.Fatalf("bound longer than the key should fail")
	}
}

func TestKeyPrefixLeavesLastFieldOpen(t *testing.T) {
	s := NewSchema([]Index{U32Index("a"), StringIndex("b")}, []Index{StringIndex("v")})

	pfx := must(s.encodeKeyPrefix(nil, Tuple{7, "ab"}))
	full := must(s.encodeKey(nil, Tuple{7, "abcde"}))
	if !bytes.HasPrefix(full, pfx) {
		t.Fatalf("prefix %x does not match extending key %x", pfx, full)
	}

	// A bound, in contrast, pins the final field exactly.
	bound := must(s.encodeKeyBound(nil, Tuple{7, "ab"}))
	if bytes.HasPrefix(full, bound) {
		t.Fatalf("bound %x unexpectedly matches extending key %x", bound, full)
	}
}

func TestValueTrailingBytes(t *testing.T) {
	s := NewSchema([]Index{StringIndex("k")}, []Index{U32Index("v")})
	raw := must(s.encodeValue(uint32(5)))

	// Re-frame with junk appended to the plain payload.
	plain := must(decompressValue(raw))
	framed := must(compressValue(NoCompression, append(plain, 0xEE)))

	_, err := s.decodeValue(framed)
	var ce *CodecError
	if !errors.As(err, &ce) {
		t.Fatalf("trailing bytes err = %#v, wanted CodecError", err)
	}
}
