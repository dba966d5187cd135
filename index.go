package sova

import (
	"fmt"
	"math"
)

// IndexKind identifies one of the supported typed field codecs.
type IndexKind uint8

const (
	IndexU8 IndexKind = iota
	IndexU16
	IndexU32
	IndexU64
	IndexU8Rev
	IndexU16Rev
	IndexU32Rev
	IndexU64Rev
	IndexString
	IndexBytes
	IndexSerialized
)

func (k IndexKind) String() string {
	switch k {
	case IndexU8:
		return "U8"
	case IndexU16:
		return "U16"
	case IndexU32:
		return "U32"
	case IndexU64:
		return "U64"
	case IndexU8Rev:
		return "U8Rev"
	case IndexU16Rev:
		return "U16Rev"
	case IndexU32Rev:
		return "U32Rev"
	case IndexU64Rev:
		return "U64Rev"
	case IndexString:
		return "String"
	case IndexBytes:
		return "Bytes"
	case IndexSerialized:
		return "Serialized"
	default:
		return fmt.Sprintf("IndexKind(%d)", uint8(k))
	}
}

// FixedWidth returns the encoded width of the kind in bytes, or 0 when the
// encoding is variable-length.
func (k IndexKind) FixedWidth() int {
	switch k {
	case IndexU8, IndexU8Rev:
		return 1
	case IndexU16, IndexU16Rev:
		return 2
	case IndexU32, IndexU32Rev:
		return 4
	case IndexU64, IndexU64Rev:
		return 8
	default:
		return 0
	}
}

// Index is a single typed field codec: it encodes one logical value into an
// order-preserving byte fragment and decodes it back. The name is used for
// diagnostics only. Unsigned kinds encode big-endian so that numeric order
// equals byte order; the Rev kinds encode the complement so that ascending
// byte order yields descending logical order. String and Bytes fields are
// escaped and terminated (see appendEscaped) so that composite keys made of
// several variable-length fields still compare field by field.
type Index struct {
	name string
	kind IndexKind
	enc  func(value any) ([]byte, error)
	dec  func(data []byte) (any, error)
}

func U8Index(name string) Index     { return Index{name: name, kind: IndexU8} }
func U16Index(name string) Index    { return Index{name: name, kind: IndexU16} }
func U32Index(name string) Index    { return Index{name: name, kind: IndexU32} }
func U64Index(name string) Index    { return Index{name: name, kind: IndexU64} }
func U8RevIndex(name string) Index  { return Index{name: name, kind: IndexU8Rev} }
func U16RevIndex(name string) Index { return Index{name: name, kind: IndexU16Rev} }
func U32RevIndex(name string) Index { return Index{name: name, kind: IndexU32Rev} }
func U64RevIndex(name string) Index { return Index{name: name, kind: IndexU64Rev} }
func StringIndex(name string) Index { return Index{name: name, kind: IndexString} }
func BytesIndex(name string) Index  { return Index{name: name, kind: IndexBytes} }

// SerializedIndex delegates to a caller-supplied encode/decode pair. The
// resulting bytes are stored escaped like a Bytes field; no ordering guarantee
// is made beyond byte-wise comparison of the opaque payloads.
func SerializedIndex(name string, enc func(value any) ([]byte, error), dec func(data []byte) (any, error)) Index {
	return Index{name: name, kind: IndexSerialized, enc: enc, dec: dec}
}

func (ix Index) Name() string    { return ix.name }
func (ix Index) Kind() IndexKind { return ix.kind }

// encode appends the order-preserving fragment for value to buf.
func (ix Index) encode(buf []byte, value any) ([]byte, error) {
	switch ix.kind {
	case IndexU8, IndexU16, IndexU32, IndexU64, IndexU8Rev, IndexU16Rev, IndexU32Rev, IndexU64Rev:
		u, ok := toUint64(value)
		if !ok {
			return nil, typeMismatchErr(ix.name, ix.kind, value)
		}
		return ix.encodeUint(buf, u, value)
	case IndexString, IndexBytes:
		switch v := value.(type) {
		case string:
			return appendEscaped(buf, []byte(v)), nil
		case []byte:
			return appendEscaped(buf, v), nil
		default:
			return nil, typeMismatchErr(ix.name, ix.kind, value)
		}
	case IndexSerialized:
		data, err := ix.enc(value)
		if err != nil {
			return nil, typeMismatchErr(ix.name, ix.kind, value)
		}
		return appendEscaped(buf, data), nil
	default:
		panic(fmt.Errorf("unknown index kind %v", ix.kind))
	}
}

// encodePrefix is encode for exact-prefix matching: string and bytes fields
// are escaped but left unterminated, so the result also matches keys whose
// field extends the given value. Other kinds encode as usual.
func (ix Index) encodePrefix(buf []byte, value any) ([]byte, error) {
	switch ix.kind {
	case IndexString, IndexBytes:
		switch v := value.(type) {
		case string:
			return appendEscapedOpen(buf, []byte(v)), nil
		case []byte:
			return appendEscapedOpen(buf, v), nil
		default:
			return nil, typeMismatchErr(ix.name, ix.kind, value)
		}
	default:
		return ix.encode(buf, value)
	}
}

func (ix Index) encodeUint(buf []byte, u uint64, orig any) ([]byte, error) {
	switch ix.kind {
	case IndexU8:
		if u > math.MaxUint8 {
			return nil, typeMismatchErr(ix.name, ix.kind, orig)
		}
		return appendUint8(buf, uint8(u)), nil
	case IndexU8Rev:
		if u > math.MaxUint8 {
			return nil, typeMismatchErr(ix.name, ix.kind, orig)
		}
		return appendUint8(buf, math.MaxUint8-uint8(u)), nil
	case IndexU16:
		if u > math.MaxUint16 {
			return nil, typeMismatchErr(ix.name, ix.kind, orig)
		}
		return appendUint16(buf, uint16(u)), nil
	case IndexU16Rev:
		if u > math.MaxUint16 {
			return nil, typeMismatchErr(ix.name, ix.kind, orig)
		}
		return appendUint16(buf, math.MaxUint16-uint16(u)), nil
	case IndexU32:
		if u > math.MaxUint32 {
			return nil, typeMismatchErr(ix.name, ix.kind, orig)
		}
		return appendUint32(buf, uint32(u)), nil
	case IndexU32Rev:
		if u > math.MaxUint32 {
			return nil, typeMismatchErr(ix.name, ix.kind, orig)
		}
		return appendUint32(buf, math.MaxUint32-uint32(u)), nil
	case IndexU64:
		return appendUint64(buf, u), nil
	case IndexU64Rev:
		return appendUint64(buf, math.MaxUint64-u), nil
	default:
		panic("not an unsigned kind")
	}
}

// decode consumes one fragment from raw, returning the decoded value and the
// remaining bytes. Unsigned kinds decode to uint8/uint16/uint32/uint64 per
// their width (encode accepts any Go integer type in range).
func (ix Index) decode(raw []byte) (any, []byte, error) {
	if w := ix.kind.FixedWidth(); w > 0 {
		if len(raw) < w {
			return nil, nil, codecErrf(raw, nil, "%s: truncated %v field", ix.name, ix.kind)
		}
		frag, rest := raw[:w], raw[w:]
		switch ix.kind {
		case IndexU8:
			return frag[0], rest, nil
		case IndexU8Rev:
			return math.MaxUint8 - frag[0], rest, nil
		case IndexU16:
			return uint16(frag[0])<<8 | uint16(frag[1]), rest, nil
		case IndexU16Rev:
			return math.MaxUint16 - (uint16(frag[0])<<8 | uint16(frag[1])), rest, nil
		case IndexU32:
			return beUint32(frag), rest, nil
		case IndexU32Rev:
			return math.MaxUint32 - beUint32(frag), rest, nil
		case IndexU64:
			return beUint64(frag), rest, nil
		case IndexU64Rev:
			return math.MaxUint64 - beUint64(frag), rest, nil
		}
	}
	payload, rest, err := consumeEscaped(raw)
	if err != nil {
		return nil, nil, err
	}
	switch ix.kind {
	case IndexString:
		return string(payload), rest, nil
	case IndexBytes:
		return payload, rest, nil
	case IndexSerialized:
		v, err := ix.dec(payload)
		if err != nil {
			return nil, nil, codecErrf(payload, err, "%s: serialized decode", ix.name)
		}
		return v, rest, nil
	default:
		panic(fmt.Errorf("unknown index kind %v", ix.kind))
	}
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beUint64(b []byte) uint64 {
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}

func toUint64(value any) (uint64, bool) {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int8:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int16:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int32:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	default:
		return 0, false
	}
}
