package sova

import "fmt"

// Tuple is an ordered sequence of typed field values matching a schema's key
// or value parts. Single-part schemas accept a bare scalar anywhere a Tuple is
// expected, and return bare scalars from reads.
type Tuple []any

// KV pairs a decoded key with a decoded value. Both follow the scalar sugar
// rule for single-part schemas.
type KV struct {
	Key   any
	Value any
}

// Schema declares the ordered key parts and value parts of a database.
// It is fixed once the database is registered; changing a schema requires
// dropping and recreating the database.
type Schema struct {
	Key   []Index
	Value []Index

	// Compression selects the value compression codec for databases using
	// this schema. Keys are never compressed (their bytes carry the order).
	Compression Compression
}

func NewSchema(key, value []Index) *Schema {
	return &Schema{Key: key, Value: value}
}

func (s *Schema) validate() error {
	if len(s.Key) == 0 {
		return fmt.Errorf("schema has no key parts")
	}
	if len(s.Value) == 0 {
		return fmt.Errorf("schema has no value parts")
	}
	return nil
}

// normalize turns the caller-supplied key or value into a Tuple, applying the
// scalar sugar for single-part schemas and checking arity.
func normalize(v any, parts []Index, isKey bool) (Tuple, error) {
	if t, ok := v.(Tuple); ok {
		if len(t) != len(parts) {
			return nil, &ArityError{Got: len(t), Want: len(parts), IsKey: isKey}
		}
		return t, nil
	}
	if len(parts) == 1 {
		return Tuple{v}, nil
	}
	return nil, &ArityError{Got: 1, Want: len(parts), IsKey: isKey}
}

// singular applies the scalar sugar on the way out.
func singular(t Tuple) any {
	if len(t) == 1 {
		return t[0]
	}
	return t
}

func encodeParts(buf []byte, parts []Index, t Tuple) ([]byte, error) {
	var err error
	for i, ix := range parts {
		buf, err = ix.encode(buf, t[i])
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func decodeParts(parts []Index, raw []byte) (Tuple, error) {
	t := make(Tuple, len(parts))
	rest := raw
	var err error
	for i, ix := range parts {
		t[i], rest, err = ix.decode(rest)
		if err != nil {
			return nil, err
		}
	}
	if len(rest) != 0 {
		return nil, codecErrf(raw, nil, "%d trailing bytes after last field", len(rest))
	}
	return t, nil
}

// encodeKey encodes a full key. The supplied key must have exactly the
// schema's key arity (or be a bare scalar for single-part schemas).
func (s *Schema) encodeKey(buf []byte, key any) ([]byte, error) {
	t, err := normalize(key, s.Key, true)
	if err != nil {
		return nil, err
	}
	return encodeParts(buf, s.Key, t)
}

// encodeKeyBound encodes a possibly partial key for use as a range bound or
// prefix. A Tuple with fewer parts than the schema declares encodes only the
// leading fields; the result byte-compares less than any full key sharing the
// prefix, which is what makes partial bounds work.
func (s *Schema) encodeKeyBound(buf []byte, key any) ([]byte, error) {
	t, ok := key.(Tuple)
	if !ok {
		t = Tuple{key}
	}
	if len(t) > len(s.Key) {
		return nil, &ArityError{Got: len(t), Want: len(s.Key), IsKey: true}
	}
	return encodeParts(buf, s.Key[:len(t)], t)
}

// encodeKeyPrefix encodes a possibly partial key for exact-prefix matching.
// Unlike a range bound, a trailing string or bytes part is left unterminated,
// so it also matches keys whose final field merely extends it.
func (s *Schema) encodeKeyPrefix(buf []byte, key any) ([]byte, error) {
	t, ok := key.(Tuple)
	if !ok {
		t = Tuple{key}
	}
	if len(t) == 0 || len(t) > len(s.Key) {
		return nil, &ArityError{Got: len(t), Want: len(s.Key), IsKey: true}
	}
	last := len(t) - 1
	buf, err := encodeParts(buf, s.Key[:last], t[:last])
	if err != nil {
		return nil, err
	}
	return s.Key[last].encodePrefix(buf, t[last])
}

func (s *Schema) decodeKey(raw []byte) (any, error) {
	t, err := decodeParts(s.Key, raw)
	if err != nil {
		return nil, err
	}
	return singular(t), nil
}

// encodeValue encodes a full value tuple and applies the schema's compression
// framing (a frame is always present, carrying the codec tag and a checksum).
func (s *Schema) encodeValue(value any) ([]byte, error) {
	t, err := normalize(value, s.Value, false)
	if err != nil {
		return nil, err
	}
	raw, err := encodeParts(nil, s.Value, t)
	if err != nil {
		return nil, err
	}
	return compressValue(s.Compression, raw)
}

func (s *Schema) decodeValue(raw []byte) (any, error) {
	plain, err := decompressValue(raw)
	if err != nil {
		return nil, err
	}
	t, err := decodeParts(s.Value, plain)
	if err != nil {
		return nil, err
	}
	return singular(t), nil
}
