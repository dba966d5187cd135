package sova

import "github.com/vmihailenco/msgpack/v5"

// MsgpackIndex returns a Serialized index that msgpack-encodes values of type
// T. Handy for structured value fields; not meaningful as a sort-significant
// key part (ordering follows the opaque msgpack bytes).
func MsgpackIndex[T any](name string) Index {
	return SerializedIndex(name,
		func(value any) ([]byte, error) {
			v, ok := value.(T)
			if !ok {
				return nil, typeMismatchErr(name, IndexSerialized, value)
			}
			return msgpack.Marshal(v)
		},
		func(data []byte) (any, error) {
			var v T
			if err := msgpack.Unmarshal(data, &v); err != nil {
				return nil, err
			}
			return v, nil
		})
}
