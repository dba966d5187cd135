package sova

import (
	"encoding/hex"
	"log/slog"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

func grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	return off, buf[:newLen]
}

func appendUint64(buf []byte, v uint64) []byte {
	off, buf := grow(buf, 8)
	buf[off+0] = byte(v >> 56)
	buf[off+1] = byte(v >> 48)
	buf[off+2] = byte(v >> 40)
	buf[off+3] = byte(v >> 32)
	buf[off+4] = byte(v >> 24)
	buf[off+5] = byte(v >> 16)
	buf[off+6] = byte(v >> 8)
	buf[off+7] = byte(v)
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	off, buf := grow(buf, 4)
	buf[off+0] = byte(v >> 24)
	buf[off+1] = byte(v >> 16)
	buf[off+2] = byte(v >> 8)
	buf[off+3] = byte(v)
	return buf
}

func appendUint16(buf []byte, v uint16) []byte {
	off, buf := grow(buf, 2)
	buf[off+0] = byte(v >> 8)
	buf[off+1] = byte(v)
	return buf
}

func appendUint8(buf []byte, v uint8) []byte {
	off, buf := grow(buf, 1)
	buf[off] = v
	return buf
}

const (
	fieldEsc  = 0x00 // escape prefix inside a variable-length field
	fieldLit  = 0xFF // fieldEsc fieldLit encodes a literal 0x00
	fieldTerm = 0x01 // fieldEsc fieldTerm terminates the field
)

// appendEscaped appends a variable-length field: each 0x00 payload byte
// becomes 0x00 0xFF, and the field is terminated with 0x00 0x01. Byte-wise
// comparison of two encodings matches byte-wise comparison of the payloads,
// and no encoding is a prefix of another encoding with different content.
func appendEscaped(buf []byte, chunk []byte) []byte {
	return append(appendEscapedOpen(buf, chunk), fieldEsc, fieldTerm)
}

// appendEscapedOpen escapes a chunk without terminating it. The result is a
// byte prefix of the encoding of any payload extending chunk, which is what
// prefix cursors match against.
func appendEscapedOpen(buf []byte, chunk []byte) []byte {
	for _, b := range chunk {
		if b == fieldEsc {
			buf = append(buf, fieldEsc, fieldLit)
		} else {
			buf = append(buf, b)
		}
	}
	return buf
}

// consumeEscaped reads one escaped field, returning the unescaped payload and
// the remaining bytes past the terminator.
func consumeEscaped(raw []byte) (payload, rest []byte, err error) {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		if b != fieldEsc {
			out = append(out, b)
			continue
		}
		if i+1 >= len(raw) {
			return nil, nil, codecErrf(raw, nil, "truncated escape sequence")
		}
		switch raw[i+1] {
		case fieldLit:
			out = append(out, fieldEsc)
			i++
		case fieldTerm:
			return out, raw[i+2:], nil
		default:
			return nil, nil, codecErrf(raw, nil, "invalid escape byte 0x%02x", raw[i+1])
		}
	}
	return nil, nil, codecErrf(raw, nil, "unterminated field")
}

// keySuccessor returns the immediate successor of key in byte order,
// i.e. the smallest byte string strictly greater than key.
func keySuccessor(key []byte) []byte {
	succ := make([]byte, len(key)+1)
	copy(succ, key)
	return succ
}

// prefixSuccessor returns the smallest byte string greater than every string
// that starts with prefix, or nil when no such string exists (all 0xFF).
func prefixSuccessor(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xFF {
			succ := make([]byte, i+1)
			copy(succ, prefix)
			succ[i]++
			return succ
		}
	}
	return nil
}

func hexAttr(name string, value []byte) slog.Attr {
	return slog.String(name, hex.EncodeToString(value))
}
