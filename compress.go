package sova

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"
)

// Compression selects the per-database value compression codec.
type Compression uint8

const (
	NoCompression Compression = 0x0
	Snappy        Compression = 0x1
	LZ4           Compression = 0x2
	Zstd          Compression = 0x3
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

var zstdDecoder, _ = zstd.NewReader(nil)
var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

// Value frame: 1-byte codec tag, payload, 8-byte big-endian XXH3 of the
// payload. The frame is present even for NoCompression so that every read
// verifies integrity and decoding never has to guess.
func compressValue(c Compression, plain []byte) ([]byte, error) {
	var payload []byte
	switch c {
	case NoCompression:
		payload = plain
	case Snappy:
		payload = snappy.Encode(nil, plain)
	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(plain); err != nil {
			return nil, fmt.Errorf("lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 close: %w", err)
		}
		payload = buf.Bytes()
	case Zstd:
		payload = zstdEncoder.EncodeAll(plain, nil)
	default:
		return nil, fmt.Errorf("unsupported compression: %v", c)
	}

	out := make([]byte, 0, 1+len(payload)+8)
	out = append(out, byte(c))
	out = append(out, payload...)
	return appendUint64(out, xxh3.Hash(payload)), nil
}

func decompressValue(raw []byte) ([]byte, error) {
	if len(raw) < 9 {
		return nil, codecErrf(raw, nil, "value frame too short")
	}
	c := Compression(raw[0])
	payload := raw[1 : len(raw)-8]
	if sum := beUint64(raw[len(raw)-8:]); sum != xxh3.Hash(payload) {
		return nil, codecErrf(raw, nil, "value checksum mismatch")
	}

	switch c {
	case NoCompression:
		return payload, nil
	case Snappy:
		plain, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, codecErrf(raw, err, "snappy decode")
		}
		return plain, nil
	case LZ4:
		plain, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, codecErrf(raw, err, "lz4 decode")
		}
		return plain, nil
	case Zstd:
		plain, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, codecErrf(raw, err, "zstd decode")
		}
		return plain, nil
	default:
		return nil, codecErrf(raw, nil, "unknown value codec tag 0x%02x", raw[0])
	}
}
