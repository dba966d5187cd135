package sova

import "sync"

// Encoded keys are short-lived in the CRUD paths (every engine copies what it
// keeps), so the encode buffers are pooled.
var keyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 256)
	},
}

func borrowKeyBytes() []byte {
	return keyBytesPool.Get().([]byte)
}

func releaseKeyBytes(b []byte) {
	keyBytesPool.Put(b[:0])
}
