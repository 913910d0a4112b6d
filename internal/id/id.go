package id

import (
	"crypto/rand"
	"encoding/binary"
)

// TraceID generates a random non-zero 128-bit trace identifier.
func TraceID() [16]byte {
	var b [16]byte
	for {
		_, _ = rand.Read(b[:])
		if b != ([16]byte{}) {
			return b
		}
	}
}

// SpanID generates a random non-zero 64-bit span identifier.
// The top bit is cleared so the value also fits a signed 64-bit integer,
// which some agents and language tracers assume.
func SpanID() uint64 {
	var b [8]byte
	for {
		_, _ = rand.Read(b[:])
		v := binary.BigEndian.Uint64(b[:]) &^ (1 << 63)
		if v != 0 {
			return v
		}
	}
}
