// Package id generates the random identifiers used by the tracer.
//
// Trace IDs are 128 bits and span IDs are 64 bits. Neither is ever zero,
// since a zero identifier marks an invalid span context on the wire.
//
// All generation uses crypto/rand.
package id
