// Package ring provides a zero-copy, non-owning view over a power-of-two
// ring buffer.
//
// A Slice never allocates and never frees: it is a (backing, start, len)
// descriptor carved out of a buffer owned elsewhere (a connection's read
// buffer, a MemGuard, or a plain []byte kept alive by the caller). Every
// index resolves through a bitmask, so a Slice whose logical range wraps
// the end of the backing array is handled transparently as two physical
// segments.
package ring
