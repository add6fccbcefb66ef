// Package ringchan implements a bounded, single-producer/single-consumer
// byte channel backed by a fixed power-of-two ring buffer.
//
// Unlike an unbounded Go channel of []byte, ringchan moves bytes into and
// out of one shared backing array: PutSlice copies into the buffer and
// blocks the caller while it is full; Next hands back a zero-copy
// internal/ring view over whatever is currently readable and blocks the
// caller while the buffer is empty. Consume advances the read cursor once
// the caller is done with the bytes Next returned.
//
// Waking across the two sides is done with a CAS-guarded pending state
// plus a 1-buffered signal channel per direction, so a producer that is
// already running never pays for a wakeup the consumer didn't need.
package ringchan
