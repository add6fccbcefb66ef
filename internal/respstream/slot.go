package respstream

import "sync/atomic"

// Status is a slot's position in its request/response lifecycle.
type Status int32

const (
	StatusInit Status = iota
	StatusRequesting
	StatusSent
	StatusResponded
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusRequesting:
		return "requesting"
	case StatusSent:
		return "sent"
	case StatusResponded:
		return "responded"
	default:
		return "unknown"
	}
}

// Request is the outbound payload a client connection hands to a slot.
//
// Stamp, if set, is called with the sequence number the request-side
// task assigned and the original Bytes, and must return the bytes to
// actually write — a protocol that carries its own correlation field can
// use it to burn the assigned sequence into the wire bytes just before
// the write. internal/proxy leaves it nil and matches backend responses
// in FIFO order instead.
type Request struct {
	Bytes   []byte
	Noreply bool
	Stamp   func(seq uint64, bytes []byte) []byte
}

// Response is what a slot eventually holds for its owner to collect.
type Response struct {
	Bytes []byte
	Err   error
}

// Slot is one client connection's binding into the shared backend stream.
// Exactly one goroutine submits to a given slot and exactly one goroutine
// polls it, though the slot itself may be reused (reset to StatusInit)
// across many requests over the connection's lifetime.
type Slot struct {
	cid    int
	status atomic.Int32
	seq    atomic.Uint64
	req    Request
	result atomic.Pointer[Response]
	wake   chan struct{}
}

func newSlot(cid int) *Slot {
	return &Slot{cid: cid, wake: make(chan struct{}, 1)}
}

// Status returns the slot's current lifecycle state.
func (s *Slot) Status() Status { return Status(s.status.Load()) }

func (s *Slot) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
