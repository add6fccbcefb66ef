package ringchan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/kvmesh/sidecar/internal/ring"
)

// ErrClosed is returned by PutSlice once the channel has been closed and
// cannot accept any more bytes.
var ErrClosed = errors.New("ringchan: closed")

const (
	stateOk int32 = iota
	stateReadPending
	stateWritePending
	stateLock
)

// cachePad is sized to keep the write and read cursors on separate cache
// lines; both are hammered by a different goroutine each.
type cachePad [56]byte

// Ring is a bounded SPSC byte channel. The zero value is not usable; build
// one with New. A Ring must not be shared by more than one writer or more
// than one reader at a time.
type Ring struct {
	buf  []byte
	mask uint64
	cap  uint64

	writeSeq atomic.Uint64
	_        cachePad
	readSeq  atomic.Uint64
	_        cachePad

	state atomic.Int32

	readWake  chan struct{}
	writeWake chan struct{}

	closed atomic.Bool
}

// New builds a Ring over a freshly allocated buffer of the given capacity,
// which must be a power of two.
func New(capacity int) *Ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic(fmt.Sprintf("ringchan: capacity %d is not a positive power of two", capacity))
	}
	return &Ring{
		buf:       make([]byte, capacity),
		mask:      uint64(capacity - 1),
		cap:       uint64(capacity),
		readWake:  make(chan struct{}, 1),
		writeWake: make(chan struct{}, 1),
	}
}

func (r *Ring) readableLen() int {
	return int(r.writeSeq.Load() - r.readSeq.Load())
}

func (r *Ring) writableLen() int {
	return int(r.cap) - r.readableLen()
}

// wakeReader signals a blocked reader, but only if one has actually
// registered as pending; a reader that is not waiting gets no wakeup.
func (r *Ring) wakeReader() {
	if r.state.CompareAndSwap(stateReadPending, stateLock) {
		select {
		case r.readWake <- struct{}{}:
		default:
		}
		r.state.Store(stateOk)
	}
}

func (r *Ring) wakeWriter() {
	if r.state.CompareAndSwap(stateWritePending, stateLock) {
		select {
		case r.writeWake <- struct{}{}:
		default:
		}
		r.state.Store(stateOk)
	}
}

// waitReadable blocks until there is at least one unread byte, the channel
// is closed, or ctx is done.
func (r *Ring) waitReadable(ctx context.Context) error {
	for {
		if r.readableLen() > 0 || r.closed.Load() {
			return nil
		}
		if !r.state.CompareAndSwap(stateOk, stateReadPending) {
			// Lost a race with the lock byte (writer mid-wake); retry.
			continue
		}
		if r.readableLen() > 0 || r.closed.Load() {
			r.state.CompareAndSwap(stateReadPending, stateOk)
			return nil
		}
		select {
		case <-r.readWake:
		case <-ctx.Done():
			r.state.CompareAndSwap(stateReadPending, stateOk)
			return ctx.Err()
		}
	}
}

// waitWritable blocks until there is at least one free byte or ctx is done.
// A closed channel never becomes writable again.
func (r *Ring) waitWritable(ctx context.Context) error {
	for {
		if r.closed.Load() {
			return ErrClosed
		}
		if r.writableLen() > 0 {
			return nil
		}
		if !r.state.CompareAndSwap(stateOk, stateWritePending) {
			continue
		}
		if r.closed.Load() {
			r.state.CompareAndSwap(stateWritePending, stateOk)
			return ErrClosed
		}
		if r.writableLen() > 0 {
			r.state.CompareAndSwap(stateWritePending, stateOk)
			return nil
		}
		select {
		case <-r.writeWake:
		case <-ctx.Done():
			r.state.CompareAndSwap(stateWritePending, stateOk)
			return ctx.Err()
		}
	}
}

func (r *Ring) writeAt(offset uint64, data []byte) {
	start := int(offset & r.mask)
	n := copy(r.buf[start:], data)
	if n < len(data) {
		copy(r.buf, data[n:])
	}
}

// PutSlice copies all of data into the ring, blocking while the buffer is
// full. It returns the number of bytes written (always len(data) on a nil
// error) and ErrClosed if the channel is closed before all of data fits.
func (r *Ring) PutSlice(ctx context.Context, data []byte) (int, error) {
	written := 0
	for written < len(data) {
		if err := r.waitWritable(ctx); err != nil {
			return written, err
		}
		avail := r.writableLen()
		if avail == 0 {
			continue
		}
		n := len(data) - written
		if n > avail {
			n = avail
		}
		r.writeAt(r.writeSeq.Load(), data[written:written+n])
		r.writeSeq.Add(uint64(n))
		written += n
		r.wakeReader()
	}
	return written, nil
}

// Next blocks until at least one byte is readable and returns a zero-copy
// view over every currently unread byte. The returned Slice is only valid
// until the next call to Consume or PutSlice advances past it. Next
// returns io.EOF once the channel is closed and fully drained.
func (r *Ring) Next(ctx context.Context) (ring.Slice, error) {
	if err := r.waitReadable(ctx); err != nil {
		return ring.Empty(), err
	}
	n := r.readableLen()
	if n == 0 {
		return ring.Empty(), io.EOF
	}
	start := int(r.readSeq.Load() & r.mask)
	return ring.New(r.buf, start, n), nil
}

// Consume advances the read cursor by n bytes, which must be no more than
// the length of the Slice most recently returned by Next, and wakes a
// blocked writer if there is one.
func (r *Ring) Consume(n int) {
	if n == 0 {
		return
	}
	r.readSeq.Add(uint64(n))
	r.wakeWriter()
}

// Close marks the channel closed: PutSlice fails with ErrClosed from then
// on (bytes already buffered stay readable), and Next returns io.EOF once
// the buffer is empty. Close wakes both sides unconditionally, whether or not either was
// registered as pending.
func (r *Ring) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	select {
	case r.readWake <- struct{}{}:
	default:
	}
	select {
	case r.writeWake <- struct{}{}:
	default:
	}
	return nil
}

// Closed reports whether Close has been called.
func (r *Ring) Closed() bool { return r.closed.Load() }

// Cap returns the channel's fixed capacity.
func (r *Ring) Cap() int { return int(r.cap) }
