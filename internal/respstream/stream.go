package respstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// MaxSlots is the largest request-slot table this package will build.
const MaxSlots = 256

// noreplyBatch bounds how many fire-and-forget requests the request-side
// task drains per pass before re-checking the pending bitmap.
const noreplyBatch = 32

// resetCooldown is how long the last exiting task waits before resetting
// slot statuses, to let any in-flight CAS from the other task settle
// before the table is reused by a reconnect.
const resetCooldown = 10 * time.Millisecond

var (
	// ErrClosed is returned by Submit once the stream has stopped
	// accepting new requests.
	ErrClosed = errors.New("respstream: closed")
	// ErrSlotBusy is returned by Submit if the addressed slot already has
	// a request in flight.
	ErrSlotBusy = errors.New("respstream: slot busy")
)

// SeqReader extracts one response frame at a time from a backend byte
// stream and reports the sequence number it answers.
type SeqReader interface {
	// ReadResponse blocks until a full frame is available, returning its
	// sequence number and payload bytes.
	ReadResponse(r io.Reader) (seq uint64, payload []byte, err error)
}

// Stream binds n client-facing request slots onto one backend connection.
// n must be a power of two no greater than MaxSlots.
type Stream struct {
	log *slog.Logger

	slots   []*Slot
	pending *bitmap
	noreply chan int
	work    chan struct{}

	seqCids []atomic.Int64
	seqMask uint64
	nextSeq atomic.Uint64

	closed  atomic.Bool
	done    atomic.Bool
	running atomic.Int32

	onIdle func() // invoked by the last exiting task after slot reset
}

// New builds a Stream with n request slots.
func New(n int, logger *slog.Logger) *Stream {
	if n <= 0 || n&(n-1) != 0 || n > MaxSlots {
		panic("respstream: slot count must be a power of two no greater than MaxSlots")
	}
	if logger == nil {
		logger = slog.Default()
	}
	st := &Stream{
		log:     logger,
		slots:   make([]*Slot, n),
		pending: newBitmap(n),
		noreply: make(chan int, n),
		work:    make(chan struct{}, 1),
		seqCids: make([]atomic.Int64, n),
		seqMask: uint64(n - 1),
	}
	for i := range st.slots {
		st.slots[i] = newSlot(i)
	}
	for i := range st.seqCids {
		st.seqCids[i].Store(-1)
	}
	return st
}

// OnIdle registers a callback invoked once, by whichever task exits last,
// after it has reset every slot back to StatusInit. Used by a supervisor
// to decide whether to reconnect.
func (st *Stream) OnIdle(fn func()) { st.onIdle = fn }

func (st *Stream) signalWork() {
	select {
	case st.work <- struct{}{}:
	default:
	}
}

// Submit hands a request to the slot for cid, moving it from Init (or a
// drained Responded) to Requesting. Noreply requests are additionally
// queued on the noreply channel so the request-side task can prioritize
// them in small batches ahead of the full bitmap scan.
func (st *Stream) Submit(cid int, req Request) error {
	if st.closed.Load() {
		return ErrClosed
	}
	slot := st.slots[cid]
	if !slot.status.CompareAndSwap(int32(StatusInit), int32(StatusRequesting)) &&
		!slot.status.CompareAndSwap(int32(StatusResponded), int32(StatusRequesting)) {
		return ErrSlotBusy
	}
	slot.req = req
	if req.Noreply {
		select {
		case st.noreply <- cid:
		default:
			// Noreply queue saturated; fall back to the bitmap so the
			// request still gets picked up, just without batch priority.
			st.pending.set(cid)
		}
	} else {
		st.pending.set(cid)
	}
	st.signalWork()
	return nil
}

// assignSeq binds the next backend sequence number to cid, recording it
// both on the slot (for the collision double-check) and in the seq→cid
// table (for routing).
func (st *Stream) assignSeq(cid int) uint64 {
	seq := st.nextSeq.Add(1)
	st.slots[cid].seq.Store(seq)
	st.seqCids[seq&st.seqMask].Store(int64(cid))
	return seq
}

// route resolves a response's sequence number back to the slot that
// issued it, double-checking against the slot's own recorded sequence in
// case of a seq-table collision (stale entry overwritten by a newer,
// unrelated request before this response arrived).
func (st *Stream) route(seq uint64) (*Slot, bool) {
	idx := seq & st.seqMask
	cid := st.seqCids[idx].Load()
	if cid < 0 {
		return nil, false
	}
	slot := st.slots[cid]
	if slot.seq.Load() != seq {
		return nil, false
	}
	return slot, true
}

// RequestTask drains pending requests and writes them to w. It runs until
// ctx is done or the stream is closed with nothing left to drain.
func (st *Stream) RequestTask(ctx context.Context, w io.Writer) error {
	st.running.Add(1)
	defer st.taskExit()

	for {
		drained := st.drainNoreply(w)
		drained = st.drainPending(w) || drained
		if drained {
			continue
		}
		if st.done.Load() {
			return nil
		}
		select {
		case <-st.work:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (st *Stream) drainNoreply(w io.Writer) bool {
	any := false
	for i := 0; i < noreplyBatch; i++ {
		select {
		case cid := <-st.noreply:
			st.sendSlot(w, cid)
			any = true
		default:
			return any
		}
	}
	return any
}

func (st *Stream) drainPending(w io.Writer) bool {
	idxs := st.pending.snapshotIndices()
	for _, cid := range idxs {
		st.pending.clear(cid)
		st.sendSlot(w, cid)
	}
	return len(idxs) > 0
}

func (st *Stream) sendSlot(w io.Writer, cid int) {
	slot := st.slots[cid]
	if slot.Status() != StatusRequesting {
		return
	}
	seq := st.assignSeq(cid)
	bytes := slot.req.Bytes
	if slot.req.Stamp != nil {
		bytes = slot.req.Stamp(seq, bytes)
	}
	_, err := w.Write(bytes)
	if err != nil {
		st.completeSlot(slot, nil, err)
		return
	}
	slot.status.Store(int32(StatusSent))
	if slot.req.Noreply {
		st.completeSlot(slot, nil, nil)
	}
}

// ResponseTask reads backend frames from r via reader, routes each one to
// its slot, and wakes the waiting connection. It runs until ctx is done,
// the stream is closed, or the backend read fails (which triggers
// ShutdownAll with that error).
func (st *Stream) ResponseTask(ctx context.Context, r io.Reader, reader SeqReader) error {
	st.running.Add(1)
	defer st.taskExit()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		seq, payload, err := reader.ReadResponse(r)
		if err != nil {
			st.ShutdownAll(err)
			return err
		}
		slot, ok := st.route(seq)
		if !ok {
			st.log.Warn("respstream: response for unknown or stale sequence", "seq", seq)
			continue
		}
		st.completeSlot(slot, payload, nil)
		if st.closed.Load() && !st.pending.any() {
			return nil
		}
	}
}

func (st *Stream) completeSlot(slot *Slot, payload []byte, err error) {
	slot.result.Store(&Response{Bytes: payload, Err: err})
	slot.status.Store(int32(StatusResponded))
	slot.notify()
}

// PollNext blocks until cid's slot has a response, then returns it and
// resets the slot back to StatusInit so it may be reused.
func (st *Stream) PollNext(ctx context.Context, cid int) (*Response, error) {
	slot := st.slots[cid]
	for {
		if slot.Status() == StatusResponded {
			res := slot.result.Load()
			slot.result.Store(nil)
			slot.status.Store(int32(StatusInit))
			return res, nil
		}
		if st.done.Load() {
			return nil, ErrClosed
		}
		select {
		case <-slot.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryClose stops Submit from accepting new requests but leaves already
// in-flight requests to drain normally.
func (st *Stream) TryClose() {
	st.closed.Store(true)
	st.signalWork()
}

// ShutdownAll marks the stream done, completes every non-responded slot
// with err, and wakes every waiter. Used when the backend connection is
// lost and nothing further can be drained.
func (st *Stream) ShutdownAll(err error) {
	st.closed.Store(true)
	st.done.Store(true)
	for _, slot := range st.slots {
		if slot.Status() != StatusResponded {
			st.completeSlot(slot, nil, err)
		}
	}
	st.signalWork()
}

func (st *Stream) taskExit() {
	if st.running.Add(-1) == 0 {
		go func() {
			time.Sleep(resetCooldown)
			for _, slot := range st.slots {
				slot.status.Store(int32(StatusInit))
				slot.result.Store(nil)
			}
			for i := range st.seqCids {
				st.seqCids[i].Store(-1)
			}
			if st.onIdle != nil {
				st.onIdle()
			}
		}()
	}
}

// Closed reports whether TryClose or ShutdownAll has been called.
func (st *Stream) Closed() bool { return st.closed.Load() }

// Done reports whether the stream has fully shut down.
func (st *Stream) Done() bool { return st.done.Load() }
