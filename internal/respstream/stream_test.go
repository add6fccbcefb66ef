package respstream

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"
)

// echoReader is a SeqReader for a trivial test wire format: an 8-byte
// big-endian sequence number followed by a 4-byte big-endian length and
// that many payload bytes.
type echoReader struct{}

func (echoReader) ReadResponse(r io.Reader) (uint64, []byte, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	seq := binary.BigEndian.Uint64(hdr[0:8])
	n := binary.BigEndian.Uint32(hdr[8:12])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return seq, payload, nil
}

// stampSeq writes the assigned sequence into the first 8 bytes of a
// pre-allocated request buffer, mimicking an opaque/correlation field.
func stampSeq(seq uint64, b []byte) []byte {
	binary.BigEndian.PutUint64(b[0:8], seq)
	return b
}

// loopbackBackend echoes each incoming stamped-seq request back with a
// length-prefixed payload built from the tail of the request.
func loopbackBackend(t *testing.T, conn net.Conn) {
	t.Helper()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		req := buf[:n]
		if len(req) < 8 {
			continue
		}
		seq := req[:8]
		payload := req[8:]
		var out []byte
		out = append(out, seq...)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		out = append(out, lenBuf[:]...)
		out = append(out, payload...)
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func newTestStream(t *testing.T, n int) (*Stream, net.Conn) {
	t.Helper()
	clientSide, backendSide := net.Pipe()
	st := New(n, nil)

	go loopbackBackend(t, backendSide)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go st.RequestTask(ctx, clientSide)
	go st.ResponseTask(ctx, clientSide, echoReader{})

	t.Cleanup(func() {
		clientSide.Close()
		backendSide.Close()
	})
	return st, clientSide
}

func buildRequest(payload string, noreply bool) Request {
	buf := make([]byte, 8+len(payload))
	copy(buf[8:], payload)
	return Request{Bytes: buf, Noreply: noreply, Stamp: stampSeq}
}

func TestSubmitAndPollSingleSlot(t *testing.T) {
	st, _ := newTestStream(t, 4)

	if err := st.Submit(0, buildRequest("hello", false)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := st.PollNext(ctx, 0)
	if err != nil {
		t.Fatalf("PollNext: %v", err)
	}
	if string(resp.Bytes) != "hello" {
		t.Fatalf("resp = %q, want hello", resp.Bytes)
	}
}

func TestSubmitManySlotsConcurrently(t *testing.T) {
	const n = 8
	st, _ := newTestStream(t, n)

	results := make(chan error, n)
	for cid := 0; cid < n; cid++ {
		cid := cid
		go func() {
			payload := string(rune('a' + cid))
			if err := st.Submit(cid, buildRequest(payload, false)); err != nil {
				results <- err
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			resp, err := st.PollNext(ctx, cid)
			if err != nil {
				results <- err
				return
			}
			if string(resp.Bytes) != payload {
				results <- io.ErrUnexpectedEOF
				return
			}
			results <- nil
		}()
	}

	for i := 0; i < n; i++ {
		if err := <-results; err != nil {
			t.Fatalf("slot failed: %v", err)
		}
	}
}

func TestNoreplyCompletesWithoutBackendRoundTrip(t *testing.T) {
	st := New(4, nil)
	clientSide, backendSide := net.Pipe()
	defer clientSide.Close()
	defer backendSide.Close()

	// Drain the backend side so writes don't block, but never reply.
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := backendSide.Read(buf); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go st.RequestTask(ctx, clientSide)

	if err := st.Submit(0, buildRequest("fire-and-forget", true)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	pollCtx, pollCancel := context.WithTimeout(context.Background(), time.Second)
	defer pollCancel()
	resp, err := st.PollNext(pollCtx, 0)
	if err != nil {
		t.Fatalf("PollNext: %v", err)
	}
	if resp.Err != nil {
		t.Fatalf("resp.Err = %v", resp.Err)
	}
}

func TestSlotBusyRejectsDoubleSubmit(t *testing.T) {
	st := New(2, nil)
	req := buildRequest("x", false)
	if err := st.Submit(0, req); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := st.Submit(0, req); err != ErrSlotBusy {
		t.Fatalf("second Submit err = %v, want ErrSlotBusy", err)
	}
}

func TestShutdownAllCompletesOutstandingSlots(t *testing.T) {
	st := New(2, nil)
	if err := st.Submit(0, buildRequest("pending", false)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	wantErr := io.ErrClosedPipe
	st.ShutdownAll(wantErr)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := st.PollNext(ctx, 0)
	if err != nil {
		t.Fatalf("PollNext: %v", err)
	}
	if resp.Err != wantErr {
		t.Fatalf("resp.Err = %v, want %v", resp.Err, wantErr)
	}
	if !st.Done() {
		t.Fatalf("expected stream marked done")
	}
}

func TestPoolGetIsStableAndDrop(t *testing.T) {
	p := NewPool(4, nil)
	a := p.Get("backend-1")
	b := p.Get("backend-1")
	if a != b {
		t.Fatalf("expected same *Stream for the same address")
	}
	if p.Count() != 1 {
		t.Fatalf("Count = %d, want 1", p.Count())
	}
	p.Drop("backend-1")
	if p.Count() != 0 {
		t.Fatalf("Count after Drop = %d, want 0", p.Count())
	}
}

func TestPoolCloseAllAggregatesErrors(t *testing.T) {
	p := NewPool(4, nil)
	p.Get("backend-1")
	p.Get("backend-2")

	err := p.CloseAll(map[string]error{
		"backend-1": io.ErrClosedPipe,
		"backend-2": io.ErrUnexpectedEOF,
	})
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
}
