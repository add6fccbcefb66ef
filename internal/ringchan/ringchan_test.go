package ringchan

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestRoundTripSingleGoroutine(t *testing.T) {
	r := New(16)
	ctx := context.Background()

	if _, err := r.PutSlice(ctx, []byte("hello")); err != nil {
		t.Fatalf("PutSlice: %v", err)
	}
	s, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !s.Equal([]byte("hello")) {
		t.Fatalf("Next = %q, want hello", s.Bytes())
	}
	r.Consume(s.Len())
}

func TestRoundTripConcurrent(t *testing.T) {
	const capacity = 64
	const total = 100000

	r := New(capacity)
	ctx := context.Background()

	src := make([]byte, total)
	rand.New(rand.NewSource(42)).Read(src)

	errCh := make(chan error, 1)
	go func() {
		rng := rand.New(rand.NewSource(7))
		written := 0
		for written < total {
			chunk := 1 + rng.Intn(32)
			if written+chunk > total {
				chunk = total - written
			}
			n, err := r.PutSlice(ctx, src[written:written+chunk])
			if err != nil {
				errCh <- err
				return
			}
			written += n
		}
		r.Close()
		errCh <- nil
	}()

	got := make([]byte, 0, total)
	for len(got) < total {
		s, err := r.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		n := s.Len()
		if n > 7 {
			n = 7 // consume in small increments to exercise partial reads
		}
		got = append(got, s.Sub(0, n).Bytes()...)
		r.Consume(n)
	}

	if err := <-errCh; err != nil {
		t.Fatalf("writer: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(src))
	}
}

func TestPutSliceBlocksWhenFull(t *testing.T) {
	r := New(4)
	ctx := context.Background()

	if _, err := r.PutSlice(ctx, []byte("abcd")); err != nil {
		t.Fatalf("PutSlice: %v", err)
	}

	done := make(chan struct{})
	go func() {
		if _, err := r.PutSlice(ctx, []byte("e")); err != nil {
			t.Errorf("second PutSlice: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("PutSlice returned before any space was freed")
	case <-time.After(50 * time.Millisecond):
	}

	s, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	r.Consume(1)
	_ = s

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("writer never unblocked after space freed")
	}
}

func TestNextBlocksUntilWrite(t *testing.T) {
	r := New(8)
	ctx := context.Background()

	done := make(chan ring_result, 1)
	go func() {
		s, err := r.Next(ctx)
		done <- ring_result{n: s.Len(), err: err}
	}()

	select {
	case <-done:
		t.Fatalf("Next returned before any data was written")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := r.PutSlice(ctx, []byte("hi")); err != nil {
		t.Fatalf("PutSlice: %v", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("Next: %v", res.err)
		}
		if res.n != 2 {
			t.Fatalf("Next len = %d, want 2", res.n)
		}
	case <-time.After(time.Second):
		t.Fatalf("reader never unblocked after write")
	}
}

type ring_result struct {
	n   int
	err error
}

func TestCloseWakesBlockedReaderAndWriter(t *testing.T) {
	r := New(4)
	ctx := context.Background()

	readerDone := make(chan error, 1)
	go func() {
		_, err := r.Next(ctx)
		readerDone <- err
	}()

	if _, err := r.PutSlice(ctx, []byte("abcd")); err != nil {
		t.Fatalf("fill PutSlice: %v", err)
	}

	writerDone := make(chan error, 1)
	go func() {
		_, err := r.PutSlice(ctx, []byte("x"))
		writerDone <- err
	}()

	time.Sleep(20 * time.Millisecond)
	r.Close()

	select {
	case err := <-writerDone:
		if err != ErrClosed {
			t.Fatalf("writer err = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("writer never woke on close")
	}

	// The reader had 4 bytes ready before close, so it should succeed, not EOF.
	select {
	case err := <-readerDone:
		if err != nil {
			t.Fatalf("reader err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("reader never woke")
	}
}

func TestContextCancellation(t *testing.T) {
	r := New(4)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := r.Next(ctx); err == nil {
		t.Fatalf("expected context deadline error on empty channel")
	}
}
