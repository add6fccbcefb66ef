package callback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kvmesh/sidecar/internal/respstream"
)

type fakeWaker struct{ woke atomic.Int32 }

func (w *fakeWaker) Wake() { w.woke.Add(1) }

type fakeQuota struct {
	mu    sync.Mutex
	calls []struct {
		idx    int
		charge time.Duration
	}
}

func (q *fakeQuota) Penalize(idx int, charge time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, struct {
		idx    int
		charge time.Duration
	}{idx, charge})
}

type fakeAttachment struct {
	lastOnCall bool
	dropped    atomic.Int32
}

func (a *fakeAttachment) Update(resp *respstream.Response) bool { return a.lastOnCall }
func (a *fakeAttachment) OnDrop()                               { a.dropped.Add(1) }

func newSendCounter() (SendFunc, *atomic.Int32) {
	var n atomic.Int32
	return func(ctx context.Context, req *HashedCommand) error {
		n.Add(1)
		return nil
	}, &n
}

func TestContextHappyPathNoRetry(t *testing.T) {
	send, calls := newSendCounter()
	waker := &fakeWaker{}
	req := &HashedCommand{Bytes: []byte("GET foo")}
	cc := New(req, Options{Send: send, Waker: waker, MaxTries: 3})

	if err := cc.Send(context.Background()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	cc.OnComplete(&respstream.Response{Bytes: []byte("bar")})

	if !cc.Done() {
		t.Fatalf("expected context done after ok response with no retry flags")
	}
	if waker.woke.Load() != 1 {
		t.Fatalf("expected waker woken once, got %d", waker.woke.Load())
	}
	resp, ok := cc.TakeResponse()
	if !ok || string(resp.Bytes) != "bar" {
		t.Fatalf("TakeResponse = %v,%v", resp, ok)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one send, got %d", calls.Load())
	}
	cc.Close()
}

func TestContextRetriesOnErrorWhenTryNextSet(t *testing.T) {
	send, calls := newSendCounter()
	req := &HashedCommand{Bytes: []byte("GET foo")}
	cc := New(req, Options{Send: send, MaxTries: 3, RetryOnRspNotOk: true})
	cc.MarkTryNext(true)

	cc.OnComplete(&respstream.Response{Err: errors.New("not ok")})
	if cc.Done() {
		t.Fatalf("expected retry, not done")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected redispatch fallback to call send once, got %d", calls.Load())
	}
}

func TestContextStopsRetryingAtMaxTries(t *testing.T) {
	send, calls := newSendCounter()
	req := &HashedCommand{Bytes: []byte("GET foo")}
	cc := New(req, Options{Send: send, MaxTries: 2, RetryOnRspNotOk: true})

	cc.MarkTryNext(true)
	cc.OnComplete(&respstream.Response{Err: errors.New("e1")}) // tries=1 < 2: retry
	if cc.Done() {
		t.Fatalf("expected still retrying after first failure")
	}

	cc.MarkTryNext(true)
	cc.OnComplete(&respstream.Response{Err: errors.New("e2")}) // tries=2, not < 2: stop
	if !cc.Done() {
		t.Fatalf("expected done once max tries exhausted")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one redispatch call (second failure settles), got %d", calls.Load())
	}
}

func TestContextNoRetryWhenResponseOk(t *testing.T) {
	send, calls := newSendCounter()
	req := &HashedCommand{Bytes: []byte("GET foo")}
	cc := New(req, Options{Send: send, MaxTries: 5, RetryOnRspNotOk: true})
	cc.MarkTryNext(true)

	cc.OnComplete(&respstream.Response{Bytes: []byte("ok")})
	if !cc.Done() {
		t.Fatalf("expected no retry on an ok response, even with tryNext set")
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no redispatch calls, got %d", calls.Load())
	}
}

func TestContextNoRetryWhenRetryOnRspNotOkFalse(t *testing.T) {
	req := &HashedCommand{Bytes: []byte("UPDATE")}
	cc := New(req, Options{MaxTries: 5, RetryOnRspNotOk: false})
	cc.MarkTryNext(true)

	cc.OnComplete(&respstream.Response{Err: errors.New("mysql err")})
	if !cc.Done() {
		t.Fatalf("expected done: MySQL-style errors propagate to client without retry")
	}
}

func TestContextAsyncModeRetriesOnWriteBack(t *testing.T) {
	send, calls := newSendCounter()
	req := &HashedCommand{Bytes: []byte("SET foo")}
	cc := New(req, Options{Send: send, AsyncMode: true, WriteBack: true, MaxTries: 3})

	cc.OnComplete(&respstream.Response{Bytes: []byte("ignored")})
	if cc.Done() {
		t.Fatalf("expected write-back retry to keep the context alive")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one redispatch for the write-back round, got %d", calls.Load())
	}
}

func TestContextAsyncModeSettlesWithoutWriteBack(t *testing.T) {
	req := &HashedCommand{Bytes: []byte("SET foo")}
	cc := New(req, Options{AsyncMode: true, WriteBack: false})
	cc.OnComplete(&respstream.Response{})
	if !cc.Done() {
		t.Fatalf("expected async completion without write-back to settle immediately")
	}
}

func TestContextAggregationAttachmentRequestsAnotherRound(t *testing.T) {
	send, calls := newSendCounter()
	att := &fakeAttachment{lastOnCall: false}
	req := &HashedCommand{Bytes: []byte("VRANGE foo")}
	cc := New(req, Options{Send: send, Attachment: att, MaxTries: 3})

	cc.OnComplete(&respstream.Response{Bytes: []byte("si-round")})
	if cc.Done() {
		t.Fatalf("expected another aggregation round, not done")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected redispatch for the next round, got %d", calls.Load())
	}
	if cc.Last() {
		t.Fatalf("expected last=false mid-aggregation")
	}
}

func TestContextAggregationAttachmentAcceptsFinalRound(t *testing.T) {
	att := &fakeAttachment{lastOnCall: true}
	req := &HashedCommand{Bytes: []byte("VRANGE foo")}
	cc := New(req, Options{Attachment: att})

	cc.OnComplete(&respstream.Response{Bytes: []byte("final")})
	if !cc.Done() {
		t.Fatalf("expected done on final aggregation round")
	}
	if !cc.Last() {
		t.Fatalf("expected last=true")
	}
	resp, ok := cc.TakeResponse()
	if !ok || string(resp.Bytes) != "final" {
		t.Fatalf("TakeResponse = %v,%v", resp, ok)
	}
	cc.Close()
	if att.dropped.Load() != 1 {
		t.Fatalf("expected attachment dropped exactly once, got %d", att.dropped.Load())
	}
}

func TestContextAggregationErrorAcceptsAndMarksLast(t *testing.T) {
	att := &fakeAttachment{lastOnCall: false}
	req := &HashedCommand{Bytes: []byte("VRANGE foo")}
	cc := New(req, Options{Attachment: att})

	cc.OnComplete(&respstream.Response{Err: errors.New("shard down")})
	if !cc.Done() || !cc.Last() {
		t.Fatalf("expected an errored aggregation round to settle immediately as last")
	}
}

func TestContextOnErrChargesQuotaAndRetries(t *testing.T) {
	send, calls := newSendCounter()
	quota := &fakeQuota{}
	req := &HashedCommand{Bytes: []byte("GET foo")}
	cc := New(req, Options{Send: send, Quota: quota, MaxTries: 3, RetryOnRspNotOk: true})
	cc.SetEndpointIndex(2)
	cc.MarkTryNext(true)

	cc.OnErr(errors.New("timeout"))

	if len(quota.calls) != 1 || quota.calls[0].idx != 2 {
		t.Fatalf("expected quota penalized at idx 2, got %v", quota.calls)
	}
	if quota.calls[0].charge < 500*time.Millisecond {
		t.Fatalf("expected at least 500ms penalty, got %v", quota.calls[0].charge)
	}
	if cc.Done() {
		t.Fatalf("expected retry after OnErr with tryNext set")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected redispatch once, got %d", calls.Load())
	}
}

func TestContextTakeResponseClearsWriteBackOnFailedTake(t *testing.T) {
	req := &HashedCommand{Bytes: []byte("SET foo")}
	cc := New(req, Options{AsyncMode: true, WriteBack: true})
	cc.OnComplete(&respstream.Response{}) // no attachment, not inited (async path)

	if _, ok := cc.TakeResponse(); ok {
		t.Fatalf("expected no response available to take in async mode")
	}
	cc.mu.Lock()
	wb := cc.writeBack
	cc.mu.Unlock()
	if wb {
		t.Fatalf("expected writeBack cleared after a failed TakeResponse")
	}
}

func TestContextOnSentNoreplyCompletesImmediately(t *testing.T) {
	req := &HashedCommand{Bytes: []byte("SET foo"), Flags: CommandFlags{Noreply: true}}
	waker := &fakeWaker{}
	cc := New(req, Options{Waker: waker})

	cc.OnSent()
	if !cc.Done() {
		t.Fatalf("expected noreply request to complete on OnSent")
	}
	if waker.woke.Load() != 1 {
		t.Fatalf("expected waker woken once, got %d", waker.woke.Load())
	}
}

func TestContextOnSentAwaitsResponseWhenNotNoreply(t *testing.T) {
	req := &HashedCommand{Bytes: []byte("GET foo")}
	cc := New(req, Options{})
	cc.OnSent()
	if cc.Done() {
		t.Fatalf("expected a non-noreply request to remain awaiting a response after OnSent")
	}
}

func TestContextClosePanicsBeforeDone(t *testing.T) {
	req := &HashedCommand{Bytes: []byte("GET foo")}
	cc := New(req, Options{})

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected Close to panic before done")
		}
	}()
	cc.Close()
}

func TestContextClosePanicsWithUnconsumedResponse(t *testing.T) {
	req := &HashedCommand{Bytes: []byte("GET foo")}
	cc := New(req, Options{})
	cc.OnComplete(&respstream.Response{Bytes: []byte("v")})

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected Close to panic with an unconsumed response")
		}
	}()
	cc.Close()
}

func TestContextIDIsUnique(t *testing.T) {
	a := New(&HashedCommand{}, Options{})
	b := New(&HashedCommand{}, Options{})
	if a.ID() == b.ID() {
		t.Fatalf("expected distinct correlation ids, got %s twice", a.ID())
	}
}
