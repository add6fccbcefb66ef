package callback

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kvmesh/sidecar/internal/respstream"
	"github.com/kvmesh/sidecar/internal/telemetry/tracer"
)

// SendFunc enqueues req to the currently-selected backend endpoint. It is
// supplied by the dispatch layer, which knows which shard/replica a
// Context's HashedCommand currently targets.
type SendFunc func(ctx context.Context, req *HashedCommand) error

// RedispatchFunc re-enters the generic send operation for a retry or a
// new aggregation round, recomputing (or reusing) the shard/endpoint
// selection for cc's current HashedCommand. Supplied by the dispatch
// layer; if nil, OnDone falls back to resending to the same endpoint via
// SendFunc.
type RedispatchFunc func(cc *Context) error

// Options configures a new Context. Only Send is required; everything
// else defaults to the zero value appropriate for a simple, non-retrying,
// non-aggregating, synchronous request.
type Options struct {
	MaxTries        int
	RetryOnRspNotOk bool
	AsyncMode       bool
	WriteBack       bool
	First           bool
	Last            bool

	Send       SendFunc
	Redispatch RedispatchFunc
	Waker      Waker
	Quota      QuotaPenalizer
	Attachment Attachment
	Logger     *slog.Logger
}

var entropy = ulid.Monotonic(rand.Reader, 0)
var entropyMu sync.Mutex

func newID() ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// entropy reader is crypto/rand; a failure here means the
		// process can't generate randomness at all.
		panic(fmt.Sprintf("callback: ulid generation failed: %v", err))
	}
	return id
}

// Context is the per-request state machine described in package doc. One
// is created per logical client request and driven by the dispatch and
// backend-response paths until it reaches done.
type Context struct {
	id  ulid.ULID
	log *slog.Logger

	req *HashedCommand

	send       SendFunc
	redispatch RedispatchFunc
	waker      Waker
	quota      QuotaPenalizer
	attachment Attachment

	endpointIdx atomic.Int64 // set by dispatch before Send; consulted by OnErr

	startedAt time.Time

	// mu guards the bookkeeping fields below, mutated only from within
	// the single completion call (OnComplete/OnErr/OnSent) active for
	// this Context at any given time, but read from TakeResponse/Close
	// which may run on a different goroutine.
	mu              sync.Mutex
	tries           int
	maxTries        int
	tryNext         bool
	retryOnRspNotOk bool
	writeBack       bool
	asyncMode       bool
	first           bool
	last            bool
	hasResp         bool
	lastErr         error

	done   atomic.Bool
	inited atomic.Bool
	resp   atomic.Pointer[respstream.Response]

	dropOnce sync.Once
}

// New creates a Context for req, to be driven through Send/OnComplete/OnErr
// by the connection that owns it.
func New(req *HashedCommand, opts Options) *Context {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	maxTries := opts.MaxTries
	if maxTries <= 0 {
		maxTries = 1
	}
	return &Context{
		id:              newID(),
		log:             log,
		req:             req,
		send:            opts.Send,
		redispatch:      opts.Redispatch,
		waker:           opts.Waker,
		quota:           opts.Quota,
		attachment:      opts.Attachment,
		startedAt:       time.Now(),
		maxTries:        maxTries,
		retryOnRspNotOk: opts.RetryOnRspNotOk,
		writeBack:       opts.WriteBack,
		asyncMode:       opts.AsyncMode,
		first:           opts.First,
		last:            opts.Last,
	}
}

// ID is the request's correlation id, suitable for log correlation across
// the dispatch and backend-response paths.
func (c *Context) ID() string { return c.id.String() }

// Command returns the HashedCommand this context is driving.
func (c *Context) Command() *HashedCommand { return c.req }

// First reports whether this context is the first key of a multi-key
// batch (used by response writing to decide whether to emit bulk framing).
func (c *Context) First() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.first
}

// Last reports whether this context is the last round of a (possibly
// multi-round aggregation) request.
func (c *Context) Last() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// SetEndpointIndex records which replica index the current dispatch sent
// to, so a subsequent OnErr can charge the right replica's quota.
func (c *Context) SetEndpointIndex(idx int) {
	c.endpointIdx.Store(int64(idx))
}

// Elapsed is how long this context has been in flight.
func (c *Context) Elapsed() time.Duration { return time.Since(c.startedAt) }

// Done reports whether the context has completed and no further
// send/retry will occur.
func (c *Context) Done() bool { return c.done.Load() }

// Send enqueues the request to the backend via the configured SendFunc.
func (c *Context) Send(ctx context.Context) error {
	spanCtx, span := tracer.StartSpan(ctx, "callback.send")
	defer span.End()
	if c.send == nil {
		return fmt.Errorf("callback: Send called without a SendFunc")
	}
	if err := c.send(spanCtx, c.req); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// OnSent reacts to the request having been written to the backend. A
// fire-and-forget (noreply) request completes immediately; anything else
// stays awaiting a response.
func (c *Context) OnSent() {
	if !c.req.Flags.Noreply {
		return
	}
	c.done.Store(true)
	c.wake()
}

// OnComplete is the hot path: a backend response has arrived for the
// request's current round.
func (c *Context) OnComplete(resp *respstream.Response) {
	c.mu.Lock()
	async := c.asyncMode
	hasAttachment := c.attachment != nil
	c.mu.Unlock()

	if async {
		c.mu.Lock()
		c.hasResp = true
		c.lastErr = resp.Err
		c.mu.Unlock()
		c.onDone()
		return
	}

	if hasAttachment {
		c.onCompleteAggregate(resp)
		c.onDone()
		return
	}

	c.acceptResponse(resp)
	c.mu.Lock()
	c.hasResp = true
	c.lastErr = resp.Err
	c.mu.Unlock()
	c.onDone()
}

// onCompleteAggregate drives a multi-round aggregation plan's attachment.
func (c *Context) onCompleteAggregate(resp *respstream.Response) {
	c.mu.Lock()
	c.hasResp = true
	c.lastErr = resp.Err
	c.mu.Unlock()

	if resp.Err == nil {
		last := c.attachment.Update(resp)
		c.mu.Lock()
		if last {
			c.last = true
			c.mu.Unlock()
			c.acceptResponse(resp)
			return
		}
		c.tries = 0
		c.tryNext = true
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.last = true
	c.mu.Unlock()
	c.acceptResponse(resp)
}

// OnErr reacts to a backend I/O or protocol error: the replica that was
// tried is charged at least a 500ms quota penalty, then the request
// proceeds through the same retry decision as a completed response.
func (c *Context) OnErr(err error) {
	if c.quota != nil {
		charge := 500 * time.Millisecond
		c.quota.Penalize(int(c.endpointIdx.Load()), charge)
	}
	c.mu.Lock()
	c.hasResp = true
	c.lastErr = err
	c.mu.Unlock()
	c.onDone()
}

// onDone decides, per needGone, whether to re-enter send for a retry or
// settle the context as finished and wake the owning connection.
func (c *Context) onDone() {
	if c.needGone() {
		if err := c.goon(); err != nil {
			c.log.Error("callback: redispatch failed", "id", c.ID(), "error", err)
			c.done.Store(true)
			c.wake()
		}
		return
	}
	c.done.Store(true)
	c.wake()
}

// goon re-enters the generic send operation for a retry or a new
// aggregation round.
func (c *Context) goon() error {
	if c.redispatch != nil {
		return c.redispatch(c)
	}
	if c.send == nil {
		return fmt.Errorf("callback: retry requested but no Redispatch or Send configured")
	}
	return c.send(context.Background(), c.req)
}

// needGone implements the retry-eligibility rule: in synchronous mode, a
// response that arrived ok never retries; one that arrived not-ok only
// retries if RetryOnRspNotOk is set; otherwise retry iff tryNext is set
// and the post-incremented try counter is still under the budget. In
// async (write-back) mode, retry iff writeBack is set.
func (c *Context) needGone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.asyncMode {
		return c.writeBack
	}
	// The arrived-ok / arrived-not-ok shortcuts only govern ordinary
	// (non-aggregating) requests. Aggregation rounds drive retry purely
	// through tryNext, since an "ok" SI or timeline response is exactly
	// what triggers wanting another round.
	if c.attachment == nil && c.hasResp {
		if c.lastErr == nil {
			return false
		}
		if !c.retryOnRspNotOk {
			return false
		}
	}
	if !c.tryNext {
		return false
	}
	c.tries++
	return c.tries < c.maxTries
}

// MarkTryNext sets whether a failed attempt may be retried; needGone
// still caps the number of tries at MaxTries. internal/proxy's
// dispatcher sets it after a failed read attempt that has budget left.
func (c *Context) MarkTryNext(v bool) {
	c.mu.Lock()
	c.tryNext = v
	c.mu.Unlock()
}

func (c *Context) acceptResponse(resp *respstream.Response) {
	c.resp.Store(resp)
	c.inited.Store(true)
}

// TakeResponse transfers ownership of the completed response to the
// caller via a compare-and-swap on the inited flag. A failed take (the
// response was already taken, or none exists) clears writeBack so a
// stale write-back round cannot be triggered against a response nobody
// will see.
func (c *Context) TakeResponse() (*respstream.Response, bool) {
	if !c.inited.CompareAndSwap(true, false) {
		c.mu.Lock()
		c.writeBack = false
		c.mu.Unlock()
		return nil, false
	}
	return c.resp.Load(), true
}

func (c *Context) wake() {
	if c.waker != nil {
		c.waker.Wake()
	}
}

// Close releases the context. done must already be true and the response
// slot must already be empty (taken or deliberately abandoned); violating
// either is a programming error in the owning connection loop, not a
// runtime condition, so Close panics the same way the rest of this
// codebase treats invariant breaks as fatal. The attachment's drop hook,
// if any, runs exactly once.
func (c *Context) Close() {
	if !c.done.Load() {
		c.log.Error("FATAL: callback context closed before done", "id", c.ID())
		panic(fmt.Sprintf("callback: Close called before done for request %s", c.ID()))
	}
	if c.inited.Load() {
		c.log.Error("FATAL: callback context closed with unconsumed response", "id", c.ID())
		panic(fmt.Sprintf("callback: Close called with response not taken for request %s", c.ID()))
	}
	c.dropOnce.Do(func() {
		if c.attachment != nil {
			c.attachment.OnDrop()
		}
	})
}
