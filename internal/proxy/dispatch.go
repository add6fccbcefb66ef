package proxy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kvmesh/sidecar/internal/callback"
	"github.com/kvmesh/sidecar/internal/respstream"
	"github.com/kvmesh/sidecar/internal/telemetry/metric"
)

// dispatcher holds the pieces every protocol handler's round trip
// shares: where to send, how to pick a shard and replica, and where to
// report what happened.
type dispatcher struct {
	protocol string
	router   *Router
	backend  *Backend
	metrics  *metric.Registry
	log      *slog.Logger
}

func newDispatcher(protocol string, router *Router, backend *Backend, metrics *metric.Registry, log *slog.Logger) *dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &dispatcher{protocol: protocol, router: router, backend: backend, metrics: metrics, log: log}
}

// roundTrip drives cmd through a callback.Context to completion against
// the shard/replica Router resolves for it, and returns the backend's
// response (nil if none arrived, e.g. a fire-and-forget command or one
// that exhausted its retries). retries caps how many times a network
// failure redispatches to a different replica; 1 means no retry, and a
// write (always sent to the master) is never retried. method
// labels the metrics this round trip records.
func (d *dispatcher) roundTrip(ctx context.Context, cmd *callback.HashedCommand, year, retries int, method string) *respstream.Response {
	start := time.Now()
	shard, ok := d.router.ShardFor(cmd.Hash, year)
	if !ok {
		d.log.Warn("proxy: no shard for command", "protocol", d.protocol, "year", year)
		if d.metrics != nil {
			d.metrics.RecordRequest(d.protocol, method, "no_shard")
		}
		return nil
	}

	write := cmd.Flags.Store
	var quota callback.QuotaPenalizer
	if !write && shard.Slaves != nil {
		quota = shard.Slaves
	}

	var cc *callback.Context
	lastIdx := -1
	attempt := 0
	send := func(sctx context.Context, req *callback.HashedCommand) error {
		attempt++
		ep, idx := d.router.SelectEndpoint(shard, write, lastIdx)
		lastIdx = idx
		cc.SetEndpointIndex(idx)

		st, err := d.backend.Stream(sctx, ep.Addr)
		if err != nil {
			cc.OnErr(err)
			return nil
		}
		cid, release, err := acquireSlot(st)
		if err != nil {
			cc.OnErr(err)
			return nil
		}
		defer release()

		if err := st.Submit(cid, respstream.Request{Bytes: req.Bytes, Noreply: req.Flags.Noreply}); err != nil {
			cc.OnErr(err)
			return nil
		}
		if req.Flags.Noreply {
			cc.OnSent()
			return nil
		}
		resp, err := st.PollNext(sctx, cid)
		if err != nil {
			if !write && retries > 1 && attempt < retries {
				cc.MarkTryNext(true)
				if d.metrics != nil {
					d.metrics.IncRetry(d.protocol)
				}
			}
			cc.OnErr(err)
			return nil
		}
		if resp.Err != nil && !write && retries > 1 && attempt < retries {
			cc.MarkTryNext(true)
			if d.metrics != nil {
				d.metrics.IncRetry(d.protocol)
			}
		}
		cc.OnComplete(resp)
		return nil
	}

	cc = callback.New(cmd, callback.Options{
		MaxTries:        retries,
		RetryOnRspNotOk: true,
		Send:            send,
		Quota:           quota,
		Logger:          d.log,
	})

	if err := cc.Send(ctx); err != nil {
		cc.OnErr(err)
	}
	resp, _ := cc.TakeResponse()
	cc.Close()

	status := "ok"
	if resp == nil || resp.Err != nil {
		status = "error"
		if d.metrics != nil {
			d.metrics.IncPaddingResponse(d.protocol)
		}
	}
	if d.metrics != nil {
		d.metrics.RecordRequest(d.protocol, method, status)
		d.metrics.ObserveRequestDuration(d.protocol, method, time.Since(start).Seconds())
	}
	return resp
}

// slotPool hands out a free cid (0..n-1) per Stream so concurrent
// client connections sharing one backend Stream never collide on a
// slot. respstream.Stream itself is built with a fixed slot count and
// has no notion of which cids are "in use" versus merely idle; that
// bookkeeping belongs to whoever multiplexes client connections onto
// it, which here is this package.
type slotPool struct {
	free chan int
}

const slotsPerStream = 64

// acquireSlot reserves a free cid on st, blocking if every slot is
// currently in use by another client connection. The returned release
// func must be called exactly once to return the cid to the pool.
func acquireSlot(st *respstream.Stream) (int, func(), error) {
	sp := streamSlotPool(st)
	cid := <-sp.free
	return cid, func() { sp.free <- cid }, nil
}

var streamSlotPools sync.Map // *respstream.Stream -> *slotPool

func streamSlotPool(st *respstream.Stream) *slotPool {
	if v, ok := streamSlotPools.Load(st); ok {
		return v.(*slotPool)
	}
	sp := &slotPool{free: make(chan int, slotsPerStream)}
	for i := 0; i < slotsPerStream; i++ {
		sp.free <- i
	}
	actual, _ := streamSlotPools.LoadOrStore(st, sp)
	return actual.(*slotPool)
}
