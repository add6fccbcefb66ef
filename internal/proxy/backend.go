package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/kvmesh/sidecar/internal/dnscache"
	"github.com/kvmesh/sidecar/internal/respstream"
	"github.com/kvmesh/sidecar/internal/telemetry/metric"
)

// FrameReader pulls exactly one backend response frame off br. It is
// the one piece of wire knowledge a Backend needs per protocol; the
// multiplexing, slot routing, and reconnection logic around it is
// entirely protocol-agnostic.
type FrameReader func(br *bufio.Reader) ([]byte, error)

// fifoSeqReader adapts a FrameReader to respstream.SeqReader by simply
// counting frames in read order. None of the text/binary backends this
// proxy dispatches to (memcached, redis, the message queue) reorder
// responses relative to the requests a single connection sent, so a
// monotonic counter is exactly as correct as parsing a real
// correlation field and considerably simpler; a backend that did
// reorder replies would need a SeqReader that actually decodes one.
type fifoSeqReader struct {
	read FrameReader
	next uint64
}

func newFIFOSeqReader(read FrameReader) *fifoSeqReader {
	return &fifoSeqReader{read: read, next: 1}
}

func (f *fifoSeqReader) ReadResponse(r io.Reader) (uint64, []byte, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	payload, err := f.read(br)
	if err != nil {
		return 0, nil, err
	}
	seq := f.next
	f.next++
	return seq, payload, nil
}

// Backend dials, multiplexes, and reconnects one respstream.Stream per
// backend address for a given protocol. Many client connections share
// one Stream (and so one TCP connection) per address; Stream.Submit /
// PollNext hand each client its own request/response slot.
type Backend struct {
	kind        string
	pool        *respstream.Pool
	dialTimeout time.Duration
	dns         *dnscache.Cache
	newReader   func() FrameReader
	metrics     *metric.Registry
	log         *slog.Logger

	mu      sync.Mutex
	dialing map[string]bool
	conns   map[string]net.Conn
}

// NewBackend builds a Backend for one protocol. slotsPerStream sizes
// every Stream's request-slot table (must be a power of two, see
// respstream.New); newReader builds a fresh FrameReader for each
// backend connection (a FrameReader is not safe to share across
// connections if it is stateful).
func NewBackend(kind string, slotsPerStream int, dialTimeout time.Duration, dns *dnscache.Cache, newReader func() FrameReader, metrics *metric.Registry, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		kind:        kind,
		pool:        respstream.NewPool(slotsPerStream, logger),
		dialTimeout: dialTimeout,
		dns:         dns,
		newReader:   newReader,
		metrics:     metrics,
		log:         logger,
		dialing:     make(map[string]bool),
		conns:       make(map[string]net.Conn),
	}
}

// Stream returns addr's multiplexed Stream, dialing it and launching
// its request/response tasks on first use.
func (b *Backend) Stream(ctx context.Context, addr string) (*respstream.Stream, error) {
	st := b.pool.Get(addr)

	b.mu.Lock()
	if b.dialing[addr] {
		b.mu.Unlock()
		return st, nil
	}
	b.dialing[addr] = true
	b.mu.Unlock()

	conn, err := b.dial(ctx, addr)
	if err != nil {
		b.mu.Lock()
		delete(b.dialing, addr)
		b.mu.Unlock()
		b.pool.Drop(addr)
		if b.metrics != nil {
			b.metrics.IncBackendDialFailure(b.kind)
		}
		return nil, fmt.Errorf("proxy: dial %s backend %s: %w", b.kind, addr, err)
	}

	b.mu.Lock()
	b.conns[addr] = conn
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.SetBackendConnectionsActive(b.kind, float64(len(b.conns)))
	}

	st.OnIdle(func() { b.forget(addr, conn) })

	go func() {
		if err := st.RequestTask(context.Background(), conn); err != nil {
			b.log.Warn("proxy: backend request task exited", "backend", b.kind, "addr", addr, "err", err)
		}
	}()
	go func() {
		br := bufio.NewReader(conn)
		reader := newFIFOSeqReader(b.newReader())
		if err := st.ResponseTask(context.Background(), br, reader); err != nil {
			b.log.Warn("proxy: backend response task exited", "backend", b.kind, "addr", addr, "err", err)
		}
	}()
	return st, nil
}

func (b *Backend) forget(addr string, conn net.Conn) {
	conn.Close()
	b.pool.Drop(addr)
	b.mu.Lock()
	delete(b.dialing, addr)
	delete(b.conns, addr)
	n := len(b.conns)
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.SetBackendConnectionsActive(b.kind, float64(n))
	}
}

func (b *Backend) dial(ctx context.Context, addr string) (net.Conn, error) {
	target := addr
	if b.dns != nil {
		if host, port, err := net.SplitHostPort(addr); err == nil {
			if ips, ok := b.dns.Lookup(host); ok && !ips.Empty() {
				target = net.JoinHostPort(ips.Addrs()[0].String(), port)
			}
		}
	}
	d := net.Dialer{Timeout: b.dialTimeout}
	return d.DialContext(ctx, "tcp", target)
}

// Close tears down every pooled backend connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	errs := make(map[string]error, len(b.conns))
	for addr, conn := range b.conns {
		errs[addr] = conn.Close()
	}
	b.mu.Unlock()
	return b.pool.CloseAll(errs)
}
