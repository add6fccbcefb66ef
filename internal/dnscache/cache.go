package dnscache

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"
)

const (
	// tickInterval is how often the cache re-evaluates its host set.
	tickInterval = time.Second
	// chunkCount is how many equal buckets the host set is split into for
	// a chunk refresh; one bucket is refreshed per tick.
	chunkCount = 128
	// fullRefreshEveryTicks forces a full refresh sweep (of hosts with an
	// empty IP set) at this cadence even if the host count didn't grow.
	fullRefreshEveryTicks = 16
	// resolveTimeout bounds a single host's blocking resolution.
	resolveTimeout = 2 * time.Second
)

// registration is what Register enqueues; the tick loop is the only
// reader of the queue and the only writer of hostEntry state.
type registration struct {
	host string
	flag *atomic.Bool
}

// hostEntry is a cached host's resolver state. Every field is owned by
// the tick goroutine; Register only ever appends to the pending queue,
// never touches a hostEntry directly.
type hostEntry struct {
	host        string
	chunk       int
	ips         Ipv4Vec
	subscribers []*atomic.Bool
	notify      bool
}

// Cache is a periodic DNS resolution cache with copy-on-write snapshots.
// The zero value is not usable; build one with New.
type Cache struct {
	resolver Resolver
	log      *slog.Logger

	hosts     map[string]*hostEntry
	tickCount uint64

	pendingMu sync.Mutex
	pending   []registration

	snapshot atomic.Pointer[map[string]Ipv4Vec]
}

// Config configures a Cache. A zero Config is valid and uses the system
// resolver.
type Config struct {
	Resolver Resolver
	Logger   *slog.Logger
}

// New builds a Cache. Call Run to start its tick loop.
func New(cfg Config) *Cache {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = NewSystemResolver("127.0.0.1:53")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		resolver: resolver,
		log:      logger,
		hosts:    make(map[string]*hostEntry),
	}
	empty := map[string]Ipv4Vec{}
	c.snapshot.Store(&empty)
	return c
}

// Register enqueues host for resolution and arranges for flag to be set
// (release-store true) whenever host's resolved IP set changes. It never
// blocks and is safe to call from any goroutine, including before Run has
// processed any ticks yet.
func (c *Cache) Register(host string, flag *atomic.Bool) {
	c.pendingMu.Lock()
	c.pending = append(c.pending, registration{host: host, flag: flag})
	c.pendingMu.Unlock()
}

// LookupIPs passes the current cached address set for host to f, and
// reports whether host is known at all. It never blocks on resolution;
// f sees whatever the most recent snapshot published, possibly empty.
// The slice passed to f is only valid for the duration of the call.
func (c *Cache) LookupIPs(host string, f func(addrs []netip.Addr)) bool {
	snap := *c.snapshot.Load()
	v, ok := snap[host]
	if !ok {
		return false
	}
	if f != nil {
		f(v.Addrs())
	}
	return true
}

// Lookup returns the current cached address set for host and whether it
// is known at all — the common, allocation-light form most callers want.
func (c *Cache) Lookup(host string) (Ipv4Vec, bool) {
	snap := *c.snapshot.Load()
	v, ok := snap[host]
	return v, ok
}

// Len reports how many hostnames currently have a published snapshot
// entry, for status/metrics introspection. It never blocks.
func (c *Cache) Len() int {
	snap := *c.snapshot.Load()
	return len(snap)
}

// Run drives the tick loop until ctx is done.
func (c *Cache) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Cache) tick(ctx context.Context) {
	c.tickCount++
	grew := c.drainPending()

	var toRefresh []*hostEntry
	if grew || (c.tickCount%fullRefreshEveryTicks == 0 && c.anyEmpty()) {
		toRefresh = c.emptyHosts()
	} else {
		chunkIdx := int(c.tickCount % chunkCount)
		toRefresh = c.hostsInChunk(chunkIdx)
	}
	if len(toRefresh) == 0 {
		return
	}

	c.refresh(ctx, toRefresh)
	c.publishSnapshot()
	c.notifySubscribers()
}

// drainPending folds queued registrations into the host set and reports
// whether any new host was added.
func (c *Cache) drainPending() bool {
	c.pendingMu.Lock()
	batch := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	grew := false
	for _, reg := range batch {
		entry, ok := c.hosts[reg.host]
		if !ok {
			entry = &hostEntry{host: reg.host, chunk: hostChunk(reg.host)}
			c.hosts[reg.host] = entry
			grew = true
		}
		if reg.flag != nil {
			entry.subscribers = append(entry.subscribers, reg.flag)
		}
	}
	return grew
}

func hostChunk(host string) int {
	return int(murmur3.Sum32([]byte(host)) % chunkCount)
}

func (c *Cache) anyEmpty() bool {
	for _, e := range c.hosts {
		if e.ips.Empty() {
			return true
		}
	}
	return false
}

func (c *Cache) emptyHosts() []*hostEntry {
	var out []*hostEntry
	for _, e := range c.hosts {
		if e.ips.Empty() {
			out = append(out, e)
		}
	}
	return out
}

func (c *Cache) hostsInChunk(chunk int) []*hostEntry {
	var out []*hostEntry
	for _, e := range c.hosts {
		if e.chunk == chunk {
			out = append(out, e)
		}
	}
	return out
}

// refresh resolves every entry in batch concurrently (the "blocking
// worker" resolution spec.md describes), then applies each result back
// on this, the single tick goroutine, so hostEntry mutation never needs
// its own lock.
func (c *Cache) refresh(ctx context.Context, batch []*hostEntry) {
	type result struct {
		entry *hostEntry
		ips   Ipv4Vec
		err   error
	}
	results := make(chan result, len(batch))

	rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, e := range batch {
		wg.Add(1)
		go func(e *hostEntry) {
			defer wg.Done()
			addrs, err := c.resolver.Resolve(rctx, e.host)
			results <- result{entry: e, ips: NewIpv4Vec(addrs), err: err}
		}(e)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.err != nil {
			c.log.Warn("dnscache: resolve failed", "host", r.entry.host, "error", r.err)
			continue
		}
		if !r.entry.ips.Equal(r.ips) {
			r.entry.ips = r.ips
			r.entry.notify = true
		}
	}
}

func (c *Cache) publishSnapshot() {
	snap := make(map[string]Ipv4Vec, len(c.hosts))
	for host, e := range c.hosts {
		snap[host] = e.ips
	}
	c.snapshot.Store(&snap)
}

func (c *Cache) notifySubscribers() {
	for _, e := range c.hosts {
		if !e.notify {
			continue
		}
		for _, flag := range e.subscribers {
			flag.Store(true)
		}
		e.notify = false
	}
}
