// Package dnscache resolves and caches A records for backend hostnames on
// a periodic tick, publishing a copy-on-write snapshot that lookups read
// without ever blocking on a resolver.
//
// Hosts register via Register, which only enqueues a (host, notify-flag)
// pair — the actual host-set mutation happens on the single tick
// goroutine, so every field on a hostEntry is only ever written from that
// one goroutine and needs no locking of its own. The snapshot readers see
// is an atomic.Pointer swap, the same shape the teacher's TLS cert
// watcher uses for its COW reload.
package dnscache
