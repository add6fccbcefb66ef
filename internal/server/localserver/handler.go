// Package localserver provides the local management server.
package localserver

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/kvmesh/sidecar/internal/dnscache"
	"github.com/kvmesh/sidecar/internal/infra/shutdown"
	"github.com/kvmesh/sidecar/internal/topology"
)

// Handler handles local management commands: status inspection plus the
// three lifecycle verbs an operator drives through meshsidecarctl
// (shutdown/reload/drain) without needing API-key-authenticated access
// to internal/controlplane.
type Handler struct {
	startTime time.Time

	shards *topology.Shards
	dns    *dnscache.Cache

	shutdown *shutdown.Handler
	reload   func() error
	draining *atomic.Bool
}

// NewHandler creates a new Handler wired to the running process's
// topology table, DNS cache, and shutdown coordinator. reload is called
// to re-read the on-disk configuration; it may be nil if hot reload
// isn't wired up. draining is a flag shared with the protocol listeners:
// when set, they stop admitting new client connections but keep serving
// the ones already open.
func NewHandler(shards *topology.Shards, dns *dnscache.Cache, sh *shutdown.Handler, reload func() error, draining *atomic.Bool) *Handler {
	return &Handler{
		startTime: time.Now(),
		shards:    shards,
		dns:       dns,
		shutdown:  sh,
		reload:    reload,
		draining:  draining,
	}
}

// Execute executes a local management command.
func (h *Handler) Execute(w io.Writer, cmd string, args []string) error {
	switch cmd {
	case "status":
		return h.handleStatus(w)
	case "shutdown":
		return h.handleShutdown(w)
	case "reload":
		return h.handleReload(w)
	case "drain":
		return h.handleDrain(w)
	default:
		_, err := w.Write([]byte("unknown command: " + cmd + "\n"))
		return err
	}
}

func (h *Handler) handleStatus(w io.Writer) error {
	uptime := time.Since(h.startTime).Round(time.Second)
	shardLists := 0
	if h.shards != nil {
		shardLists = h.shards.ListCount()
	}
	dnsEntries := 0
	if h.dns != nil {
		dnsEntries = h.dns.Len()
	}
	draining := h.draining != nil && h.draining.Load()

	_, err := fmt.Fprintf(w, "uptime=%s shard_lists=%d dns_hosts=%d draining=%t\n",
		uptime, shardLists, dnsEntries, draining)
	return err
}

func (h *Handler) handleShutdown(w io.Writer) error {
	if h.shutdown != nil {
		h.shutdown.Trigger()
	}
	_, err := w.Write([]byte("shutdown triggered\n"))
	return err
}

func (h *Handler) handleReload(w io.Writer) error {
	if h.reload == nil {
		_, err := w.Write([]byte("reload not configured\n"))
		return err
	}
	if err := h.reload(); err != nil {
		_, werr := fmt.Fprintf(w, "reload failed: %v\n", err)
		if werr != nil {
			return werr
		}
		return nil
	}
	_, err := w.Write([]byte("reloaded\n"))
	return err
}

func (h *Handler) handleDrain(w io.Writer) error {
	if h.draining != nil {
		h.draining.Store(true)
	}
	_, err := w.Write([]byte("draining\n"))
	return err
}
