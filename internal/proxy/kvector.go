package proxy

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/kvmesh/sidecar/internal/controlplane"
	"github.com/kvmesh/sidecar/internal/distribution"
	"github.com/kvmesh/sidecar/internal/protocol/kvector"
	"github.com/kvmesh/sidecar/internal/protocol/mysqlbackend"
	"github.com/kvmesh/sidecar/internal/secrets"
	"github.com/kvmesh/sidecar/internal/sqlbuild"
	"github.com/kvmesh/sidecar/internal/telemetry/metric"
	"github.com/kvmesh/sidecar/internal/topology"
)

// Numeric MySQL column type codes (protocol::ColumnType) that render as
// a RESP integer rather than a bulk string.
const (
	mysqlTypeTiny     = 1
	mysqlTypeShort    = 2
	mysqlTypeLong     = 3
	mysqlTypeLongLong = 8
	mysqlTypeInt24    = 9
)

// KvectorHandler serves the KVector protocol by translating each
// request directly into a MySQL COM_QUERY round trip. Unlike the other
// four handlers it never touches respstream: mysqlbackend.Client
// already gives one request exactly one response per connection, so
// there is no multiplexing to do.
type KvectorHandler struct {
	router      *Router
	strategy    *topology.MonthlyVectorStrategy
	creds       *controlplane.CoreSource
	credLabel   string
	secretStore *secrets.Store
	dialTimeout time.Duration
	hasher      HasherAdapter
	metrics     *metric.Registry
	log         *slog.Logger

	mu      sync.Mutex
	clients map[string]*mysqlbackend.Client
}

// NewKvectorHandler builds a KvectorHandler. credLabel names the
// control-plane credential this namespace's MySQL shards authenticate
// with (internal/controlplane.CredentialUpdate.Label).
func NewKvectorHandler(router *Router, strategy *topology.MonthlyVectorStrategy, creds *controlplane.CoreSource, store *secrets.Store, credLabel string, dialTimeout time.Duration, metrics *metric.Registry, hasher distribution.Hasher, log *slog.Logger) *KvectorHandler {
	if log == nil {
		log = slog.Default()
	}
	return &KvectorHandler{
		router:      router,
		strategy:    strategy,
		creds:       creds,
		credLabel:   credLabel,
		secretStore: store,
		dialTimeout: dialTimeout,
		hasher:      HasherAdapter{Hasher: hasher},
		metrics:     metrics,
		log:         log,
		clients:     make(map[string]*mysqlbackend.Client),
	}
}

// HandleConn implements ConnHandler.
func (h *KvectorHandler) HandleConn(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	dec := kvector.NewDecoder(br)

	for {
		req, err := dec.ParseRequest(h.hasher)
		if err != nil {
			return
		}
		if err := h.handleRequest(bw, req); err != nil {
			h.log.Warn("kvector: connection error", "err", err)
			return
		}
		if err := bw.Flush(); err != nil {
			return
		}
	}
}

// handleRequest resolves req's shard under the table date the record it
// addresses falls under. The wire protocol carries no date of its own
// (an Open Question left by the distilled command set), so this
// resolves it to the current wall-clock month: every vector command
// in scope addresses data being written or read "now", not a
// historical backfill, which would need an explicit date argument the
// protocol does not have.
func (h *KvectorHandler) handleRequest(w *bufio.Writer, req sqlbuild.VectorRequest) error {
	req.TableDate = time.Now()
	year := req.TableDate.Year()

	shard, ok := h.router.ShardFor(req.Hash, year)
	if !ok {
		if h.metrics != nil {
			h.metrics.RecordRequest("kvector", "query", "no_shard")
		}
		return writeKvectorError(w, ErrNoShard)
	}

	start := time.Now()
	client, err := h.client(shard.Master.Addr)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordRequest("kvector", "query", "dial_error")
		}
		return writeKvectorError(w, err)
	}

	sql, err := sqlbuild.BuildVectorSQL(h.strategy, req)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordRequest("kvector", "query", "bad_request")
		}
		return writeKvectorError(w, err)
	}

	rs, err := client.Query(sql)
	if err != nil {
		h.forget(shard.Master.Addr)
		if h.metrics != nil {
			h.metrics.RecordRequest("kvector", "query", "backend_error")
		}
		return writeKvectorError(w, err)
	}

	if h.metrics != nil {
		h.metrics.RecordRequest("kvector", "query", "ok")
		h.metrics.ObserveRequestDuration("kvector", "query", time.Since(start).Seconds())
	}
	return writeKvectorResult(w, req.Cmd, rs)
}

func writeKvectorResult(w *bufio.Writer, cmd sqlbuild.VectorCommandType, rs mysqlbackend.ResultSet) error {
	switch cmd {
	case sqlbuild.VAdd, sqlbuild.VUpdate, sqlbuild.VDel:
		var affected int64
		if rs.OK != nil {
			affected = int64(rs.OK.AffectedRows)
		}
		return kvector.WriteAffectedRows(w, affected)
	default:
		columns := make([]string, len(rs.Columns))
		isInt := make([]bool, len(rs.Columns))
		for i, c := range rs.Columns {
			columns[i] = string(c.Name)
			isInt[i] = isIntegerColumn(c.Type)
		}
		rows := make([][]kvector.Value, len(rs.Rows))
		for i, row := range rs.Rows {
			values := make([]kvector.Value, len(row))
			for j, cell := range row {
				values[j] = cellValue(cell, isInt[j])
			}
			rows[i] = values
		}
		return kvector.WriteQueryResult(w, columns, rows)
	}
}

func isIntegerColumn(t byte) bool {
	switch t {
	case mysqlTypeTiny, mysqlTypeShort, mysqlTypeLong, mysqlTypeLongLong, mysqlTypeInt24:
		return true
	default:
		return false
	}
}

func cellValue(cell []byte, wantInt bool) kvector.Value {
	if !wantInt || cell == nil {
		return kvector.Value{Text: cell}
	}
	var n int64
	neg := false
	for i, b := range cell {
		if i == 0 && b == '-' {
			neg = true
			continue
		}
		if b < '0' || b > '9' {
			return kvector.Value{Text: cell}
		}
		n = n*10 + int64(b-'0')
	}
	if neg {
		n = -n
	}
	return kvector.Value{IsInt: true, Int: n}
}

func writeKvectorError(w *bufio.Writer, err error) error {
	_, werr := fmt.Fprintf(w, "-ERR %s\r\n", err.Error())
	return werr
}

// client returns addr's cached MySQL connection, dialing and
// authenticating a fresh one on first use or after a prior connection
// was dropped.
func (h *KvectorHandler) client(addr string) (*mysqlbackend.Client, error) {
	h.mu.Lock()
	if c, ok := h.clients[addr]; ok {
		h.mu.Unlock()
		return c, nil
	}
	h.mu.Unlock()

	cred, ok := h.creds.CredentialFor(h.credLabel)
	if !ok {
		return nil, fmt.Errorf("proxy: no mysql credential applied for label %q", h.credLabel)
	}
	user, password, err := h.secretStore.Decrypt(cred)
	if err != nil {
		return nil, fmt.Errorf("proxy: decrypt mysql credential: %w", err)
	}

	c, err := mysqlbackend.Dial(addr, h.dialTimeout, user, password, nil)
	if err != nil {
		return nil, fmt.Errorf("proxy: dial mysql backend %s: %w", addr, err)
	}

	h.mu.Lock()
	h.clients[addr] = c
	h.mu.Unlock()
	return c, nil
}

func (h *KvectorHandler) forget(addr string) {
	h.mu.Lock()
	c, ok := h.clients[addr]
	delete(h.clients, addr)
	h.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Close tears down every cached MySQL connection.
func (h *KvectorHandler) Close() error {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*mysqlbackend.Client)
	h.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
	return nil
}
