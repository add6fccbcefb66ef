package proxy

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/kvmesh/sidecar/internal/callback"
	"github.com/kvmesh/sidecar/internal/distribution"
	"github.com/kvmesh/sidecar/internal/protocol/mq"
	"github.com/kvmesh/sidecar/internal/telemetry/metric"
)

// mqRetries: a get may retry once against another replica; sets and
// deletes always go to the master untried twice.
const mqRetries = 2

// MqHandler serves the message-queue text protocol: a restricted
// get/set/delete subset with no multi-key expansion, so every request
// line decodes into exactly one HashedCommand.
type MqHandler struct {
	disp    *dispatcher
	hasher  HasherAdapter
	metrics *metric.Registry
	log     *slog.Logger
}

// NewMqHandler builds an MqHandler.
func NewMqHandler(router *Router, backend *Backend, metrics *metric.Registry, hasher distribution.Hasher, log *slog.Logger) *MqHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MqHandler{
		disp:    newDispatcher("mq", router, backend, metrics, log),
		hasher:  HasherAdapter{Hasher: hasher},
		metrics: metrics,
		log:     log,
	}
}

// MqFrameReader reuses the memcached-text VALUE-block framing: a get
// hit is "VALUE <topic> <flags> <bytes>\r\n...\r\nEND\r\n", a miss is
// bare "END\r\n", and every other reply is one plain line, exactly the
// shape readMemcachedTextFrame already handles.
func MqFrameReader() FrameReader {
	return func(br *bufio.Reader) ([]byte, error) {
		return readMemcachedTextFrame(br)
	}
}

// HandleConn implements ConnHandler.
func (h *MqHandler) HandleConn(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	dec := mq.NewDecoder(br)

	for {
		proc := &mqProcessor{handler: h, w: bw}
		err := dec.ParseRequest(h.hasher, proc)
		if err != nil {
			return
		}
		if proc.err != nil {
			h.log.Warn("mq: connection error", "err", proc.err)
			return
		}
		if flushErr := bw.Flush(); flushErr != nil {
			return
		}
		if proc.quit {
			return
		}
	}
}

type mqProcessor struct {
	handler *MqHandler
	w       *bufio.Writer
	quit    bool
	err     error
}

func (p *mqProcessor) Process(cmd *callback.HashedCommand) {
	if p.err != nil {
		return
	}

	if cmd.Flags.NoForward {
		name, _ := firstToken(cmd.Bytes)
		cfg, _ := mq.Lookup(name)
		switch cfg.Type {
		case mq.ReqVersion:
			_, p.err = p.w.WriteString(mq.PaddingResponses[2])
		case mq.ReqStats:
			_, p.err = p.w.WriteString(mq.PaddingResponses[3])
		case mq.ReqQuit:
			p.quit = true
		}
		return
	}

	year := p.handler.disp.router.Year()
	resp := p.handler.disp.roundTrip(context.Background(), cmd, year, mqRetries, commandCategory(cmd))

	if cmd.Flags.Noreply {
		return
	}

	if resp == nil || resp.Err != nil {
		_, p.err = p.w.WriteString(mq.RespNotFound)
		return
	}

	if p.handler.metrics != nil {
		mq.ApplyLatencyMetric(resp.Bytes, time.Now(), p.handler.metrics)
	}
	_, p.err = p.w.Write(resp.Bytes)
}
