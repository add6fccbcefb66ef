package proxy

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"

	"github.com/kvmesh/sidecar/internal/callback"
	"github.com/kvmesh/sidecar/internal/distribution"
	"github.com/kvmesh/sidecar/internal/protocol/mcbinary"
	"github.com/kvmesh/sidecar/internal/telemetry/metric"
)

// mcbinaryRetries: a get may retry once against another replica.
const mcbinaryRetries = 2

// McbinaryHandler serves the Memcached binary protocol.
type McbinaryHandler struct {
	disp   *dispatcher
	hasher HasherAdapter
	log    *slog.Logger
}

// NewMcbinaryHandler builds an McbinaryHandler.
func NewMcbinaryHandler(router *Router, backend *Backend, metrics *metric.Registry, hasher distribution.Hasher, log *slog.Logger) *McbinaryHandler {
	if log == nil {
		log = slog.Default()
	}
	return &McbinaryHandler{
		disp:   newDispatcher("mcbinary", router, backend, metrics, log),
		hasher: HasherAdapter{Hasher: hasher},
		log:    log,
	}
}

// McbinaryFrameReader reads one 24-byte header plus its declared body
// length, which fully describes a binary packet's extent in either
// direction.
func McbinaryFrameReader() FrameReader {
	return func(br *bufio.Reader) ([]byte, error) {
		head := make([]byte, mcbinary.HeaderLen)
		if _, err := io.ReadFull(br, head); err != nil {
			return nil, err
		}
		hdr := mcbinary.ParseHeader(head)
		buf := make([]byte, hdr.PacketLen())
		copy(buf, head)
		if hdr.BodyLen() > 0 {
			if _, err := io.ReadFull(br, buf[mcbinary.HeaderLen:]); err != nil {
				return nil, err
			}
		}
		return buf, nil
	}
}

// HandleConn implements ConnHandler.
func (h *McbinaryHandler) HandleConn(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	dec := mcbinary.NewDecoder(br)

	for {
		proc := &mcbinaryProcessor{handler: h, w: bw}
		err := dec.ParseRequest(h.hasher, proc)
		if err != nil {
			return
		}
		if proc.err != nil {
			h.log.Warn("mcbinary: connection error", "err", proc.err)
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

type mcbinaryProcessor struct {
	handler *McbinaryHandler
	w       *bufio.Writer
	quit    bool
	err     error
}

func (p *mcbinaryProcessor) Process(cmd *callback.HashedCommand, last bool) {
	if p.err != nil {
		return
	}

	op := cmd.Bytes[mcbinary.PosOpcode]

	// The noop that flushes a quiet-get batch always carries its own
	// reply, whether or not the decoder forwarded it: every key ahead
	// of it in the batch has already been round-tripped and answered
	// individually below, so there is nothing left for a real backend
	// round trip to add.
	if op == mcbinary.OpNoop {
		_, p.err = p.w.Write(localOKResponse(cmd.Bytes))
		return
	}

	if cmd.Flags.NoForward {
		_, p.err = p.w.Write(localOKResponse(cmd.Bytes))
		if op == mcbinary.OpQuit || op == mcbinary.OpQuitQ {
			p.quit = true
		}
		return
	}

	quietGet := isQuietGetOpcode(op)
	if quietGet {
		// Rewrite to the non-quiet opcode so the backend always answers
		// exactly once per request, matching the multiplexing Stream's
		// strict one-response-per-submission model; the quiet
		// suppress-on-miss behavior is re-applied below when writing
		// back to the client.
		cmd.Reshape(rewriteQuietGet(cmd.Bytes, op))
	}

	year := p.handler.disp.router.Year()
	resp := p.handler.disp.roundTrip(context.Background(), cmd, year, mcbinaryRetries, commandCategory(cmd))

	if cmd.Flags.Noreply {
		return
	}

	if resp == nil || resp.Err != nil {
		_, p.err = p.w.Write(mcbinary.BuildMissResponse(op, mcbinary.ParseHeader(cmd.Bytes).Opaque))
		return
	}

	if quietGet && mcbinary.ResponseStatus(resp.Bytes) == mcbinary.StatusNotFound {
		return
	}
	_, p.err = p.w.Write(resp.Bytes)
}

func isQuietGetOpcode(op byte) bool {
	return op == mcbinary.OpGetQ || op == mcbinary.OpGetKQ || op == mcbinary.OpGATQ
}

func rewriteQuietGet(bytes []byte, op byte) []byte {
	var newOp byte
	switch op {
	case mcbinary.OpGetQ:
		newOp = mcbinary.OpGet
	case mcbinary.OpGetKQ:
		newOp = mcbinary.OpGetK
	case mcbinary.OpGATQ:
		newOp = mcbinary.OpGAT
	default:
		return bytes
	}
	out := make([]byte, len(bytes))
	copy(out, bytes)
	out[mcbinary.PosOpcode] = newOp
	return out
}

// localOKResponse builds a header-only, status-OK response echoing
// req's opcode, opaque, and CAS -- the shape every no-forward meta
// opcode (quit, flush, noop, version, stat) and the batch-terminal noop
// reply to with.
func localOKResponse(req []byte) []byte {
	hdr := mcbinary.ParseHeader(req)
	resp := make([]byte, mcbinary.HeaderLen)
	mcbinary.PutHeader(resp, mcbinary.Header{
		Magic:  mcbinary.MagicResponse,
		Opcode: hdr.Opcode,
		Status: mcbinary.StatusNoError,
		Opaque: hdr.Opaque,
		Cas:    hdr.Cas,
	})
	return resp
}
