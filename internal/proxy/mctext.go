package proxy

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"

	"github.com/kvmesh/sidecar/internal/callback"
	"github.com/kvmesh/sidecar/internal/distribution"
	"github.com/kvmesh/sidecar/internal/protocol/mctext"
	"github.com/kvmesh/sidecar/internal/respstream"
	"github.com/kvmesh/sidecar/internal/telemetry/metric"
)

// mctextRetries: reads may retry once against another replica; stores
// and deletes always go to the master untried twice.
const mctextRetries = 2

// MctextHandler serves the Memcached text protocol, decoding with
// mctext.Decoder and aggregating per-key retrieval responses into the
// multi-get reply shape a client issuing "get k1 k2 k3" expects.
type MctextHandler struct {
	disp   *dispatcher
	hasher HasherAdapter
	log    *slog.Logger
}

// NewMctextHandler builds an MctextHandler.
func NewMctextHandler(router *Router, backend *Backend, metrics *metric.Registry, hasher distribution.Hasher, log *slog.Logger) *MctextHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MctextHandler{
		disp:   newDispatcher("mctext", router, backend, metrics, log),
		hasher: HasherAdapter{Hasher: hasher},
		log:    log,
	}
}

// MctextFrameReader reads one backend response: a plain line for
// everything but a retrieval hit, which is a "VALUE ...\r\n" header,
// its declared-length data block, and the terminating "END\r\n" read
// and returned together as that key's one frame.
func MctextFrameReader() FrameReader {
	return func(br *bufio.Reader) ([]byte, error) {
		return readMemcachedTextFrame(br)
	}
}

func readMemcachedTextFrame(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(line, []byte("VALUE ")) {
		return line, nil
	}
	fields := bytes.Fields(line)
	if len(fields) < 4 {
		return nil, fmt.Errorf("mctext: malformed VALUE line %q", line)
	}
	n, err := strconv.Atoi(string(fields[3]))
	if err != nil || n < 0 {
		return nil, fmt.Errorf("mctext: bad VALUE length in %q", line)
	}
	data := make([]byte, n+2)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, err
	}
	end, err := br.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(line)+len(data)+len(end))
	out = append(out, line...)
	out = append(out, data...)
	out = append(out, end...)
	return out, nil
}

// HandleConn implements ConnHandler.
func (h *MctextHandler) HandleConn(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	dec := mctext.NewDecoder(br)

	for {
		proc := &mctextProcessor{handler: h, w: bw}
		err := dec.ParseRequest(h.hasher, proc)
		if err != nil {
			return
		}
		if proc.err != nil {
			h.log.Warn("mctext: connection error", "err", proc.err)
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

// mctextProcessor implements mctext.Processor. A retrieval's per-key
// backend frames are forwarded verbatim (minus their trailing "END\r\n",
// which is stripped and re-emitted exactly once after the group's last
// key) so "get k1 k2" reads as one contiguous block ending in a single
// END, matching what the wire protocol expects from a multi-key get.
type mctextProcessor struct {
	handler *MctextHandler
	w       *bufio.Writer
	quit    bool
	err     error
}

func (p *mctextProcessor) Process(cmd *callback.HashedCommand, last bool) {
	if p.err != nil {
		return
	}

	if cmd.Flags.NoForward {
		name, _ := firstToken(cmd.Bytes)
		cfg, _ := mctext.Lookup(name)
		p.err = mctext.WriteFixed(p.w, cfg)
		if name == "quit" {
			p.quit = true
		}
		return
	}

	year := p.handler.disp.router.Year()
	resp := p.handler.disp.roundTrip(context.Background(), cmd, year, mctextRetries, commandCategory(cmd))

	if isRetrievalBytes(cmd.Bytes) {
		p.writeRetrieval(resp, last)
		return
	}

	if resp != nil && resp.Err == nil {
		_, p.err = p.w.Write(resp.Bytes)
		return
	}
	_, p.err = p.w.WriteString(mctext.RespError)
}

// writeRetrieval writes one key's worth of a get/gets group: a miss
// ("END\r\n") is dropped entirely, a hit has its trailing "END\r\n"
// stripped so the group's real END is written only once, at last.
func (p *mctextProcessor) writeRetrieval(resp *respstream.Response, last bool) {
	if resp != nil && resp.Err == nil && bytes.HasPrefix(resp.Bytes, []byte("VALUE ")) {
		body := bytes.TrimSuffix(resp.Bytes, []byte(mctext.RespEnd))
		if _, err := p.w.Write(body); err != nil {
			p.err = err
			return
		}
	}
	if last {
		_, p.err = p.w.WriteString(mctext.RespEnd)
	}
}

func isRetrievalBytes(b []byte) bool {
	return bytes.HasPrefix(b, []byte("get ")) || bytes.HasPrefix(b, []byte("gets "))
}

func firstToken(line []byte) (string, []byte) {
	i := bytes.IndexByte(line, ' ')
	if i < 0 {
		return string(bytes.TrimRight(line, "\r\n")), nil
	}
	return string(line[:i]), line[i+1:]
}
