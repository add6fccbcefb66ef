package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/kvmesh/sidecar/internal/callback"
	"github.com/kvmesh/sidecar/internal/distribution"
	"github.com/kvmesh/sidecar/internal/protocol/redis"
	"github.com/kvmesh/sidecar/internal/respstream"
	"github.com/kvmesh/sidecar/internal/telemetry/metric"
)

// redisRetries bounds how many replicas a read may try before giving up
// and padding. Writes always go to the master and never retry here --
// redispatching a write risks a double apply.
const redisRetries = 2

// RedisHandler serves one client connection's worth of RESP traffic,
// decoding with redis.Decoder and dispatching each HashedCommand
// through a shared Backend.
type RedisHandler struct {
	disp   *dispatcher
	hasher HasherAdapter
	log    *slog.Logger
}

// NewRedisHandler builds a RedisHandler dispatching through router and
// backend.
func NewRedisHandler(router *Router, backend *Backend, metrics *metric.Registry, hasher distribution.Hasher, log *slog.Logger) *RedisHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RedisHandler{
		disp:   newDispatcher("redis", router, backend, metrics, log),
		hasher: HasherAdapter{Hasher: hasher},
		log:    log,
	}
}

// RedisFrameReader builds a FrameReader that grows its peek window
// exponentially until redis.ParseResponse stops reporting
// ErrIncomplete, per that function's documented contract.
func RedisFrameReader() FrameReader {
	return func(br *bufio.Reader) ([]byte, error) {
		for size := 512; ; size *= 2 {
			if size > maxRedisFrameProbe {
				return nil, redis.ErrLimitExceeded
			}
			peek, peekErr := br.Peek(size)
			if n, err := redis.ParseResponse(peek); err == nil {
				out := make([]byte, n)
				copy(out, peek[:n])
				if _, err := br.Discard(n); err != nil {
					return nil, err
				}
				return out, nil
			} else if !errors.Is(err, redis.ErrIncomplete) {
				return nil, err
			}
			if peekErr != nil {
				return nil, peekErr
			}
		}
	}
}

const maxRedisFrameProbe = 1 << 20

// HandleConn implements ConnHandler.
func (h *RedisHandler) HandleConn(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	dec := redis.NewDecoder(br)

	for {
		proc := &redisProcessor{handler: h, w: bw}
		err := dec.ParseRequest(h.hasher, proc)
		if err != nil {
			return
		}
		if proc.err != nil {
			h.log.Warn("redis: connection error", "err", proc.err)
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

// redisProcessor implements redis.Processor for one client request,
// which may expand into several HashedCommands for a multi-key
// command. multi tracks whether the command currently in flight is a
// multi-key one, standing in for redis.CommandProperties.Multi (which
// never leaves the redis package) using only the flags the codec
// already mirrors onto every HashedCommand.
type redisProcessor struct {
	handler *RedisHandler
	w       *bufio.Writer
	multi   bool
	quit    bool
	err     error
}

func (p *redisProcessor) Process(cmd *callback.HashedCommand, last bool) {
	if p.err != nil {
		return
	}
	if cmd.Flags.MkeyFirst {
		p.multi = true
	}

	var resp *respstream.Response
	if !cmd.Flags.NoForward {
		year := p.handler.disp.router.Year()
		resp = p.handler.disp.roundTrip(context.Background(), cmd, year, redisRetries, commandCategory(cmd))
	}

	if err := writeRedisResponse(p.w, cmd, resp, p.multi); err != nil {
		if errors.Is(err, redis.ErrQuit) {
			p.quit = true
		} else {
			p.err = err
		}
	}

	if last {
		p.multi = false
	}
}

// isRedisOK mirrors redis.isOK (unexported): a successful round trip
// that did not itself carry a Redis-level error reply.
func isRedisOK(resp *respstream.Response) bool {
	return resp != nil && resp.Err == nil && len(resp.Bytes) > 0 && resp.Bytes[0] != '-'
}

// writeRedisResponse reproduces redis.WriteResponse's branching using
// only the HashedCommand's flags (every field WriteResponse reads off
// *redis.CommandProperties is already mirrored there, via NeedBulkNum,
// PaddingRsp, and Quit) plus the caller-tracked multi flag standing in
// for cfg.Multi, which is not. This lets the proxy write responses
// without needing a *redis.CommandProperties to ever leave the redis
// package.
func writeRedisResponse(w *bufio.Writer, cmd *callback.HashedCommand, resp *respstream.Response, multi bool) error {
	if !multi {
		if resp != nil && resp.Err == nil {
			if _, err := w.Write(resp.Bytes); err != nil {
				return err
			}
		} else if _, err := w.WriteString(redis.PaddingResponses[cmd.Flags.PaddingRsp]); err != nil {
			return err
		}
		if cmd.Flags.Quit {
			return redis.ErrQuit
		}
		return nil
	}

	if !cmd.Flags.MkeyFirst && !cmd.Flags.NeedBulkNum {
		return nil
	}

	if cmd.Flags.MkeyFirst && cmd.Flags.NeedBulkNum {
		if _, err := fmt.Fprintf(w, "*%d\r\n", cmd.Flags.KeyCount); err != nil {
			return err
		}
	}

	if isRedisOK(resp) || !cmd.Flags.NeedBulkNum {
		if resp != nil && resp.Err == nil {
			_, err := w.Write(resp.Bytes)
			return err
		}
	}

	_, err := w.WriteString(redis.PaddingResponses[cmd.Flags.PaddingRsp])
	return err
}

// commandCategory labels a HashedCommand for metrics: a no-forward
// command the proxy resolves locally, a write routed to a shard's
// master, or an ordinary read.
func commandCategory(cmd *callback.HashedCommand) string {
	switch {
	case cmd.Flags.NoForward:
		return "meta"
	case cmd.Flags.Store:
		return "write"
	default:
		return "read"
	}
}
