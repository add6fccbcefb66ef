package redis

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"github.com/kvmesh/sidecar/internal/callback"
)

// Protocol limits, mirrored from the teacher's redisserver codec.
const (
	MaxArrayLen  = 1024
	MaxBulkLen   = 512 * 1024
	MaxInlineLen = 4 * 1024
)

var (
	ErrProtocol      = errors.New("redis: protocol error")
	ErrLimitExceeded = errors.New("redis: limit exceeded")
	ErrUnsupported   = errors.New("redis: command not supported")
)

// Hasher computes the routing hash for a key.
type Hasher interface {
	Hash(key []byte) uint64
}

// Processor receives each HashedCommand a request parses into. last is
// true for the final (or only) command produced from one client
// request -- the point at which the caller may flush a response.
type Processor interface {
	Process(cmd *callback.HashedCommand, last bool)
}

// Decoder parses a stream of RESP requests. It keeps the two bits of
// state a swallowed command (master, hashkeyq, hashrandomq) leaves for
// the request that follows it.
type Decoder struct {
	r *bufio.Reader

	reservedHash   uint64
	hasReservedHash bool
	masterOnly     bool
}

func NewDecoder(r *bufio.Reader) *Decoder {
	return &Decoder{r: r}
}

// MasterOnly reports whether a prior "master" command pinned routing
// for this connection to the master replica only.
func (d *Decoder) MasterOnly() bool { return d.masterOnly }

// ParseRequest consumes exactly one client request (one RESP array or
// inline line), which may expand into several HashedCommand values for
// a multi-key command, and feeds each to proc.
func (d *Decoder) ParseRequest(hasher Hasher, proc Processor) error {
	tokens, err := readCommand(d.r)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	cfg, ok := Supported.Lookup(tokens[0])
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupported, tokens[0])
	}
	if !cfg.Validate(len(tokens)) {
		return fmt.Errorf("%w: wrong number of arguments for %q", ErrProtocol, cfg.Name)
	}

	if cfg.Swallowed {
		return d.applySwallowed(cfg, tokens, hasher)
	}

	if cfg.Multi {
		return d.parseMulti(cfg, tokens, hasher, proc)
	}

	hash, err := d.hashFor(cfg, tokens, hasher)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	writeArray(&buf, tokens)
	proc.Process(&callback.HashedCommand{
		Bytes: buf.Bytes(),
		Hash:  hash,
		Flags: callback.CommandFlags{
			NoForward: cfg.NoForward,
			PaddingRsp: cfg.PaddingRsp,
			Quit:      cfg.Quit,
		},
	}, true)
	return nil
}

// parseMulti expands a multi-key command (mget, mset, mincr, ...) into
// one HashedCommand per key, each sent to the backend under cfg.MName.
// The first carries MkeyFirst + the total key count.
func (d *Decoder) parseMulti(cfg *CommandProperties, tokens [][]byte, hasher Hasher, proc Processor) error {
	lastKey := cfg.LastKeyIndexFor(len(tokens))
	keyCount := 0
	for i := cfg.FirstKeyIndex; i <= lastKey; i += cfg.KeyStep {
		keyCount++
	}

	first := true
	idx := 0
	for i := cfg.FirstKeyIndex; i <= lastKey; i += cfg.KeyStep {
		key := tokens[i]
		var value []byte
		if cfg.HasVal && i+1 < len(tokens) {
			value = tokens[i+1]
		}

		var buf bytes.Buffer
		parts := [][]byte{[]byte(cfg.MName), key}
		if cfg.HasVal {
			parts = append(parts, value)
		}
		writeArray(&buf, parts)

		flags := callback.CommandFlags{
			NoForward:   cfg.NoForward,
			PaddingRsp:  cfg.PaddingRsp,
			NeedBulkNum: cfg.NeedBulkNum,
		}
		if first {
			flags.MkeyFirst = true
			flags.KeyCount = uint16(keyCount)
		}

		proc.Process(&callback.HashedCommand{
			Bytes: buf.Bytes(),
			Hash:  hasher.Hash(key),
			Flags: flags,
		}, idx == keyCount-1)

		first = false
		idx++
	}
	return nil
}

// applySwallowed handles master/hashkeyq/hashrandomq: they mutate
// per-connection state and are trimmed without reaching proc.
func (d *Decoder) applySwallowed(cfg *CommandProperties, tokens [][]byte, hasher Hasher) error {
	switch strings.ToLower(cfg.Name) {
	case "master":
		d.masterOnly = true
	case "hashkeyq":
		d.reservedHash = hasher.Hash(tokens[1])
		d.hasReservedHash = true
	case "hashrandomq":
		d.reservedHash = uint64(rand.Uint32())
		d.hasReservedHash = true
	}
	return nil
}

// hashFor resolves a non-multi command's hash, consuming and clearing
// any reserved hash a preceding swallowed command left behind.
func (d *Decoder) hashFor(cfg *CommandProperties, tokens [][]byte, hasher Hasher) (uint64, error) {
	if d.hasReservedHash {
		h := d.reservedHash
		d.hasReservedHash = false
		return h, nil
	}
	if !cfg.HasKey {
		return 0, nil
	}
	return hasher.Hash(tokens[cfg.FirstKeyIndex]), nil
}

func writeArray(buf *bytes.Buffer, parts [][]byte) {
	fmt.Fprintf(buf, "*%d\r\n", len(parts))
	for _, p := range parts {
		fmt.Fprintf(buf, "$%d\r\n", len(p))
		buf.Write(p)
		buf.WriteString("\r\n")
	}
}

func readCommand(r *bufio.Reader) ([][]byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}

	if b[0] != '*' {
		line, err := readLine(r, MaxInlineLen)
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return nil, nil
		}
		fields := strings.Fields(line)
		out := make([][]byte, 0, len(fields))
		for _, f := range fields {
			out = append(out, []byte(f))
		}
		return out, nil
	}
	return readArrayCommand(r)
}

func readArrayCommand(r *bufio.Reader) ([][]byte, error) {
	line, err := readLine(r, 64)
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[0] != '*' {
		return nil, fmt.Errorf("%w: expected array", ErrProtocol)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid array length", ErrProtocol)
	}
	if n <= 0 {
		return nil, nil
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		arg, err := readBulkString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func readBulkString(r *bufio.Reader) ([]byte, error) {
	line, err := readLine(r, 64)
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[0] != '$' {
		return nil, fmt.Errorf("%w: expected bulk string", ErrProtocol)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n > MaxBulkLen {
		return nil, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:len(buf)-2], nil
}

func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen {
				return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
			}
			continue
		}
		return "", err
	}
	if len(buf) > maxLen {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if len(buf) < 2 || !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(bytes.TrimSuffix(buf, []byte("\r\n"))), nil
}
