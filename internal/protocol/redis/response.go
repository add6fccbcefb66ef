package redis

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/kvmesh/sidecar/internal/callback"
	"github.com/kvmesh/sidecar/internal/respstream"
)

// ErrQuit signals the client issued a successful quit and the
// connection should be torn down after its response is flushed.
var ErrQuit = errors.New("redis: quit")

// ParseResponse reads exactly one backend response frame from data
// (starting at data[0]), returning its byte extent. Simple strings,
// errors, and integers end at the first CRLF; bulk strings consume
// their declared length plus CRLF; arrays recurse over their declared
// element count. Returns (0, io.ErrUnexpectedEOF)-shaped errors via
// ErrIncomplete when data doesn't yet hold a full frame.
var ErrIncomplete = errors.New("redis: incomplete response")

func ParseResponse(data []byte) (n int, err error) {
	return parseFrame(data, 0)
}

func parseFrame(data []byte, oft int) (int, error) {
	if oft >= len(data) {
		return 0, ErrIncomplete
	}
	switch data[oft] {
	case '+', '-', ':':
		end := indexCRLF(data, oft)
		if end < 0 {
			return 0, ErrIncomplete
		}
		return end + 2, nil
	case '$':
		end := indexCRLF(data, oft)
		if end < 0 {
			return 0, ErrIncomplete
		}
		n, err := parseDecimal(data[oft+1 : end])
		if err != nil {
			return 0, fmt.Errorf("%w: bad bulk length", ErrProtocol)
		}
		if n < 0 {
			return end + 2, nil
		}
		total := end + 2 + n + 2
		if total > len(data) {
			return 0, ErrIncomplete
		}
		return total, nil
	case '*':
		end := indexCRLF(data, oft)
		if end < 0 {
			return 0, ErrIncomplete
		}
		n, err := parseDecimal(data[oft+1 : end])
		if err != nil {
			return 0, fmt.Errorf("%w: bad array length", ErrProtocol)
		}
		cursor := end + 2
		for i := 0; i < n; i++ {
			next, err := parseFrame(data, cursor)
			if err != nil {
				return 0, err
			}
			cursor = next
		}
		return cursor, nil
	default:
		return 0, fmt.Errorf("%w: malformed response head %q", ErrProtocol, data[oft])
	}
}

func indexCRLF(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] == '\r' && data[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func parseDecimal(b []byte) (int, error) {
	neg := false
	if len(b) > 0 && b[0] == '-' {
		neg = true
		b = b[1:]
	}
	if len(b) == 0 {
		return 0, ErrProtocol
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, ErrProtocol
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

// isOK reports whether resp is a successful round trip that did not
// itself carry a Redis-level error reply ('-' prefixed) -- a bulk or
// array success response is just as "ok" as a simple-string one.
func isOK(resp *respstream.Response) bool {
	return resp != nil && resp.Err == nil && len(resp.Bytes) > 0 && resp.Bytes[0] != '-'
}

// WriteResponse writes the client-facing bytes for one HashedCommand,
// per §4.5.1: a non-multi command writes its response verbatim or a
// padding fallback; a multi-key command emits a bulk-count header once
// (on the first key, when the command needs one), then each key's
// response; when the command needs bulk accounting (NeedBulkNum), a
// non-ok response is replaced by the command's padding response.
func WriteResponse(w *bufio.Writer, cfg *CommandProperties, cmd *callback.HashedCommand, resp *respstream.Response) error {
	if !cfg.Multi {
		if resp != nil && resp.Err == nil {
			if _, err := w.Write(resp.Bytes); err != nil {
				return err
			}
		} else if _, err := w.WriteString(PaddingResponses[cfg.PaddingRsp]); err != nil {
			return err
		}
		if cfg.Quit {
			return ErrQuit
		}
		return nil
	}

	if !cmd.Flags.MkeyFirst && !cfg.NeedBulkNum {
		return nil
	}

	if cmd.Flags.MkeyFirst && cfg.NeedBulkNum {
		if _, err := fmt.Fprintf(w, "*%d\r\n", cmd.Flags.KeyCount); err != nil {
			return err
		}
	}

	if isOK(resp) || !cfg.NeedBulkNum {
		if resp != nil && resp.Err == nil {
			_, err := w.Write(resp.Bytes)
			return err
		}
	}

	_, err := w.WriteString(PaddingResponses[cfg.PaddingRsp])
	return err
}
