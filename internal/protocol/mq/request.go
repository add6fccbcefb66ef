package mq

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/kvmesh/sidecar/internal/callback"
)

var (
	// ErrUnknownCommand is returned for a first token outside the
	// restricted get/set/delete/version/stats/quit set.
	ErrUnknownCommand = errors.New("mq: unknown command")

	// ErrMalformed is returned when a command's token count doesn't
	// match its expected shape exactly, or a multi-key get is attempted.
	ErrMalformed = errors.New("mq: malformed request")
)

// Hasher computes the routing hash for a key.
type Hasher interface {
	Hash(key []byte) uint64
}

// Processor receives the single HashedCommand a request line decodes
// into -- this protocol never expands into more than one command.
type Processor interface {
	Process(cmd *callback.HashedCommand)
}

// Decoder reads message-queue text protocol lines off a client
// connection.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r *bufio.Reader) *Decoder {
	return &Decoder{r: r}
}

// ParseRequest reads one request line (and, for set, the value block
// that follows it) and dispatches its HashedCommand to proc.
func (d *Decoder) ParseRequest(hasher Hasher, proc Processor) error {
	line, err := d.readLine()
	if err != nil {
		return err
	}
	tokens := bytes.Fields(line)
	if len(tokens) == 0 {
		return fmt.Errorf("%w: empty line", ErrMalformed)
	}
	name := string(bytes.ToLower(tokens[0]))
	cfg, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	switch cfg.Type {
	case ReqQuit, ReqStats, ReqVersion:
		if len(tokens) != 1 {
			return fmt.Errorf("%w: %s takes no arguments", ErrMalformed, name)
		}
		cmd := &callback.HashedCommand{Bytes: append(append([]byte{}, line...), "\r\n"...)}
		cmd.Flags.NoForward = true
		proc.Process(cmd)
		return nil

	case ReqGet:
		if len(tokens) != 2 {
			return fmt.Errorf("%w: get accepts exactly one key", ErrMalformed)
		}
		key := tokens[1]
		cmd := &callback.HashedCommand{
			Bytes: append(append([]byte{}, line...), "\r\n"...),
			Hash:  hasher.Hash(key),
		}
		proc.Process(cmd)
		return nil

	case ReqDelete:
		if len(tokens) < 2 || len(tokens) > 3 {
			return fmt.Errorf("%w: delete takes a key and an optional noreply", ErrMalformed)
		}
		noreply := len(tokens) == 3
		if noreply && string(tokens[2]) != "noreply" {
			return fmt.Errorf("%w: unexpected trailing token", ErrMalformed)
		}
		key := tokens[1]
		cmd := &callback.HashedCommand{
			Bytes: append(append([]byte{}, line...), "\r\n"...),
			Hash:  hasher.Hash(key),
		}
		cmd.Flags.Store = true
		cmd.Flags.Noreply = noreply
		proc.Process(cmd)
		return nil

	case ReqSet:
		return d.parseSet(tokens, line, hasher, proc)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

// parseSet implements "set <key> <flags> <exptime> <bytes> [noreply]"
// followed by exactly <bytes> bytes of data and a trailing CRLF.
func (d *Decoder) parseSet(tokens [][]byte, line []byte, hasher Hasher, proc Processor) error {
	if len(tokens) < 5 || len(tokens) > 6 {
		return fmt.Errorf("%w: set requires key, flags, exptime, bytes[, noreply]", ErrMalformed)
	}
	noreply := len(tokens) == 6
	if noreply && string(tokens[5]) != "noreply" {
		return fmt.Errorf("%w: unexpected trailing token", ErrMalformed)
	}
	key := tokens[1]
	valueLen, err := strconv.Atoi(string(tokens[4]))
	if err != nil || valueLen < 0 {
		return fmt.Errorf("%w: bad byte count", ErrMalformed)
	}

	value := make([]byte, valueLen+2)
	if _, err := io.ReadFull(d.r, value); err != nil {
		return err
	}
	if value[valueLen] != '\r' || value[valueLen+1] != '\n' {
		return fmt.Errorf("%w: value block missing trailing CRLF", ErrMalformed)
	}

	full := make([]byte, 0, len(line)+2+len(value))
	full = append(full, line...)
	full = append(full, '\r', '\n')
	full = append(full, value...)

	cmd := &callback.HashedCommand{Bytes: full, Hash: hasher.Hash(key)}
	cmd.Flags.Store = true
	cmd.Flags.Noreply = noreply
	proc.Process(cmd)
	return nil
}

func (d *Decoder) readLine() ([]byte, error) {
	line, err := d.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}
