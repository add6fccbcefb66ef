package mctext

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
	// ErrUnknownCommand is returned for a first token the command table
	// does not recognize.
	ErrUnknownCommand = errors.New("mctext: unknown command")

	// ErrMalformed is returned for a request line missing required
	// tokens, or a storage value block that doesn't match its declared
	// length.
	ErrMalformed = errors.New("mctext: malformed request")

	// ErrNoKeys is returned for a get/gets line naming no keys.
	ErrNoKeys = errors.New("mctext: no keys given")
)

// Hasher computes the routing hash for a key.
type Hasher interface {
	Hash(key []byte) uint64
}

// Processor receives each HashedCommand a request line decodes into,
// in wire order; last is true on the final command of a (possibly
// multi-key) logical request.
type Processor interface {
	Process(cmd *callback.HashedCommand, last bool)
}

// Decoder reads Memcached text protocol lines off a client connection.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r *bufio.Reader) *Decoder {
	return &Decoder{r: r}
}

// ParseRequest reads one logical request line (and, for storage
// commands, the value block that follows it) and dispatches its
// HashedCommands to proc in wire order.
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

	switch cfg.Kind {
	case KindMeta:
		cmd := &callback.HashedCommand{Bytes: append(append([]byte{}, line...), "\r\n"...)}
		cmd.Flags.NoForward = true
		cmd.Flags.PaddingRsp = 0
		proc.Process(cmd, true)
		return nil

	case KindRetrieval:
		return d.parseRetrieval(name, tokens, line, hasher, proc)

	case KindStorage:
		return d.parseStorage(name, tokens, line, hasher, proc)

	case KindDelete, KindArith, KindTouch:
		return d.parseKeyed(tokens, line, hasher, proc)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

func (d *Decoder) parseRetrieval(name string, tokens [][]byte, line []byte, hasher Hasher, proc Processor) error {
	keys := tokens[1:]
	if len(keys) == 0 {
		return ErrNoKeys
	}
	noreply := false
	count := len(keys)
	for i, key := range keys {
		bytesLine := []byte(name + " " + string(key) + "\r\n")
		cmd := &callback.HashedCommand{Bytes: bytesLine, Hash: hasher.Hash(key)}
		cmd.Flags.Noreply = noreply
		if i == 0 && count > 1 {
			cmd.Flags.MkeyFirst = true
			cmd.Flags.KeyCount = uint16(count)
		}
		proc.Process(cmd, i == count-1)
	}
	return nil
}

func (d *Decoder) parseKeyed(tokens [][]byte, line []byte, hasher Hasher, proc Processor) error {
	if len(tokens) < 2 {
		return fmt.Errorf("%w: missing key", ErrMalformed)
	}
	key := tokens[1]
	cmd := &callback.HashedCommand{
		Bytes: append(append([]byte{}, line...), "\r\n"...),
		Hash:  hasher.Hash(key),
	}
	cmd.Flags.Store = true
	cmd.Flags.Noreply = len(tokens) > 0 && string(tokens[len(tokens)-1]) == "noreply"
	proc.Process(cmd, true)
	return nil
}

// parseStorage implements set/add/replace/append/prepend/cas:
// "<cmd> <key> <flags> <exptime> <bytes> [cas unique] [noreply]\r\n"
// followed by exactly <bytes> bytes of data and a trailing "\r\n".
func (d *Decoder) parseStorage(name string, tokens [][]byte, line []byte, hasher Hasher, proc Processor) error {
	minTokens := 5
	if name == "cas" {
		minTokens = 6
	}
	if len(tokens) < minTokens {
		return fmt.Errorf("%w: %s requires at least %d tokens", ErrMalformed, name, minTokens)
	}
	key := tokens[1]
	byteLenIdx := 4
	valueLen, err := strconv.Atoi(string(tokens[byteLenIdx]))
	if err != nil || valueLen < 0 {
		return fmt.Errorf("%w: bad byte count", ErrMalformed)
	}
	noreply := string(tokens[len(tokens)-1]) == "noreply"

	value := make([]byte, valueLen+2) // +2 for the trailing CRLF
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
	proc.Process(cmd, true)
	return nil
}

// readLine reads one CRLF-terminated line, returning it without the
// terminator.
func (d *Decoder) readLine() ([]byte, error) {
	line, err := d.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}
