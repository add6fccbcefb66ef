package mcbinary

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/kvmesh/sidecar/internal/callback"
)

var (
	// ErrBadMagic is returned when a request packet's magic byte is not
	// MagicRequest.
	ErrBadMagic = errors.New("mcbinary: request magic must be 0x80")

	// ErrUnsupportedOpcode is returned for any opcode absent from the
	// property table.
	ErrUnsupportedOpcode = errors.New("mcbinary: unsupported opcode")
)

// Hasher computes the routing hash for a key.
type Hasher interface {
	Hash(key []byte) uint64
}

// Processor receives each HashedCommand a request decodes into, in wire
// order; last is true on the final command of a (possibly multi-key)
// logical request.
type Processor interface {
	Process(cmd *callback.HashedCommand, last bool)
}

// Decoder reads Memcached binary packets off a client connection and
// assembles them into routable HashedCommands, folding a multi-key
// batch -- a run of quiet-get packets terminated by a noop or a final
// non-quiet key -- into one logical request.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r *bufio.Reader) *Decoder {
	return &Decoder{r: r}
}

type packet struct {
	bytes []byte
	hdr   Header
	props OpProperties
}

// ParseRequest reads one logical request and dispatches its
// HashedCommands to proc in wire order.
func (d *Decoder) ParseRequest(hasher Hasher, proc Processor) error {
	first, err := d.readPacket()
	if err != nil {
		return err
	}

	if !(first.props.Category == CategoryGet && first.props.QuietGet) {
		cmd := buildCommand(first, hasher)
		proc.Process(cmd, true)
		return nil
	}

	batch := []packet{first}
	for {
		pkt, err := d.readPacket()
		if err != nil {
			return err
		}
		if pkt.hdr.Opcode == OpNoop {
			// The noop flushes the pipelined quiet gets and must reach
			// the backend even though noop is no-forward outside a
			// batch -- it is the signal that produces the final reply.
			pkt.props.NoForward = false
			batch = append(batch, pkt)
			break
		}
		batch = append(batch, pkt)
		if !(pkt.props.Category == CategoryGet && pkt.props.QuietGet) {
			break
		}
	}

	count := len(batch)
	for i, pkt := range batch {
		cmd := buildCommand(pkt, hasher)
		if i == 0 {
			cmd.Flags.MkeyFirst = true
			cmd.Flags.KeyCount = uint16(count)
		}
		proc.Process(cmd, i == count-1)
	}
	return nil
}

func buildCommand(pkt packet, hasher Hasher) *callback.HashedCommand {
	cmd := &callback.HashedCommand{Bytes: pkt.bytes}
	cmd.Flags.NoForward = pkt.props.NoForward
	cmd.Flags.Noreply = pkt.props.SentOnly
	cmd.Flags.Store = pkt.props.Category == CategoryStore
	if pkt.hdr.KeyLen > 0 {
		koff := HeaderLen + int(pkt.hdr.ExtraLen)
		key := pkt.bytes[koff : koff+int(pkt.hdr.KeyLen)]
		cmd.Hash = hasher.Hash(key)
	}
	return cmd
}

func (d *Decoder) readPacket() (packet, error) {
	head := make([]byte, HeaderLen)
	if _, err := io.ReadFull(d.r, head); err != nil {
		return packet{}, err
	}
	if head[PosMagic] != MagicRequest {
		return packet{}, ErrBadMagic
	}
	hdr := ParseHeader(head)
	props, ok := Lookup(hdr.Opcode)
	if !ok {
		if hdr.BodyLen() > 0 {
			io.CopyN(io.Discard, d.r, int64(hdr.BodyLen()))
		}
		return packet{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedOpcode, hdr.Opcode)
	}
	buf := make([]byte, hdr.PacketLen())
	copy(buf, head)
	if hdr.BodyLen() > 0 {
		if _, err := io.ReadFull(d.r, buf[HeaderLen:]); err != nil {
			return packet{}, err
		}
	}
	return packet{bytes: buf, hdr: hdr, props: props}, nil
}
