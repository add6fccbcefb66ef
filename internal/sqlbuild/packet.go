package sqlbuild

import (
	"fmt"

	"github.com/kvmesh/sidecar/internal/protocol/mysqlwire"
)

// DefaultMaxAllowedPacket mirrors MySQL's own conservative default for
// max_allowed_packet; namespace config can override it per backend.
const DefaultMaxAllowedPacket = 64 * 1024 * 1024

// PacketBuilder accumulates a COM_QUERY payload behind a reserved 4-byte
// len24|seq8 header, filling the header in once the payload length is
// known. Sequence id is always 0: every SQL packet this proxy sends is a
// freshly issued command, never a continuation of a multi-packet
// exchange.
type PacketBuilder struct {
	buf              []byte
	maxAllowedPacket int
}

// NewPacketBuilder reserves room for estimatedLen bytes of payload plus
// the command byte and header. maxAllowedPacket <= 0 uses
// DefaultMaxAllowedPacket.
func NewPacketBuilder(estimatedLen int, maxAllowedPacket int) *PacketBuilder {
	if maxAllowedPacket <= 0 {
		maxAllowedPacket = DefaultMaxAllowedPacket
	}
	b := &PacketBuilder{maxAllowedPacket: maxAllowedPacket}
	b.buf = make([]byte, 4, 4+estimatedLen+1)
	return b
}

// WriteByte appends a single byte (io.ByteWriter).
func (b *PacketBuilder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// WriteString appends s verbatim -- callers must only pass template text
// or already-escaped/whitelisted bytes.
func (b *PacketBuilder) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// Write appends p verbatim (io.Writer).
func (b *PacketBuilder) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Len returns the number of payload bytes written so far (excluding the
// reserved header).
func (b *PacketBuilder) Len() int { return len(b.buf) - 4 }

// Finish fills in the len24|seq8 header and returns the complete packet.
// It fails if the payload exceeds maxAllowedPacket.
func (b *PacketBuilder) Finish() ([]byte, error) {
	payloadLen := len(b.buf) - 4
	if payloadLen > b.maxAllowedPacket {
		return nil, fmt.Errorf("sqlbuild: payload %d bytes exceeds max_allowed_packet %d", payloadLen, b.maxAllowedPacket)
	}
	mysqlwire.PutPacketHeader(b.buf[:4], payloadLen, 0)
	return b.buf, nil
}

// BuildQueryPacket wraps sql (already assembled as a COM_QUERY body
// without its leading command byte) into one framed packet.
func BuildQueryPacket(sql []byte, maxAllowedPacket int) ([]byte, error) {
	b := NewPacketBuilder(len(sql)+1, maxAllowedPacket)
	if err := b.WriteByte(byte(mysqlwire.ComQuery)); err != nil {
		return nil, err
	}
	if _, err := b.Write(sql); err != nil {
		return nil, err
	}
	return b.Finish()
}
