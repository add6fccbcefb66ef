package mcbinary

import "encoding/binary"

// HeaderLen is the fixed size of a Memcached binary packet header:
// magic, opcode, key length, extras length, data type, status/vbucket,
// total body length, opaque, and CAS.
const HeaderLen = 24

// Magic bytes distinguishing a request packet from a response packet.
const (
	MagicRequest  byte = 0x80
	MagicResponse byte = 0x81
)

// Header field byte offsets within the fixed 24-byte header.
const (
	PosMagic     = 0
	PosOpcode    = 1
	PosKeyLen    = 2 // 2 bytes, big-endian
	PosExtraLen  = 4
	PosDataType  = 5
	PosStatus    = 6 // 2 bytes, big-endian (request: vbucket id)
	PosTotalBody = 8 // 4 bytes, big-endian
	PosOpaque    = 12
	PosCas       = 16 // 8 bytes, big-endian
)

// Status codes carried in the status/vbucket field of a response header.
const (
	StatusNoError  uint16 = 0x0000
	StatusNotFound uint16 = 0x0001
)

// Opcodes referenced directly by dispatch and writeback logic, beyond
// what the property table covers by category.
const (
	OpGet        byte = 0x00
	OpSet        byte = 0x01
	OpAdd        byte = 0x02
	OpReplace    byte = 0x03
	OpDelete     byte = 0x04
	OpIncrement  byte = 0x05
	OpDecrement  byte = 0x06
	OpQuit       byte = 0x07
	OpFlush      byte = 0x08
	OpGetQ       byte = 0x09
	OpNoop       byte = 0x0a
	OpVersion    byte = 0x0b
	OpGetK       byte = 0x0c
	OpGetKQ      byte = 0x0d
	OpAppend     byte = 0x0e
	OpPrepend    byte = 0x0f
	OpStat       byte = 0x10
	OpSetQ       byte = 0x11
	OpAddQ       byte = 0x12
	OpReplaceQ   byte = 0x13
	OpDeleteQ    byte = 0x14
	OpIncrementQ byte = 0x15
	OpDecrementQ byte = 0x16
	OpQuitQ      byte = 0x17
	OpFlushQ     byte = 0x18
	OpAppendQ    byte = 0x19
	OpPrependQ   byte = 0x1a
	OpTouch      byte = 0x1c
	OpGAT        byte = 0x1d
	OpGATQ       byte = 0x1e
	OpGetsExt    byte = 0x48
	OpGetsQExt   byte = 0x49
)

// Header is a decoded view over a packet's fixed-size header fields. It
// does not copy the underlying bytes.
type Header struct {
	Magic     byte
	Opcode    byte
	KeyLen    uint16
	ExtraLen  byte
	DataType  byte
	Status    uint16 // request: vbucket id; response: status code
	TotalBody uint32
	Opaque    uint32
	Cas       uint64
}

// ParseHeader decodes the fixed header from the front of buf. buf must
// be at least HeaderLen bytes.
func ParseHeader(buf []byte) Header {
	return Header{
		Magic:     buf[PosMagic],
		Opcode:    buf[PosOpcode],
		KeyLen:    binary.BigEndian.Uint16(buf[PosKeyLen:]),
		ExtraLen:  buf[PosExtraLen],
		DataType:  buf[PosDataType],
		Status:    binary.BigEndian.Uint16(buf[PosStatus:]),
		TotalBody: binary.BigEndian.Uint32(buf[PosTotalBody:]),
		Opaque:    binary.BigEndian.Uint32(buf[PosOpaque:]),
		Cas:       binary.BigEndian.Uint64(buf[PosCas:]),
	}
}

// PutHeader writes h into the front of buf, which must be at least
// HeaderLen bytes.
func PutHeader(buf []byte, h Header) {
	buf[PosMagic] = h.Magic
	buf[PosOpcode] = h.Opcode
	binary.BigEndian.PutUint16(buf[PosKeyLen:], h.KeyLen)
	buf[PosExtraLen] = h.ExtraLen
	buf[PosDataType] = h.DataType
	binary.BigEndian.PutUint16(buf[PosStatus:], h.Status)
	binary.BigEndian.PutUint32(buf[PosTotalBody:], h.TotalBody)
	binary.BigEndian.PutUint32(buf[PosOpaque:], h.Opaque)
	binary.BigEndian.PutUint64(buf[PosCas:], h.Cas)
}

// BodyLen returns the number of bytes following the header, as declared
// by the header's total body length.
func (h Header) BodyLen() int {
	return int(h.TotalBody)
}

// PacketLen returns the full packet length: header plus body.
func (h Header) PacketLen() int {
	return HeaderLen + h.BodyLen()
}
