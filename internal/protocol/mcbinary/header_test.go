package mcbinary

import (
	"bytes"
	"testing"
)

func TestParseHeaderGetFoo(t *testing.T) {
	// GET "foo": magic 0x80, opcode 0x00, keylen 3, body "foo".
	pkt := []byte{
		0x80, 0x00, 0x00, 0x03,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x03,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		'f', 'o', 'o',
	}
	h := ParseHeader(pkt)
	if h.Magic != MagicRequest {
		t.Fatalf("Magic = %#x, want 0x80", h.Magic)
	}
	if h.Opcode != OpGet {
		t.Fatalf("Opcode = %#x, want OpGet", h.Opcode)
	}
	if h.KeyLen != 3 {
		t.Fatalf("KeyLen = %d, want 3", h.KeyLen)
	}
	if h.TotalBody != 3 {
		t.Fatalf("TotalBody = %d, want 3", h.TotalBody)
	}
	if h.PacketLen() != len(pkt) {
		t.Fatalf("PacketLen() = %d, want %d", h.PacketLen(), len(pkt))
	}
	if !bytes.Equal(pkt[HeaderLen:], []byte("foo")) {
		t.Fatalf("key bytes = %q", pkt[HeaderLen:])
	}
}

func TestPutHeaderRoundTrip(t *testing.T) {
	want := Header{
		Magic: MagicResponse, Opcode: OpGetK, KeyLen: 5, ExtraLen: 4,
		DataType: 0, Status: StatusNotFound, TotalBody: 9, Opaque: 7, Cas: 42,
	}
	buf := make([]byte, HeaderLen)
	PutHeader(buf, want)
	got := ParseHeader(buf)
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
