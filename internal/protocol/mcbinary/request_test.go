package mcbinary

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/kvmesh/sidecar/internal/callback"
)

type fixedHasher struct{}

func (fixedHasher) Hash(key []byte) uint64 {
	h := uint64(0)
	for _, c := range key {
		h = h*31 + uint64(c)
	}
	return h
}

type collectingProcessor struct {
	cmds []*callback.HashedCommand
	last []bool
}

func (p *collectingProcessor) Process(cmd *callback.HashedCommand, last bool) {
	p.cmds = append(p.cmds, cmd)
	p.last = append(p.last, last)
}

func packetBytes(opcode byte, key []byte) []byte {
	body := len(key)
	buf := make([]byte, HeaderLen+body)
	PutHeader(buf, Header{Magic: MagicRequest, Opcode: opcode, KeyLen: uint16(len(key)), TotalBody: uint32(body)})
	copy(buf[HeaderLen:], key)
	return buf
}

func TestParseRequestSingleGet(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(packetBytes(OpGet, []byte("foo"))))
	d := NewDecoder(r)
	proc := &collectingProcessor{}

	if err := d.ParseRequest(fixedHasher{}, proc); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(proc.cmds) != 1 {
		t.Fatalf("len(cmds) = %d, want 1", len(proc.cmds))
	}
	if !proc.last[0] {
		t.Fatal("expected last=true for a single-key request")
	}
	if proc.cmds[0].Hash != (fixedHasher{}).Hash([]byte("foo")) {
		t.Fatal("hash mismatch")
	}
}

func TestParseRequestMultiGetTerminatedByNoop(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(packetBytes(OpGetKQ, []byte("a")))
	buf.Write(packetBytes(OpGetKQ, []byte("b")))
	buf.Write(packetBytes(OpNoop, nil))

	d := NewDecoder(bufio.NewReader(&buf))
	proc := &collectingProcessor{}
	if err := d.ParseRequest(fixedHasher{}, proc); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(proc.cmds) != 3 {
		t.Fatalf("len(cmds) = %d, want 3 (2 keys + terminating noop)", len(proc.cmds))
	}
	if !proc.cmds[0].Flags.MkeyFirst || proc.cmds[0].Flags.KeyCount != 3 {
		t.Fatalf("first command flags = %+v, want MkeyFirst with KeyCount 3", proc.cmds[0].Flags)
	}
	if proc.cmds[1].Flags.MkeyFirst {
		t.Fatal("second command should not carry MkeyFirst")
	}
	if !proc.last[2] || proc.last[0] || proc.last[1] {
		t.Fatal("expected last=true only on the terminating noop")
	}
	if proc.cmds[2].Flags.NoForward {
		t.Fatal("the batch-terminating noop must be forwarded, not resolved locally")
	}
}

func TestParseRequestMultiGetTerminatedByFinalKey(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(packetBytes(OpGetKQ, []byte("a")))
	buf.Write(packetBytes(OpGetK, []byte("b")))

	d := NewDecoder(bufio.NewReader(&buf))
	proc := &collectingProcessor{}
	if err := d.ParseRequest(fixedHasher{}, proc); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(proc.cmds) != 2 {
		t.Fatalf("len(cmds) = %d, want 2", len(proc.cmds))
	}
	if proc.cmds[0].Flags.KeyCount != 2 {
		t.Fatalf("KeyCount = %d, want 2", proc.cmds[0].Flags.KeyCount)
	}
	if !proc.last[1] {
		t.Fatal("expected last=true on the final non-quiet key")
	}
}

func TestParseRequestBadMagic(t *testing.T) {
	buf := packetBytes(OpGet, []byte("foo"))
	buf[0] = 0x81
	d := NewDecoder(bufio.NewReader(bytes.NewReader(buf)))
	if err := d.ParseRequest(fixedHasher{}, &collectingProcessor{}); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

func TestParseRequestUnsupportedOpcode(t *testing.T) {
	buf := packetBytes(0x20, nil)
	d := NewDecoder(bufio.NewReader(bytes.NewReader(buf)))
	if err := d.ParseRequest(fixedHasher{}, &collectingProcessor{}); !errors.Is(err, ErrUnsupportedOpcode) {
		t.Fatalf("err = %v, want ErrUnsupportedOpcode", err)
	}
}

func TestParseRequestQuietMutationIsNoreply(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(packetBytes(OpSetQ, []byte("k"))))
	d := NewDecoder(r)
	proc := &collectingProcessor{}
	if err := d.ParseRequest(fixedHasher{}, proc); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !proc.cmds[0].Flags.Noreply {
		t.Fatal("SETQ should be marked Noreply (sent-only)")
	}
	if !proc.cmds[0].Flags.Store {
		t.Fatal("SETQ should be marked Store")
	}
}
