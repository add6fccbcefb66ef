package mctext

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

func TestParseRequestGetSingleKey(t *testing.T) {
	d := NewDecoder(bufio.NewReader(bytes.NewReader([]byte("get foo\r\n"))))
	proc := &collectingProcessor{}
	if err := d.ParseRequest(fixedHasher{}, proc); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(proc.cmds) != 1 {
		t.Fatalf("len(cmds) = %d, want 1", len(proc.cmds))
	}
	if string(proc.cmds[0].Bytes) != "get foo\r\n" {
		t.Fatalf("bytes = %q", proc.cmds[0].Bytes)
	}
	if !proc.last[0] {
		t.Fatal("expected last=true")
	}
	if proc.cmds[0].Flags.MkeyFirst {
		t.Fatal("single-key get should not carry MkeyFirst")
	}
}

func TestParseRequestGetMultiKey(t *testing.T) {
	d := NewDecoder(bufio.NewReader(bytes.NewReader([]byte("get a b c\r\n"))))
	proc := &collectingProcessor{}
	if err := d.ParseRequest(fixedHasher{}, proc); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(proc.cmds) != 3 {
		t.Fatalf("len(cmds) = %d, want 3", len(proc.cmds))
	}
	if !proc.cmds[0].Flags.MkeyFirst || proc.cmds[0].Flags.KeyCount != 3 {
		t.Fatalf("flags = %+v", proc.cmds[0].Flags)
	}
	if !proc.last[2] || proc.last[0] || proc.last[1] {
		t.Fatal("expected last=true only on the final key")
	}
}

func TestParseRequestSetWithValueBlock(t *testing.T) {
	d := NewDecoder(bufio.NewReader(bytes.NewReader([]byte("set foo 0 0 3\r\nbar\r\n"))))
	proc := &collectingProcessor{}
	if err := d.ParseRequest(fixedHasher{}, proc); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(proc.cmds) != 1 {
		t.Fatalf("len(cmds) = %d, want 1", len(proc.cmds))
	}
	want := "set foo 0 0 3\r\nbar\r\n"
	if string(proc.cmds[0].Bytes) != want {
		t.Fatalf("bytes = %q, want %q", proc.cmds[0].Bytes, want)
	}
	if !proc.cmds[0].Flags.Store {
		t.Fatal("expected Store flag")
	}
}

func TestParseRequestSetNoreply(t *testing.T) {
	d := NewDecoder(bufio.NewReader(bytes.NewReader([]byte("set foo 0 0 3 noreply\r\nbar\r\n"))))
	proc := &collectingProcessor{}
	if err := d.ParseRequest(fixedHasher{}, proc); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !proc.cmds[0].Flags.Noreply {
		t.Fatal("expected Noreply flag")
	}
}

func TestParseRequestSetBadValueLength(t *testing.T) {
	d := NewDecoder(bufio.NewReader(bytes.NewReader([]byte("set foo 0 0 abc\r\nbar\r\n"))))
	if err := d.ParseRequest(fixedHasher{}, &collectingProcessor{}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParseRequestDelete(t *testing.T) {
	d := NewDecoder(bufio.NewReader(bytes.NewReader([]byte("delete foo\r\n"))))
	proc := &collectingProcessor{}
	if err := d.ParseRequest(fixedHasher{}, proc); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if string(proc.cmds[0].Bytes) != "delete foo\r\n" {
		t.Fatalf("bytes = %q", proc.cmds[0].Bytes)
	}
}

func TestParseRequestQuitIsNoForward(t *testing.T) {
	d := NewDecoder(bufio.NewReader(bytes.NewReader([]byte("quit\r\n"))))
	proc := &collectingProcessor{}
	if err := d.ParseRequest(fixedHasher{}, proc); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !proc.cmds[0].Flags.NoForward {
		t.Fatal("expected NoForward for quit")
	}
}

func TestParseRequestUnknownCommand(t *testing.T) {
	d := NewDecoder(bufio.NewReader(bytes.NewReader([]byte("bogus foo\r\n"))))
	if err := d.ParseRequest(fixedHasher{}, &collectingProcessor{}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("err = %v, want ErrUnknownCommand", err)
	}
}
