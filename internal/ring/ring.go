package ring

import (
	"fmt"
	"io"
)

// Slice is a non-owning, copyable descriptor of a contiguous logical byte
// region inside a fixed power-of-two ring buffer.
//
// The zero value is the empty slice. Slice never frees the backing array;
// callers are responsible for keeping it alive for as long as any Slice
// carved from it is in use.
type Slice struct {
	backing []byte
	cap     uint32 // power of two, or 0 for the empty slice
	start   uint32 // masked offset into backing
	len     uint32 // logical length, len <= cap
	mask    uint32 // cap - 1
}

// Empty returns the zero-length Slice.
func Empty() Slice { return Slice{} }

// New carves a Slice out of backing, whose length must be a power of two
// (or zero). start is the logical start offset (not yet masked) and
// length is the logical length; length must not exceed len(backing).
func New(backing []byte, start, length int) Slice {
	cap := len(backing)
	if cap != 0 && cap&(cap-1) != 0 {
		panic(fmt.Sprintf("ring: capacity %d is not a power of two", cap))
	}
	if length > cap {
		panic(fmt.Sprintf("ring: length %d exceeds capacity %d", length, cap))
	}
	mask := uint32(cap - 1) // cap==0 wraps to ^uint32(0), never consulted: len is always 0 then
	s := Slice{
		backing: backing,
		cap:     uint32(cap),
		len:     uint32(length),
		mask:    mask,
	}
	if cap > 0 {
		s.start = uint32(start) & mask
	}
	return s
}

// Len returns the logical length of the slice.
func (s Slice) Len() int { return int(s.len) }

// Cap returns the capacity of the backing ring buffer.
func (s Slice) Cap() int { return int(s.cap) }

// Empty reports whether the slice has zero length.
func (s Slice) Empty() bool { return s.len == 0 }

func (s Slice) physical(offset int) int {
	return int((s.start + uint32(offset)) & s.mask)
}

// At returns the byte at logical offset i.
func (s Slice) At(i int) byte {
	if i < 0 || uint32(i) >= s.len {
		panic(fmt.Sprintf("ring: index %d out of range [0,%d)", i, s.len))
	}
	return s.backing[s.physical(i)]
}

// Sub returns the sub-slice [offset, offset+length) of s.
func (s Slice) Sub(offset, length int) Slice {
	if offset < 0 || length < 0 || uint32(offset+length) > s.len {
		panic(fmt.Sprintf("ring: sub(%d,%d) out of range for len %d", offset, length, s.len))
	}
	return Slice{
		backing: s.backing,
		cap:     s.cap,
		start:   uint32(s.physical(offset)),
		len:     uint32(length),
		mask:    s.mask,
	}
}

// segments splits the logical range [offset, offset+length) into at most
// two contiguous physical segments.
func (s Slice) segments(offset, length int) (seg0, seg1 []byte) {
	if length == 0 {
		return nil, nil
	}
	oftStart := s.physical(offset)
	if oftStart+length <= int(s.cap) {
		return s.backing[oftStart : oftStart+length], nil
	}
	seg0Len := int(s.cap) - oftStart
	seg1Len := length - seg0Len
	return s.backing[oftStart:s.cap], s.backing[0:seg1Len]
}

// Data returns the full logical contents of s as (at most) two contiguous
// segments. seg1 is nil when s does not wrap the end of the backing array.
func (s Slice) Data() (seg0, seg1 []byte) {
	return s.segments(0, int(s.len))
}

// DataOftLen returns the [offset, offset+length) window of s as (at most)
// two contiguous segments.
func (s Slice) DataOftLen(offset, length int) (seg0, seg1 []byte) {
	if offset < 0 || length < 0 || uint32(offset+length) > s.len {
		panic(fmt.Sprintf("ring: range(%d,%d) out of range for len %d", offset, length, s.len))
	}
	return s.segments(offset, length)
}

// CopyTo writes the full contents of s to w, segment by segment, and
// returns the number of bytes written.
func (s Slice) CopyTo(w io.Writer) (int64, error) {
	var n int64
	seg0, seg1 := s.Data()
	if len(seg0) > 0 {
		m, err := w.Write(seg0)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	if len(seg1) > 0 {
		m, err := w.Write(seg1)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Bytes copies the logical contents of s into a freshly allocated []byte.
// Use sparingly on hot paths — it defeats the point of a zero-copy view.
func (s Slice) Bytes() []byte {
	out := make([]byte, s.len)
	seg0, seg1 := s.Data()
	n := copy(out, seg0)
	copy(out[n:], seg1)
	return out
}

// StartWith reports whether s, starting at logical offset oft, begins
// with the bytes in b.
func (s Slice) StartWith(oft int, b []byte) bool {
	if uint32(oft+len(b)) > s.len {
		return false
	}
	seg0, seg1 := s.DataOftLen(oft, len(b))
	if len(seg0) >= len(b) {
		return bytesEqual(seg0[:len(b)], b)
	}
	if !bytesEqual(seg0, b[:len(seg0)]) {
		return false
	}
	return bytesEqual(seg1[:len(b)-len(seg0)], b[len(seg0):])
}

// Find returns the logical offset (relative to the start of s, i.e.
// absolute, not relative to oft) of the first occurrence of c at or after
// oft, or -1 if not found.
func (s Slice) Find(oft int, c byte) int {
	for i := oft; i < int(s.len); i++ {
		if s.At(i) == c {
			return i
		}
	}
	return -1
}

// FindLFCR locates the first "\r\n" at or after oft and returns the
// offset of the '\r', or -1 if not found.
func (s Slice) FindLFCR(oft int) int {
	for i := oft; i+1 < int(s.len); i++ {
		if s.At(i) == '\r' && s.At(i+1) == '\n' {
			return i
		}
	}
	return -1
}

// U16BE parses a big-endian uint16 at logical offset oft.
func (s Slice) U16BE(oft int) uint16 {
	return uint16(s.At(oft))<<8 | uint16(s.At(oft+1))
}

// U32BE parses a big-endian uint32 at logical offset oft.
func (s Slice) U32BE(oft int) uint32 {
	return uint32(s.At(oft))<<24 | uint32(s.At(oft+1))<<16 | uint32(s.At(oft+2))<<8 | uint32(s.At(oft+3))
}

// StrNum parses the ASCII decimal digits in [start,end) into an int.
// Callers must have already validated that the range holds only digits.
func (s Slice) StrNum(start, end int) int {
	n := 0
	for i := start; i < end; i++ {
		n = n*10 + int(s.At(i)-'0')
	}
	return n
}

// Equal reports whether s and b hold the same bytes.
func (s Slice) Equal(b []byte) bool {
	if int(s.len) != len(b) {
		return false
	}
	seg0, seg1 := s.Data()
	if !bytesEqual(seg0, b[:len(seg0)]) {
		return false
	}
	return bytesEqual(seg1, b[len(seg0):])
}

// EqualSlice reports whether s and t hold the same bytes, without
// materializing either one.
//
// Length is compared first; then t's bytes are matched against s segment
// by segment: first against s's first physical segment, then against
// whatever remains.
func (s Slice) EqualSlice(t Slice) bool {
	if s.len != t.len {
		return false
	}
	if s.len == 0 {
		return true
	}
	sSeg0, sSeg1 := s.Data()
	tSeg0, tSeg1 := t.Data()
	return segEqual(sSeg0, sSeg1, tSeg0, tSeg1)
}

// segEqual compares two (seg0,seg1) logical byte streams of equal total
// length without reassembling them.
func segEqual(a0, a1, b0, b1 []byte) bool {
	total := len(a0) + len(a1)
	ai, bi := 0, 0
	aSeg, bSeg := a0, b0
	for consumed := 0; consumed < total; {
		if ai == len(aSeg) {
			aSeg, ai = a1, 0
			a1 = nil
		}
		if bi == len(bSeg) {
			bSeg, bi = b1, 0
			b1 = nil
		}
		n := len(aSeg) - ai
		if m := len(bSeg) - bi; m < n {
			n = m
		}
		if n == 0 {
			return consumed == total
		}
		if !bytesEqual(aSeg[ai:ai+n], bSeg[bi:bi+n]) {
			return false
		}
		ai += n
		bi += n
		consumed += n
	}
	return true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
