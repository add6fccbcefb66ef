package mysqlwire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidLenenc is returned when a length-encoded integer starts
// with a marker byte (0xfb or 0xff) that isn't valid in this context.
var ErrInvalidLenenc = errors.New("mysqlwire: invalid length-encoded integer")

// ReadLenencInt reads a length-encoded integer from buf starting at
// off, returning its value and the offset just past it.
func ReadLenencInt(buf []byte, off int) (uint64, int, error) {
	if off >= len(buf) {
		return 0, off, fmt.Errorf("mysqlwire: lenenc int: %w", errShortBuffer)
	}
	switch b := buf[off]; {
	case b <= 0xfa:
		return uint64(b), off + 1, nil
	case b == 0xfc:
		if off+3 > len(buf) {
			return 0, off, fmt.Errorf("mysqlwire: lenenc int: %w", errShortBuffer)
		}
		return uint64(binary.LittleEndian.Uint16(buf[off+1 : off+3])), off + 3, nil
	case b == 0xfd:
		if off+4 > len(buf) {
			return 0, off, fmt.Errorf("mysqlwire: lenenc int: %w", errShortBuffer)
		}
		v := uint64(buf[off+1]) | uint64(buf[off+2])<<8 | uint64(buf[off+3])<<16
		return v, off + 4, nil
	case b == 0xfe:
		if off+9 > len(buf) {
			return 0, off, fmt.Errorf("mysqlwire: lenenc int: %w", errShortBuffer)
		}
		return binary.LittleEndian.Uint64(buf[off+1 : off+9]), off + 9, nil
	default: // 0xfb, 0xff
		return 0, off, ErrInvalidLenenc
	}
}

// ReadLenencStr reads a length-encoded string from buf starting at
// off, returning its bytes (a subslice of buf) and the offset just
// past it.
func ReadLenencStr(buf []byte, off int) ([]byte, int, error) {
	n, off, err := ReadLenencInt(buf, off)
	if err != nil {
		return nil, off, err
	}
	end := off + int(n)
	if end > len(buf) {
		return nil, off, fmt.Errorf("mysqlwire: lenenc str: %w", errShortBuffer)
	}
	return buf[off:end], end, nil
}

// ReadNulStr reads a NUL-terminated string from buf starting at off.
func ReadNulStr(buf []byte, off int) ([]byte, int, error) {
	for i := off; i < len(buf); i++ {
		if buf[i] == 0 {
			return buf[off:i], i + 1, nil
		}
	}
	return nil, off, fmt.Errorf("mysqlwire: nul string: %w", errShortBuffer)
}

// PutLenencInt appends x to dst in length-encoded form.
func PutLenencInt(dst []byte, x uint64) []byte {
	switch {
	case x < 251:
		return append(dst, byte(x))
	case x < 1<<16:
		dst = append(dst, 0xfc)
		return binary.LittleEndian.AppendUint16(dst, uint16(x))
	case x < 1<<24:
		dst = append(dst, 0xfd)
		return append(dst, byte(x), byte(x>>8), byte(x>>16))
	default:
		dst = append(dst, 0xfe)
		return binary.LittleEndian.AppendUint64(dst, x)
	}
}

// PutLenencStr appends s to dst as a length-encoded string.
func PutLenencStr(dst []byte, s []byte) []byte {
	dst = PutLenencInt(dst, uint64(len(s)))
	return append(dst, s...)
}

var errShortBuffer = errors.New("buffer too short")
