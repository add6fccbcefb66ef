package mysqlwire

import "fmt"

// OKPacket is a parsed OK (or EOF-as-OK, under CLIENT_DEPRECATE_EOF)
// packet.
type OKPacket struct {
	AffectedRows uint64
	LastInsertID uint64
	StatusFlags  StatusFlags
	Warnings     uint16
	Info         []byte
}

// ErrPacket is a parsed ERR packet.
type ErrPacket struct {
	Code     uint16
	SQLState []byte
	Message  []byte
}

func (e *ErrPacket) Error() string {
	return fmt.Sprintf("mysqlwire: server error %d (%s): %s", e.Code, e.SQLState, e.Message)
}

// ParseOKPacket parses payload (header byte already known to be
// RespOK or RespEOF under CLIENT_DEPRECATE_EOF) per the generic OK
// packet layout.
func ParseOKPacket(payload []byte, caps CapabilityFlags) (OKPacket, error) {
	var ok OKPacket
	off := 1 // skip header byte

	affected, off, err := ReadLenencInt(payload, off)
	if err != nil {
		return ok, err
	}
	insertID, off, err := ReadLenencInt(payload, off)
	if err != nil {
		return ok, err
	}
	ok.AffectedRows = affected
	ok.LastInsertID = insertID

	if caps.Has(ClientProtocol41) {
		if off+4 > len(payload) {
			return ok, fmt.Errorf("mysqlwire: short ok packet")
		}
		ok.StatusFlags = StatusFlags(uint16(payload[off]) | uint16(payload[off+1])<<8)
		ok.Warnings = uint16(payload[off+2]) | uint16(payload[off+3])<<8
		off += 4
	} else if caps.Has(ClientTransactions) {
		if off+2 > len(payload) {
			return ok, fmt.Errorf("mysqlwire: short ok packet")
		}
		ok.StatusFlags = StatusFlags(uint16(payload[off]) | uint16(payload[off+1])<<8)
		off += 2
	}
	if off < len(payload) {
		ok.Info = payload[off:]
	}
	return ok, nil
}

// ParseErrPacket parses payload (header byte already known to be
// RespErr) per the generic ERR packet layout.
func ParseErrPacket(payload []byte, caps CapabilityFlags) (ErrPacket, error) {
	var e ErrPacket
	if len(payload) < 3 {
		return e, fmt.Errorf("mysqlwire: short err packet")
	}
	e.Code = uint16(payload[1]) | uint16(payload[2])<<8
	off := 3
	if caps.Has(ClientProtocol41) {
		if off+6 > len(payload) {
			return e, fmt.Errorf("mysqlwire: short err packet")
		}
		// '#' marker followed by a 5-byte SQLSTATE
		e.SQLState = payload[off+1 : off+6]
		off += 6
	}
	e.Message = payload[off:]
	return e, nil
}

// IsOK reports whether payload's first byte is the OK marker. The
// payload length is not checked.
func IsOK(payload []byte) bool {
	return len(payload) > 0 && payload[0] == RespOK
}

// IsErr reports whether payload's first byte is the ERR marker.
func IsErr(payload []byte) bool {
	return len(payload) > 0 && payload[0] == RespErr
}

// IsEOF reports whether payload looks like an EOF packet: marker byte
// plus a payload shorter than EOFMaxPayload+4 (9) bytes, which
// distinguishes it from a 9-byte length-encoded int that starts with 0xfe.
func IsEOF(payload []byte) bool {
	return len(payload) > 0 && payload[0] == RespEOF && len(payload) < EOFMaxPayload+4
}
