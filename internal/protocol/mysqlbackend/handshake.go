package mysqlbackend

import (
	"crypto/sha1"
	"errors"
	"fmt"

	"github.com/kvmesh/sidecar/internal/protocol/mysqlwire"
)

// ErrUnsupportedProtocolVersion is returned when a backend's handshake
// packet declares a protocol version other than 10 -- the only version
// in use since MySQL 3.21.
var ErrUnsupportedProtocolVersion = errors.New("mysqlbackend: unsupported protocol version")

// ErrUnknownAuthPlugin is returned for any auth plugin other than
// mysql_native_password, the only one this client implements.
var ErrUnknownAuthPlugin = errors.New("mysqlbackend: unsupported auth plugin")

const nativePasswordPlugin = "mysql_native_password"

// Handshake is the parsed v10 initial handshake packet a backend sends
// on connect.
type Handshake struct {
	ServerVersion []byte
	ConnectionID  uint32
	Capabilities  mysqlwire.CapabilityFlags
	CharacterSet  byte
	StatusFlags   mysqlwire.StatusFlags
	AuthPluginData []byte
	AuthPluginName []byte
}

// ParseHandshake parses a v10 initial handshake packet payload.
func ParseHandshake(payload []byte) (Handshake, error) {
	var h Handshake
	if len(payload) < 1 || payload[0] != 10 {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedProtocolVersion, firstByte(payload))
	}
	off := 1

	serverVersion, off, err := mysqlwire.ReadNulStr(payload, off)
	if err != nil {
		return h, err
	}
	h.ServerVersion = serverVersion

	if off+4 > len(payload) {
		return h, fmt.Errorf("mysqlbackend: short handshake packet")
	}
	h.ConnectionID = uint32(payload[off]) | uint32(payload[off+1])<<8 | uint32(payload[off+2])<<16 | uint32(payload[off+3])<<24
	off += 4

	if off+8 > len(payload) {
		return h, fmt.Errorf("mysqlbackend: short handshake packet")
	}
	authPart1 := append([]byte(nil), payload[off:off+8]...)
	off += 8
	off++ // filler byte

	if off+2 > len(payload) {
		return h, fmt.Errorf("mysqlbackend: short handshake packet")
	}
	capLower := uint32(payload[off]) | uint32(payload[off+1])<<8
	off += 2

	if off >= len(payload) {
		return h, fmt.Errorf("mysqlbackend: short handshake packet")
	}
	h.CharacterSet = payload[off]
	off++

	if off+2 > len(payload) {
		return h, fmt.Errorf("mysqlbackend: short handshake packet")
	}
	h.StatusFlags = mysqlwire.StatusFlags(uint16(payload[off]) | uint16(payload[off+1])<<8)
	off += 2

	if off+2 > len(payload) {
		return h, fmt.Errorf("mysqlbackend: short handshake packet")
	}
	capUpper := uint32(payload[off]) | uint32(payload[off+1])<<8
	off += 2
	h.Capabilities = mysqlwire.CapabilityFlags(capLower | capUpper<<16)

	authDataLen := 0
	if off < len(payload) {
		authDataLen = int(payload[off])
	}
	off++

	off += 10 // reserved, all zero

	authPart2Len := authDataLen - 8
	if authPart2Len < 13 {
		authPart2Len = 13
	}
	if off+authPart2Len > len(payload) {
		authPart2Len = len(payload) - off
	}
	authPart2 := payload[off : off+authPart2Len]
	off += authPart2Len
	// auth_plugin_data_part2 is NUL-terminated; drop the terminator.
	if n := len(authPart2); n > 0 && authPart2[n-1] == 0 {
		authPart2 = authPart2[:n-1]
	}
	h.AuthPluginData = append(append([]byte(nil), authPart1...), authPart2...)

	if h.Capabilities.Has(mysqlwire.ClientPluginAuth) && off < len(payload) {
		name, _, err := mysqlwire.ReadNulStr(payload, off)
		if err == nil {
			h.AuthPluginName = name
		}
	}
	return h, nil
}

func firstByte(b []byte) int {
	if len(b) == 0 {
		return -1
	}
	return int(b[0])
}

// ScrambleNativePassword implements mysql_native_password:
//
//	SHA1(password) XOR SHA1(nonce + SHA1(SHA1(password)))
//
// Returns nil for an empty password (the protocol sends a zero-length
// auth response in that case).
func ScrambleNativePassword(password []byte, nonce []byte) []byte {
	if len(password) == 0 {
		return nil
	}
	stage1 := sha1.Sum(password)
	stage2 := sha1.Sum(stage1[:])

	h := sha1.New()
	h.Write(nonce)
	h.Write(stage2[:])
	scramble := h.Sum(nil)

	out := make([]byte, len(scramble))
	for i := range out {
		out[i] = scramble[i] ^ stage1[i]
	}
	return out
}

// BuildHandshakeResponse builds a protocol 4.1 HandshakeResponse41
// packet authenticating as user/password against db, using h's nonce.
// The capability flags sent are mysqlwire.BaseClientFlags (plus
// ClientConnectWithDB when db is set); h's own capabilities are not read.
func BuildHandshakeResponse(h Handshake, user, password, db []byte) ([]byte, error) {
	if h.AuthPluginName != nil && string(h.AuthPluginName) != nativePasswordPlugin {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAuthPlugin, h.AuthPluginName)
	}

	caps := uint32(mysqlwire.BaseClientFlags)
	if len(db) > 0 {
		caps |= uint32(mysqlwire.ClientConnectWithDB)
	}

	auth := ScrambleNativePassword(password, h.AuthPluginData)

	buf := make([]byte, 0, 64+len(user)+len(db)+len(auth))
	buf = append(buf, byte(caps), byte(caps>>8), byte(caps>>16), byte(caps>>24))
	buf = append(buf, 0xff, 0xff, 0xff, 0x00) // max_packet_size, 16MB-1
	buf = append(buf, 0x21)                   // utf8_general_ci
	buf = append(buf, make([]byte, 23)...)
	buf = append(buf, user...)
	buf = append(buf, 0)
	buf = mysqlwire.PutLenencStr(buf, auth)
	if len(db) > 0 {
		buf = append(buf, db...)
		buf = append(buf, 0)
	}
	buf = append(buf, []byte(nativePasswordPlugin)...)
	buf = append(buf, 0)
	return buf, nil
}
