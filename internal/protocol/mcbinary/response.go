package mcbinary

import "encoding/binary"

// bridgeFlag is the 4-byte flag value a MySQL-backed KV bridge response
// carries in its extras, matching the Java memcached client's
// byte-array flag so existing clients decode the value unchanged.
const bridgeFlag uint32 = 0x1000

// BuildMissResponse constructs the fixed client-visible response for a
// GET/GETK whose backend lookup found nothing: header only, status
// NotFound, zero-length key and body.
func BuildMissResponse(reqOpcode byte, opaque uint32) []byte {
	buf := make([]byte, HeaderLen)
	PutHeader(buf, Header{
		Magic:  MagicResponse,
		Opcode: reqOpcode,
		Status: StatusNotFound,
		Opaque: opaque,
	})
	return buf
}

// BuildBridgeResponse constructs a GET-family response for a value
// fetched through the MySQL KV bridge: the original request's key is
// echoed back verbatim (no re-parse of the SQL row), extras carry the
// bridgeFlag, and the body is the stored value.
func BuildBridgeResponse(reqOpcode byte, opaque uint32, key, value []byte) []byte {
	const extraLen = 4
	body := extraLen + len(key) + len(value)
	buf := make([]byte, HeaderLen+body)
	PutHeader(buf, Header{
		Magic:     MagicResponse,
		Opcode:    reqOpcode,
		KeyLen:    uint16(len(key)),
		ExtraLen:  extraLen,
		Status:    StatusNoError,
		TotalBody: uint32(body),
		Opaque:    opaque,
	})
	binary.BigEndian.PutUint32(buf[HeaderLen:], bridgeFlag)
	copy(buf[HeaderLen+extraLen:], key)
	copy(buf[HeaderLen+extraLen+len(key):], value)
	return buf
}

// BuildWritebackSetQ re-serializes a successful GET response into a
// quiet SETQ request that repopulates a cache tier with the fetched
// value: extras carry the response's own flag bytes plus a caller
// supplied expiry, cas and opaque reset to zero.
func BuildWritebackSetQ(key []byte, flagBytes [4]byte, value []byte, expireSeconds uint32) []byte {
	const extraLen = 8
	body := extraLen + len(key) + len(value)
	buf := make([]byte, HeaderLen+body)
	PutHeader(buf, Header{
		Magic:     MagicRequest,
		Opcode:    OpSetQ,
		KeyLen:    uint16(len(key)),
		ExtraLen:  extraLen,
		TotalBody: uint32(body),
	})
	copy(buf[HeaderLen:], flagBytes[:])
	binary.BigEndian.PutUint32(buf[HeaderLen+4:], expireSeconds)
	copy(buf[HeaderLen+extraLen:], key)
	copy(buf[HeaderLen+extraLen+len(key):], value)
	return buf
}

// ResponseStatus reports a response packet's status code (NoError,
// NotFound, ...). buf must hold at least HeaderLen bytes.
func ResponseStatus(buf []byte) uint16 {
	return ParseHeader(buf).Status
}

// StatusOK reports whether a response's status code indicates success.
func StatusOK(buf []byte) bool {
	return ResponseStatus(buf) == StatusNoError
}
