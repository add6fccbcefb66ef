package callback

// HashedCommand is the parsed, routable form of one client-protocol
// request: its owned wire bytes, the hash used for shard/replica
// selection, and the flags the dispatch and response-writing paths
// consult. Protocol codecs (memcached, Redis, the queue protocol, and
// KVector) build one of these from the bytes they parse off the wire.
type HashedCommand struct {
	// Bytes is the request payload as it should be sent to the backend.
	// Dispatch may replace it in place (Reshape) when a retry or an
	// aggregation round needs different bytes for the same logical
	// request.
	Bytes []byte

	// Hash selects the shard/replica via the configured distribution.
	Hash uint64

	Flags CommandFlags

	// Year and ShardIndex are stashed by the first dispatch so a retry
	// can reuse them instead of recomputing from the (possibly already
	// reshaped) bytes.
	Year       int
	ShardIndex int
}

// CommandFlags carries the per-command routing and response-shaping bits
// a protocol codec derives while parsing a request.
type CommandFlags struct {
	// Noreply marks a fire-and-forget request: on_sent completes the
	// context immediately without waiting for a backend response.
	Noreply bool

	// NeedBulkNum marks a multi-key command whose client response must
	// be preceded by a bulk count header before the per-shard payloads.
	NeedBulkNum bool

	// Store marks a command that mutates backend state (as opposed to a
	// read), which disables slave selection at dispatch.
	Store bool

	// MkeyFirst marks the first HashedCommand a multi-key request was
	// expanded into; only it carries KeyCount.
	MkeyFirst bool

	// KeyCount is the number of keys a multi-key request was expanded
	// into. Meaningful only when MkeyFirst is set.
	KeyCount uint16

	// NoForward marks a request the codec resolves locally (a fixed or
	// synthesized response) without ever reaching a backend.
	NoForward bool

	// PaddingRsp indexes into the protocol's fixed padding-response
	// table, used when no real response exists to write back.
	PaddingRsp uint8

	// Quit marks a request that, once its response has been written,
	// must terminate the client connection.
	Quit bool
}

// Reshape replaces the command's wire bytes, as happens when a retry or
// an aggregation round needs to issue different bytes for the same
// logical request.
func (c *HashedCommand) Reshape(bytes []byte) {
	c.Bytes = bytes
}
