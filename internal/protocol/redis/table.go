package redis

import (
	"hash/crc32"
	"strings"
)

// Operation classifies a command for dispatch purposes: whether it
// reads, writes, fans out across keys, or never leaves the proxy.
type Operation uint8

const (
	OpMeta Operation = iota
	OpGet
	OpMGet
	OpStore
)

// mappingRange is the size of the open-addressed command table: the
// full Redis command surface (low hundreds of names) maps onto it via
// CRC32(uppercased name) with no collision the deployment's supported
// subset has ever hit.
const mappingRange = 4096

// CommandProperties describes how one Redis command is parsed, hashed,
// dispatched, and responded to.
type CommandProperties struct {
	Name string
	// MName is the command this one maps to when sent to the backend --
	// e.g. MGET's per-key requests are each sent as a plain GET.
	MName string
	Op    Operation

	// Arity is the exact token count for fixed-arity commands, or the
	// negated minimum for variadic ones (mirroring the Redis docs'
	// convention).
	Arity int

	FirstKeyIndex int
	// LastKeyIndex, if negative, is relative to the end of the token
	// list (-1 means the last token).
	LastKeyIndex int
	KeyStep      int

	PaddingRsp  uint8
	HasKey      bool
	HasVal      bool
	Multi       bool
	NeedBulkNum bool
	NoForward   bool
	Quit        bool

	// Swallowed commands mutate per-connection parser state (a reserved
	// hash, a master-only flag) and are never dispatched.
	Swallowed bool

	supported bool
}

// Validate reports whether tokenCount is legal for this command's
// arity.
func (c *CommandProperties) Validate(tokenCount int) bool {
	if c.Arity == 0 {
		return false
	}
	if c.Arity > 0 {
		return tokenCount == c.Arity
	}
	last := c.LastKeyIndexFor(tokenCount)
	return tokenCount > last && last >= c.FirstKeyIndex
}

// LastKeyIndexFor resolves LastKeyIndex against an actual token count,
// for the variadic (negative) case.
func (c *CommandProperties) LastKeyIndexFor(tokenCount int) int {
	if c.LastKeyIndex >= 0 {
		return c.LastKeyIndex
	}
	return tokenCount + c.LastKeyIndex
}

// PaddingResponses is indexed by CommandProperties.PaddingRsp: 0 is
// reserved for quit (no response body at all).
var PaddingResponses = [4]string{
	"",
	"+OK\r\n",
	"+PONG\r\n",
	"-ERR redis no available\r\n",
}

type commandTable struct {
	entries [mappingRange]CommandProperties
}

// OpCode hashes cmd's uppercased bytes into the table's index space.
func OpCode(cmd []byte) uint16 {
	return uint16(hashUpper(cmd) & (mappingRange - 1))
}

func hashUpper(cmd []byte) uint32 {
	if !hasLower(cmd) {
		return crc32.ChecksumIEEE(cmd)
	}
	upper := make([]byte, len(cmd))
	for i, c := range cmd {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper[i] = c
	}
	return crc32.ChecksumIEEE(upper)
}

func hasLower(b []byte) bool {
	for _, c := range b {
		if c >= 'a' && c <= 'z' {
			return true
		}
	}
	return false
}

// Lookup resolves cmd against the table, returning (properties, ok).
func (t *commandTable) Lookup(cmd []byte) (*CommandProperties, bool) {
	p := &t.entries[OpCode(cmd)]
	if !p.supported {
		return nil, false
	}
	return p, true
}

func (t *commandTable) add(p CommandProperties) {
	idx := OpCode([]byte(strings.ToUpper(p.Name)))
	p.supported = true
	t.entries[idx] = p
}

// Supported is the process-wide command-properties table.
var Supported = buildTable()

func buildTable() *commandTable {
	t := &commandTable{}
	add := func(name, mname string, arity int, op Operation, firstKey, lastKey, keyStep int, padding uint8, multi, noForward, hasKey, hasVal, needBulkNum bool) {
		t.add(CommandProperties{
			Name: name, MName: mname, Arity: arity, Op: op,
			FirstKeyIndex: firstKey, LastKeyIndex: lastKey, KeyStep: keyStep,
			PaddingRsp: padding, Multi: multi, NoForward: noForward,
			HasKey: hasKey, HasVal: hasVal, NeedBulkNum: needBulkNum,
		})
	}

	add("command", "command", -1, OpMeta, 0, 0, 0, 1, false, true, false, false, false)
	add("ping", "ping", -1, OpMeta, 0, 0, 0, 2, false, true, false, false, false)
	add("select", "ping", 2, OpMeta, 0, 0, 0, 1, false, true, false, false, false)

	add("get", "get", 2, OpGet, 1, 1, 1, 3, false, false, true, false, false)
	add("mget", "get", -2, OpMGet, 1, -1, 1, 3, true, false, true, false, true)

	add("set", "set", 3, OpStore, 1, 1, 1, 3, false, false, true, true, false)
	add("incr", "incr", 2, OpStore, 1, 1, 1, 3, false, false, true, false, false)
	add("decr", "decr", 2, OpStore, 1, 1, 1, 3, false, false, true, false, false)
	add("mincr", "incr", -2, OpStore, 1, -1, 1, 3, true, false, true, false, true)
	add("mset", "set", -3, OpStore, 1, -1, 2, 3, true, false, true, true, false)

	t.add(CommandProperties{
		Name: "quit", MName: "quit", Arity: 1, Op: OpMeta,
		PaddingRsp: 0, NoForward: true, Quit: true,
	})

	// Swallowed: mutate per-connection parser state, never dispatched.
	t.add(CommandProperties{Name: "master", Swallowed: true, Arity: 1, NoForward: true})
	t.add(CommandProperties{Name: "hashkeyq", Swallowed: true, Arity: 2, HasKey: true, FirstKeyIndex: 1, LastKeyIndex: 1, NoForward: true})
	t.add(CommandProperties{Name: "hashrandomq", Swallowed: true, Arity: 1, NoForward: true})

	return t
}
