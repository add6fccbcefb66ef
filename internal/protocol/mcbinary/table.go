package mcbinary

// Category classifies an opcode for dispatch: whether it carries a
// single key (Get family), a value to store (Store family), or no
// per-key payload at all (Meta, e.g. quit/flush/stat/noop/version).
type Category uint8

const (
	CategoryUnsupported Category = iota
	CategoryGet
	CategoryGets
	CategoryStore
	CategoryMeta
)

// OpProperties is the per-opcode entry of the 256-slot property table:
// the bits the dispatcher and writer need to treat every opcode
// uniformly without a switch over raw byte values.
type OpProperties struct {
	Category Category

	// SentOnly marks a quiet mutation (SETQ/ADDQ/...) that is written to
	// the backend but never itself awaited for a response on this
	// connection -- its effect is folded into the next non-quiet reply.
	SentOnly bool

	// Quiet marks any "Q" opcode: the backend is expected to suppress a
	// response for it entirely (quiet mutations) or suppress it only on
	// a miss (quiet gets -- see QuietGet).
	Quiet bool

	// QuietGet marks GETQ/GETKQ and the quiet gets extension specifically: a quiet get whose
	// response is suppressed only when the key misses, folding it into
	// a normal get with a suppression flag the writer consults.
	QuietGet bool

	// NoForward marks an opcode resolved entirely within the proxy
	// (quit, flush, noop, version, stat) without a backend round trip.
	NoForward bool
}

func (p OpProperties) supported() bool { return p.Category != CategoryUnsupported }

// opTable is the 256-entry opcode -> properties mapping, transformed
// from the per-opcode literal table of the original binary-protocol
// driver: opcodes 0x1f-0x47 and 0x4a-0xff are reserved/unused and carry
// the zero value (CategoryUnsupported).
var opTable = buildOpTable()

func buildOpTable() [256]OpProperties {
	var t [256]OpProperties

	get := func(op byte, quiet, quietGet, noForward bool) {
		t[op] = OpProperties{Category: CategoryGet, Quiet: quiet, QuietGet: quietGet, NoForward: noForward}
	}
	store := func(op byte, quiet, sentOnly bool) {
		t[op] = OpProperties{Category: CategoryStore, Quiet: quiet, SentOnly: sentOnly}
	}
	meta := func(op byte, quiet, noForward bool) {
		t[op] = OpProperties{Category: CategoryMeta, Quiet: quiet, NoForward: noForward}
	}
	gets := func(op byte, quiet, quietGet bool) {
		t[op] = OpProperties{Category: CategoryGets, Quiet: quiet, QuietGet: quietGet}
	}

	get(OpGet, false, false, false)
	store(OpSet, false, false)
	store(OpAdd, false, false)
	store(OpReplace, false, false)
	store(OpDelete, false, false)
	store(OpIncrement, false, false)
	store(OpDecrement, false, false)
	meta(OpQuit, false, true)
	meta(OpFlush, false, true)
	get(OpGetQ, true, true, false)
	meta(OpNoop, false, true)
	meta(OpVersion, false, true)
	get(OpGetK, false, false, false)
	get(OpGetKQ, true, true, false)
	store(OpAppend, false, false)
	store(OpPrepend, false, false)
	meta(OpStat, false, true)
	store(OpSetQ, true, true)
	store(OpAddQ, true, true)
	store(OpReplaceQ, true, true)
	store(OpDeleteQ, true, true)
	store(OpIncrementQ, true, true)
	store(OpDecrementQ, true, true)
	meta(OpQuitQ, true, true)
	meta(OpFlushQ, true, true)
	store(OpAppendQ, true, true)
	store(OpPrependQ, true, true)
	store(OpTouch, false, false)
	store(OpGAT, false, false)
	store(OpGATQ, true, true)
	gets(OpGetsExt, false, false)
	gets(OpGetsQExt, true, true)

	return t
}

// Lookup returns the opcode's properties and whether it is supported.
func Lookup(opcode byte) (OpProperties, bool) {
	p := opTable[opcode]
	return p, p.supported()
}
