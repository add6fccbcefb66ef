package mctext

// Kind classifies a command's token grammar, so the parser can drive
// the right state machine without a switch over the raw name.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindRetrieval
	KindStorage
	KindDelete
	KindArith
	KindTouch
	KindMeta
)

// CommandProperties is the per-command entry the parser and dispatcher
// consult: its token grammar, whether it is resolved in the proxy
// without a backend round trip, and (for no-forward commands) the
// fixed bytes to write back.
type CommandProperties struct {
	Name      string
	Kind      Kind
	Multi     bool // get/gets accept more than one key per line
	NoForward bool
	Fixed     string // response bytes for NoForward commands
}

var commandTable = buildCommandTable()

func buildCommandTable() map[string]CommandProperties {
	t := make(map[string]CommandProperties)
	add := func(c CommandProperties) { t[c.Name] = c }

	add(CommandProperties{Name: "get", Kind: KindRetrieval, Multi: true})
	add(CommandProperties{Name: "gets", Kind: KindRetrieval, Multi: true})
	add(CommandProperties{Name: "set", Kind: KindStorage})
	add(CommandProperties{Name: "add", Kind: KindStorage})
	add(CommandProperties{Name: "replace", Kind: KindStorage})
	add(CommandProperties{Name: "append", Kind: KindStorage})
	add(CommandProperties{Name: "prepend", Kind: KindStorage})
	add(CommandProperties{Name: "cas", Kind: KindStorage})
	add(CommandProperties{Name: "delete", Kind: KindDelete})
	add(CommandProperties{Name: "incr", Kind: KindArith})
	add(CommandProperties{Name: "decr", Kind: KindArith})
	add(CommandProperties{Name: "touch", Kind: KindTouch})
	add(CommandProperties{Name: "quit", Kind: KindMeta, NoForward: true, Fixed: ""})
	add(CommandProperties{Name: "version", Kind: KindMeta, NoForward: true, Fixed: "VERSION 1.6.0\r\n"})
	add(CommandProperties{Name: "stats", Kind: KindMeta, NoForward: true, Fixed: "END\r\n"})

	return t
}

// Lookup returns the named command's properties and whether it is
// recognized.
func Lookup(name string) (CommandProperties, bool) {
	p, ok := commandTable[name]
	return p, ok
}
