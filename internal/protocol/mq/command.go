package mq

// RequestType classifies the restricted command set this protocol
// accepts: a single-key get/set/delete, or a no-key meta command
// resolved without a backend round trip.
type RequestType uint8

const (
	ReqUnknown RequestType = iota
	ReqGet
	ReqSet
	ReqDelete
	ReqQuit
	ReqStats
	ReqVersion
)

func (t RequestType) isStorage() bool   { return t == ReqSet }
func (t RequestType) isDelete() bool    { return t == ReqDelete }
func (t RequestType) isRetrieval() bool { return t == ReqGet }
func (t RequestType) isKeyed() bool     { return t == ReqGet || t == ReqSet || t == ReqDelete }

// CommandProperties is the per-command entry the parser consults: its
// request shape and whether the proxy resolves it locally.
type CommandProperties struct {
	Name      string
	Type      RequestType
	NoForward bool
}

var commandTable = buildCommandTable()

func buildCommandTable() map[string]CommandProperties {
	t := make(map[string]CommandProperties)
	add := func(c CommandProperties) { t[c.Name] = c }

	add(CommandProperties{Name: "get", Type: ReqGet})
	add(CommandProperties{Name: "set", Type: ReqSet})
	add(CommandProperties{Name: "delete", Type: ReqDelete})
	add(CommandProperties{Name: "quit", Type: ReqQuit, NoForward: true})
	add(CommandProperties{Name: "stats", Type: ReqStats, NoForward: true})
	add(CommandProperties{Name: "version", Type: ReqVersion, NoForward: true})

	return t
}

// Lookup returns the named command's properties and whether it is
// recognized.
func Lookup(name string) (CommandProperties, bool) {
	p, ok := commandTable[name]
	return p, ok
}
