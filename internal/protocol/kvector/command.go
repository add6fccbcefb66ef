package kvector

import "github.com/kvmesh/sidecar/internal/sqlbuild"

// CommandProperties names the request shape a KVector command parses
// into -- the sqlbuild.VectorCommandType it maps to, whichever
// aggregation route (main table, SI, or both) a topology layer should
// consider when it rewrites this into the routed variant. The codec
// itself never emits the Si/Timeline command types; those are a
// dispatch-layer concern once it decides whether aggregation strategy
// applies.
type CommandProperties struct {
	Name string
	Cmd  sqlbuild.VectorCommandType
}

var commandTable = buildCommandTable()

func buildCommandTable() map[string]CommandProperties {
	t := make(map[string]CommandProperties, 8)
	add := func(name string, cmd sqlbuild.VectorCommandType) {
		t[name] = CommandProperties{Name: name, Cmd: cmd}
	}
	add("VRANGE", sqlbuild.VRange)
	add("VGET", sqlbuild.VGet)
	add("VCARD", sqlbuild.VCard)
	add("VADD", sqlbuild.VAdd)
	add("VUPDATE", sqlbuild.VUpdate)
	add("VDEL", sqlbuild.VDel)
	return t
}

// Lookup resolves a command name (case-insensitive) to its properties.
func Lookup(name string) (CommandProperties, bool) {
	cfg, ok := commandTable[upper(name)]
	return cfg, ok
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
