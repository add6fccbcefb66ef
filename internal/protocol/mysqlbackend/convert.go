package mysqlbackend

import (
	"strconv"

	"github.com/kvmesh/sidecar/internal/protocol/kvector"
)

// ColumnType is a MySQL wire-protocol column type code, carried on
// every column-definition packet.
type ColumnType byte

const (
	TypeTiny     ColumnType = 1
	TypeShort    ColumnType = 2
	TypeLong     ColumnType = 3
	TypeFloat    ColumnType = 4
	TypeDouble   ColumnType = 5
	TypeNull     ColumnType = 6
	TypeLongLong ColumnType = 8
	TypeInt24    ColumnType = 9
	TypeYear     ColumnType = 13
	TypeDecimal  ColumnType = 246
)

// isInteger reports whether t is one of the fixed-width integer
// column types, which the text protocol still sends as ASCII digits
// but which KVector responses surface as RESP integers rather than
// bulk strings.
func (t ColumnType) isInteger() bool {
	switch t {
	case TypeTiny, TypeShort, TypeLong, TypeLongLong, TypeInt24, TypeYear:
		return true
	default:
		return false
	}
}

// ToVectorValue converts one text-protocol column value (nil for SQL
// NULL) into the kvector.Value the KVector response writer consumes.
func ToVectorValue(raw []byte, col ColumnType) kvector.Value {
	if raw == nil {
		return kvector.Value{Text: nil}
	}
	if col.isInteger() {
		if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return kvector.Value{IsInt: true, Int: n}
		}
	}
	return kvector.Value{Text: raw}
}

// ToVectorRow converts a full text-protocol row against its column
// definitions.
func ToVectorRow(raw [][]byte, cols []ColumnDef) []kvector.Value {
	out := make([]kvector.Value, len(raw))
	for i, v := range raw {
		out[i] = ToVectorValue(v, ColumnType(cols[i].Type))
	}
	return out
}
