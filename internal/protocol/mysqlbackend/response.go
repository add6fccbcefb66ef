package mysqlbackend

import (
	"bufio"
	"fmt"

	"github.com/kvmesh/sidecar/internal/protocol/mysqlwire"
)

// ColumnDef is a parsed column-definition packet from a result set's
// metadata.
type ColumnDef struct {
	Name     []byte
	Type     byte
	Flags    uint16
	Decimals byte
}

// ParseColumnDef parses a protocol 4.1 column-definition packet.
func ParseColumnDef(payload []byte) (ColumnDef, error) {
	var col ColumnDef
	off := 0
	for i := 0; i < 4; i++ { // catalog, schema, table, org_table
		_, next, err := mysqlwire.ReadLenencStr(payload, off)
		if err != nil {
			return col, err
		}
		off = next
	}
	name, off, err := mysqlwire.ReadLenencStr(payload, off)
	if err != nil {
		return col, err
	}
	col.Name = append([]byte(nil), name...)

	_, off, err = mysqlwire.ReadLenencStr(payload, off) // org_name
	if err != nil {
		return col, err
	}
	_, off, err = mysqlwire.ReadLenencInt(payload, off) // fixed-length fields marker (0x0c)
	if err != nil {
		return col, err
	}
	off += 2 // character set
	off += 4 // column length
	if off >= len(payload) {
		return col, fmt.Errorf("mysqlbackend: short column definition")
	}
	col.Type = payload[off]
	off++
	if off+2 > len(payload) {
		return col, fmt.Errorf("mysqlbackend: short column definition")
	}
	col.Flags = uint16(payload[off]) | uint16(payload[off+1])<<8
	off += 2
	if off < len(payload) {
		col.Decimals = payload[off]
	}
	return col, nil
}

// ParseTextRow parses a text-protocol row packet into numCols values,
// nil for each SQL NULL column.
func ParseTextRow(payload []byte, numCols int) ([][]byte, error) {
	row := make([][]byte, numCols)
	off := 0
	for i := 0; i < numCols; i++ {
		if off < len(payload) && payload[off] == 0xfb {
			row[i] = nil
			off++
			continue
		}
		val, next, err := mysqlwire.ReadLenencStr(payload, off)
		if err != nil {
			return nil, err
		}
		row[i] = append([]byte(nil), val...)
		off = next
	}
	return row, nil
}

// ResultSet is a fully-read COM_QUERY result: either an OK packet (for
// INSERT/UPDATE/DELETE) or a set of columns and text-protocol rows.
type ResultSet struct {
	OK      *mysqlwire.OKPacket
	Columns []ColumnDef
	Rows    [][][]byte
}

// ReadResultSet reads one complete COM_QUERY response off r: an
// ERR/OK packet, or a column-count + column-definitions + (optional
// EOF) + rows + terminating EOF/OK sequence.
func ReadResultSet(r *bufio.Reader, caps mysqlwire.CapabilityFlags) (ResultSet, error) {
	var rs ResultSet

	payload, _, err := mysqlwire.ReadPacket(r)
	if err != nil {
		return rs, err
	}
	if mysqlwire.IsErr(payload) {
		e, perr := mysqlwire.ParseErrPacket(payload, caps)
		if perr != nil {
			return rs, perr
		}
		return rs, &e
	}
	if mysqlwire.IsOK(payload) {
		ok, perr := mysqlwire.ParseOKPacket(payload, caps)
		if perr != nil {
			return rs, perr
		}
		rs.OK = &ok
		return rs, nil
	}

	colCount, _, err := mysqlwire.ReadLenencInt(payload, 0)
	if err != nil {
		return rs, err
	}

	rs.Columns = make([]ColumnDef, 0, colCount)
	for i := uint64(0); i < colCount; i++ {
		payload, _, err := mysqlwire.ReadPacket(r)
		if err != nil {
			return rs, err
		}
		col, err := ParseColumnDef(payload)
		if err != nil {
			return rs, err
		}
		rs.Columns = append(rs.Columns, col)
	}

	if !caps.Has(mysqlwire.ClientDeprecateEOF) {
		if _, _, err := mysqlwire.ReadPacket(r); err != nil { // columns EOF
			return rs, err
		}
	}

	for {
		payload, _, err := mysqlwire.ReadPacket(r)
		if err != nil {
			return rs, err
		}
		if mysqlwire.IsErr(payload) {
			e, perr := mysqlwire.ParseErrPacket(payload, caps)
			if perr != nil {
				return rs, perr
			}
			return rs, &e
		}
		if caps.Has(mysqlwire.ClientDeprecateEOF) {
			if mysqlwire.IsOK(payload) {
				ok, perr := mysqlwire.ParseOKPacket(payload, caps)
				if perr != nil {
					return rs, perr
				}
				rs.OK = &ok
				return rs, nil
			}
		} else if mysqlwire.IsEOF(payload) {
			return rs, nil
		}
		row, err := ParseTextRow(payload, len(rs.Columns))
		if err != nil {
			return rs, err
		}
		rs.Rows = append(rs.Rows, row)
	}
}
