package mysqlbackend

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/kvmesh/sidecar/internal/protocol/mysqlwire"
)

func writePacket(buf *bytes.Buffer, payload []byte, seq byte) {
	mysqlwire.WritePacket(buf, payload, seq)
}

func buildColumnDefPacket(name string, typ byte) []byte {
	var p []byte
	for i := 0; i < 4; i++ {
		p = mysqlwire.PutLenencStr(p, []byte("d"))
	}
	p = mysqlwire.PutLenencStr(p, []byte(name))
	p = mysqlwire.PutLenencStr(p, []byte(name))
	p = mysqlwire.PutLenencInt(p, 0x0c)
	p = append(p, 0x21, 0x00) // charset
	p = append(p, 0, 0, 0, 0) // column length
	p = append(p, typ)
	p = append(p, 0, 0) // flags
	p = append(p, 0)    // decimals
	p = append(p, 0, 0) // filler
	return p
}

func TestParseColumnDef(t *testing.T) {
	payload := buildColumnDefPacket("uid", byte(TypeLongLong))
	col, err := ParseColumnDef(payload)
	if err != nil {
		t.Fatalf("ParseColumnDef: %v", err)
	}
	if string(col.Name) != "uid" {
		t.Fatalf("Name = %q", col.Name)
	}
	if col.Type != byte(TypeLongLong) {
		t.Fatalf("Type = %d", col.Type)
	}
}

func TestParseTextRowWithNull(t *testing.T) {
	var p []byte
	p = mysqlwire.PutLenencStr(p, []byte("46687411842092841"))
	p = append(p, 0xfb) // NULL
	row, err := ParseTextRow(p, 2)
	if err != nil {
		t.Fatalf("ParseTextRow: %v", err)
	}
	if string(row[0]) != "46687411842092841" {
		t.Fatalf("row[0] = %q", row[0])
	}
	if row[1] != nil {
		t.Fatalf("row[1] = %q, want nil", row[1])
	}
}

func TestReadResultSetRows(t *testing.T) {
	var buf bytes.Buffer
	var colCount []byte
	colCount = mysqlwire.PutLenencInt(colCount, 2)
	writePacket(&buf, colCount, 1)
	writePacket(&buf, buildColumnDefPacket("uid", byte(TypeLongLong)), 2)
	writePacket(&buf, buildColumnDefPacket("object_type", byte(TypeLong)), 3)
	writePacket(&buf, []byte{mysqlwire.RespEOF, 0, 0, 0x02, 0x00}, 4)

	var row []byte
	row = mysqlwire.PutLenencStr(row, []byte("46687411842092841"))
	row = mysqlwire.PutLenencStr(row, []byte("41"))
	writePacket(&buf, row, 5)
	writePacket(&buf, []byte{mysqlwire.RespEOF, 0, 0, 0x02, 0x00}, 6)

	rs, err := ReadResultSet(bufio.NewReader(&buf), mysqlwire.ClientProtocol41)
	if err != nil {
		t.Fatalf("ReadResultSet: %v", err)
	}
	if len(rs.Columns) != 2 || len(rs.Rows) != 1 {
		t.Fatalf("Columns=%d Rows=%d", len(rs.Columns), len(rs.Rows))
	}
	if string(rs.Rows[0][0]) != "46687411842092841" || string(rs.Rows[0][1]) != "41" {
		t.Fatalf("row = %v", rs.Rows[0])
	}
}

func TestReadResultSetOK(t *testing.T) {
	var buf bytes.Buffer
	var ok []byte
	ok = append(ok, mysqlwire.RespOK)
	ok = mysqlwire.PutLenencInt(ok, 1) // affected rows
	ok = mysqlwire.PutLenencInt(ok, 0)
	ok = append(ok, 0x02, 0x00, 0x00, 0x00)
	writePacket(&buf, ok, 1)

	rs, err := ReadResultSet(bufio.NewReader(&buf), mysqlwire.ClientProtocol41)
	if err != nil {
		t.Fatalf("ReadResultSet: %v", err)
	}
	if rs.OK == nil || rs.OK.AffectedRows != 1 {
		t.Fatalf("OK = %+v", rs.OK)
	}
}

func TestReadResultSetErr(t *testing.T) {
	var buf bytes.Buffer
	var e []byte
	e = append(e, mysqlwire.RespErr)
	e = append(e, 0x20, 0x04)
	e = append(e, '#')
	e = append(e, []byte("42000")...)
	e = append(e, []byte("bad")...)
	writePacket(&buf, e, 1)

	_, err := ReadResultSet(bufio.NewReader(&buf), mysqlwire.ClientProtocol41)
	if err == nil {
		t.Fatal("expected error")
	}
}
