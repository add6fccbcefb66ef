package kvector

import (
	"bufio"
	"fmt"
)

// Value is one column value in a query result row: either a signed
// integer (written as a RESP integer) or raw text (written as a RESP
// bulk string).
type Value struct {
	IsInt bool
	Int   int64
	Text  []byte
}

// WriteQueryResult serializes a result set as a KVector response:
//
//	*2\r\n               -- two top-level elements
//	*<cols>\r\n           -- column-name array
//	+<name>\r\n...         -- one simple string per column
//	*<cols*rows>\r\n      -- flattened value array, row-major
//	(:<n>\r\n | $<len>\r\n<bytes>\r\n) ...
//
// An empty result set writes a nil bulk string instead.
func WriteQueryResult(w *bufio.Writer, columns []string, rows [][]Value) error {
	if len(rows) == 0 {
		_, err := w.WriteString("$-1\r\n")
		return err
	}

	if _, err := fmt.Fprintf(w, "*2\r\n*%d\r\n", len(columns)); err != nil {
		return err
	}
	for _, name := range columns {
		if _, err := fmt.Fprintf(w, "+%s\r\n", name); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "*%d\r\n", len(columns)*len(rows)); err != nil {
		return err
	}
	for _, row := range rows {
		for _, v := range row {
			if err := writeValue(w, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeValue(w *bufio.Writer, v Value) error {
	if v.IsInt {
		_, err := fmt.Fprintf(w, ":%d\r\n", v.Int)
		return err
	}
	if _, err := fmt.Fprintf(w, "$%d\r\n", len(v.Text)); err != nil {
		return err
	}
	if _, err := w.Write(v.Text); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

// WriteAffectedRows writes the response for a store command (VAdd,
// VUpdate, VDel): a single RESP integer of the affected row count.
func WriteAffectedRows(w *bufio.Writer, affected int64) error {
	_, err := fmt.Fprintf(w, ":%d\r\n", affected)
	return err
}
