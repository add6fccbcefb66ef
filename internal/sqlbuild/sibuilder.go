package sqlbuild

import (
	"bytes"
	"fmt"
	"time"
)

// SIStrategy resolves the summary-index table and column names a
// SIRequest routes to. Count-type columns are optional -- a deployment
// that shards counts only by key and date returns an empty slice.
type SIStrategy interface {
	SITableName(hash uint64) string
	KeyColumn() string
	DateColumn() string
	CountColumn() string
	// CountTypeColumns names the columns (if any) that classify what is
	// being counted -- e.g. "object_type". VAdd/VDel require the client
	// to supply a value for one of these whenever the slice is
	// non-empty.
	CountTypeColumns() []string
}

// SIRequest is the input to BuildSIPacket.
type SIRequest struct {
	Cmd    VectorCommandType // VRange, VAdd/VAddSi, or VDel/VDelSi
	Key    []byte
	Fields []Field    // VAdd: count-type value(s) to store
	Wheres []Condition // VRange/VDel: optional count-type filter
	Date   time.Time
	Hash   uint64
}

// BuildSIPacket translates a summary-index SIRequest into a COM_QUERY
// packet:
//
//	VRange       -> select key,date,sum(count) from <si_tbl> where key=? [and count-type cond] group by key,date order by date desc
//	VAdd/VAddSi  -> insert into <si_tbl> (key,[count-type,]date,count) values (...) on duplicate key update count=greatest(0,count+1)
//	VDel/VDelSi  -> update <si_tbl> set count=greatest(0,count-1) where key=? [and count-type cond] and date=?
//
// When CountTypeColumns is non-empty, VAdd and VDel fail before any SQL
// is emitted if the caller didn't supply a matching field/condition --
// this is a builder-level rejection, not something left for MySQL to
// reject.
func BuildSIPacket(strategy SIStrategy, req SIRequest, maxAllowedPacket int) ([]byte, error) {
	var buf bytes.Buffer
	switch req.Cmd {
	case VRange:
		writeSIRange(&buf, strategy, req)
	case VAdd, VAddSi:
		if err := writeSIInsert(&buf, strategy, req); err != nil {
			return nil, err
		}
	case VDel, VDelSi:
		if err := writeSIDelete(&buf, strategy, req); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("sqlbuild: unsupported SI command %d", req.Cmd)
	}
	return BuildQueryPacket(buf.Bytes(), maxAllowedPacket)
}

func writeSIRange(buf *bytes.Buffer, strategy SIStrategy, req SIRequest) {
	key, date, count := strategy.KeyColumn(), strategy.DateColumn(), strategy.CountColumn()
	fmt.Fprintf(buf, "select `%s`,`%s`,sum(`%s`) from %s where `%s`=", key, date, count, strategy.SITableName(req.Hash), key)
	QuotedInto(buf, req.Key)
	if cond, ok := findCountTypeCondition(strategy.CountTypeColumns(), req.Wheres); ok {
		buf.WriteString(" and ")
		// Already validated at parse time; CountTypeColumns membership
		// stands in for the identifier check here.
		fmt.Fprintf(buf, "`%s`", cond.Field)
		if bytes.EqualFold(cond.Op, []byte("in")) {
			buf.WriteString(" in (")
			buf.Write(cond.Value)
			buf.WriteByte(')')
		} else {
			buf.Write(cond.Op)
			QuotedInto(buf, cond.Value)
		}
	}
	fmt.Fprintf(buf, " group by `%s`,`%s` order by `%s` desc", key, date, date)
}

func writeSIInsert(buf *bytes.Buffer, strategy SIStrategy, req SIRequest) error {
	countTypeCols := strategy.CountTypeColumns()
	countTypeFields, err := requireCountTypeFields(countTypeCols, req.Fields)
	if err != nil {
		return err
	}

	buf.WriteString("insert into ")
	buf.WriteString(strategy.SITableName(req.Hash))
	buf.WriteString(" (`")
	buf.WriteString(strategy.KeyColumn())
	buf.WriteByte('`')
	for _, f := range countTypeFields {
		buf.WriteString(",`")
		buf.Write(f.Name)
		buf.WriteByte('`')
	}
	fmt.Fprintf(buf, ",`%s`,`%s`) values (", strategy.DateColumn(), strategy.CountColumn())
	QuotedInto(buf, req.Key)
	for _, f := range countTypeFields {
		buf.WriteByte(',')
		QuotedInto(buf, f.Value)
	}
	fmt.Fprintf(buf, ",'%s',1)", dateLiteral(req.Date))
	count := strategy.CountColumn()
	fmt.Fprintf(buf, " on duplicate key update `%s`=greatest(0,cast(`%s` as signed)+1)", count, count)
	return nil
}

func writeSIDelete(buf *bytes.Buffer, strategy SIStrategy, req SIRequest) error {
	countTypeCols := strategy.CountTypeColumns()
	cond, err := requireCountTypeCondition(countTypeCols, req.Wheres)
	if err != nil {
		return err
	}

	count := strategy.CountColumn()
	fmt.Fprintf(buf, "update %s set `%s`=greatest(0,cast(`%s` as signed)-1) where `%s`=",
		strategy.SITableName(req.Hash), count, count, strategy.KeyColumn())
	QuotedInto(buf, req.Key)
	if cond != nil {
		buf.WriteString(" and ")
		fmt.Fprintf(buf, "`%s`=", cond.Field)
		QuotedInto(buf, cond.Value)
	}
	fmt.Fprintf(buf, " and `%s`='%s'", strategy.DateColumn(), dateLiteral(req.Date))
	return nil
}

func dateLiteral(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), t.Month(), t.Day())
}

func findCountTypeCondition(cols []string, wheres []Condition) (Condition, bool) {
	for _, w := range wheres {
		for _, col := range cols {
			if string(w.Field) == col {
				return w, true
			}
		}
	}
	return Condition{}, false
}

// requireCountTypeFields picks out of fields the ones whose name is a
// configured count-type column. If cols is non-empty, at least one must
// be present.
func requireCountTypeFields(cols []string, fields []Field) ([]Field, error) {
	if len(cols) == 0 {
		return nil, nil
	}
	var out []Field
	for _, f := range fields {
		for _, col := range cols {
			if string(f.Name) == col {
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sqlbuild: si table requires a count-type value but none was supplied")
	}
	return out, nil
}

// requireCountTypeCondition picks the first where-condition naming a
// configured count-type column. If cols is non-empty, one must be
// present.
func requireCountTypeCondition(cols []string, wheres []Condition) (*Condition, error) {
	if len(cols) == 0 {
		return nil, nil
	}
	cond, ok := findCountTypeCondition(cols, wheres)
	if !ok {
		return nil, fmt.Errorf("sqlbuild: si table requires a count-type condition but none was supplied")
	}
	return &cond, nil
}
