package sqlbuild

import (
	"bytes"
	"fmt"
)

// VectorStrategy resolves the sharding-key columns and timeline table
// name a VectorRequest routes to, and any per-command batch-size
// override the topology layer wants enforced regardless of what LIMIT
// the client sent.
type VectorStrategy interface {
	// KeyColumns names the sharding-key columns, in the order Keys
	// values are supplied in a VectorRequest.
	KeyColumns() []string

	// TableName resolves the timeline table a (hash, date) pair routes
	// to.
	TableName(req VectorRequest) string

	// BatchLimit returns a hard LIMIT override for cmd, or 0 to defer to
	// the request's own Limit.
	BatchLimit(cmd VectorCommandType) int
}

// BuildVectorPacket translates a VectorRequest against the main
// (timeline) table into a COM_QUERY packet:
//
//	VRange/VGet/VRangeTimeline -> select <cols|*> from <tbl> where <keys and conds> [group by] [order by] [limit]
//	VCard                      -> select count(*) from <tbl> where <keys and conds>
//	VAdd/VAddTimeline          -> insert into <tbl> (<keys>,<fields>) values (<keys>,<fields>)
//	VUpdate/VUpdateTimeline    -> update <tbl> set <fields> where <keys and conds>
//	VDel/VDelTimeline          -> delete from <tbl> where <keys and conds>
func BuildVectorPacket(strategy VectorStrategy, req VectorRequest, maxAllowedPacket int) ([]byte, error) {
	sql, err := BuildVectorSQL(strategy, req)
	if err != nil {
		return nil, err
	}
	return BuildQueryPacket(sql, maxAllowedPacket)
}

// BuildVectorSQL translates a VectorRequest into a raw, unwrapped SQL
// statement (no COM_QUERY header/sequence byte), for callers that hold
// their own connection sequence counter, such as
// mysqlbackend.Client.Query:
//
//	VRange/VGet/VRangeTimeline -> select <cols|*> from <tbl> where <keys and conds> [group by] [order by] [limit]
//	VCard                      -> select count(*) from <tbl> where <keys and conds>
//	VAdd/VAddTimeline          -> insert into <tbl> (<keys>,<fields>) values (<keys>,<fields>)
//	VUpdate/VUpdateTimeline    -> update <tbl> set <fields> where <keys and conds>
//	VDel/VDelTimeline          -> delete from <tbl> where <keys and conds>
func BuildVectorSQL(strategy VectorStrategy, req VectorRequest) ([]byte, error) {
	if err := ValidateVectorCmd(req.Cmd, req.Fields, req.Wheres); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch req.Cmd {
	case VRange, VGet, VRangeTimeline:
		if err := writeSelectColumns(&buf, req.Fields); err != nil {
			return nil, err
		}
		buf.WriteString(" from ")
		buf.WriteString(strategy.TableName(req))
		buf.WriteString(" where ")
		if err := writeKeyEqsAndConds(&buf, strategy, req); err != nil {
			return nil, err
		}
		if err := writeGroupOrderLimit(&buf, strategy, req); err != nil {
			return nil, err
		}
	case VCard:
		buf.WriteString("select count(*) from ")
		buf.WriteString(strategy.TableName(req))
		buf.WriteString(" where ")
		if err := writeKeyEqsAndConds(&buf, strategy, req); err != nil {
			return nil, err
		}
	case VAdd, VAddTimeline:
		if err := writeVectorInsert(&buf, strategy, req); err != nil {
			return nil, err
		}
	case VUpdate, VUpdateTimeline:
		if err := writeVectorUpdate(&buf, strategy, req); err != nil {
			return nil, err
		}
	case VDel, VDelTimeline:
		buf.WriteString("delete from ")
		buf.WriteString(strategy.TableName(req))
		buf.WriteString(" where ")
		if err := writeKeyEqsAndConds(&buf, strategy, req); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("sqlbuild: unsupported vector command %d", req.Cmd)
	}

	return buf.Bytes(), nil
}

// writeSelectColumns writes "select *" when no fields entry was given,
// or "select <value>" when one was -- a single fields entry on a
// range/get command carries a pre-validated comma-separated column
// list, forwarded verbatim (the codec validated each name against
// ValidateIdentifier while parsing it).
func writeSelectColumns(buf *bytes.Buffer, fields []Field) error {
	buf.WriteString("select ")
	if len(fields) == 0 {
		buf.WriteByte('*')
		return nil
	}
	buf.Write(fields[0].Value)
	return nil
}

func writeKeyEqsAndConds(buf *bytes.Buffer, strategy VectorStrategy, req VectorRequest) error {
	cols := strategy.KeyColumns()
	if len(cols) != len(req.Keys) {
		return fmt.Errorf("sqlbuild: expected %d sharding key value(s), got %d", len(cols), len(req.Keys))
	}
	for i, col := range cols {
		if i > 0 {
			buf.WriteString(" and ")
		}
		buf.WriteByte('`')
		buf.WriteString(col)
		buf.WriteString("`=")
		QuotedInto(buf, req.Keys[i])
	}
	for _, w := range req.Wheres {
		buf.WriteString(" and ")
		if err := writeCondition(buf, w); err != nil {
			return err
		}
	}
	return nil
}

// writeCondition writes "`field` in (...)" unquoted for the "in"
// operator (the value is a pre-validated numeric list), or
// "`field`<op>'value'" otherwise.
func writeCondition(buf *bytes.Buffer, c Condition) error {
	if err := ValidateIdentifier(c.Field); err != nil {
		return err
	}
	buf.WriteByte('`')
	buf.Write(c.Field)
	buf.WriteByte('`')
	if bytes.EqualFold(c.Op, []byte("in")) {
		buf.WriteString(" in (")
		buf.Write(c.Value)
		buf.WriteByte(')')
		return nil
	}
	buf.Write(c.Op)
	QuotedInto(buf, c.Value)
	return nil
}

func writeGroupOrderLimit(buf *bytes.Buffer, strategy VectorStrategy, req VectorRequest) error {
	if len(req.GroupBy) > 0 {
		buf.WriteString(" group by ")
		buf.Write(req.GroupBy)
	}
	if len(req.Order.Field) > 0 {
		if err := ValidateIdentifier(req.Order.Field); err != nil {
			return err
		}
		buf.WriteString(" order by `")
		buf.Write(req.Order.Field)
		buf.WriteString("` ")
		buf.Write(req.Order.Dir)
	}
	if limit := strategy.BatchLimit(req.Cmd); limit > 0 {
		fmt.Fprintf(buf, " limit %d", limit)
		return nil
	}
	if len(req.Limit.Count) > 0 {
		buf.WriteString(" limit ")
		buf.Write(req.Limit.Count)
		if len(req.Limit.Offset) > 0 {
			buf.WriteString(" offset ")
			buf.Write(req.Limit.Offset)
		}
	}
	return nil
}

func writeVectorInsert(buf *bytes.Buffer, strategy VectorStrategy, req VectorRequest) error {
	buf.WriteString("insert into ")
	buf.WriteString(strategy.TableName(req))
	buf.WriteString(" (")
	cols := strategy.KeyColumns()
	for i, col := range cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('`')
		buf.WriteString(col)
		buf.WriteByte('`')
	}
	for _, f := range req.Fields {
		if err := ValidateIdentifier(f.Name); err != nil {
			return err
		}
		buf.WriteByte(',')
		buf.WriteByte('`')
		buf.Write(f.Name)
		buf.WriteByte('`')
	}
	buf.WriteString(") values (")
	if len(cols) != len(req.Keys) {
		return fmt.Errorf("sqlbuild: expected %d sharding key value(s), got %d", len(cols), len(req.Keys))
	}
	for i, k := range req.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		QuotedInto(buf, k)
	}
	for _, f := range req.Fields {
		buf.WriteByte(',')
		QuotedInto(buf, f.Value)
	}
	buf.WriteByte(')')
	return nil
}

func writeVectorUpdate(buf *bytes.Buffer, strategy VectorStrategy, req VectorRequest) error {
	buf.WriteString("update ")
	buf.WriteString(strategy.TableName(req))
	buf.WriteString(" set ")
	for i, f := range req.Fields {
		if err := ValidateIdentifier(f.Name); err != nil {
			return err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('`')
		buf.Write(f.Name)
		buf.WriteString("`=")
		QuotedInto(buf, f.Value)
	}
	buf.WriteString(" where ")
	return writeKeyEqsAndConds(buf, strategy, req)
}
