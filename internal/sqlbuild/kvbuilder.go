package sqlbuild

import (
	"bytes"
	"fmt"
)

// KVOp is one of the five memcached-binary opcodes the KV bridge
// translates to SQL against a single id/content table.
type KVOp uint8

const (
	KVOpAdd KVOp = iota
	KVOpSet
	KVOpGet
	KVOpGetK
	KVOpDel
)

// KVRequest is the minimal shape the KV builder needs out of a parsed
// memcached command: its opcode, key, and (for Add/Set) value.
type KVRequest struct {
	Op    KVOp
	Key   []byte
	Value []byte
}

// KVTableNamer resolves the id/content table a key routes to, the way
// the topology year/shard strategy does for a given key.
type KVTableNamer interface {
	TableName(key []byte) string
}

// BuildKVPacket emits the memcached-to-MySQL bridge SQL for req against
// the table strategy names, and frames it into a COM_QUERY packet.
//
//	ADD      -> insert into <tbl> (id,content) values (<key>,'<val>')
//	SET      -> update <tbl> set content='<val>' where id=<key>
//	GET/GETK -> select content from <tbl> where id=<key>
//	DEL      -> delete from <tbl> where id=<key>
//
// The id value is written escaped but unquoted, matching the origin
// mc2mysql builder -- ids are the memcached key bytes, which this
// deployment always populates with numeric strings.
func BuildKVPacket(strategy KVTableNamer, req KVRequest, maxAllowedPacket int) ([]byte, error) {
	table := strategy.TableName(req.Key)

	var buf bytes.Buffer
	switch req.Op {
	case KVOpAdd:
		buf.WriteString("insert into ")
		buf.WriteString(table)
		buf.WriteString(" (id,content) values (")
		EscapeInto(&buf, req.Key)
		buf.WriteByte(',')
		QuotedInto(&buf, req.Value)
		buf.WriteByte(')')
	case KVOpSet:
		buf.WriteString("update ")
		buf.WriteString(table)
		buf.WriteString(" set content=")
		QuotedInto(&buf, req.Value)
		buf.WriteString(" where id=")
		EscapeInto(&buf, req.Key)
	case KVOpDel:
		buf.WriteString("delete from ")
		buf.WriteString(table)
		buf.WriteString(" where id=")
		EscapeInto(&buf, req.Key)
	case KVOpGet, KVOpGetK:
		buf.WriteString("select content from ")
		buf.WriteString(table)
		buf.WriteString(" where id=")
		EscapeInto(&buf, req.Key)
	default:
		return nil, fmt.Errorf("sqlbuild: unsupported KV op %d", req.Op)
	}

	return BuildQueryPacket(buf.Bytes(), maxAllowedPacket)
}
