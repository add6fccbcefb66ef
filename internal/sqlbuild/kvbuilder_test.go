package sqlbuild

import (
	"strings"
	"testing"

	"github.com/kvmesh/sidecar/internal/protocol/mysqlwire"
)

type fixedKVTable struct{ name string }

func (f fixedKVTable) TableName(key []byte) string { return f.name }

func kvSQL(t *testing.T, pkt []byte) string {
	t.Helper()
	return string(pkt[mysqlwire.HeaderLen+1:])
}

func TestBuildKVPacketTemplates(t *testing.T) {
	strategy := fixedKVTable{name: "kv_0001"}

	tests := []struct {
		name string
		req  KVRequest
		want string
	}{
		{
			name: "add",
			req:  KVRequest{Op: KVOpAdd, Key: []byte("42"), Value: []byte("payload")},
			want: "insert into kv_0001 (id,content) values (42,'payload')",
		},
		{
			name: "set",
			req:  KVRequest{Op: KVOpSet, Key: []byte("42"), Value: []byte("updated")},
			want: "update kv_0001 set content='updated' where id=42",
		},
		{
			name: "get",
			req:  KVRequest{Op: KVOpGet, Key: []byte("42")},
			want: "select content from kv_0001 where id=42",
		},
		{
			name: "getk",
			req:  KVRequest{Op: KVOpGetK, Key: []byte("42")},
			want: "select content from kv_0001 where id=42",
		},
		{
			name: "del",
			req:  KVRequest{Op: KVOpDel, Key: []byte("42")},
			want: "delete from kv_0001 where id=42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := BuildKVPacket(strategy, tt.req, DefaultMaxAllowedPacket)
			if err != nil {
				t.Fatalf("BuildKVPacket: %v", err)
			}
			if got := kvSQL(t, pkt); got != tt.want {
				t.Fatalf("sql = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildKVPacketQuotesValueNotKey(t *testing.T) {
	strategy := fixedKVTable{name: "kv_0001"}
	req := KVRequest{Op: KVOpAdd, Key: []byte("7"), Value: []byte(`o'brien`)}

	pkt, err := BuildKVPacket(strategy, req, DefaultMaxAllowedPacket)
	if err != nil {
		t.Fatalf("BuildKVPacket: %v", err)
	}
	sql := kvSQL(t, pkt)
	if !strings.Contains(sql, `'o\'brien'`) {
		t.Fatalf("sql = %q, want escaped+quoted value", sql)
	}
	if !strings.Contains(sql, "values (7,") {
		t.Fatalf("sql = %q, want unquoted id", sql)
	}
}

func TestBuildKVPacketUnsupportedOp(t *testing.T) {
	strategy := fixedKVTable{name: "kv_0001"}
	_, err := BuildKVPacket(strategy, KVRequest{Op: KVOp(99), Key: []byte("1")}, DefaultMaxAllowedPacket)
	if err == nil {
		t.Fatal("expected error for unsupported op")
	}
}
