package sqlbuild

import (
	"testing"
	"time"

	"github.com/kvmesh/sidecar/internal/protocol/mysqlwire"
)

type fixedSIStrategy struct {
	table     string
	key       string
	date      string
	count     string
	countType []string
}

func (f fixedSIStrategy) SITableName(hash uint64) string  { return f.table }
func (f fixedSIStrategy) KeyColumn() string                { return f.key }
func (f fixedSIStrategy) DateColumn() string                { return f.date }
func (f fixedSIStrategy) CountColumn() string                { return f.count }
func (f fixedSIStrategy) CountTypeColumns() []string          { return f.countType }

func siSQL(t *testing.T, pkt []byte) string {
	t.Helper()
	return string(pkt[mysqlwire.HeaderLen+1:])
}

func TestBuildSIPacketRange(t *testing.T) {
	strategy := fixedSIStrategy{table: "si_counts", key: "uid", date: "day", count: "cnt"}
	req := SIRequest{Cmd: VRange, Key: []byte("9")}
	pkt, err := BuildSIPacket(strategy, req, DefaultMaxAllowedPacket)
	if err != nil {
		t.Fatalf("BuildSIPacket: %v", err)
	}
	want := "select `uid`,`day`,sum(`cnt`) from si_counts where `uid`='9' group by `uid`,`day` order by `day` desc"
	if got := siSQL(t, pkt); got != want {
		t.Fatalf("sql = %q, want %q", got, want)
	}
}

func TestBuildSIPacketRangeWithCountTypeFilter(t *testing.T) {
	strategy := fixedSIStrategy{table: "si_counts", key: "uid", date: "day", count: "cnt", countType: []string{"kind"}}
	req := SIRequest{
		Cmd:    VRange,
		Key:    []byte("9"),
		Wheres: []Condition{{Field: []byte("kind"), Op: []byte("="), Value: []byte("click")}},
	}
	pkt, err := BuildSIPacket(strategy, req, DefaultMaxAllowedPacket)
	if err != nil {
		t.Fatalf("BuildSIPacket: %v", err)
	}
	want := "select `uid`,`day`,sum(`cnt`) from si_counts where `uid`='9' and `kind`='click' group by `uid`,`day` order by `day` desc"
	if got := siSQL(t, pkt); got != want {
		t.Fatalf("sql = %q, want %q", got, want)
	}
}

func TestBuildSIPacketInsertWithoutCountType(t *testing.T) {
	strategy := fixedSIStrategy{table: "si_counts", key: "uid", date: "day", count: "cnt"}
	req := SIRequest{Cmd: VAdd, Key: []byte("9"), Date: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)}
	pkt, err := BuildSIPacket(strategy, req, DefaultMaxAllowedPacket)
	if err != nil {
		t.Fatalf("BuildSIPacket: %v", err)
	}
	want := "insert into si_counts (`uid`,`day`,`cnt`) values ('9','2026-07-31',1) on duplicate key update `cnt`=greatest(0,cast(`cnt` as signed)+1)"
	if got := siSQL(t, pkt); got != want {
		t.Fatalf("sql = %q, want %q", got, want)
	}
}

func TestBuildSIPacketInsertRequiresCountTypeWhenConfigured(t *testing.T) {
	strategy := fixedSIStrategy{table: "si_counts", key: "uid", date: "day", count: "cnt", countType: []string{"kind"}}
	req := SIRequest{Cmd: VAdd, Key: []byte("9"), Date: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)}
	if _, err := BuildSIPacket(strategy, req, DefaultMaxAllowedPacket); err == nil {
		t.Fatal("expected error: si insert requires a count-type value")
	}
}

func TestBuildSIPacketInsertWithCountType(t *testing.T) {
	strategy := fixedSIStrategy{table: "si_counts", key: "uid", date: "day", count: "cnt", countType: []string{"kind"}}
	req := SIRequest{
		Cmd:    VAdd,
		Key:    []byte("9"),
		Fields: []Field{{Name: []byte("kind"), Value: []byte("click")}},
		Date:   time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	}
	pkt, err := BuildSIPacket(strategy, req, DefaultMaxAllowedPacket)
	if err != nil {
		t.Fatalf("BuildSIPacket: %v", err)
	}
	want := "insert into si_counts (`uid`,`kind`,`day`,`cnt`) values ('9','click','2026-07-31',1) on duplicate key update `cnt`=greatest(0,cast(`cnt` as signed)+1)"
	if got := siSQL(t, pkt); got != want {
		t.Fatalf("sql = %q, want %q", got, want)
	}
}

func TestBuildSIPacketDeleteRequiresCountTypeWhenConfigured(t *testing.T) {
	strategy := fixedSIStrategy{table: "si_counts", key: "uid", date: "day", count: "cnt", countType: []string{"kind"}}
	req := SIRequest{Cmd: VDel, Key: []byte("9"), Date: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)}
	if _, err := BuildSIPacket(strategy, req, DefaultMaxAllowedPacket); err == nil {
		t.Fatal("expected error: si delete requires a count-type condition")
	}
}

func TestBuildSIPacketDelete(t *testing.T) {
	strategy := fixedSIStrategy{table: "si_counts", key: "uid", date: "day", count: "cnt"}
	req := SIRequest{Cmd: VDel, Key: []byte("9"), Date: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)}
	pkt, err := BuildSIPacket(strategy, req, DefaultMaxAllowedPacket)
	if err != nil {
		t.Fatalf("BuildSIPacket: %v", err)
	}
	want := "update si_counts set `cnt`=greatest(0,cast(`cnt` as signed)-1) where `uid`='9' and `day`='2026-07-31'"
	if got := siSQL(t, pkt); got != want {
		t.Fatalf("sql = %q, want %q", got, want)
	}
}
