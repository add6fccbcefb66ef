package topology

import (
	"fmt"

	"github.com/kvmesh/sidecar/internal/sqlbuild"
)

// MonthlyVectorStrategy implements sqlbuild.VectorStrategy for the
// event-vector backend: rows are partitioned into one table per calendar
// month, sharded on a single "uid" column (original_source/protocol/src/vector/mysql.rs's
// Table writer keys every statement on the request's hash value and
// (year, month) date).
type MonthlyVectorStrategy struct {
	// TablePrefix names the base table, e.g. "vector_events" yields
	// "vector_events_202607".
	TablePrefix string

	// KeyColumn names the single sharding-key column every vector row
	// carries.
	KeyColumn string

	// RangeBatchLimit caps VRange/VRangeTimeline row counts regardless of
	// what LIMIT the client asked for, to bound a single backend round
	// trip. Zero disables the override for that command.
	RangeBatchLimit int
}

// NewMonthlyVectorStrategy builds a strategy with the given table prefix,
// sharding on "uid", and a sane default range batch cap.
func NewMonthlyVectorStrategy(tablePrefix string) *MonthlyVectorStrategy {
	return &MonthlyVectorStrategy{
		TablePrefix:     tablePrefix,
		KeyColumn:       "uid",
		RangeBatchLimit: 500,
	}
}

// KeyColumns implements sqlbuild.VectorStrategy.
func (s *MonthlyVectorStrategy) KeyColumns() []string {
	return []string{s.KeyColumn}
}

// TableName implements sqlbuild.VectorStrategy, resolving req.TableDate's
// (year, month) into a concrete monthly table name.
func (s *MonthlyVectorStrategy) TableName(req sqlbuild.VectorRequest) string {
	y, m, _ := req.TableDate.Date()
	return fmt.Sprintf("%s_%04d%02d", s.TablePrefix, y, int(m))
}

// BatchLimit implements sqlbuild.VectorStrategy.
func (s *MonthlyVectorStrategy) BatchLimit(cmd sqlbuild.VectorCommandType) int {
	switch cmd {
	case sqlbuild.VRange, sqlbuild.VRangeTimeline:
		return s.RangeBatchLimit
	default:
		return 0
	}
}

var _ sqlbuild.VectorStrategy = (*MonthlyVectorStrategy)(nil)
