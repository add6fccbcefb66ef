package topology

import "fmt"

// Endpoint identifies one backend connection target.
type Endpoint struct {
	Addr string // host:port
}

// Shard is one dense shard slot: a master endpoint plus its slave pool.
// Slaves may be nil for a master-only shard.
type Shard struct {
	Master Endpoint
	Slaves *Distance[Endpoint]
}

const (
	minYear = 2000
	maxYear = 2099
)

// Shards holds every year-partitioned shard-list version loaded for a
// namespace: a dense vector of shard lists, plus a year→list-index
// secondary index. Year ranges pushed in must not overlap (gaps between
// them are allowed); pushing an overlapping range is a programming error
// and returns an error rather than silently clobbering the prior
// mapping.
type Shards struct {
	lists      [][]Shard
	yearToList [maxYear - minYear + 1]int // -1 means unset
}

// NewShards builds an empty Shards table.
func NewShards() *Shards {
	s := &Shards{}
	for i := range s.yearToList {
		s.yearToList[i] = -1
	}
	return s
}

// PushYearRange registers shardList as the topology in effect for every
// year in [fromYear, toYear] (inclusive), and returns the dense index it
// was stored at. It is an error for any year in the range to already be
// mapped to a different list.
func (s *Shards) PushYearRange(fromYear, toYear int, shardList []Shard) (int, error) {
	if fromYear < minYear || toYear > maxYear || fromYear > toYear {
		return 0, fmt.Errorf("topology: invalid year range [%d,%d]", fromYear, toYear)
	}
	for y := fromYear; y <= toYear; y++ {
		if s.yearToList[y-minYear] != -1 {
			return 0, fmt.Errorf("topology: year %d already mapped to shard list %d", y, s.yearToList[y-minYear])
		}
	}
	idx := len(s.lists)
	s.lists = append(s.lists, shardList)
	for y := fromYear; y <= toYear; y++ {
		s.yearToList[y-minYear] = idx
	}
	return idx, nil
}

// Get returns the shard list in effect for year, or nil if year is
// outside [2000,2099] or has no mapping (a "hole" year).
func (s *Shards) Get(year int) []Shard {
	if year < minYear || year > maxYear {
		return nil
	}
	idx := s.yearToList[year-minYear]
	if idx < 0 {
		return nil
	}
	return s.lists[idx]
}

// ListCount reports how many distinct shard-list versions are loaded.
func (s *Shards) ListCount() int { return len(s.lists) }
