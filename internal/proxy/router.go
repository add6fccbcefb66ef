package proxy

import (
	"fmt"
	"time"

	"github.com/kvmesh/sidecar/internal/distribution"
	"github.com/kvmesh/sidecar/internal/topology"
)

// ErrNoShard is returned when a hash's year has no shard-list version
// loaded, or the resolved list is empty.
var ErrNoShard = fmt.Errorf("proxy: no shard mapped for this year")

// HasherAdapter bridges a distribution.Hasher (int64, keyed by
// algorithm name) to the uint64 Hasher interface every protocol
// decoder consumes.
type HasherAdapter struct {
	Hasher distribution.Hasher
}

// Hash satisfies redis.Hasher, mctext.Hasher, mq.Hasher, mcbinary's
// hashing callers, and kvector.Hasher -- every protocol codec's Hasher
// shape is Hash(key []byte) uint64.
func (a HasherAdapter) Hash(key []byte) uint64 {
	return uint64(a.Hasher.Hash(key))
}

// Router resolves a HashedCommand's hash and year into the shard it
// belongs to, and a shard into the endpoint a particular attempt
// should dispatch to.
type Router struct {
	shards *topology.Shards
	dist   distribution.Distributor
}

// NewRouter builds a Router over shards, sharding hashes with dist.
func NewRouter(shards *topology.Shards, dist distribution.Distributor) *Router {
	return &Router{shards: shards, dist: dist}
}

// Year reports the shard-map year a command routes under. The wire
// protocols this proxy speaks carry no date of their own, so the
// current wall-clock year is the namespace's active topology version.
// KVector's handler does not call Year: it sets its own TableDate, also
// from the current wall-clock time, and takes the year from that.
func (r *Router) Year() int {
	return time.Now().Year()
}

// ShardFor resolves hash's shard for year. ok is false if year has no
// shard-list version loaded, or the loaded list is empty.
func (r *Router) ShardFor(hash uint64, year int) (topology.Shard, bool) {
	list := r.shards.Get(year)
	if len(list) == 0 {
		return topology.Shard{}, false
	}
	idx := r.dist.Shard(int64(hash), len(list))
	if idx < 0 || idx >= len(list) {
		return topology.Shard{}, false
	}
	return list[idx], true
}

// SelectEndpoint resolves the backend a dispatch attempt should use:
// the shard's master for a write, or a replica from its slave pool
// (when one exists) for a read. lastIdx, when >= 0, is the replica
// index a previous attempt on this same command used; Distance takes
// it as the index to avoid repeating on a retry. The returned index is
// -1 for a master dispatch (Distance indices only make sense for the
// slave pool) and is what a caller should hand back to Router on a
// subsequent retry and to Distance.Penalize/RecordLatency.
func (r *Router) SelectEndpoint(shard topology.Shard, write bool, lastIdx int) (topology.Endpoint, int) {
	if write || shard.Slaves == nil || shard.Slaves.Len() == 0 {
		return shard.Master, -1
	}
	if lastIdx >= 0 {
		return shard.Slaves.Next(lastIdx, 1)
	}
	return shard.Slaves.Select()
}
