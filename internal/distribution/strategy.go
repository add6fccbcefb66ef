package distribution

import (
	"math"
	"sort"

	"github.com/spaolacci/murmur3"
)

// Distributor maps a key's hash onto one of n shard indices, n > 0.
type Distributor interface {
	Name() string
	Shard(hash int64, n int) int
}

// Modula is the simplest strategy: shard = hash mod n, normalized into
// [0, n).
type Modula struct{}

func (Modula) Name() string { return "modula" }

func (Modula) Shard(hash int64, n int) int {
	m := hash % int64(n)
	if m < 0 {
		m += int64(n)
	}
	return int(m)
}

// Range partitions the full hash space into n contiguous, equal-width
// buckets and reports which bucket hash falls in. Unlike Modula, shards
// adjacent in index are also adjacent in hash space, which matters for
// range-scan-friendly backends.
type Range struct{}

func (Range) Name() string { return "range" }

func (Range) Shard(hash int64, n int) int {
	// Treat the hash as unsigned to get a uniform [0, 2^64) domain, then
	// scale down to [0, n) without overflowing into float imprecision at
	// the top of the range.
	u := uint64(hash)
	bucket := u / (math.MaxUint64/uint64(n) + 1)
	if int(bucket) >= n {
		bucket = uint64(n - 1)
	}
	return int(bucket)
}

// DefaultVirtualNodes is how many ring points each shard gets in a Ketama
// distributor, the same value the teacher's consistent-hash shard map
// uses.
const DefaultVirtualNodes = 256

// Ketama is a consistent-hashing ring over a fixed shard count: each
// shard owns DefaultVirtualNodes points on the ring, and a key's hash
// resolves to the shard owning the next point clockwise. Built once per
// shard count (ring membership doesn't change at request time — shard
// membership changes go through a new namespace spec, not a live Ketama
// mutation).
type Ketama struct {
	n      int
	hashes []uint64
	owners []int // owners[i] is the shard index for ring point hashes[i]
}

// NewKetama builds a ring for n shards.
func NewKetama(n int) *Ketama {
	type point struct {
		hash  uint64
		shard int
	}
	points := make([]point, 0, n*DefaultVirtualNodes)
	for shard := 0; shard < n; shard++ {
		for v := 0; v < DefaultVirtualNodes; v++ {
			points = append(points, point{hash: virtualNodeHash(shard, v), shard: shard})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].hash < points[j].hash })

	k := &Ketama{n: n, hashes: make([]uint64, len(points)), owners: make([]int, len(points))}
	for i, p := range points {
		k.hashes[i] = p.hash
		k.owners[i] = p.shard
	}
	return k
}

func virtualNodeHash(shard, virtual int) uint64 {
	h := murmur3.New64()
	var buf [8]byte
	buf[0] = byte(shard >> 24)
	buf[1] = byte(shard >> 16)
	buf[2] = byte(shard >> 8)
	buf[3] = byte(shard)
	buf[4] = byte(virtual >> 24)
	buf[5] = byte(virtual >> 16)
	buf[6] = byte(virtual >> 8)
	buf[7] = byte(virtual)
	h.Write(buf[:])
	return h.Sum64()
}

func (k *Ketama) Name() string { return "ketama" }

// Shard ignores the n argument (the ring is already fixed to the shard
// count it was built for) and resolves hash to the shard owning the next
// ring point at or after it, wrapping around to the first point.
func (k *Ketama) Shard(hash int64, _ int) int {
	if len(k.hashes) == 0 {
		return 0
	}
	h := uint64(hash)
	idx := sort.Search(len(k.hashes), func(i int) bool { return k.hashes[i] >= h })
	if idx == len(k.hashes) {
		idx = 0
	}
	return k.owners[idx]
}

// DistributorByName resolves a configured distribution strategy name.
// Ketama must be constructed with NewKetama (it needs the shard count up
// front); DistributorByName only returns the two stateless strategies.
func DistributorByName(name string) Distributor {
	switch name {
	case "modula", "":
		return Modula{}
	case "range":
		return Range{}
	default:
		panic("distribution: unknown distributor " + name)
	}
}
