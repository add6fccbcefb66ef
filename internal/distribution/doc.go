// Package distribution supplies the hash functions and shard-distribution
// strategies a Strategy (in internal/topology) plugs together: a Hasher
// turns a key into a fingerprint, a Distributor turns that fingerprint
// plus a shard count into a shard index.
//
// Three distribution strategies are provided, matching the names real
// namespace specs use: modula (plain modulo), range (a contiguous
// range partition of the hash space), and ketama (a consistent-hashing
// ring with virtual nodes, generalizing the teacher's node-ring shard map
// to return a dense shard index instead of a node address).
package distribution
