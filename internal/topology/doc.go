// Package topology resolves a hashed, dated key down to a concrete
// backend endpoint: a year-partitioned Shards table picks the shard list
// in effect for a request's date, a Distance selects among that shard's
// replicas (quota-governed, with several selection policies), and
// vectorplan/mqtopology add the two domain-specific planning wrinkles —
// the MySQL vector aggregation round trip and the message-queue
// read/write/offline population split.
//
// This is a direct generalization of the teacher's consistent-hash
// ShardMap (internal/server/clusterserver/shard.go): the virtual-node
// ring idea survives in internal/distribution's Ketama distributor, and
// this package adds the year-range secondary index and replica-pool
// selection the teacher's map never needed.
package topology
