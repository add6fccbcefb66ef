// Package proxy wires the protocol codecs, the callback dispatch state
// machine, the backend multiplexing stream, and the shard topology into
// running connection handlers.
//
// Each protocol gets one handler type (RedisHandler, MctextHandler,
// McbinaryHandler, MqHandler, KvectorHandler) implementing ConnHandler;
// Server drives its accept loop the same way localserver.Server does.
// A handler decodes a client connection's requests with its protocol
// package's Decoder, resolves each HashedCommand's target shard and
// replica through a Router, and round-trips it to a backend through a
// shared Backend connection pool before writing the client-facing
// response with the protocol package's response helpers.
//
// KVector is the one exception: it has no Processor/HashedCommand
// round trip of its own. Its handler resolves a shard the same way,
// but dispatches by building SQL via internal/sqlbuild and querying a
// internal/protocol/mysqlbackend.Client directly, rather than going
// through Backend/respstream.
package proxy
