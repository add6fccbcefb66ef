// Package callback implements the per-request state machine that drives
// sending, retrying, asynchronous write-back, and response delivery for a
// single client request in flight.
//
// A Context is created once per logical request, owned by the connection's
// in-flight set, and carries everything the dispatch and completion paths
// need to cooperate: the outbound command bytes, the policy flags
// controlling retry and write-back, a response slot that is written at
// most once per round, and an optional attachment used by multi-round
// aggregation queries. A mutex inside the Context guards this state.
//
// Context is not safe for concurrent Send/OnComplete/OnErr calls from more
// than one goroutine at a time -- exactly one task drives a given Context
// through its lifecycle at any moment, mirroring the single-consumer
// guarantee the response slot itself provides.
package callback
