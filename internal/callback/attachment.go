package callback

import (
	"time"

	"github.com/kvmesh/sidecar/internal/respstream"
)

// Attachment is the aggregation hook a multi-round query (vector range
// aggregation's SI-then-timeline plan) installs on a Context. When set, a
// successful backend response is routed through Update instead of being
// accepted directly.
type Attachment interface {
	// Update consumes resp and reports whether this was the final round
	// needed to satisfy the request. When it returns false, the Context
	// resets its try counter and arranges to re-enter send for another
	// round instead of completing.
	Update(resp *respstream.Response) (last bool)

	// OnDrop runs exactly once when the owning Context is closed. It is
	// the attachment's chance to release anything it buffered across
	// rounds.
	OnDrop()
}

// Waker is the per-connection notification the owning client-write loop
// blocks on; OnDone calls Wake exactly once per completed request.
type Waker interface {
	Wake()
}

// QuotaPenalizer charges a backend replica's quota after a failed call,
// implemented by internal/topology's Distance.
type QuotaPenalizer interface {
	Penalize(idx int, charge time.Duration)
}
