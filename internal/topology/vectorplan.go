package topology

import "time"

// SIItem is one (date, count) tuple the summary-index shard returns for
// an aggregation-mode VRange.
type SIItem struct {
	Date  time.Time
	Count int
}

// AggregationPlan drives the two-phase vector aggregation round trip:
// round 0 resolves the summary-index shard's (date, count) tuples, then
// each subsequent round retrieves one month's timeline rows until the
// requested limit is satisfied or the SI items are exhausted.
type AggregationPlan struct {
	requestedLimit int

	items     []SIItem
	leftCount int
	round     int // 0 = awaiting SI response; 1..len(items) = timeline round in progress
	last      bool

	// siFailed marks a non-fatal SI-shard error: the plan degrades to a
	// direct main-shard dispatch using the strategy's own date resolver,
	// skipping SI entirely (original_source/endpoint/src/vector/topo.rs).
	siFailed bool

	buffered [][]byte // accumulated per-round response bytes, in order
}

// NewAggregationPlan starts a plan for a VRange-style request asking for
// at most limit rows.
func NewAggregationPlan(limit int) *AggregationPlan {
	return &AggregationPlan{requestedLimit: limit}
}

// ApplySIResponse consumes the summary-index shard's (date,count) tuples
// and moves the plan into its first timeline round.
func (p *AggregationPlan) ApplySIResponse(items []SIItem) {
	sum := 0
	for _, it := range items {
		sum += it.Count
	}
	p.items = items
	p.leftCount = min(p.requestedLimit, sum)
	p.round = 1
	if len(items) == 0 || p.leftCount == 0 {
		p.last = true
	}
}

// FailSI marks the SI shard as having returned a non-fatal error; the
// caller should skip straight to a direct main-shard dispatch for the
// request's own date rather than retrying SI.
func (p *AggregationPlan) FailSI() {
	p.siFailed = true
	p.last = true
}

// SIFailed reports whether FailSI was called.
func (p *AggregationPlan) SIFailed() bool { return p.siFailed }

// NeedsSIRound reports whether the plan is still waiting on the initial
// summary-index response.
func (p *AggregationPlan) NeedsSIRound() bool { return p.round == 0 && !p.siFailed }

// Done reports whether the plan has emitted its last round.
func (p *AggregationPlan) Done() bool { return p.last }

// NextTimelineQuery returns the SI item and row limit for the current
// timeline round, and false if there is no next round to issue (either
// the plan is done, or the SI phase hasn't completed yet).
func (p *AggregationPlan) NextTimelineQuery() (SIItem, int, bool) {
	if p.last || p.round < 1 || p.round > len(p.items) {
		return SIItem{}, 0, false
	}
	item := p.items[p.round-1]
	limit := p.leftCount
	if item.Count < limit {
		limit = item.Count
	}
	return item, limit, true
}

// ApplyTimelineResponse records one round's result: rowCount rows were
// returned, consuming that much of the remaining budget, and payload is
// buffered for the final combined response. It advances to the next
// round or marks the plan done.
func (p *AggregationPlan) ApplyTimelineResponse(rowCount int, payload []byte) {
	p.leftCount -= rowCount
	if p.leftCount < 0 {
		p.leftCount = 0
	}
	p.buffered = append(p.buffered, payload)
	if p.leftCount == 0 || p.round >= len(p.items) {
		p.last = true
		return
	}
	p.round++
}

// Buffered returns every round's payload bytes in order, for the caller
// to stitch into the combined client-facing response.
func (p *AggregationPlan) Buffered() [][]byte { return p.buffered }
