package respstream

import (
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/kvmesh/sidecar/pkg/cmap"
)

// Pool keeps one Stream per backend address, created lazily on first use.
// It is the thing a connection handler actually asks for a slot table:
// backends come and go as topology changes, so the pool is keyed by
// address rather than held as a fixed list.
type Pool struct {
	slotsPerStream int
	log            *slog.Logger
	streams        *cmap.Map[string, *Stream]
}

// NewPool builds a Pool whose Streams each have slotsPerStream request
// slots.
func NewPool(slotsPerStream int, logger *slog.Logger) *Pool {
	return &Pool{
		slotsPerStream: slotsPerStream,
		log:            logger,
		streams:        cmap.New[string, *Stream](),
	}
}

// Get returns the Stream bound to addr, creating one if none exists yet.
func (p *Pool) Get(addr string) *Stream {
	if st, ok := p.streams.Get(addr); ok {
		return st
	}
	st := New(p.slotsPerStream, p.log)
	p.streams.Set(addr, st)
	return st
}

// Drop removes addr's Stream from the pool without closing it; callers
// that already hold a reference keep using it until their own tasks exit.
func (p *Pool) Drop(addr string) {
	p.streams.Delete(addr)
}

// CloseAll calls TryClose on every pooled Stream and aggregates whatever
// goes wrong closing each backend connection's slot table into a single
// error, rather than surfacing only the first failure.
func (p *Pool) CloseAll(closeErrs map[string]error) error {
	var result *multierror.Error
	for addr, err := range closeErrs {
		if err != nil {
			result = multierror.Append(result, err)
		}
		if st, ok := p.streams.Get(addr); ok {
			st.TryClose()
		}
	}
	return result.ErrorOrNil()
}

// Count returns the number of backend streams currently pooled.
func (p *Pool) Count() int { return p.streams.Count() }
