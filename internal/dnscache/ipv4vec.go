package dnscache

import (
	"encoding/binary"
	"net/netip"
)

// Ipv4Vec is a small set of IPv4 addresses for one host.
//
// Equality is intentionally not a plain slice comparison: for 0, 1, or 2
// addresses it's exact (checking both orderings at length 2); for 3 or
// more it degrades to comparing the sum of the addresses, which is
// order-insensitive but collision-prone. That's preserved on purpose.
// The cache uses equality to decide whether a refresh changed anything:
// when two different sets collide on their sum, the refresh keeps the
// old set and sends no notify.
type Ipv4Vec struct {
	ips []netip.Addr
}

// NewIpv4Vec builds an Ipv4Vec from resolved addresses. The slice is
// copied; callers may reuse their backing array afterwards.
func NewIpv4Vec(ips []netip.Addr) Ipv4Vec {
	out := make([]netip.Addr, len(ips))
	copy(out, ips)
	return Ipv4Vec{ips: out}
}

// Addrs returns the addresses in this set. Callers must not mutate the
// returned slice.
func (v Ipv4Vec) Addrs() []netip.Addr { return v.ips }

// Len returns the number of addresses.
func (v Ipv4Vec) Len() int { return len(v.ips) }

// Empty reports whether the set holds no addresses.
func (v Ipv4Vec) Empty() bool { return len(v.ips) == 0 }

// Equal implements the length-aware comparison documented on the type.
func (v Ipv4Vec) Equal(o Ipv4Vec) bool {
	if len(v.ips) != len(o.ips) {
		return false
	}
	switch len(v.ips) {
	case 0:
		return true
	case 1:
		return v.ips[0] == o.ips[0]
	case 2:
		return (v.ips[0] == o.ips[0] && v.ips[1] == o.ips[1]) ||
			(v.ips[0] == o.ips[1] && v.ips[1] == o.ips[0])
	default:
		return sumAddrs(v.ips) == sumAddrs(o.ips)
	}
}

func sumAddrs(ips []netip.Addr) uint32 {
	var sum uint32
	for _, ip := range ips {
		a4 := ip.As4()
		sum += binary.BigEndian.Uint32(a4[:])
	}
	return sum
}
