package dnscache

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/miekg/dns"
)

// Resolver looks up the IPv4 addresses for a host. It exists so the tick
// loop can be driven in tests against a fake without touching the
// network.
type Resolver interface {
	Resolve(ctx context.Context, host string) ([]netip.Addr, error)
}

// dnsResolver is the production Resolver, built on miekg/dns against the
// system's configured nameservers.
type dnsResolver struct {
	client *dns.Client
	server string
}

// NewResolver builds a Resolver against server (host:port, e.g.
// "127.0.0.1:53"). If server is empty, NewSystemResolver should be used
// instead to read /etc/resolv.conf.
func NewResolver(server string) Resolver {
	return &dnsResolver{client: new(dns.Client), server: server}
}

// NewSystemResolver builds a Resolver using the first nameserver found in
// /etc/resolv.conf, falling back to server if that can't be read.
func NewSystemResolver(fallback string) Resolver {
	server := fallback
	if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(cfg.Servers) > 0 {
		server = fmt.Sprintf("%s:%s", cfg.Servers[0], cfg.Port)
	}
	return NewResolver(server)
}

func (r *dnsResolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("dnscache: resolve %q via %s: %w", host, r.server, err)
	}

	var out []netip.Addr
	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		v4 := a.A.To4()
		if v4 == nil {
			continue
		}
		addr, ok := netip.AddrFromSlice(v4)
		if !ok {
			continue
		}
		out = append(out, addr.Unmap())
	}
	return out, nil
}
