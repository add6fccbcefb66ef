package controlplane

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/kvmesh/sidecar/internal/dnscache"
	"github.com/kvmesh/sidecar/internal/secrets"
	"github.com/kvmesh/sidecar/internal/topology"
)

// NamespaceSource is what the running core depends on to receive
// namespace configuration. It names the effect ("apply this update")
// and not the mechanism (HTTP, a file watch, a gRPC stream) so Server
// can be swapped for another transport without touching core code.
type NamespaceSource interface {
	Apply(NamespaceUpdate) error
}

// slavePolicies maps the wire name for a replica-selection policy to its
// topology.Policy constant. An empty or unrecognized name falls back to
// PolicyRandom.
var slavePolicies = map[string]topology.Policy{
	"":                topology.PolicyRandom,
	"random":          topology.PolicyRandom,
	"round_robin":     topology.PolicyRoundRobinQuota,
	"performance":     topology.PolicyPerformanceTuned,
	"region_affinity": topology.PolicyRegionAffinity,
}

// CoreSource is the NamespaceSource the proxy actually runs: it pushes
// shard-list versions into a topology.Shards, registers every endpoint
// host with a dnscache.Cache so the periodic resolver starts tracking
// it, and encrypts any MySQL credential at rest via a secrets.Store.
//
// cmd/meshsidecar builds a single CoreSource: every namespace's pushes
// land in the same shards table, and the dnscache and secrets store are
// process-wide singletons.
type CoreSource struct {
	shards *topology.Shards
	dns    *dnscache.Cache
	store  *secrets.Store

	// pushMu serializes PushYearRange calls: topology.Shards has no
	// internal locking of its own, so concurrent Apply calls against the
	// same namespace must not race on it.
	pushMu sync.Mutex

	mu          sync.Mutex
	credentials map[string]*secrets.Credential

	// registered tracks hosts this source has already subscribed to dns,
	// so repeated applies of an overlapping shard map don't re-register
	// the same host on every push.
	registered map[string]*atomic.Bool
}

// NewCoreSource builds a CoreSource. dns and store may be nil, in which
// case DNS registration and credential encryption are skipped
// respectively — useful for namespaces that carry no MySQL traffic or
// tests that don't care about host resolution.
func NewCoreSource(shards *topology.Shards, dns *dnscache.Cache, store *secrets.Store) *CoreSource {
	return &CoreSource{
		shards:      shards,
		dns:         dns,
		store:       store,
		credentials: make(map[string]*secrets.Credential),
		registered:  make(map[string]*atomic.Bool),
	}
}

// Apply pushes one namespace update into the shard table, registers its
// hosts for DNS resolution, and encrypts its MySQL credential, if any.
// A failure partway through (a bad year range, say) leaves whatever
// shard-list versions were already pushed in place; PushYearRange itself
// is all-or-nothing per call, so there is no partially-applied range.
func (s *CoreSource) Apply(update NamespaceUpdate) error {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	for _, rng := range update.Shards {
		list, err := s.buildShardList(rng.List)
		if err != nil {
			return fmt.Errorf("controlplane: namespace %q: %w", update.Namespace, err)
		}
		if _, err := s.shards.PushYearRange(rng.FromYear, rng.ToYear, list); err != nil {
			return fmt.Errorf("controlplane: namespace %q: %w", update.Namespace, err)
		}
	}

	if update.MySQL != nil {
		if err := s.applyCredential(*update.MySQL); err != nil {
			return fmt.Errorf("controlplane: namespace %q: %w", update.Namespace, err)
		}
	}

	return nil
}

// CredentialFor returns the encrypted credential pushed under label, and
// whether one has been applied yet.
func (s *CoreSource) CredentialFor(label string) (*secrets.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[label]
	return cred, ok
}

func (s *CoreSource) applyCredential(update CredentialUpdate) error {
	if s.store == nil {
		return fmt.Errorf("mysql credential pushed for label %q but no secrets store is configured", update.Label)
	}
	cred, err := s.store.Encrypt(update.Label, []byte(update.User), []byte(update.Password))
	if err != nil {
		return fmt.Errorf("encrypt credential for label %q: %w", update.Label, err)
	}
	s.mu.Lock()
	s.credentials[update.Label] = cred
	s.mu.Unlock()
	return nil
}

func (s *CoreSource) buildShardList(shards []ShardUpdate) ([]topology.Shard, error) {
	list := make([]topology.Shard, 0, len(shards))
	for _, sh := range shards {
		master := topology.Endpoint{Addr: sh.Master.Addr}
		s.registerHost(master.Addr)

		shard := topology.Shard{Master: master}
		if len(sh.Slaves) > 0 {
			replicas := make([]topology.Endpoint, 0, len(sh.Slaves))
			for _, e := range sh.Slaves {
				replicas = append(replicas, topology.Endpoint{Addr: e.Addr})
				s.registerHost(e.Addr)
			}
			policy, ok := slavePolicies[sh.SlavePolicy]
			if !ok {
				return nil, fmt.Errorf("unrecognized slave_policy %q", sh.SlavePolicy)
			}
			shard.Slaves = topology.NewDistance(replicas, policy, sh.SlaveRPS)
		}
		list = append(list, shard)
	}
	return list, nil
}

// registerHost subscribes addr's host portion with the DNS cache exactly
// once. The subscription flag is never read by this package; Register's
// contract only requires a stable *atomic.Bool to flip on change, and
// CoreSource has no reload-notification path of its own to drive from it.
func (s *CoreSource) registerHost(addr string) {
	if s.dns == nil {
		return
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	s.mu.Lock()
	_, known := s.registered[host]
	if !known {
		s.registered[host] = new(atomic.Bool)
	}
	s.mu.Unlock()
	if known {
		return
	}
	s.dns.Register(host, s.registered[host])
}
