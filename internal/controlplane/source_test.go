package controlplane

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/kvmesh/sidecar/internal/dnscache"
	"github.com/kvmesh/sidecar/internal/secrets"
	"github.com/kvmesh/sidecar/internal/topology"
)

// nullResolver resolves every host to no addresses, so DNS registration
// tests don't depend on real network access.
type nullResolver struct{}

func (nullResolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	return nil, nil
}

func TestCoreSourceAppliesShardRange(t *testing.T) {
	shards := topology.NewShards()
	src := NewCoreSource(shards, nil, nil)

	err := src.Apply(NamespaceUpdate{
		Namespace: "orders",
		Shards: []ShardRangeUpdate{
			{
				FromYear: 2024,
				ToYear:   2025,
				List: []ShardUpdate{
					{
						Master: EndpointUpdate{Addr: "db-0:3306"},
						Slaves: []EndpointUpdate{{Addr: "db-0-ro-1:3306"}, {Addr: "db-0-ro-2:3306"}},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	list := shards.Get(2024)
	if len(list) != 1 {
		t.Fatalf("Get(2024) len = %d, want 1", len(list))
	}
	if list[0].Master.Addr != "db-0:3306" {
		t.Errorf("Master.Addr = %q", list[0].Master.Addr)
	}
	if list[0].Slaves == nil || list[0].Slaves.Len() != 2 {
		t.Errorf("Slaves = %+v, want 2 replicas", list[0].Slaves)
	}
	if list1 := shards.Get(2025); len(list1) != 1 {
		t.Errorf("Get(2025) len = %d, want 1", len(list1))
	}
}

func TestCoreSourceRejectsUnknownPolicy(t *testing.T) {
	src := NewCoreSource(topology.NewShards(), nil, nil)

	err := src.Apply(NamespaceUpdate{
		Namespace: "orders",
		Shards: []ShardRangeUpdate{{
			FromYear: 2024, ToYear: 2024,
			List: []ShardUpdate{{
				Master:      EndpointUpdate{Addr: "db-0:3306"},
				Slaves:      []EndpointUpdate{{Addr: "db-0-ro:3306"}},
				SlavePolicy: "not-a-real-policy",
			}},
		}},
	})
	if err == nil {
		t.Fatal("expected an error for an unrecognized slave_policy")
	}
}

func TestCoreSourceRegistersHostsWithDNS(t *testing.T) {
	dns := dnscache.New(dnscache.Config{Resolver: nullResolver{}})
	src := NewCoreSource(topology.NewShards(), dns, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	go dns.Run(ctx)

	err := src.Apply(NamespaceUpdate{
		Namespace: "orders",
		Shards: []ShardRangeUpdate{{
			FromYear: 2024, ToYear: 2024,
			List: []ShardUpdate{{Master: EndpointUpdate{Addr: "db-0:3306"}}},
		}},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Re-applying an overlapping host must not double-register it.
	err = src.Apply(NamespaceUpdate{
		Namespace: "orders2",
		Shards: []ShardRangeUpdate{{
			FromYear: 2026, ToYear: 2026,
			List: []ShardUpdate{{Master: EndpointUpdate{Addr: "db-0:3306"}}},
		}},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	time.Sleep(1200 * time.Millisecond)
	if got := dns.Len(); got != 1 {
		t.Fatalf("dns.Len() = %d, want 1 (host must be registered exactly once)", got)
	}
}

func TestCoreSourceEncryptsCredential(t *testing.T) {
	store := secrets.NewStore([]byte("test-master-secret-value"))
	src := NewCoreSource(topology.NewShards(), nil, store)

	err := src.Apply(NamespaceUpdate{
		Namespace: "orders",
		MySQL:     &CredentialUpdate{Label: "orders-2024", User: "app", Password: "s3cr3t"},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	cred, ok := src.CredentialFor("orders-2024")
	if !ok {
		t.Fatal("expected a credential to be stored")
	}
	if string(cred.User) == "app" {
		t.Fatal("stored credential must not carry the plaintext user")
	}

	user, password, err := store.Decrypt(cred)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(user) != "app" || string(password) != "s3cr3t" {
		t.Errorf("user=%q password=%q", user, password)
	}
}

func TestCoreSourceRejectsCredentialWithoutStore(t *testing.T) {
	src := NewCoreSource(topology.NewShards(), nil, nil)

	err := src.Apply(NamespaceUpdate{
		Namespace: "orders",
		MySQL:     &CredentialUpdate{Label: "orders-2024", User: "app", Password: "s3cr3t"},
	})
	if err == nil {
		t.Fatal("expected an error pushing a credential with no secrets store configured")
	}
}
