// Package controlplane is the HTTP+JSON surface the out-of-scope control
// plane uses to push namespace configuration into a running core: shard
// maps per year range, the DNS host set those shards reference, and the
// MySQL backend credentials to encrypt at rest for them.
//
// It deliberately does not read or watch any file itself — loading and
// reload-triggering the namespace spec belongs to the external
// collaborator named by spec.md; this package only defines the push
// contract (NamespaceSource) and a small net/http server that decodes a
// JSON body and hands it to one.
package controlplane
