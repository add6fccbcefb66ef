// Package localserver provides Unix socket server for local management.
//
// This package implements a local-only management interface via a Unix
// domain socket; there is no named-pipe listener. It bypasses normal API key
// authentication for localhost administrative operations:
//
//   - Server status (uptime, shard topology, DNS cache population)
//   - Graceful shutdown
//   - Configuration reload
//   - Connection draining
//
// Security:
//
//   - Only accessible via Unix domain socket
//   - File system permissions control access
//   - No API key required (physical/local access only)
package localserver
