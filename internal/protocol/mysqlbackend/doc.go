// Package mysqlbackend speaks the client side of the MySQL protocol
// v10 handshake and parses COM_QUERY result sets, so the sidecar can
// dispatch the SQL internal/sqlbuild emits to a real MySQL shard and
// translate its response back into a protocol-appropriate reply.
package mysqlbackend
