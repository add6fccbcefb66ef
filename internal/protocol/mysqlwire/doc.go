// Package mysqlwire holds the MySQL client/server protocol constants and
// packet-framing helpers shared by internal/sqlbuild (which emits
// COM_QUERY packets) and internal/protocol/mysqlbackend (which speaks the
// full handshake/response side of the protocol to a backend shard).
//
// Reference: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_basic_packets.html
package mysqlwire
