// Package sqlbuild translates parsed KV and vector commands into MySQL
// COM_QUERY packets.
//
// Two emitters share the same escaping and packet-framing primitives:
//
//   - KVBuilder: the Memcached-binary-to-MySQL bridge (mc2mysql) for
//     ADD/SET/GET/GETK/DEL against a single id/content table.
//   - VectorBuilder / SIBuilder: the KVector-to-MySQL bridge for the
//     timeline table (select/count/insert/update/delete) and the
//     summary-index table (the VRange/VAdd/VDel aggregation templates).
//
// Field, condition and ORDER BY identifiers pass the MySQL field whitelist
// in identifiers.go, and quoted values are escaped through EscapeInto.
// Some request bytes are written verbatim without a check here: a
// range/get select-column list, GROUP BY, "in" value lists, condition
// operators, ORDER BY direction, LIMIT digits and unquoted KV ids; those
// rely on the codec having validated them while parsing.
package sqlbuild
