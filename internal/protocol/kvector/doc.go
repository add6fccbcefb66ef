// Package kvector implements the KVector RESP-like protocol: a RESP
// array request is parsed into a comma-split key list, an optional
// FIELD block, and an optional WHERE/ORDER/GROUP BY/LIMIT condition
// block, then validated and handed to internal/sqlbuild for SQL
// translation.
package kvector
