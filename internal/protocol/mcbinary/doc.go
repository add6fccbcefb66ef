// Package mcbinary implements the Memcached binary protocol codec: a
// fixed 24-byte header, a 256-entry per-opcode property table, multi-key
// batch handling (mkey-first/key-count), and writeback re-serialization
// of a GET response into a SETQ for a MySQL-backed KV bridge.
package mcbinary
