// Package redis implements the RESP request/response codec: parsing
// *N\r\n-framed commands into callback.HashedCommand values (expanding
// multi-key commands into one per key), consulting a 4096-entry
// command-properties table for arity/routing/padding-response rules,
// and writing client-facing responses including the real-or-padding
// fallback the properties table drives.
package redis
