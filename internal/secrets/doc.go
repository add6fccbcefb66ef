// Package secrets keeps MySQL backend credentials (user/password, as
// pushed by the namespace spec) encrypted at rest in process memory,
// decrypting them only immediately before a handshake.
//
// A Store derives one adaptive cipher per namespace/shard label from a
// single process-wide master secret via HKDF, so compromising one
// encrypted credential blob does not expose the key for any other
// label, and the master secret itself never needs to touch a credential
// directly.
package secrets
