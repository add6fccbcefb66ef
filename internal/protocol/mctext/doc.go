// Package mctext implements the Memcached ASCII (text) protocol: a
// state-machine parser driven by the first whitespace-delimited token,
// storage commands followed by a declared-length value block, and
// fixed no-forward responses for quit/stats/version.
package mctext
