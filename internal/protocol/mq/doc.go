// Package mq implements the message-queue text protocol: a restricted
// Memcached-text subset (get/set/delete/version/stats/quit, no
// multi-key requests) used to front a message-queue cluster, plus the
// enqueue-timestamp latency metric the set/get round trip carries in
// its flags field.
package mq
