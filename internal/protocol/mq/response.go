package mq

import (
	"bytes"
	"strconv"
	"time"
)

// PaddingResponses is the canonical fixed-response table for this
// protocol, indexed by callback.CommandFlags.PaddingRsp.
var PaddingResponses = [4]string{
	"",
	"SERVER_ERROR mcq not available\r\n",
	"VERSION 0.0.1\r\n",
	"STAT supported later\r\nEND\r\n",
}

// Fixed response bytes forwarded verbatim for ordinary (non-padding)
// outcomes.
const (
	RespStored    = "STORED\r\n"
	RespNotStored = "NOT_STORED\r\n"
	RespNotFound  = "NOT_FOUND\r\n"
	RespDeleted   = "DELETED\r\n"
	RespEnd       = "END\r\n"
)

// LatencyRecorder observes a queue round-trip's enqueue-to-read delay.
type LatencyRecorder interface {
	Observe(d time.Duration)
}

// ApplyLatencyMetric inspects a "VALUE <topic> <flags> <bytes>\r\n..."
// response. When the flags field is exactly 10 ASCII digits (the
// producer stamped it with a Unix enqueue timestamp), it records the
// elapsed delay and rewrites the flags bytes in place to "0" followed
// by nine spaces -- the client sees the value untouched except for the
// now-zeroed flag, matching the observed source behavior verbatim.
func ApplyLatencyMetric(resp []byte, now time.Time, rec LatencyRecorder) {
	const prefix = "VALUE "
	if !bytes.HasPrefix(resp, []byte(prefix)) {
		return
	}
	i := len(prefix)
	for i < len(resp) && resp[i] != ' ' {
		i++
	}
	if i >= len(resp) {
		return
	}
	i++ // skip the space after the topic
	flagsStart := i
	for i < len(resp) && resp[i] != ' ' {
		i++
	}
	flagsLen := i - flagsStart
	if flagsLen != 10 || i >= len(resp) {
		return
	}

	enqueued, err := strconv.ParseInt(string(resp[flagsStart:flagsStart+flagsLen]), 10, 64)
	if err != nil {
		return
	}
	if rec != nil {
		rec.Observe(now.Sub(time.Unix(enqueued, 0)))
	}

	resp[flagsStart] = '0'
	for j := flagsStart + 1; j < flagsStart+flagsLen; j++ {
		resp[j] = ' '
	}
}
