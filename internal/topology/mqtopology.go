package topology

import (
	"math/rand"
	"sync"
	"time"
)

// OfflineStopReadWindow is how long a decommissioned queue still gets
// steered a small fraction of reads (a draining window) after going
// offline.
const OfflineStopReadWindow = 20 * time.Minute

// OfflineClearAfter is how long after going offline a queue is fully
// forgotten, even for draining reads.
const OfflineClearAfter = OfflineStopReadWindow + 120*time.Second

// offlineDrainProbability is the chance, on the last read retry, that the
// read is steered to the offline population instead of failing outright.
const offlineDrainProbability = 0.10

const (
	maxReadRetries  = 3
	maxWriteRetries = 3
)

// MQQueue is one message-queue endpoint, grouped by the block size it
// serves.
type MQQueue struct {
	Addr      string
	BlockSize int
}

// offlineEntry tracks when a queue was decommissioned, so it can be
// steered to for a draining window and then forgotten entirely.
type offlineEntry struct {
	queue     MQQueue
	wentOflAt time.Time
}

// MQTopology holds the three message-queue endpoint populations: queues
// currently read from, queues currently written to, and recently
// decommissioned queues still draining reads.
type MQTopology struct {
	mu       sync.Mutex
	read     []MQQueue
	write    []MQQueue
	offline  []offlineEntry
	writeRR  uint64
	lastRead map[string]string // reader identity -> last queue addr hit (locality)
}

// NewMQTopology builds an empty topology; populate it with SetRead,
// SetWrite, and MarkOffline.
func NewMQTopology() *MQTopology {
	return &MQTopology{lastRead: make(map[string]string)}
}

// SetRead replaces the online read population.
func (t *MQTopology) SetRead(queues []MQQueue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.read = queues
}

// SetWrite replaces the online write population.
func (t *MQTopology) SetWrite(queues []MQQueue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.write = queues
}

// MarkOffline moves q into the offline population, decommissioning it
// from future SetRead/SetWrite calls' effect (callers should simply stop
// including it) and starting its draining-window clock.
func (t *MQTopology) MarkOffline(q MQQueue, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offline = append(t.offline, offlineEntry{queue: q, wentOflAt: now})
}

// sweepOffline drops offline entries past OfflineClearAfter. Caller must
// hold t.mu.
func (t *MQTopology) sweepOffline(now time.Time) {
	kept := t.offline[:0]
	for _, e := range t.offline {
		if now.Sub(e.wentOflAt) < OfflineClearAfter {
			kept = append(kept, e)
		}
	}
	t.offline = kept
}

// drainingOffline returns offline queues still within the draining
// window. Caller must hold t.mu.
func (t *MQTopology) drainingOffline(now time.Time) []MQQueue {
	t.sweepOffline(now)
	var out []MQQueue
	for _, e := range t.offline {
		if now.Sub(e.wentOflAt) < OfflineStopReadWindow {
			out = append(out, e.queue)
		}
	}
	return out
}

// SelectRead implements the hit-first reader: attempt 0 prefers reader's
// last-hit queue if it's still online; later attempts rotate through the
// read population, and the final attempt has a 10% chance of being
// steered to a still-draining offline queue instead. It returns false if
// there is nowhere left to read from.
func (t *MQTopology) SelectRead(reader string, attempt int, now time.Time) (MQQueue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if attempt == maxReadRetries-1 {
		if draining := t.drainingOffline(now); len(draining) > 0 && rand.Float64() < offlineDrainProbability {
			return draining[rand.Intn(len(draining))], true
		}
	}

	if len(t.read) == 0 {
		return MQQueue{}, false
	}

	start := rand.Intn(len(t.read))
	if last, ok := t.lastRead[reader]; ok {
		for i, q := range t.read {
			if q.Addr == last {
				start = i
				break
			}
		}
	}
	return t.read[(start+attempt)%len(t.read)], true
}

// RecordReadHit remembers q as reader's last successful read, for the
// next SelectRead's locality preference.
func (t *MQTopology) RecordReadHit(reader string, q MQQueue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRead[reader] = q.Addr
}

// SelectWrite round-robins within the write queues matching blockSize.
func (t *MQTopology) SelectWrite(blockSize int) (MQQueue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var group []MQQueue
	for _, q := range t.write {
		if q.BlockSize == blockSize {
			group = append(group, q)
		}
	}
	if len(group) == 0 {
		return MQQueue{}, false
	}
	idx := int(t.writeRR % uint64(len(group)))
	t.writeRR++
	return group[idx], true
}

// MaxReadRetries and MaxWriteRetries are the retry budgets callers should
// enforce around SelectRead/SelectWrite.
func MaxReadRetries() int  { return maxReadRetries }
func MaxWriteRetries() int { return maxWriteRetries }
