package relay

import (
	"time"

	"github.com/meermanr/timeguard-gateway/codec"
)

// maxSeq is the highest seq value managed by the table; 0xFF is the
// unsolicited sentinel and is never queued.
const maxSeq = 0xFE

// maxEntries is the table's capacity: at most 0xFE entries outstanding.
const maxEntries = 0xFE

// entry is one in-flight server-to-device command awaiting acknowledgment.
type entry struct {
	frame    codec.Frame
	queuedAt time.Time
	resendAt time.Time
}

// PendingTable tracks in-flight server-originated commands for timed
// resend, giving at-least-once delivery over UDP. It is owned exclusively
// by the Engine's single goroutine.
type PendingTable struct {
	entries       map[uint8]*entry
	retryInterval time.Duration
	giveUp        time.Duration
	stats         *LatencyStats
}

// NewPendingTable returns an empty table with the given retry/give-up
// tunables. Per design note: give_up should be at least 3x retryInterval.
func NewPendingTable(retryInterval, giveUp time.Duration) *PendingTable {
	return &PendingTable{
		entries:       make(map[uint8]*entry),
		retryInterval: retryInterval,
		giveUp:        giveUp,
		stats:         NewLatencyStats("pending-reply round trip"),
	}
}

// Len reports the number of in-flight entries.
func (t *PendingTable) Len() int {
	return len(t.entries)
}

// Enqueue inserts f, keyed by f.Payload.Seq. If that seq is already in use
// by a different frame, the seq is rotated via (seq+1) mod 255 until a
// free slot is found; f.Payload.Seq is updated to the assigned value. If
// the table is already full (0xFE entries), Enqueue returns false and f is
// not inserted — the caller is expected to log and drop.
func (t *PendingTable) Enqueue(f codec.Frame, now time.Time) (codec.Frame, bool) {
	if len(t.entries) >= maxEntries {
		return f, false
	}

	seq := f.Payload.Seq
	for {
		if seq > maxSeq {
			seq = 0
		}
		if _, taken := t.entries[seq]; !taken {
			break
		}
		seq = uint8((int(seq) + 1) % 255)
	}
	f.Payload.Seq = seq

	t.entries[seq] = &entry{
		frame:    f,
		queuedAt: now,
		resendAt: now.Add(t.retryInterval),
	}
	return f, true
}

// Lookup returns the frame queued under seq, or the zero Frame and false
// if no entry is queued there.
func (t *PendingTable) Lookup(seq uint8) (codec.Frame, bool) {
	e, ok := t.entries[seq]
	if !ok {
		return codec.Frame{}, false
	}
	return e.frame, true
}

// OnClientReply removes the entry matching seq, treating any
// client-originated frame carrying that seq as an acknowledgment. It
// reports whether an entry was actually removed.
func (t *PendingTable) OnClientReply(seq uint8, now time.Time) bool {
	e, ok := t.entries[seq]
	if !ok {
		return false
	}
	t.stats.Sample(now.Sub(e.queuedAt))
	delete(t.entries, seq)
	return true
}

// Tick returns the frames due for resend (resend_at <= now), bumping each
// survivor's resend_at to now+retryInterval. Entries whose age would
// exceed the give-up window are dropped instead of resent.
func (t *PendingTable) Tick(now time.Time) []codec.Frame {
	var due []codec.Frame
	for seq, e := range t.entries {
		if e.resendAt.After(now) {
			continue
		}
		nextResend := now.Add(t.retryInterval)
		if nextResend.Sub(e.queuedAt) > t.giveUp {
			delete(t.entries, seq)
			continue
		}
		e.resendAt = nextResend
		due = append(due, e.frame)
	}
	return due
}

// Stats exposes the round-trip latency accumulator for diagnostics.
func (t *PendingTable) Stats() *LatencyStats {
	return t.stats
}
