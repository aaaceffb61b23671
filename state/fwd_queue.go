package state

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// QueueEntry is one received copy of a warning message.
type QueueEntry struct {
	// position of the previous hop when it transmitted this copy
	Position  Vec2
	Payload   []byte
	SourceId  NodeId
	MessageId MessageId
	PrevHopId NodeId
	HopCount  uint32
	Forwarded bool

	deadline time.Time
}

// SetBackoff arms the forwarding timer to fire d after now.
func (e *QueueEntry) SetBackoff(now time.Time, d time.Duration) {
	e.deadline = now.Add(d)
}

// Backoff is the time left until the forwarding deadline, negative once it has passed.
func (e *QueueEntry) Backoff(now time.Time) time.Duration {
	return e.deadline.Sub(now)
}

func (e *QueueEntry) Deadline() time.Time {
	return e.deadline
}

// Same reports whether both entries are copies of one message relayed by the same previous hop.
func (e *QueueEntry) Same(o *QueueEntry) bool {
	return e.MessageId == o.MessageId && e.PrevHopId == o.PrevHopId
}

func (e *QueueEntry) String() string {
	return fmt.Sprintf("msg: %s src: %s prev: %s hops: %d pos: %s fwd: %t",
		e.MessageId, e.SourceId, e.PrevHopId, e.HopCount, e.Position, e.Forwarded)
}

// ForwardQueue groups received copies by message id, newest copy first.
// Like LinkTable, it is only touched from the dispatch goroutine.
type ForwardQueue struct {
	entries map[MessageId][]*QueueEntry
	maxLen  int
	timeout time.Duration
}

func NewForwardQueue(maxLen int, timeout time.Duration) *ForwardQueue {
	return &ForwardQueue{
		entries: make(map[MessageId][]*QueueEntry),
		maxLen:  maxLen,
		timeout: timeout,
	}
}

// Add records entry as the newest copy of its message.
func (q *ForwardQueue) Add(entry *QueueEntry) {
	bucket := q.entries[entry.MessageId]
	q.entries[entry.MessageId] = slices.Insert(bucket, 0, entry)
}

// Purge forgets every copy of messageId.
func (q *ForwardQueue) Purge(messageId MessageId) {
	delete(q.entries, messageId)
}

// Find reports whether a copy of messageId relayed by prevHop has been queued.
func (q *ForwardQueue) Find(messageId MessageId, prevHop NodeId) bool {
	return slices.ContainsFunc(q.entries[messageId], func(e *QueueEntry) bool {
		return e.PrevHopId == prevHop
	})
}

func (q *ForwardQueue) Exist(messageId MessageId) bool {
	return len(q.entries[messageId]) > 0
}

// GetEntry returns the newest copy of messageId.
func (q *ForwardQueue) GetEntry(messageId MessageId) (*QueueEntry, error) {
	bucket := q.entries[messageId]
	if len(bucket) == 0 {
		return nil, fmt.Errorf("message %s: %w", messageId, ErrNotFound)
	}
	return bucket[0], nil
}

func (q *ForwardQueue) IsAlreadyForwarded(messageId MessageId) bool {
	bucket := q.entries[messageId]
	return len(bucket) > 0 && bucket[0].Forwarded
}

// CalculateSpatialDist is the centroid of the positions from which copies of
// messageId were heard, or the zero vector if none were.
func (q *ForwardQueue) CalculateSpatialDist(messageId MessageId) Vec2 {
	bucket := q.entries[messageId]
	if len(bucket) == 0 {
		return Vec2{}
	}
	sum := Vec2{}
	for _, e := range bucket {
		sum = sum.Add(e.Position)
	}
	return sum.Scale(1 / float64(len(bucket)))
}

// Len is the number of copies queued for messageId.
func (q *ForwardQueue) Len(messageId MessageId) int {
	return len(q.entries[messageId])
}

// Messages returns every message id with a bucket, in ascending order.
func (q *ForwardQueue) Messages() []MessageId {
	return slices.Sorted(maps.Keys(q.entries))
}

func (q *ForwardQueue) Timeout() time.Duration {
	return q.timeout
}

func (q *ForwardQueue) SetTimeout(timeout time.Duration) {
	q.timeout = timeout
}

func (q *ForwardQueue) MaxLen() int {
	return q.maxLen
}
