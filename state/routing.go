package state

import (
	"fmt"
	"time"
)

// NodeId matches the 4 byte node id carried in hello and warning headers.
type NodeId uint32

// MessageId identifies one flooded warning across every copy of it.
type MessageId uint32

const (
	// MessageSeqBits is the number of low MessageId bits holding the origin's sequence number.
	MessageSeqBits = 20
	// MaxNodeId is the largest node id that fits in the remaining high bits.
	MaxNodeId NodeId = 1<<(32-MessageSeqBits) - 1
)

// NewMessageId packs the originating node and its sequence number into one id.
// Only the low MessageSeqBits of seq are kept.
func NewMessageId(origin NodeId, seq uint32) (MessageId, error) {
	if origin > MaxNodeId {
		return 0, fmt.Errorf("%s: %w", origin, ErrNodeIdRange)
	}
	return MessageId(uint32(origin)<<MessageSeqBits | seq&(1<<MessageSeqBits-1)), nil
}

func (n NodeId) String() string {
	return fmt.Sprintf("n%d", uint32(n))
}

func (m MessageId) String() string {
	return fmt.Sprintf("m%08x", uint32(m))
}

// PositionOracle resolves a node's true position. It is only used for
// ground truth lookups, never by the prediction itself.
type PositionOracle interface {
	Position(id NodeId) (Vec2, bool)
}

// TxErrorHandler is notified when the link layer fails to deliver a frame to dst.
type TxErrorHandler func(dst NodeId)

// Clock is the source of "now" for expiry and backoff. clock.Clock satisfies it.
type Clock interface {
	Now() time.Time
}
