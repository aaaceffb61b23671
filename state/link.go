package state

import (
	"fmt"
	"time"
)

// NeighbourLink is the kinematic snapshot of one neighbour taken from its
// latest hello, together with the predicted window [From, To] during which
// the link is expected to stay in range. To is the expiry instant.
type NeighbourLink struct {
	Id              NodeId
	Position        Vec2
	Velocity        Vec2
	From            time.Time
	To              time.Time
	Beta            float64 // neighbour's mobility-stability rate
	TrajectoryBegin time.Time
}

// Expired reports whether the link window has closed at now.
func (l NeighbourLink) Expired(now time.Time) bool {
	return !l.To.After(now)
}

// Remaining is the predicted time left on the link, zero if already expired.
func (l NeighbourLink) Remaining(now time.Time) time.Duration {
	if l.Expired(now) {
		return 0
	}
	return l.To.Sub(now)
}

func (l NeighbourLink) String() string {
	return fmt.Sprintf("id: %s pos: %s vel: %s from: %s to: %s beta: %.4f",
		l.Id, l.Position, l.Velocity, l.From.Format(time.StampMilli), l.To.Format(time.StampMilli), l.Beta)
}
