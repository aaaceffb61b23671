package protocol

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/encodeous/kdtm/state"
)

// HelloHeader is the periodic beacon carrying the sender's kinematic state.
type HelloHeader struct {
	Id              state.NodeId
	Origin          state.Vec2
	Speed           state.Vec2
	Time            time.Time
	TrajectoryBegin time.Time
	Beta            float64
}

const helloSize = 4 + 7*8

var helloFloats = []string{"origin.x", "origin.y", "speed.x", "speed.y", "beta"}

func (h *HelloHeader) Type() MsgType {
	return MsgHello
}

func (h *HelloHeader) SerializedSize() int {
	return helloSize
}

func (h *HelloHeader) AppendBinary(b []byte) ([]byte, error) {
	b = binary.BigEndian.AppendUint32(b, uint32(h.Id))
	b = appendFloat(b, h.Origin.X)
	b = appendFloat(b, h.Origin.Y)
	b = appendFloat(b, h.Speed.X)
	b = appendFloat(b, h.Speed.Y)
	b = appendTime(b, h.Time)
	b = appendTime(b, h.TrajectoryBegin)
	b = appendFloat(b, h.Beta)
	return b, nil
}

func (h *HelloHeader) MarshalBinary() ([]byte, error) {
	return h.AppendBinary(make([]byte, 0, helloSize))
}

func (h *HelloHeader) Unmarshal(b []byte) (int, error) {
	if len(b) < helloSize {
		return 0, fmt.Errorf("hello header needs %d bytes, got %d: %w", helloSize, len(b), ErrShortBuffer)
	}
	h.Id = state.NodeId(binary.BigEndian.Uint32(b))
	h.Origin.X = readFloat(b[4:])
	h.Origin.Y = readFloat(b[12:])
	h.Speed.X = readFloat(b[20:])
	h.Speed.Y = readFloat(b[28:])
	h.Time = readTime(b[36:])
	h.TrajectoryBegin = readTime(b[44:])
	h.Beta = readFloat(b[52:])
	err := checkFinite(helloFloats, h.Origin.X, h.Origin.Y, h.Speed.X, h.Speed.Y, h.Beta)
	if err != nil {
		return 0, err
	}
	if h.Beta < 0 {
		return 0, fmt.Errorf("beta is %v: %w", h.Beta, ErrInvalidValue)
	}
	return helloSize, nil
}

func (h *HelloHeader) UnmarshalBinary(b []byte) error {
	_, err := h.Unmarshal(b)
	return err
}

func (h *HelloHeader) String() string {
	return fmt.Sprintf("Id %s Origin %s Speed %s Time %s TrajectoryBegin %s Beta %.6f",
		h.Id, h.Origin, h.Speed, h.Time.Format(time.StampMicro), h.TrajectoryBegin.Format(time.StampMicro), h.Beta)
}
