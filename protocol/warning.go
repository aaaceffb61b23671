package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/encodeous/kdtm/state"
)

// WarningHeader is one hop of a flooded warning. Position is where PrevHopId
// was when it transmitted.
type WarningHeader struct {
	SourceId  state.NodeId
	PrevHopId state.NodeId
	HopCount  uint32
	MessageId state.MessageId
	Position  state.Vec2
}

const warningSize = 4*4 + 2*8

var warningFloats = []string{"position.x", "position.y"}

func (h *WarningHeader) Type() MsgType {
	return MsgWarning
}

func (h *WarningHeader) SerializedSize() int {
	return warningSize
}

func (h *WarningHeader) AppendBinary(b []byte) ([]byte, error) {
	b = binary.BigEndian.AppendUint32(b, uint32(h.SourceId))
	b = binary.BigEndian.AppendUint32(b, uint32(h.PrevHopId))
	b = binary.BigEndian.AppendUint32(b, h.HopCount)
	b = binary.BigEndian.AppendUint32(b, uint32(h.MessageId))
	b = appendFloat(b, h.Position.X)
	b = appendFloat(b, h.Position.Y)
	return b, nil
}

func (h *WarningHeader) MarshalBinary() ([]byte, error) {
	return h.AppendBinary(make([]byte, 0, warningSize))
}

func (h *WarningHeader) Unmarshal(b []byte) (int, error) {
	if len(b) < warningSize {
		return 0, fmt.Errorf("warning header needs %d bytes, got %d: %w", warningSize, len(b), ErrShortBuffer)
	}
	h.SourceId = state.NodeId(binary.BigEndian.Uint32(b))
	h.PrevHopId = state.NodeId(binary.BigEndian.Uint32(b[4:]))
	h.HopCount = binary.BigEndian.Uint32(b[8:])
	h.MessageId = state.MessageId(binary.BigEndian.Uint32(b[12:]))
	h.Position.X = readFloat(b[16:])
	h.Position.Y = readFloat(b[24:])
	err := checkFinite(warningFloats, h.Position.X, h.Position.Y)
	if err != nil {
		return 0, err
	}
	return warningSize, nil
}

func (h *WarningHeader) UnmarshalBinary(b []byte) error {
	_, err := h.Unmarshal(b)
	return err
}

func (h *WarningHeader) String() string {
	return fmt.Sprintf("SourceId %s PrevHopId %s HopCount %d MessageId %s Position %s",
		h.SourceId, h.PrevHopId, h.HopCount, h.MessageId, h.Position)
}
