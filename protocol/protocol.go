// Package protocol implements the kdtm wire format. Every frame is a one byte
// TypeHeader followed by a fixed size, big-endian body.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrShortBuffer = errors.New("short buffer")
	ErrInvalidType = errors.New("invalid message type")
	// ErrInvalidValue is returned for a body carrying a non-finite float or a negative beta.
	ErrInvalidValue = errors.New("invalid field value")
)

type MsgType uint8

const (
	MsgHello   MsgType = 1
	MsgWarning MsgType = 2
)

func (t MsgType) String() string {
	switch t {
	case MsgHello:
		return "HELLO"
	case MsgWarning:
		return "WARNING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Header is a fixed size message body.
type Header interface {
	Type() MsgType
	SerializedSize() int
	AppendBinary(b []byte) ([]byte, error)
	Unmarshal(b []byte) (int, error)
	String() string
}

// TypeHeader prefixes every frame. Any byte decodes, values other than
// MsgHello and MsgWarning are reported through IsValid.
type TypeHeader struct {
	Type MsgType
}

const typeHeaderSize = 1

func (h TypeHeader) IsValid() bool {
	return h.Type == MsgHello || h.Type == MsgWarning
}

func (h TypeHeader) SerializedSize() int {
	return typeHeaderSize
}

func (h TypeHeader) AppendBinary(b []byte) ([]byte, error) {
	return append(b, byte(h.Type)), nil
}

func (h TypeHeader) MarshalBinary() ([]byte, error) {
	return h.AppendBinary(make([]byte, 0, typeHeaderSize))
}

// Unmarshal reads the header from the front of b and returns the number of bytes consumed.
func (h *TypeHeader) Unmarshal(b []byte) (int, error) {
	if len(b) < typeHeaderSize {
		return 0, fmt.Errorf("type header: %w", ErrShortBuffer)
	}
	h.Type = MsgType(b[0])
	return typeHeaderSize, nil
}

func (h *TypeHeader) UnmarshalBinary(b []byte) error {
	_, err := h.Unmarshal(b)
	return err
}

func (h TypeHeader) String() string {
	return h.Type.String()
}

// Encode builds a frame carrying h.
func Encode(h Header) ([]byte, error) {
	b := make([]byte, 0, typeHeaderSize+h.SerializedSize())
	b, err := TypeHeader{Type: h.Type()}.AppendBinary(b)
	if err != nil {
		return nil, err
	}
	return h.AppendBinary(b)
}

// Decode parses a frame. Trailing bytes after the body are ignored.
func Decode(frame []byte) (Header, error) {
	var th TypeHeader
	n, err := th.Unmarshal(frame)
	if err != nil {
		return nil, err
	}
	var h Header
	switch th.Type {
	case MsgHello:
		h = &HelloHeader{}
	case MsgWarning:
		h = &WarningHeader{}
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, uint8(th.Type))
	}
	_, err = h.Unmarshal(frame[n:])
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", th.Type, err)
	}
	return h, nil
}

// floats travel as their IEEE-754 bit pattern, times as unix nanoseconds

func appendFloat(b []byte, f float64) []byte {
	return binary.BigEndian.AppendUint64(b, math.Float64bits(f))
}

func readFloat(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// checkFinite fails with ErrInvalidValue naming the first NaN or infinite field.
func checkFinite(names []string, vals ...float64) error {
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is %v: %w", names[i], v, ErrInvalidValue)
		}
	}
	return nil
}

func appendTime(b []byte, t time.Time) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(t.UnixNano()))
}

func readTime(b []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(b)))
}
