package protocol

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/encodeous/kdtm/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHello() *HelloHeader {
	return &HelloHeader{
		Id:              0x01020304,
		Origin:          state.Vec2{X: 12.5, Y: -3},
		Speed:           state.Vec2{X: 1.25, Y: 0},
		Time:            time.Unix(1_700_000_010, 500),
		TrajectoryBegin: time.Unix(1_700_000_000, 0),
		Beta:            1.0 / 300,
	}
}

func TestHelloHeader_Layout(t *testing.T) {
	h := sampleHello()
	b, err := h.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, b, 60)
	assert.Equal(t, 60, h.SerializedSize())

	assert.Equal(t, []byte{1, 2, 3, 4}, b[:4])
	assert.Equal(t, math.Float64bits(12.5), binary.BigEndian.Uint64(b[4:]))
	assert.Equal(t, math.Float64bits(-3), binary.BigEndian.Uint64(b[12:]))
	assert.Equal(t, uint64(h.Time.UnixNano()), binary.BigEndian.Uint64(b[36:]))
	assert.Equal(t, math.Float64bits(1.0/300), binary.BigEndian.Uint64(b[52:]))
}

func TestHelloHeader_Decode(t *testing.T) {
	h := sampleHello()
	b, err := h.MarshalBinary()
	require.NoError(t, err)

	var got HelloHeader
	n, err := got.Unmarshal(append(b, 0xff))
	require.NoError(t, err)
	assert.Equal(t, 60, n)
	if diff := cmp.Diff(h, &got); diff != "" {
		t.Errorf("decoded hello differs (-want +got):\n%s", diff)
	}
}

func TestWarningHeader_Layout(t *testing.T) {
	h := &WarningHeader{
		SourceId:  1,
		PrevHopId: 2,
		HopCount:  3,
		MessageId: 0xdeadbeef,
		Position:  state.Vec2{X: 100, Y: 200},
	}
	b, err := h.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, b, 32)
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0xde, 0xad, 0xbe, 0xef}, b[:16])

	var got WarningHeader
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, *h, got)
}

func TestUnmarshal_ShortBuffer(t *testing.T) {
	var hello HelloHeader
	_, err := hello.Unmarshal(make([]byte, 59))
	assert.ErrorIs(t, err, ErrShortBuffer)

	var warning WarningHeader
	_, err = warning.Unmarshal(make([]byte, 31))
	assert.ErrorIs(t, err, ErrShortBuffer)

	var th TypeHeader
	_, err = th.Unmarshal(nil)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestTypeHeader(t *testing.T) {
	for _, c := range []struct {
		b     byte
		valid bool
	}{{1, true}, {2, true}, {0, false}, {3, false}, {0xff, false}} {
		var th TypeHeader
		n, err := th.Unmarshal([]byte{c.b, 9, 9})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, MsgType(c.b), th.Type)
		assert.Equal(t, c.valid, th.IsValid(), "type %d", c.b)
	}
	b, err := TypeHeader{Type: MsgWarning}.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, b)
}

func TestEncodeDecode(t *testing.T) {
	h := sampleHello()
	frame, err := Encode(h)
	require.NoError(t, err)
	assert.Len(t, frame, 61)
	assert.Equal(t, byte(MsgHello), frame[0])

	got, err := Decode(frame)
	require.NoError(t, err)
	if diff := cmp.Diff(Header(h), got); diff != "" {
		t.Errorf("decoded frame differs (-want +got):\n%s", diff)
	}

	w := &WarningHeader{SourceId: 4, PrevHopId: 5, HopCount: 1, MessageId: 6}
	frame, err = Encode(w)
	require.NoError(t, err)
	got, err = Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, w, got)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte{7, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = Decode([]byte{byte(MsgWarning), 0, 0})
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecode_NonFinite(t *testing.T) {
	for name, mutate := range map[string]func(h *HelloHeader){
		"nan beta":      func(h *HelloHeader) { h.Beta = math.NaN() },
		"negative beta": func(h *HelloHeader) { h.Beta = -0.5 },
		"inf origin":    func(h *HelloHeader) { h.Origin.Y = math.Inf(1) },
		"nan speed":     func(h *HelloHeader) { h.Speed.X = math.NaN() },
	} {
		h := sampleHello()
		mutate(h)
		frame, err := Encode(h)
		require.NoError(t, err, name)
		_, err = Decode(frame)
		assert.ErrorIs(t, err, ErrInvalidValue, name)
	}

	frame, err := Encode(&WarningHeader{SourceId: 1, MessageId: 2, Position: state.Vec2{X: math.Inf(-1)}})
	require.NoError(t, err)
	_, err = Decode(frame)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.ErrorContains(t, err, "position.x")

	// zero beta is the stationary case and stays valid
	h := sampleHello()
	h.Beta = 0
	frame, err = Encode(h)
	require.NoError(t, err)
	_, err = Decode(frame)
	assert.NoError(t, err)
}

func TestHeaderString(t *testing.T) {
	assert.Contains(t, sampleHello().String(), "Id n16909060")
	w := &WarningHeader{SourceId: 1, MessageId: 2}
	assert.Contains(t, w.String(), "MessageId m00000002")
	assert.Equal(t, "UNKNOWN(9)", MsgType(9).String())
}
