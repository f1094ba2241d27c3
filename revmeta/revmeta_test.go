package revmeta

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Layout(t *testing.T) {
	b := Encode(0x0102030405060708, 0x090a0b0c, 0x0d0e0f10)
	require.Len(t, b, Size)
	assert.Equal(t, []byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c,
		0x0d, 0x0e, 0x0f, 0x10,
	}, b)
}

func TestDecode_RoundTrip(t *testing.T) {
	tests := []Meta{
		{},
		{CAS: 1},
		{CAS: math.MaxUint64, Expiration: math.MaxUint32, Flags: math.MaxUint32},
		{CAS: 1 << 53, Expiration: 3600, Flags: 0xdeadbeef},
	}
	for _, m := range tests {
		got := Decode(Encode(m.CAS, m.Expiration, m.Flags))
		assert.Equal(t, m, got)
	}
}

func TestEncode_RoundTripBytes(t *testing.T) {
	raw := []byte("0123456789abcdef")
	assert.Equal(t, raw, Decode(raw).Bytes())
}

func TestDecode_Short(t *testing.T) {
	for n := 0; n < Size; n++ {
		raw := bytes.Repeat([]byte{0xff}, n)
		assert.True(t, Decode(raw).IsZero(), "len=%d", n)

		_, err := DecodeStrict(raw)
		assert.True(t, errors.Is(err, ErrShort), "len=%d", n)
	}
	assert.True(t, Decode(nil).IsZero())
}

func TestDecode_IgnoresTrailingBytes(t *testing.T) {
	raw := append(Encode(7, 8, 9), 0xAA, 0xBB)
	assert.Equal(t, Meta{7, 8, 9}, Decode(raw))
}

func TestAppend(t *testing.T) {
	buf := []byte{0xEE}
	buf = Meta{CAS: 1, Expiration: 2, Flags: 3}.Append(buf)
	require.Len(t, buf, 1+Size)
	assert.Equal(t, byte(0xEE), buf[0])
	assert.Equal(t, Meta{1, 2, 3}, Decode(buf[1:]))
}

func TestMeta_String(t *testing.T) {
	assert.Equal(t, "cas=5 exp=6 flags=0x10", Meta{5, 6, 16}.String())
}
