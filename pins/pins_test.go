package pins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in        string
		canonical string
		ok        bool
	}{
		{"A0", "A0", true},
		{"a0", "A0", true},
		{"s3", "S3", true},
		{"cn", "CN", true},
		{"Cn", "CN", true},
		{"m", "M", true},
		{" b2 ", "B2", true},
		{"F0", "", false},
		{"CN4", "", false},
		{"A4", "", false},
		{"", "", false},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			got, ok := Normalize(test.in)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.canonical, got)
		})
	}
}

func TestPinSets(t *testing.T) {
	assert.Len(t, InputPins, 14)
	assert.Len(t, OutputPins, 8)
	for _, p := range InputPins {
		assert.True(t, IsInput(p))
	}
	for _, p := range OutputPins {
		assert.False(t, IsInput(p), "%s is an output pin", p)
	}
}

func TestNewOutputsSnapshot(t *testing.T) {
	tests := []struct {
		raw    uint8
		binary string
		hex    string
	}{
		{0x00, "00000000", "00"},
		{0x01, "00000001", "01"},
		{0x0A, "00001010", "0A"},
		{0x80, "10000000", "80"},
		{0xA5, "10100101", "A5"},
		{0xFF, "11111111", "FF"},
	}

	for _, test := range tests {
		t.Run(test.hex, func(t *testing.T) {
			snap := NewOutputsSnapshot(test.raw)
			assert.Equal(t, test.raw, snap.Raw)
			assert.Equal(t, test.binary, snap.Binary)
			assert.Equal(t, test.hex, snap.Hex)
			assert.True(t, snap.Consistent())
		})
	}
}

// Every byte round-trips through its binary form.
func TestBinaryRoundTrip(t *testing.T) {
	for i := 0; i < 256; i++ {
		raw := uint8(i)
		snap := NewOutputsSnapshot(raw)
		require.Len(t, snap.Binary, 8)
		require.Len(t, snap.Hex, 2)

		back, err := ParseBinary(snap.Binary)
		require.NoError(t, err)
		assert.Equal(t, raw, back)
	}
}

func TestParseBinary_Invalid(t *testing.T) {
	for _, s := range []string{"", "0101", "000000012", "0000000x", "111111111"} {
		_, err := ParseBinary(s)
		assert.Error(t, err, s)
	}
}

func TestOutputsSnapshot_Bits(t *testing.T) {
	// F=1000, P=1, G=0, AEqualsB=0, CN4=1
	snap := NewOutputsSnapshot(0b10011000)

	assert.Equal(t, uint8(8), snap.F())
	assert.False(t, snap.Bit("F0"))
	assert.True(t, snap.Bit("F3"))
	assert.True(t, snap.Bit("P"))
	assert.False(t, snap.Bit("G"))
	assert.False(t, snap.Bit("AEqualsB"))
	assert.True(t, snap.Bit("CN4"))
	assert.False(t, snap.Bit("nope"))

	assert.Equal(t, snap.Raw, PackOutputs(snap.Pins()))
}

func TestOutputsSnapshot_Consistent(t *testing.T) {
	snap := NewOutputsSnapshot(3)
	snap.Hex = "FF"
	assert.False(t, snap.Consistent())
	assert.Equal(t, "0x03 (00000011)", NewOutputsSnapshot(3).String())
}
