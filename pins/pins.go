// Package pins defines the fixed pin vocabulary of the 74181 ALU and the
// encoding of its output byte.
package pins

import (
	"fmt"
	"strconv"
	"strings"
)

// Input pin names: A0..A3, B0..B3 data inputs, S0..S3 function select,
// CN carry-in (active low) and M mode (1 = logic).
var InputPins = []string{
	"A0", "A1", "A2", "A3",
	"B0", "B1", "B2", "B3",
	"S0", "S1", "S2", "S3",
	"CN", "M",
}

// Output pin names in bit order, bit0 first.
var OutputPins = []string{
	"F0", "F1", "F2", "F3",
	"P", "G", "AEqualsB", "CN4",
}

// Bit positions of the output pins within the raw output byte.
const (
	BitF0 uint = iota
	BitF1
	BitF2
	BitF3
	BitP
	BitG
	BitAEqualsB
	BitCN4
)

var inputIndex = func() map[string]string {
	m := make(map[string]string, len(InputPins))
	for _, p := range InputPins {
		m[strings.ToUpper(p)] = p
	}
	return m
}()

var outputBits = func() map[string]uint {
	m := make(map[string]uint, len(OutputPins))
	for i, p := range OutputPins {
		m[p] = uint(i)
	}
	return m
}()

// Normalize resolves an input pin name case-insensitively and returns its
// canonical spelling. ok is false for anything outside InputPins.
func Normalize(name string) (canonical string, ok bool) {
	canonical, ok = inputIndex[strings.ToUpper(strings.TrimSpace(name))]
	return canonical, ok
}

// IsInput reports whether name is an input pin, ignoring case.
func IsInput(name string) bool {
	_, ok := Normalize(name)
	return ok
}

// OutputBit returns the bit position of an output pin. Output names are
// matched exactly.
func OutputBit(name string) (uint, bool) {
	bit, ok := outputBits[name]
	return bit, ok
}

// OutputsSnapshot is the ALU output byte with its two derived text forms.
// Build one with NewOutputsSnapshot so the three fields always agree.
type OutputsSnapshot struct {
	Raw    uint8  `json:"raw"`
	Binary string `json:"binary"`
	Hex    string `json:"hex"`
}

// NewOutputsSnapshot derives Binary and Hex from raw.
func NewOutputsSnapshot(raw uint8) OutputsSnapshot {
	return OutputsSnapshot{
		Raw:    raw,
		Binary: ToBinary(raw),
		Hex:    ToHex(raw),
	}
}

// Bit returns the value of one output pin.
func (o OutputsSnapshot) Bit(name string) bool {
	bit, ok := OutputBit(name)
	if !ok {
		return false
	}
	return o.Raw&(1<<bit) != 0
}

// Pins returns every output pin value keyed by name.
func (o OutputsSnapshot) Pins() map[string]bool {
	m := make(map[string]bool, len(OutputPins))
	for i, name := range OutputPins {
		m[name] = o.Raw&(1<<uint(i)) != 0
	}
	return m
}

// F returns the 4-bit function result F3..F0.
func (o OutputsSnapshot) F() uint8 {
	return o.Raw & 0x0F
}

// Consistent reports whether Binary and Hex match Raw.
func (o OutputsSnapshot) Consistent() bool {
	return o.Binary == ToBinary(o.Raw) && o.Hex == ToHex(o.Raw)
}

func (o OutputsSnapshot) String() string {
	return fmt.Sprintf("0x%s (%s)", o.Hex, o.Binary)
}

// ToBinary renders raw as 8 base-2 digits, most significant first.
func ToBinary(raw uint8) string {
	return fmt.Sprintf("%08b", raw)
}

// ToHex renders raw as 2 upper-case hex digits.
func ToHex(raw uint8) string {
	return fmt.Sprintf("%02X", raw)
}

// ParseBinary parses an 8-digit binary string produced by ToBinary.
func ParseBinary(s string) (uint8, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("binary output %q: want 8 digits", s)
	}
	v, err := strconv.ParseUint(s, 2, 8)
	if err != nil {
		return 0, fmt.Errorf("binary output %q: %w", s, err)
	}
	return uint8(v), nil
}

// PackOutputs builds the raw byte from named output values. Unknown names
// are ignored.
func PackOutputs(values map[string]bool) uint8 {
	var raw uint8
	for name, on := range values {
		if bit, ok := OutputBit(name); ok && on {
			raw |= 1 << bit
		}
	}
	return raw
}
