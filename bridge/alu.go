package bridge

import (
	"github.com/c360/alusync/pins"
)

// Inputs is the full input word of a 74181. Data is active high; CN is the
// active-low carry in and M selects logic mode when set.
type Inputs struct {
	A  uint8 // 4 bits
	B  uint8 // 4 bits
	S  uint8 // 4 bits, S0 is bit 0
	CN bool
	M  bool
}

// InputsFrom reads an input word from pin values keyed by canonical name.
// Missing pins are low.
func InputsFrom(values map[string]bool) Inputs {
	nibble := func(prefix string) uint8 {
		var v uint8
		for i := 0; i < 4; i++ {
			if values[prefix+string(rune('0'+i))] {
				v |= 1 << i
			}
		}
		return v
	}
	return Inputs{
		A:  nibble("A"),
		B:  nibble("B"),
		S:  nibble("S"),
		CN: values["CN"],
		M:  values["M"],
	}
}

// Evaluate computes the outputs of a 74181 for in. P, G and CN4 are the
// active-low pin levels. The carry chain is evaluated in both modes, so CN4,
// P and G are meaningful even when M is set.
func Evaluate(in Inputs) pins.OutputsSnapshot {
	bit := func(v uint8, i int) bool { return v>>i&1 == 1 }
	s0, s1, s2, s3 := bit(in.S, 0), bit(in.S, 1), bit(in.S, 2), bit(in.S, 3)

	var f uint8
	var p, g [4]bool
	carry := !in.CN
	for i := 0; i < 4; i++ {
		a, b := bit(in.A, i), bit(in.B, i)
		x := !(a || (b && s0) || (!b && s1))
		y := !((a && !b && s2) || (a && b && s3))
		p[i], g[i] = !x, !y

		var out bool
		if in.M {
			out = x == y
		} else {
			out = (x != y) != carry
		}
		if out {
			f |= 1 << i
		}
		carry = g[i] || (p[i] && carry)
	}

	groupP := p[0] && p[1] && p[2] && p[3]
	groupG := g[3] || (p[3] && g[2]) || (p[3] && p[2] && g[1]) || (p[3] && p[2] && p[1] && g[0])

	raw := f
	if !groupP {
		raw |= 1 << pins.BitP
	}
	if !groupG {
		raw |= 1 << pins.BitG
	}
	if f == 0x0F {
		raw |= 1 << pins.BitAEqualsB
	}
	if !carry {
		raw |= 1 << pins.BitCN4
	}
	return pins.NewOutputsSnapshot(raw)
}
