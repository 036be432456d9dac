package stats

import "fmt"

// ModKind selects what a Modifier changes. Closed set, matched exhaustively.
type ModKind uint8

const (
	// ModAttrAdd adds to a base attribute before the base formulas run.
	ModAttrAdd ModKind = iota
	// ModStatAdd adds to a derived stat after the base formulas.
	ModStatAdd
	// ModStatMul multiplies a derived stat after all additions (1.1 = +10%).
	ModStatMul
	// ModResistAdd adds to one element resist fraction.
	ModResistAdd
)

// Modifier is one adjustment contributed by equipment or an active effect.
// Build them through the constructors below so only valid combinations exist.
type Modifier struct {
	Kind  ModKind
	Attr  Attribute
	Stat  Stat
	Elem  Element
	Value float64
}

// AttrAdd builds an additive attribute modifier.
func AttrAdd(a Attribute, v float64) Modifier {
	return Modifier{Kind: ModAttrAdd, Attr: a, Value: v}
}

// StatAdd builds an additive derived-stat modifier.
func StatAdd(s Stat, v float64) Modifier {
	return Modifier{Kind: ModStatAdd, Stat: s, Value: v}
}

// StatMul builds a multiplicative derived-stat modifier.
func StatMul(s Stat, v float64) Modifier {
	return Modifier{Kind: ModStatMul, Stat: s, Value: v}
}

// ResistAdd builds an additive element-resist modifier.
func ResistAdd(e Element, v float64) Modifier {
	return Modifier{Kind: ModResistAdd, Elem: e, Value: v}
}

// String describes the modifier for debug logs.
func (m Modifier) String() string {
	switch m.Kind {
	case ModAttrAdd:
		return fmt.Sprintf("%s %+g", m.Attr, m.Value)
	case ModStatAdd:
		return fmt.Sprintf("%s %+g", m.Stat, m.Value)
	case ModStatMul:
		return fmt.Sprintf("%s x%g", m.Stat, m.Value)
	case ModResistAdd:
		return fmt.Sprintf("resist(%s) %+g", m.Elem, m.Value)
	}
	panic(fmt.Sprintf("stats: unknown modifier kind %d", uint8(m.Kind)))
}
