package stats

import "fmt"

// ComputeDerived resolves the full derived stat block from base attributes
// and a modifier list. Pure: no I/O, no hidden state, identical inputs always
// produce identical outputs.
//
// Application order:
//  1. attribute additions (floored at zero per attribute)
//  2. base formulas
//  3. derived-stat additions and resist additions
//  4. derived-stat multipliers
//  5. clamps (chances to [0,1], crit multiplier >= 1, the rest >= 0)
func ComputeDerived(attrs AttributeSet, mods []Modifier) (DerivedStats, error) {
	if err := attrs.Validate(); err != nil {
		return DerivedStats{}, fmt.Errorf("compute derived: %w", err)
	}

	for _, m := range mods {
		if m.Kind == ModAttrAdd {
			attrs = attrs.withAdd(m.Attr, m.Value)
		}
	}

	d := baseStats(attrs)

	for _, m := range mods {
		switch m.Kind {
		case ModAttrAdd:
			// folded in above
		case ModStatAdd:
			d.add(m.Stat, m.Value)
		case ModResistAdd:
			d.Resist[m.Elem] += m.Value
		case ModStatMul:
			// applied in the second pass below
		default:
			panic(fmt.Sprintf("stats: unknown modifier kind %d", uint8(m.Kind)))
		}
	}

	for _, m := range mods {
		if m.Kind == ModStatMul {
			d.scale(m.Stat, m.Value)
		}
	}

	d.clamp()
	return d, nil
}
