package stats

import "fmt"

// Stat identifies one derived combat statistic.
type Stat uint8

const (
	StatMaxHealth Stat = iota
	StatMaxMana
	StatMaxStamina
	StatPhysicalDamage
	StatMagicalDamage
	StatDefense
	StatMagicResist
	StatCritChance
	StatCritMultiplier
	StatDodgeChance
	StatBlockChance
	StatToughness
	StatStunResist

	statCount
)

// String returns the content key of the stat.
func (s Stat) String() string {
	switch s {
	case StatMaxHealth:
		return "max_health"
	case StatMaxMana:
		return "max_mana"
	case StatMaxStamina:
		return "max_stamina"
	case StatPhysicalDamage:
		return "physical_damage"
	case StatMagicalDamage:
		return "magical_damage"
	case StatDefense:
		return "defense"
	case StatMagicResist:
		return "magic_resist"
	case StatCritChance:
		return "crit_chance"
	case StatCritMultiplier:
		return "crit_multiplier"
	case StatDodgeChance:
		return "dodge_chance"
	case StatBlockChance:
		return "block_chance"
	case StatToughness:
		return "toughness"
	case StatStunResist:
		return "stun_resist"
	}
	return fmt.Sprintf("stat(%d)", uint8(s))
}

// ParseStat maps a content key to a Stat. Unknown keys are an error.
func ParseStat(s string) (Stat, error) {
	for st := StatMaxHealth; st < statCount; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown stat %q", s)
}

// Element identifies a damage school. ElementPhysical is mitigated by Defense,
// the rest by MagicResist; each additionally has its own resist percentage.
type Element uint8

const (
	ElementPhysical Element = iota
	ElementFire
	ElementIce
	ElementLightning
	ElementPoison
	ElementHoly
	ElementDark
	ElementArcane

	// ElementCount sizes per-element arrays.
	ElementCount
)

// String returns the content key of the element.
func (e Element) String() string {
	switch e {
	case ElementPhysical:
		return "physical"
	case ElementFire:
		return "fire"
	case ElementIce:
		return "ice"
	case ElementLightning:
		return "lightning"
	case ElementPoison:
		return "poison"
	case ElementHoly:
		return "holy"
	case ElementDark:
		return "dark"
	case ElementArcane:
		return "arcane"
	}
	return fmt.Sprintf("element(%d)", uint8(e))
}

// ParseElement maps a content key to an Element. Unknown keys are an error.
func ParseElement(s string) (Element, error) {
	for e := ElementPhysical; e < ElementCount; e++ {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown element %q", s)
}

// DerivedStats is the computed stat block consumed by combat, skills and AI.
// Value type; a fresh copy comes out of every ComputeDerived call.
type DerivedStats struct {
	MaxHealth      float64
	MaxMana        float64
	MaxStamina     float64
	PhysicalDamage float64
	MagicalDamage  float64
	Defense        float64
	MagicResist    float64
	CritChance     float64
	CritMultiplier float64
	DodgeChance    float64
	BlockChance    float64
	Toughness      float64
	StunResist     float64

	// Resist holds the fractional damage reduction per element, clamped to [0,1].
	Resist [ElementCount]float64
}

// Get returns one stat by enum, for scaling coefficients keyed by Stat.
func (d DerivedStats) Get(s Stat) float64 {
	switch s {
	case StatMaxHealth:
		return d.MaxHealth
	case StatMaxMana:
		return d.MaxMana
	case StatMaxStamina:
		return d.MaxStamina
	case StatPhysicalDamage:
		return d.PhysicalDamage
	case StatMagicalDamage:
		return d.MagicalDamage
	case StatDefense:
		return d.Defense
	case StatMagicResist:
		return d.MagicResist
	case StatCritChance:
		return d.CritChance
	case StatCritMultiplier:
		return d.CritMultiplier
	case StatDodgeChance:
		return d.DodgeChance
	case StatBlockChance:
		return d.BlockChance
	case StatToughness:
		return d.Toughness
	case StatStunResist:
		return d.StunResist
	}
	panic(fmt.Sprintf("stats: unknown stat %d", uint8(s)))
}

func (d *DerivedStats) add(s Stat, v float64) {
	switch s {
	case StatMaxHealth:
		d.MaxHealth += v
	case StatMaxMana:
		d.MaxMana += v
	case StatMaxStamina:
		d.MaxStamina += v
	case StatPhysicalDamage:
		d.PhysicalDamage += v
	case StatMagicalDamage:
		d.MagicalDamage += v
	case StatDefense:
		d.Defense += v
	case StatMagicResist:
		d.MagicResist += v
	case StatCritChance:
		d.CritChance += v
	case StatCritMultiplier:
		d.CritMultiplier += v
	case StatDodgeChance:
		d.DodgeChance += v
	case StatBlockChance:
		d.BlockChance += v
	case StatToughness:
		d.Toughness += v
	case StatStunResist:
		d.StunResist += v
	default:
		panic(fmt.Sprintf("stats: unknown stat %d", uint8(s)))
	}
}

func (d *DerivedStats) scale(s Stat, v float64) {
	switch s {
	case StatMaxHealth:
		d.MaxHealth *= v
	case StatMaxMana:
		d.MaxMana *= v
	case StatMaxStamina:
		d.MaxStamina *= v
	case StatPhysicalDamage:
		d.PhysicalDamage *= v
	case StatMagicalDamage:
		d.MagicalDamage *= v
	case StatDefense:
		d.Defense *= v
	case StatMagicResist:
		d.MagicResist *= v
	case StatCritChance:
		d.CritChance *= v
	case StatCritMultiplier:
		d.CritMultiplier *= v
	case StatDodgeChance:
		d.DodgeChance *= v
	case StatBlockChance:
		d.BlockChance *= v
	case StatToughness:
		d.Toughness *= v
	case StatStunResist:
		d.StunResist *= v
	default:
		panic(fmt.Sprintf("stats: unknown stat %d", uint8(s)))
	}
}

// clamp bounds chance-type stats to [0,1], the crit multiplier to >= 1 and
// everything else to >= 0. Resists clamp to [0,1] as well.
func (d *DerivedStats) clamp() {
	d.MaxHealth = max(d.MaxHealth, 0)
	d.MaxMana = max(d.MaxMana, 0)
	d.MaxStamina = max(d.MaxStamina, 0)
	d.PhysicalDamage = max(d.PhysicalDamage, 0)
	d.MagicalDamage = max(d.MagicalDamage, 0)
	d.Defense = max(d.Defense, 0)
	d.MagicResist = max(d.MagicResist, 0)
	d.CritChance = clamp01(d.CritChance)
	d.CritMultiplier = max(d.CritMultiplier, 1)
	d.DodgeChance = clamp01(d.DodgeChance)
	d.BlockChance = clamp01(d.BlockChance)
	d.Toughness = max(d.Toughness, 0)
	d.StunResist = max(d.StunResist, 0)
	for i := range d.Resist {
		d.Resist[i] = clamp01(d.Resist[i])
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
