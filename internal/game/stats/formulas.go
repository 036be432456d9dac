package stats

// Base formula coefficients. These are the authoritative tuning values for the
// attribute-to-stat conversion; combat-side tuning (defense curve, stagger)
// lives in config.Balance instead.
const (
	HealthPerConstitution  = 10.0
	HealthPerLevel         = 5.0
	ManaPerIntelligence    = 6.0
	ManaPerWisdom          = 4.0
	ManaPerLevel           = 3.0
	StaminaPerConstitution = 4.0
	StaminaPerAgility      = 6.0
	StaminaPerLevel        = 2.0

	PhysDamagePerStrength      = 2.0
	PhysDamagePerAgility       = 0.5
	MagicDamagePerIntelligence = 2.0
	MagicDamagePerWisdom       = 0.5

	DefensePerConstitution     = 1.5
	DefensePerAgility          = 0.5
	MagicResistPerWisdom       = 1.5
	MagicResistPerIntelligence = 0.5

	BaseCritChance        = 0.05
	CritChancePerAgility  = 0.002
	CritChancePerLuck     = 0.001
	BaseCritMultiplier    = 2.0
	CritMultiplierPerLuck = 0.01
	DodgePerAgility       = 0.002
	DodgePerLuck          = 0.0005
	BaseBlockChance       = 0.05

	BaseToughness             = 100.0
	ToughnessPerConstitution  = 2.0
	StunResistPerConstitution = 1.0
	StunResistPerWisdom       = 0.5
)

// baseStats evaluates the base formulas for a validated attribute set.
// No clamping here; ComputeDerived clamps once after all modifiers applied.
func baseStats(attrs AttributeSet) DerivedStats {
	level := float64(attrs.Level)
	return DerivedStats{
		MaxHealth:      attrs.Constitution*HealthPerConstitution + level*HealthPerLevel,
		MaxMana:        attrs.Intelligence*ManaPerIntelligence + attrs.Wisdom*ManaPerWisdom + level*ManaPerLevel,
		MaxStamina:     attrs.Constitution*StaminaPerConstitution + attrs.Agility*StaminaPerAgility + level*StaminaPerLevel,
		PhysicalDamage: attrs.Strength*PhysDamagePerStrength + attrs.Agility*PhysDamagePerAgility,
		MagicalDamage:  attrs.Intelligence*MagicDamagePerIntelligence + attrs.Wisdom*MagicDamagePerWisdom,
		Defense:        attrs.Constitution*DefensePerConstitution + attrs.Agility*DefensePerAgility,
		MagicResist:    attrs.Wisdom*MagicResistPerWisdom + attrs.Intelligence*MagicResistPerIntelligence,
		CritChance:     BaseCritChance + attrs.Agility*CritChancePerAgility + attrs.Luck*CritChancePerLuck,
		CritMultiplier: BaseCritMultiplier + attrs.Luck*CritMultiplierPerLuck,
		DodgeChance:    attrs.Agility*DodgePerAgility + attrs.Luck*DodgePerLuck,
		BlockChance:    BaseBlockChance,
		Toughness:      BaseToughness + attrs.Constitution*ToughnessPerConstitution,
		StunResist:     attrs.Constitution*StunResistPerConstitution + attrs.Wisdom*StunResistPerWisdom,
	}
}
