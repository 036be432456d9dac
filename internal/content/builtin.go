package content

// Builtin returns the shipped content pack: a small but complete catalog
// exercising every effect category, skill type, trigger condition and the
// combo system. External packs (Lua, SQLite) replace or extend it.
func Builtin() Pack {
	return Pack{
		Effects: builtinEffects(),
		Skills:  builtinSkills(),
		Procs:   builtinProcs(),
		Combos:  builtinCombos(),
	}
}

func builtinEffects() []EffectDef {
	return []EffectDef{
		{
			Name: "minor_heal", Category: "instant", Kind: "heal",
			Magnitude:   25,
			AttrScaling: map[string]float64{"wisdom": 1.5},
		},
		{
			Name: "mana_spring", Category: "instant", Kind: "restore",
			Resource: "mana", Magnitude: 20,
			AttrScaling: map[string]float64{"intelligence": 1.0},
		},
		{
			Name: "burning", Category: "duration", Kind: "damage", Element: "fire",
			Magnitude: 4, DurationTicks: 30, PeriodTicks: 5,
			Conflict: "replace",
			Tags:     []string{"burn", "dot"},
		},
		{
			Name: "poisoned", Category: "stacking", Kind: "damage", Element: "poison",
			Magnitude: 2, DurationTicks: 50, PeriodTicks: 10, MaxStacks: 5,
			Conflict: "stack",
			Tags:     []string{"poison", "dot"},
		},
		{
			Name: "regrowth", Category: "duration", Kind: "heal",
			Magnitude: 6, DurationTicks: 40, PeriodTicks: 10,
			AttrScaling: map[string]float64{"wisdom": 0.5},
			Conflict:    "merge",
			Tags:        []string{"hot"},
		},
		{
			Name: "stone_skin", Category: "duration", Kind: "modify_stats",
			DurationTicks: 100,
			Modifiers: []ModifierDef{
				{Op: "stat_add", Target: "defense", Value: 25},
				{Op: "resist_add", Target: "physical", Value: 0.1},
			},
			Conflict:   "replace",
			Tags:       []string{"armor"},
			CancelTags: []string{"armor"},
		},
		{
			Name: "battle_focus", Category: "duration", Kind: "modify_stats",
			DurationTicks: 80,
			Modifiers: []ModifierDef{
				{Op: "stat_add", Target: "crit_chance", Value: 0.1},
				{Op: "stat_mul", Target: "physical_damage", Value: 1.15},
			},
			Conflict: "ignore",
			Tags:     []string{"focus"},
		},
		{
			Name: "predator_instinct", Category: "trigger", Kind: "modify_stats",
			Modifiers: []ModifierDef{
				{Op: "attr_add", Target: "agility", Value: 2},
			},
			Tags: []string{"passive"},
		},
	}
}

func builtinSkills() []SkillDef {
	return []SkillDef{
		{
			Name: "strike", Type: "attack", Element: "physical", WeaponAttack: true,
			BaseMagnitude: 20,
			AttrScaling:   map[string]float64{"strength": 0.5},
			MaxRange:      2, MaxCharges: 1,
			Priority: 1.0,
		},
		{
			Name: "heavy_blow", Type: "attack", Element: "physical", WeaponAttack: true,
			BaseMagnitude: 38,
			AttrScaling:   map[string]float64{"strength": 1.0},
			Costs:         map[string]float64{"stamina": 15},
			CooldownTicks: 30, MaxRange: 2, MaxCharges: 1,
			GCDGroup: "melee", GCDTicks: 10,
			Priority: 1.4,
		},
		{
			Name: "riposte", Type: "attack", Element: "physical", WeaponAttack: true,
			BaseMagnitude: 28,
			AttrScaling:   map[string]float64{"agility": 0.8},
			CooldownTicks: 20, MaxRange: 2, MaxCharges: 1,
			GCDGroup: "melee", GCDTicks: 10,
			Priority: 1.2,
		},
		{
			Name: "fireball", Type: "attack", Element: "fire",
			BaseMagnitude: 32,
			AttrScaling:   map[string]float64{"intelligence": 1.2},
			Effects:       []string{"burning"},
			Costs:         map[string]float64{"mana": 12},
			CooldownTicks: 25, MinRange: 2, MaxRange: 15, MaxCharges: 1,
			ManaThreshold: 0.25,
			Priority:      1.5,
		},
		{
			Name: "venom_strike", Type: "attack", Element: "poison", WeaponAttack: true,
			BaseMagnitude: 15,
			Effects:       []string{"poisoned"},
			Costs:         map[string]float64{"stamina": 10},
			CooldownTicks: 15, MaxRange: 2, MaxCharges: 1,
			Priority: 1.1,
		},
		{
			Name: "mend", Type: "heal",
			Effects:       []string{"minor_heal"},
			Costs:         map[string]float64{"mana": 10},
			CooldownTicks: 20, MaxRange: 8, MaxCharges: 1,
			HealthThreshold: 0.5, ManaThreshold: 0.25,
			Priority:     1.2,
			PriorityTags: []string{"defensive"},
		},
		{
			Name: "regrow", Type: "heal",
			Effects:       []string{"regrowth"},
			Costs:         map[string]float64{"mana": 14},
			CooldownTicks: 40, MaxRange: 8, MaxCharges: 1,
			HealthThreshold: 0.6, ManaThreshold: 0.25,
			Priority:     1.0,
			PriorityTags: []string{"defensive"},
		},
		{
			Name: "harden", Type: "buff",
			Effects:       []string{"stone_skin"},
			Costs:         map[string]float64{"mana": 8},
			CooldownTicks: 100, MaxCharges: 1,
			HealthThreshold: 0.5,
			Priority:        0.9,
			PriorityTags:    []string{"defensive"},
		},
		{
			Name: "war_cry", Type: "buff",
			Effects:       []string{"battle_focus"},
			Costs:         map[string]float64{"stamina": 20},
			CooldownTicks: 80, MaxCharges: 1,
			MinLevel: 3,
			Priority: 0.8,
		},
	}
}

func builtinProcs() []ProcDef {
	return []ProcDef{
		{
			Name: "burning_edge", Condition: "on_hit", Chance: 0.15,
			Effect: "burning", CooldownTicks: 10,
		},
		{
			Name: "second_wind", Condition: "on_damaged", Chance: 0.1,
			Effect: "minor_heal", Self: true, CooldownTicks: 100,
		},
		{
			Name: "executioner", Condition: "on_kill", Chance: 1.0,
			Effect: "battle_focus", Self: true,
		},
		{
			Name: "cornered_beast", Condition: "on_stun", Chance: 0.5,
			Effect: "battle_focus", Self: true, CooldownTicks: 50,
			Chain: []ChainDef{
				{Effect: "regrowth", DelayTicks: 10, Self: true},
			},
		},
	}
}

func builtinCombos() []ComboDef {
	return []ComboDef{
		{
			Name:  "overhand_chain",
			Steps: []string{"strike", "heavy_blow", "riposte"},
			StepBonus: 0.2, WindowTicks: 20,
		},
	}
}
