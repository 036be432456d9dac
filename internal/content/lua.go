package content

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// LoadLua executes every .lua file in dir inside a sandboxed VM and collects
// the definitions they declare. The VM is discarded after loading; nothing
// Lua survives into the tick loop.
//
// Scripts declare content through curried global constructors:
//
//	Effect "burning" { category = "duration", kind = "damage", ... }
//	Skill "fireball" { type = "attack", effects = { "burning" }, ... }
//	Proc "burning_edge" { condition = "on_hit", chance = 0.15, ... }
//	Combo "overhand_chain" { steps = { "strike", "heavy_blow" }, ... }
func LoadLua(dir string) (Pack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Pack{}, fmt.Errorf("content: reading pack directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return Pack{}, fmt.Errorf("content: no .lua files in %s", dir)
	}
	sort.Strings(files)

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	sandbox(L)

	var pack Pack
	registerConstructors(L, &pack)

	for _, f := range files {
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return Pack{}, fmt.Errorf("content: executing %s: %w", f, err)
		}
	}

	slog.Info("loaded lua content pack",
		"dir", dir,
		"files", len(files),
		"effects", len(pack.Effects),
		"skills", len(pack.Skills),
		"procs", len(pack.Procs),
		"combos", len(pack.Combos))
	return pack, nil
}

// openSafeLibs opens only the side-effect-free Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox strips globals that reach outside the VM or break determinism.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}
	if mathTbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		mathTbl.RawSetString("randomseed", lua.LNil)
		mathTbl.RawSetString("random", lua.LNil)
	}
}

// registerConstructors installs the curried Effect/Skill/Proc/Combo globals.
// Each call appends a raw def; Compile validates names and enums later.
func registerConstructors(L *lua.LState, pack *Pack) {
	L.SetGlobal("Effect", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			pack.Effects = append(pack.Effects, effectFromTable(name, L.CheckTable(1)))
			return 0
		}))
		return 1
	}))

	L.SetGlobal("Skill", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			pack.Skills = append(pack.Skills, skillFromTable(name, L.CheckTable(1)))
			return 0
		}))
		return 1
	}))

	L.SetGlobal("Proc", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			pack.Procs = append(pack.Procs, procFromTable(name, L.CheckTable(1)))
			return 0
		}))
		return 1
	}))

	L.SetGlobal("Combo", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			pack.Combos = append(pack.Combos, comboFromTable(name, L.CheckTable(1)))
			return 0
		}))
		return 1
	}))
}

func effectFromTable(name string, tbl *lua.LTable) EffectDef {
	return EffectDef{
		Name:          name,
		Category:      getString(tbl, "category"),
		Kind:          getString(tbl, "kind"),
		Element:       getString(tbl, "element"),
		Magnitude:     getNumber(tbl, "magnitude"),
		AttrScaling:   getNumberMap(tbl, "attr_scaling"),
		StatScaling:   getNumberMap(tbl, "stat_scaling"),
		Resource:      getString(tbl, "resource"),
		Modifiers:     getModifiers(tbl, "modifiers"),
		DurationTicks: getInt64(tbl, "duration_ticks"),
		PeriodTicks:   getInt64(tbl, "period_ticks"),
		MaxStacks:     int32(getInt64(tbl, "max_stacks")),
		Conflict:      getString(tbl, "conflict"),
		Tags:          getStrings(tbl, "tags"),
		CancelTags:    getStrings(tbl, "cancel_tags"),
	}
}

func skillFromTable(name string, tbl *lua.LTable) SkillDef {
	return SkillDef{
		Name:            name,
		Type:            getString(tbl, "type"),
		Element:         getString(tbl, "element"),
		WeaponAttack:    getBool(tbl, "weapon_attack"),
		Effects:         getStrings(tbl, "effects"),
		BaseMagnitude:   getNumber(tbl, "base_magnitude"),
		AttrScaling:     getNumberMap(tbl, "attr_scaling"),
		StatScaling:     getNumberMap(tbl, "stat_scaling"),
		Costs:           getNumberMap(tbl, "costs"),
		CooldownTicks:   getInt64(tbl, "cooldown_ticks"),
		GCDGroup:        getString(tbl, "gcd_group"),
		GCDTicks:        getInt64(tbl, "gcd_ticks"),
		MaxCharges:      int32(getInt64(tbl, "max_charges")),
		MinRange:        getNumber(tbl, "min_range"),
		MaxRange:        getNumber(tbl, "max_range"),
		MinLevel:        int32(getInt64(tbl, "min_level")),
		RequiredAttrs:   getNumberMap(tbl, "required_attrs"),
		Priority:        getNumber(tbl, "priority"),
		HealthThreshold: getNumber(tbl, "health_threshold"),
		ManaThreshold:   getNumber(tbl, "mana_threshold"),
		PriorityTags:    getStrings(tbl, "priority_tags"),
	}
}

func procFromTable(name string, tbl *lua.LTable) ProcDef {
	def := ProcDef{
		Name:          name,
		Condition:     getString(tbl, "condition"),
		Chance:        getNumber(tbl, "chance"),
		CooldownTicks: getInt64(tbl, "cooldown_ticks"),
		MaxProcs:      int32(getInt64(tbl, "max_procs")),
		Effect:        getString(tbl, "effect"),
		Self:          getBool(tbl, "self"),
		DelayTicks:    getInt64(tbl, "delay_ticks"),
	}
	if chain := getTable(tbl, "chain"); chain != nil {
		for i := 1; i <= chain.MaxN(); i++ {
			link, ok := chain.RawGetInt(i).(*lua.LTable)
			if !ok {
				continue
			}
			def.Chain = append(def.Chain, ChainDef{
				Effect:     getString(link, "effect"),
				DelayTicks: getInt64(link, "delay_ticks"),
				Self:       getBool(link, "self"),
			})
		}
	}
	return def
}

func comboFromTable(name string, tbl *lua.LTable) ComboDef {
	return ComboDef{
		Name:        name,
		Steps:       getStrings(tbl, "steps"),
		StepBonus:   getNumber(tbl, "step_bonus"),
		WindowTicks: getInt64(tbl, "window_ticks"),
	}
}

func getString(tbl *lua.LTable, key string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

func getBool(tbl *lua.LTable, key string) bool {
	if b, ok := tbl.RawGetString(key).(lua.LBool); ok {
		return bool(b)
	}
	return false
}

func getNumber(tbl *lua.LTable, key string) float64 {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

func getInt64(tbl *lua.LTable, key string) int64 {
	return int64(getNumber(tbl, key))
}

func getTable(tbl *lua.LTable, key string) *lua.LTable {
	if t, ok := tbl.RawGetString(key).(*lua.LTable); ok {
		return t
	}
	return nil
}

// getStrings reads an array-style table of strings.
func getStrings(tbl *lua.LTable, key string) []string {
	t := getTable(tbl, key)
	if t == nil {
		return nil
	}
	var out []string
	for i := 1; i <= t.MaxN(); i++ {
		if s, ok := t.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// getNumberMap reads a map-style table of string keys to numbers.
func getNumberMap(tbl *lua.LTable, key string) map[string]float64 {
	t := getTable(tbl, key)
	if t == nil {
		return nil
	}
	out := make(map[string]float64)
	t.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok {
			return
		}
		if vn, ok := v.(lua.LNumber); ok {
			out[string(ks)] = float64(vn)
		}
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

// getModifiers reads an array of modifier tables.
func getModifiers(tbl *lua.LTable, key string) []ModifierDef {
	t := getTable(tbl, key)
	if t == nil {
		return nil
	}
	var out []ModifierDef
	for i := 1; i <= t.MaxN(); i++ {
		m, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		out = append(out, ModifierDef{
			Op:     getString(m, "op"),
			Target: getString(m, "target"),
			Value:  getNumber(m, "value"),
		})
	}
	return out
}
