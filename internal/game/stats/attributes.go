package stats

import (
	"errors"
	"fmt"
)

// Attribute identifies one of the base attributes every entity carries.
// The set is closed: content referencing anything else is rejected at load.
type Attribute uint8

const (
	AttrStrength Attribute = iota
	AttrAgility
	AttrIntelligence
	AttrConstitution
	AttrWisdom
	AttrCharisma
	AttrLuck

	attrCount
)

// String returns the content key of the attribute.
func (a Attribute) String() string {
	switch a {
	case AttrStrength:
		return "strength"
	case AttrAgility:
		return "agility"
	case AttrIntelligence:
		return "intelligence"
	case AttrConstitution:
		return "constitution"
	case AttrWisdom:
		return "wisdom"
	case AttrCharisma:
		return "charisma"
	case AttrLuck:
		return "luck"
	}
	return fmt.Sprintf("attribute(%d)", uint8(a))
}

// ParseAttribute maps a content key to an Attribute.
// Unknown keys are an error so content typos never create phantom attributes.
func ParseAttribute(s string) (Attribute, error) {
	for a := AttrStrength; a < attrCount; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown attribute %q", ErrInvalidAttribute, s)
}

// ErrInvalidAttribute reports a negative attribute, a non-positive level or an
// unknown attribute key.
var ErrInvalidAttribute = errors.New("invalid attribute")

// AttributeSet holds the base attributes and level of one entity.
// Value type, passed by copy; mutated only by the owning entity on level-up
// or respec, which must invalidate the stat cache.
type AttributeSet struct {
	Strength     float64
	Agility      float64
	Intelligence float64
	Constitution float64
	Wisdom       float64
	Charisma     float64
	Luck         float64
	Level        int32
}

// Get returns the value of a single attribute.
func (s AttributeSet) Get(a Attribute) float64 {
	switch a {
	case AttrStrength:
		return s.Strength
	case AttrAgility:
		return s.Agility
	case AttrIntelligence:
		return s.Intelligence
	case AttrConstitution:
		return s.Constitution
	case AttrWisdom:
		return s.Wisdom
	case AttrCharisma:
		return s.Charisma
	case AttrLuck:
		return s.Luck
	}
	panic(fmt.Sprintf("stats: unknown attribute %d", uint8(a)))
}

// Validate rejects negative attributes and levels below 1.
// Callers sanitize their inputs before handing an AttributeSet to ComputeDerived.
func (s AttributeSet) Validate() error {
	for a := AttrStrength; a < attrCount; a++ {
		if v := s.Get(a); v < 0 {
			return fmt.Errorf("%w: %s = %v", ErrInvalidAttribute, a, v)
		}
	}
	if s.Level < 1 {
		return fmt.Errorf("%w: level = %d", ErrInvalidAttribute, s.Level)
	}
	return nil
}

// withAdd returns a copy with one attribute increased, floored at zero.
// Used when folding attribute modifiers in before the base formulas run.
func (s AttributeSet) withAdd(a Attribute, v float64) AttributeSet {
	set := func(cur float64) float64 {
		return max(cur+v, 0)
	}
	switch a {
	case AttrStrength:
		s.Strength = set(s.Strength)
	case AttrAgility:
		s.Agility = set(s.Agility)
	case AttrIntelligence:
		s.Intelligence = set(s.Intelligence)
	case AttrConstitution:
		s.Constitution = set(s.Constitution)
	case AttrWisdom:
		s.Wisdom = set(s.Wisdom)
	case AttrCharisma:
		s.Charisma = set(s.Charisma)
	case AttrLuck:
		s.Luck = set(s.Luck)
	default:
		panic(fmt.Sprintf("stats: unknown attribute %d", uint8(a)))
	}
	return s
}
