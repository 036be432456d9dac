package ai

import "fmt"

// Signature discretizes the situation a decision was made in, so learned
// values generalize across similar moments instead of exact float states.
type Signature struct {
	SelfHealth   uint8 // 0..4, 20% buckets
	SelfMana     uint8 // 0..4
	TargetHealth uint8 // 0..4
	Range        uint8 // 0 melee, 1 short, 2 mid, 3 far
}

const ratioBuckets = 5

// Range bucket boundaries in world units.
const (
	meleeRange = 2.0
	shortRange = 6.0
	midRange   = 15.0
)

// bucketRatio maps a [0,1] ratio into one of five equal buckets.
func bucketRatio(r float64) uint8 {
	if r <= 0 {
		return 0
	}
	if r >= 1 {
		return ratioBuckets - 1
	}
	return uint8(r * ratioBuckets)
}

// bucketRange maps a distance into a coarse range class.
func bucketRange(d float64) uint8 {
	switch {
	case d < meleeRange:
		return 0
	case d < shortRange:
		return 1
	case d < midRange:
		return 2
	default:
		return 3
	}
}

// MakeSignature buckets the raw observation. Ratios are clamped to [0,1].
func MakeSignature(selfHealth, selfMana, targetHealth, distance float64) Signature {
	return Signature{
		SelfHealth:   bucketRatio(selfHealth),
		SelfMana:     bucketRatio(selfMana),
		TargetHealth: bucketRatio(targetHealth),
		Range:        bucketRange(distance),
	}
}

// String renders the compact form used as the snapshot key ("h4.m4.t2.r1").
func (s Signature) String() string {
	return fmt.Sprintf("h%d.m%d.t%d.r%d", s.SelfHealth, s.SelfMana, s.TargetHealth, s.Range)
}

// parseSignature inverts String; snapshot restore uses it.
func parseSignature(raw string) (Signature, error) {
	var h, m, t, r uint8
	if _, err := fmt.Sscanf(raw, "h%d.m%d.t%d.r%d", &h, &m, &t, &r); err != nil {
		return Signature{}, fmt.Errorf("malformed state signature %q: %w", raw, err)
	}
	if h >= ratioBuckets || m >= ratioBuckets || t >= ratioBuckets || r > 3 {
		return Signature{}, fmt.Errorf("state signature %q out of range", raw)
	}
	return Signature{SelfHealth: h, SelfMana: m, TargetHealth: t, Range: r}, nil
}
