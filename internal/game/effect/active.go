package effect

import (
	"fmt"
	"math"

	"github.com/aievolve/simcore/internal/model"
)

// NoExpiry marks permanent and trigger instances.
const NoExpiry int64 = math.MaxInt64

// State tracks the lifecycle of one active instance.
// Pending exists only inside Apply while validation runs.
type State uint8

const (
	StatePending State = iota
	StateActive
	StateExpired
	StateRemoved
	StateReplaced
)

// String returns a short label for logs.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateRemoved:
		return "removed"
	case StateReplaced:
		return "replaced"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Active is one live effect instance on a target. Referenced by uint64 id;
// source and target are entity handles, never pointers.
type Active struct {
	ID       uint64
	Template *Template

	SourceID model.EntityID
	TargetID model.EntityID

	// Magnitude is the per-stack strength after source scaling and target
	// element resist were folded in at apply time.
	Magnitude float64
	Stacks    int32

	AppliedTick   int64
	ExpiryTick    int64
	NextPulseTick int64

	State State
}

// Expired reports whether the instance passed its expiry at the given tick.
func (a *Active) Expired(tick int64) bool {
	return a.ExpiryTick != NoExpiry && tick >= a.ExpiryTick
}

// RemainingTicks returns ticks until expiry, or -1 for permanent instances.
func (a *Active) RemainingTicks(tick int64) int64 {
	if a.ExpiryTick == NoExpiry {
		return -1
	}
	return max(a.ExpiryTick-tick, 0)
}

// sharesCancelTag reports whether two templates collide on a cancel tag.
func sharesCancelTag(a, b *Template) bool {
	for _, ta := range a.CancelTags {
		for _, tb := range b.CancelTags {
			if ta == tb {
				return true
			}
		}
	}
	return false
}

// View is the read-only projection returned by Query.
type View struct {
	ID             uint64
	Name           string
	Category       Category
	Kind           Kind
	SourceID       model.EntityID
	Stacks         int32
	Magnitude      float64
	RemainingTicks int64
}

// view projects an instance at the given tick.
func (a *Active) view(tick int64) View {
	return View{
		ID:             a.ID,
		Name:           a.Template.Name,
		Category:       a.Template.Category,
		Kind:           a.Template.Kind,
		SourceID:       a.SourceID,
		Stacks:         a.Stacks,
		Magnitude:      a.Magnitude,
		RemainingTicks: a.RemainingTicks(tick),
	}
}
