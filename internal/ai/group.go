package ai

import (
	"slices"

	"github.com/aievolve/simcore/internal/model"
)

// Group pools learned values across entities of one class or role. Members
// share a single blended value table, so one entity's experience shifts the
// estimates every member reads.
type Group struct {
	name    string
	mem     *Memory
	members []model.EntityID
}

// Name returns the group identifier used in snapshots.
func (g *Group) Name() string { return g.name }

// Memory returns the shared value table.
func (g *Group) Memory() *Memory { return g.mem }

// Members returns the member ids in join order.
func (g *Group) Members() []model.EntityID {
	return slices.Clone(g.members)
}

func (g *Group) drop(id model.EntityID) {
	g.members = slices.DeleteFunc(g.members, func(m model.EntityID) bool { return m == id })
}
