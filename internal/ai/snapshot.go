package ai

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aievolve/simcore/internal/model"
)

// ErrSnapshotVersion rejects blobs written in an incompatible format.
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

const snapshotVersion = 1

const (
	scopeEntity = "entity"
	scopeGroup  = "group"
)

type snapshot struct {
	Version    int             `json:"version"`
	Generation int64           `json:"generation"`
	Tables     []tableSnapshot `json:"tables"`
}

type tableSnapshot struct {
	Scope        string          `json:"scope"`
	Entity       model.EntityID  `json:"entity,omitempty"`
	Group        string          `json:"group,omitempty"`
	LearningRate float64         `json:"learning_rate"`
	Exploration  float64         `json:"exploration"`
	Counters     Counters        `json:"counters"`
	Entries      []valueSnapshot `json:"entries"`
}

type valueSnapshot struct {
	State string  `json:"state"`
	Skill string  `json:"skill"`
	Value float64 `json:"value"`
}

// Snapshot serializes every value table into the versioned generation-memory
// blob. Output is deterministic: tables in adoption/creation order, entries
// sorted by state then skill, so identical memory yields identical bytes.
func (m *Manager) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := snapshot{Version: snapshotVersion, Generation: m.generation}
	for _, id := range m.order {
		c := m.controllers[id]
		if c.group != "" {
			// the group table below carries this controller's values
			continue
		}
		t := c.mem.export()
		t.Scope, t.Entity = scopeEntity, id
		s.Tables = append(s.Tables, t)
	}
	for _, name := range m.groupOrder {
		t := m.groups[name].mem.export()
		t.Scope, t.Group = scopeGroup, name
		s.Tables = append(s.Tables, t)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding ai snapshot: %w", err)
	}
	return data, nil
}

func (m *Memory) export() tableSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := tableSnapshot{
		LearningRate: m.lr,
		Exploration:  m.eps,
		Counters:     m.count,
		Entries:      make([]valueSnapshot, 0, len(m.values)),
	}
	for k, v := range m.values {
		t.Entries = append(t.Entries, valueSnapshot{State: k.Sig.String(), Skill: k.Skill, Value: v})
	}
	slices.SortFunc(t.Entries, func(a, b valueSnapshot) int {
		if c := cmp.Compare(a.State, b.State); c != 0 {
			return c
		}
		return cmp.Compare(a.Skill, b.Skill)
	})
	return t
}

// Restore loads a generation-memory blob. Registered controllers and groups
// get their tables replaced; entity tables whose entity is not yet managed
// are parked and claimed by a later Adopt; unknown groups are created. The
// generation counter advances past the snapshot's, and GenerationDecay pulls
// restored values toward the neutral default before learning resumes.
func (m *Manager) Restore(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding ai snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return fmt.Errorf("%w: %d (supported %d)", ErrSnapshotVersion, s.Version, snapshotVersion)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range s.Tables {
		switch t.Scope {
		case scopeEntity:
			mem, err := m.importTable(t, 1)
			if err != nil {
				return err
			}
			c, ok := m.controllers[t.Entity]
			switch {
			case !ok:
				m.restored[t.Entity] = mem
			case c.group != "":
				slog.Warn("snapshot entity table ignored: controller is in a group",
					"entity", t.Entity, "group", c.group)
			default:
				c.mem = mem
			}
		case scopeGroup:
			mem, err := m.importTable(t, m.params.GroupBlend)
			if err != nil {
				return err
			}
			g := m.ensureGroup(t.Group)
			g.mem = mem
			for _, id := range g.members {
				if c, ok := m.controllers[id]; ok {
					c.mem = mem
				}
			}
		default:
			return fmt.Errorf("ai snapshot: unknown table scope %q", t.Scope)
		}
	}
	m.generation = s.Generation + 1
	slog.Info("ai snapshot restored", "generation", m.generation, "tables", len(s.Tables))
	return nil
}

func (m *Manager) importTable(t tableSnapshot, blend float64) (*Memory, error) {
	mem := newMemory(m.params, blend)
	mem.lr = max(t.LearningRate, m.params.LearningRateFloor)
	mem.eps = max(t.Exploration, m.params.ExplorationFloor)
	mem.count = t.Counters
	decay, neutral := m.params.GenerationDecay, m.params.DefaultValue
	for _, e := range t.Entries {
		sig, err := parseSignature(e.State)
		if err != nil {
			return nil, fmt.Errorf("ai snapshot: %w", err)
		}
		v := e.Value
		if decay != 1 {
			v = neutral + (v-neutral)*decay
		}
		mem.values[Key{Sig: sig, Skill: e.Skill}] = v
	}
	return mem, nil
}
