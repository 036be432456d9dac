package ai

import "sync"

// Key addresses one learned estimate.
type Key struct {
	Sig   Signature
	Skill string
}

// Counters aggregate a table's recorded experience.
type Counters struct {
	Actions     uint64  `json:"actions"`
	Successes   uint64  `json:"successes"`
	Failures    uint64  `json:"failures"`
	TotalReward float64 `json:"total_reward"`
}

// AverageReward is the mean reward over all recorded actions.
func (c Counters) AverageReward() float64 {
	if c.Actions == 0 {
		return 0
	}
	return c.TotalReward / float64(c.Actions)
}

// Memory is one value table: learned estimates per (signature, skill) plus
// the learning state that decays as experience accumulates. A private memory
// writes updates at full weight; a shared group memory blends them so no
// single member overwrites pooled experience. Writes are serialized behind
// the mutex; readers in the same tick see the pre-write value.
type Memory struct {
	mu     sync.Mutex
	params Params
	blend  float64
	values map[Key]float64
	lr     float64
	eps    float64
	count  Counters
}

// NewMemory builds a private value table.
func NewMemory(p Params) *Memory {
	return newMemory(p, 1)
}

// newSharedMemory builds a group table whose writes are blended.
func newSharedMemory(p Params) *Memory {
	return newMemory(p, p.GroupBlend)
}

func newMemory(p Params, blend float64) *Memory {
	return &Memory{
		params: p,
		blend:  blend,
		values: make(map[Key]float64),
		lr:     p.LearningRate,
		eps:    p.Exploration,
	}
}

// Value returns the learned estimate for a (signature, skill) pair, the
// neutral default if never recorded.
func (m *Memory) Value(sig Signature, skill string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value(Key{Sig: sig, Skill: skill})
}

func (m *Memory) value(k Key) float64 {
	if v, ok := m.values[k]; ok {
		return v
	}
	return m.params.DefaultValue
}

// Best returns the highest estimate among the given skills at a signature,
// the neutral default when the list is empty. Iterates the slice in order,
// so results are deterministic for a stable skill list.
func (m *Memory) Best(sig Signature, skills []string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := m.params.DefaultValue
	for i, s := range skills {
		v := m.value(Key{Sig: sig, Skill: s})
		if i == 0 || v > best {
			best = v
		}
	}
	return best
}

// Record performs the Q-style update for an observed outcome and returns the
// new estimate:
//
//	update = v + lr*(reward + discount*maxNext - v)
//	v     <- (1-blend)*v + blend*update
//
// Counters grow and the learning/exploration rates decay toward their floors.
func (m *Memory) Record(sig Signature, skill string, reward, maxNext float64, success bool) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.apply(Key{Sig: sig, Skill: skill}, reward, maxNext)

	m.count.Actions++
	if success {
		m.count.Successes++
	} else {
		m.count.Failures++
	}
	m.count.TotalReward += reward
	m.lr = max(m.lr*m.params.LearningRateDecay, m.params.LearningRateFloor)
	m.eps = max(m.eps*m.params.ExplorationDecay, m.params.ExplorationFloor)
	return v
}

// Punish applies a terminal penalty (no future value, no counter growth).
// Death notifications route here so the fatal action is devalued exactly
// once without counting as a recorded action.
func (m *Memory) Punish(sig Signature, skill string, penalty float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(Key{Sig: sig, Skill: skill}, penalty, 0)
}

func (m *Memory) apply(k Key, reward, maxNext float64) float64 {
	v := m.value(k)
	update := v + m.lr*(reward+m.params.Discount*maxNext-v)
	if m.blend == 1 {
		v = update
	} else {
		v += m.blend * (update - v)
	}
	m.values[k] = v
	return v
}

// Rates returns the current learning and exploration rates.
func (m *Memory) Rates() (lr, eps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lr, m.eps
}

// Counters returns a copy of the aggregate counters.
func (m *Memory) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Len reports how many (signature, skill) pairs hold a recorded value.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
