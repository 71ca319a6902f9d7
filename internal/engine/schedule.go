// Random activation scheduler. Every agent acts once per tick, in a freshly
// shuffled order.
package engine

import (
	"math/rand"

	"github.com/talgya/money-model/internal/agents"
)

// Scheduler owns the agent list, the activation order and the random source
// of one model. It is not safe for concurrent use.
type Scheduler struct {
	agents      []*agents.Agent // ID order
	order       []int           // activation order, reshuffled each tick
	rng         *rand.Rand
	excludeSelf bool
}

// NewScheduler creates a scheduler over ag using rng for both activation
// order and recipient selection.
func NewScheduler(ag []*agents.Agent, rng *rand.Rand, excludeSelf bool) *Scheduler {
	order := make([]int, len(ag))
	for i := range order {
		order[i] = i
	}
	return &Scheduler{
		agents:      ag,
		order:       order,
		rng:         rng,
		excludeSelf: excludeSelf,
	}
}

// Agents returns the scheduled agents in ID order.
func (s *Scheduler) Agents() []*agents.Agent {
	return s.agents
}

// Len returns the number of scheduled agents.
func (s *Scheduler) Len() int {
	return len(s.agents)
}

// Step activates every agent once in a random order. Returns the number of
// agents that gave away a unit.
func (s *Scheduler) Step() int {
	s.rng.Shuffle(len(s.order), func(i, j int) {
		s.order[i], s.order[j] = s.order[j], s.order[i]
	})

	gave := 0
	for _, idx := range s.order {
		if s.agents[idx].Step(s) {
			gave++
		}
	}
	return gave
}

// Recipient draws a recipient uniformly from the population. With
// excludeSelf set the giver is never drawn; a lone agent then has no
// eligible recipient.
func (s *Scheduler) Recipient(giver *agents.Agent) *agents.Agent {
	n := len(s.agents)
	if !s.excludeSelf {
		return s.agents[s.rng.Intn(n)]
	}
	if n < 2 {
		return nil
	}

	// Draw from the n-1 other slots, skipping over the giver's index.
	i := s.rng.Intn(n - 1)
	if i >= int(giver.ID) {
		i++
	}
	return s.agents[i]
}
