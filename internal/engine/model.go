// Package engine provides the money model: a population of agents driven by a
// random activation scheduler, one tick at a time.
package engine

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/talgya/money-model/internal/agents"
)

var (
	// ErrInvalidParameter is returned for out-of-range construction or run parameters.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrConservation reports that total wealth drifted from the agent count.
	ErrConservation = errors.New("wealth not conserved")
)

// Options configure a new Model.
type Options struct {
	Agents      int   // Population size, at least 1
	Seed        int64 // Seed for the model's private random source
	ExcludeSelf bool  // Agents never draw themselves as recipient
}

// Model holds one population and its scheduler. Each Model owns its random
// source, so separate Models can be stepped from separate goroutines.
type Model struct {
	Schedule  *Scheduler
	StepCount uint64
	Seed      int64

	// OnStep, if set, runs after every completed tick.
	OnStep func(m *Model)

	initialWealth uint64
}

// Stats summarises the current wealth distribution.
type Stats struct {
	Agents      int    `json:"agents"`
	TotalWealth uint64 `json:"total_wealth"`
	Broke       int    `json:"broke"`   // Agents with zero wealth
	Richest     uint64 `json:"richest"` // Largest single holding
	StepCount   uint64 `json:"step_count"`
}

// NewModel creates a model with opts.Agents agents, IDs 0..N-1, one unit each.
func NewModel(opts Options) (*Model, error) {
	if opts.Agents < 1 {
		return nil, fmt.Errorf("agents must be >= 1, got %d: %w", opts.Agents, ErrInvalidParameter)
	}

	// Scheduler.Recipient relies on IDs matching slice positions, so every
	// model gets its own spawner starting at 0.
	pop := agents.NewSpawner().SpawnPopulation(opts.Agents)
	rng := rand.New(rand.NewSource(opts.Seed))

	return &Model{
		Schedule:      NewScheduler(pop, rng, opts.ExcludeSelf),
		Seed:          opts.Seed,
		initialWealth: uint64(opts.Agents),
	}, nil
}

// Agents returns the model's agents in ID order.
func (m *Model) Agents() []*agents.Agent {
	return m.Schedule.Agents()
}

// Wealth returns each agent's wealth in ID order.
func (m *Model) Wealth() []uint64 {
	ag := m.Schedule.Agents()
	out := make([]uint64, len(ag))
	for i, a := range ag {
		out[i] = a.Wealth
	}
	return out
}

// TotalWealth returns the sum of all agents' wealth.
func (m *Model) TotalWealth() uint64 {
	var total uint64
	for _, a := range m.Schedule.Agents() {
		total += a.Wealth
	}
	return total
}

// Stats computes a summary of the current distribution.
func (m *Model) Stats() Stats {
	st := Stats{
		Agents:    m.Schedule.Len(),
		StepCount: m.StepCount,
	}
	for _, a := range m.Schedule.Agents() {
		st.TotalWealth += a.Wealth
		if a.Wealth == 0 {
			st.Broke++
		}
		if a.Wealth > st.Richest {
			st.Richest = a.Wealth
		}
	}
	return st
}

// CheckConservation verifies total wealth still equals the starting total.
func (m *Model) CheckConservation() error {
	if total := m.TotalWealth(); total != m.initialWealth {
		return fmt.Errorf("step %d: total %d, want %d: %w", m.StepCount, total, m.initialWealth, ErrConservation)
	}
	return nil
}
