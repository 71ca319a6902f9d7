// Package agents provides the agent data model and its per-tick wealth transfer rule.
package agents

// AgentID is a unique identifier for an agent within one model.
// IDs are issued in insertion order starting at 0.
type AgentID uint64

// Population is the view of the model an agent needs to act.
// The engine's scheduler implements it.
type Population interface {
	// Recipient picks the agent that receives a unit of wealth from giver,
	// or nil when no agent is eligible.
	Recipient(giver *Agent) *Agent
}

// Agent is a wealth holder in the money model.
type Agent struct {
	ID     AgentID `json:"id"`
	Wealth uint64  `json:"wealth"` // Units; only ever moved, never created
}

// New creates an agent holding a single unit of wealth.
func New(id AgentID) *Agent {
	return &Agent{ID: id, Wealth: 1}
}

// Step gives one unit of wealth to a recipient drawn from the population.
// An agent with no wealth does nothing. Returns true if a unit changed hands
// (including a transfer to itself).
func (a *Agent) Step(pop Population) bool {
	if a.Wealth == 0 {
		return false
	}

	other := pop.Recipient(a)
	if other == nil {
		return false
	}

	a.Wealth--
	other.Wealth++
	return true
}
