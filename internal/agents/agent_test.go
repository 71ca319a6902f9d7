package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedPopulation always hands wealth to the same agent.
type fixedPopulation struct {
	to    *Agent
	calls int
}

func (p *fixedPopulation) Recipient(*Agent) *Agent {
	p.calls++
	return p.to
}

func TestNew_StartsWithOneUnit(t *testing.T) {
	a := New(7)
	assert.Equal(t, AgentID(7), a.ID)
	assert.Equal(t, uint64(1), a.Wealth)
}

func TestStep_TransfersOneUnit(t *testing.T) {
	giver := New(0)
	recipient := New(1)
	pop := &fixedPopulation{to: recipient}

	require.True(t, giver.Step(pop))
	assert.Equal(t, uint64(0), giver.Wealth)
	assert.Equal(t, uint64(2), recipient.Wealth)
}

func TestStep_ZeroWealthIsNoop(t *testing.T) {
	giver := &Agent{ID: 0, Wealth: 0}
	recipient := New(1)
	pop := &fixedPopulation{to: recipient}

	assert.False(t, giver.Step(pop))
	assert.Equal(t, uint64(0), giver.Wealth)
	assert.Equal(t, uint64(1), recipient.Wealth)
	assert.Zero(t, pop.calls, "broke agent must not draw a recipient")
}

func TestStep_SelfTransferKeepsWealth(t *testing.T) {
	a := New(0)
	pop := &fixedPopulation{}
	pop.to = a

	require.True(t, a.Step(pop))
	assert.Equal(t, uint64(1), a.Wealth)
}

func TestStep_NoRecipient(t *testing.T) {
	a := New(0)
	assert.False(t, a.Step(&fixedPopulation{}))
	assert.Equal(t, uint64(1), a.Wealth)
}

func TestSpawnPopulation_SequentialIDs(t *testing.T) {
	s := NewSpawner()
	first := s.SpawnPopulation(3)
	require.Len(t, first, 3)
	for i, a := range first {
		assert.Equal(t, AgentID(i), a.ID)
		assert.Equal(t, uint64(1), a.Wealth)
	}

	more := s.SpawnPopulation(2)
	assert.Equal(t, AgentID(3), more[0].ID)
	assert.Equal(t, AgentID(5), s.NextID())

	assert.Empty(t, s.SpawnPopulation(-1))
}
