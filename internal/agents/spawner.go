// Agent spawning: creates the initial population for a model.
package agents

// Spawner issues agents with sequential IDs.
type Spawner struct {
	nextID AgentID
}

// NewSpawner creates a spawner whose first agent gets ID 0.
func NewSpawner() *Spawner {
	return &Spawner{}
}

// NextID returns the ID the next spawned agent will receive.
func (s *Spawner) NextID() AgentID {
	return s.nextID
}

// SpawnPopulation creates count agents, each starting with one unit of wealth.
func (s *Spawner) SpawnPopulation(count int) []*Agent {
	if count < 0 {
		count = 0
	}
	agents := make([]*Agent, 0, count)

	for i := 0; i < count; i++ {
		agents = append(agents, s.spawnOne())
	}

	return agents
}

func (s *Spawner) spawnOne() *Agent {
	id := s.nextID
	s.nextID++
	return New(id)
}
