package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// ctxCheckTicks is how often RunContext polls for cancellation.
const ctxCheckTicks = 256

// Step advances the model by one tick: every agent acts once in a random
// order, then OnStep fires.
func (m *Model) Step() {
	gave := m.Schedule.Step()
	m.StepCount++

	slog.Debug("model step", "step", m.StepCount, "transfers", gave)

	if m.OnStep != nil {
		m.OnStep(m)
	}
}

// Run advances the model by steps ticks.
func (m *Model) Run(steps int) error {
	return m.RunContext(context.Background(), steps)
}

// RunContext advances the model by steps ticks, stopping early with the
// context's error once ctx is done. Cancellation is polled every
// ctxCheckTicks ticks.
func (m *Model) RunContext(ctx context.Context, steps int) error {
	if steps < 0 {
		return fmt.Errorf("steps must be >= 0, got %d: %w", steps, ErrInvalidParameter)
	}
	for i := 0; i < steps; i++ {
		if i%ctxCheckTicks == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("stopped at step %d: %w", m.StepCount, err)
			}
		}
		m.Step()
	}
	return nil
}
