// Package experiment runs repeated independent trials of the money model and
// pools their final wealth values into one sample.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/money-model/internal/engine"
)

// Params describe one experiment.
type Params struct {
	Trials      int   `json:"trials"`
	Agents      int   `json:"agents"`
	Steps       int   `json:"steps"`
	Seed        int64 `json:"seed"` // Trial i runs with Seed+i
	ExcludeSelf bool  `json:"exclude_self"`
	Workers     int   `json:"workers,omitempty"` // 0 = runtime.NumCPU()
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.Agents < 1:
		return fmt.Errorf("agents must be >= 1, got %d: %w", p.Agents, engine.ErrInvalidParameter)
	case p.Steps < 0:
		return fmt.Errorf("steps must be >= 0, got %d: %w", p.Steps, engine.ErrInvalidParameter)
	case p.Trials < 0:
		return fmt.Errorf("trials must be >= 0, got %d: %w", p.Trials, engine.ErrInvalidParameter)
	case p.Workers < 0:
		return fmt.Errorf("workers must be >= 0, got %d: %w", p.Workers, engine.ErrInvalidParameter)
	}
	return nil
}

// TrialResult is the final wealth of each agent in one trial, in ID order.
type TrialResult []uint64

// Experiment is the outcome of RunExperiment.
type Experiment struct {
	ID        uuid.UUID     `json:"id"`
	Params    Params        `json:"params"`
	Trials    []TrialResult `json:"-"`
	Sample    []uint64      `json:"sample"` // All trials concatenated in trial order
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// TotalWealth returns the sum over the pooled sample.
func (e *Experiment) TotalWealth() uint64 {
	var total uint64
	for _, w := range e.Sample {
		total += w
	}
	return total
}

// RunTrial builds a fresh model, steps it, and returns the final wealth.
// A done ctx stops the trial between ticks.
func RunTrial(ctx context.Context, agents, steps int, seed int64, excludeSelf bool) (TrialResult, error) {
	m, err := engine.NewModel(engine.Options{
		Agents:      agents,
		Seed:        seed,
		ExcludeSelf: excludeSelf,
	})
	if err != nil {
		return nil, err
	}
	if err := m.RunContext(ctx, steps); err != nil {
		return nil, err
	}
	if err := m.CheckConservation(); err != nil {
		return nil, err
	}
	return TrialResult(m.Wealth()), nil
}

// RunExperiment runs p.Trials independent trials and pools the results.
func RunExperiment(p Params) (*Experiment, error) {
	return RunExperimentContext(context.Background(), p)
}

// RunExperimentContext is RunExperiment with cancellation checked between
// trials and, inside each trial, between ticks. The sample is identical for
// a given seed whatever the worker count.
func RunExperimentContext(ctx context.Context, p Params) (*Experiment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	workers := p.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if workers > p.Trials {
		workers = p.Trials
	}

	exp := &Experiment{
		ID:        uuid.New(),
		Params:    p,
		Trials:    make([]TrialResult, p.Trials),
		StartedAt: time.Now(),
	}

	slog.Info("experiment started",
		"id", exp.ID,
		"trials", p.Trials,
		"agents", p.Agents,
		"steps", p.Steps,
		"seed", p.Seed,
		"workers", workers,
	)

	jobs := make(chan int)
	errs := make(chan error, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := RunTrial(ctx, p.Agents, p.Steps, p.Seed+int64(i), p.ExcludeSelf)
				if err != nil {
					errs <- fmt.Errorf("trial %d: %w", i, err)
					return
				}
				exp.Trials[i] = res
				slog.Debug("trial complete", "id", exp.ID, "trial", i)
			}
		}()
	}

	var runErr error
feed:
	for i := 0; i < p.Trials; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break feed
		case err := <-errs:
			runErr = err
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if runErr == nil {
		select {
		case runErr = <-errs:
		default:
		}
	}
	if runErr != nil {
		return nil, fmt.Errorf("experiment %s: %w", exp.ID, runErr)
	}

	exp.Sample = make([]uint64, 0, p.Trials*p.Agents)
	for _, res := range exp.Trials {
		exp.Sample = append(exp.Sample, res...)
	}
	exp.Duration = time.Since(exp.StartedAt)

	slog.Info("experiment complete",
		"id", exp.ID,
		"samples", len(exp.Sample),
		"total_wealth", exp.TotalWealth(),
		"duration", exp.Duration,
	)
	return exp, nil
}
