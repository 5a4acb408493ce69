package fluid

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner drives an engine through a sequence of steps, recording per-step
// metrics. Steps are applied strictly in sequence against one logical state;
// there is no partial or concurrent stepping.
type Runner struct {
	Engine  Physics
	Metrics *Metrics
}

func NewRunner(engine Physics) *Runner {
	return &Runner{Engine: engine, Metrics: NewMetrics()}
}

// Run advances the state by the given number of steps and returns the final
// state. It stops at the first step error.
func (r *Runner) Run(state *SmokeState, steps int) (*SmokeState, error) {
	for i := 0; i < steps; i++ {
		start := time.Now()
		next, err := r.Engine.Step(state)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		state = next

		sm := StepMetrics{
			Step:         i,
			DensityTotal: state.Density().Total(0),
			Elapsed:      time.Since(start),
		}
		if smoke, ok := r.Engine.(*Smoke); ok {
			sm.SolverIterations = smoke.LastIterations()
			sm.MaxDivergence = state.Velocity().Divergence().MulMask(smoke.DomainState().Accessible()).MaxAbs()
		}
		r.Metrics.Record(sm)
		logrus.Debugf("[step %04d] solver_iters=%d max_divergence=%.3e density_total=%.6g elapsed=%s",
			i, sm.SolverIterations, sm.MaxDivergence, sm.DensityTotal, sm.Elapsed)
	}
	return state, nil
}
