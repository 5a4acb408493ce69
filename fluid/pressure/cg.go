// Package pressure implements the Poisson solvers behind the smoke engine's
// projection step. Both solvers drive the max-norm residual of the masked
// pressure system below their accuracy; that residual equals the divergence
// left in the corrected velocity, so the accuracy is also the projection
// tolerance.
package pressure

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/smoke-sim/smoke-sim/fluid"
)

// ConjugateGradient solves the masked pressure system with unpreconditioned
// CG. The operator is symmetric positive (semi-)definite on accessible cells,
// with open boundaries acting as zero-pressure Dirichlet neighbors.
type ConjugateGradient struct {
	Accuracy      float64
	MaxIterations int
}

func NewConjugateGradient(accuracy float64, maxIterations int) *ConjugateGradient {
	if accuracy <= 0 {
		accuracy = fluid.DefaultAccuracy
	}
	if maxIterations <= 0 {
		maxIterations = fluid.DefaultMaxIterations
	}
	return &ConjugateGradient{Accuracy: accuracy, MaxIterations: maxIterations}
}

func (s *ConjugateGradient) Name() string { return "cg" }

// Solve runs CG independently per batch entry and reports the largest
// iteration count. Failure to converge on any entry returns the partial
// pressure with a *fluid.ConvergenceError.
func (s *ConjugateGradient) Solve(divergence *fluid.ScalarField, domain *fluid.DomainState, guess *fluid.ScalarField) (*fluid.ScalarField, int, error) {
	pressure := fluid.NewScalarField(divergence.Batch(), divergence.Resolution())
	iterations := 0
	worst := 0.0
	converged := true

	for b := 0; b < divergence.Batch(); b++ {
		p := fluid.NewScalarField(1, divergence.Resolution())
		if guess != nil {
			copy(p.Data(), guess.BatchSlice(b))
		}
		// Pin non-accessible cells to zero right-hand side; the operator
		// passes them through as identity rows.
		rhs := fluid.NewScalarField(1, divergence.Resolution())
		copy(rhs.Data(), divergence.BatchSlice(b))
		rhs = rhs.Scale(-1).MulMask(domain.Accessible())
		p = p.MulMask(domain.Accessible())

		iters, residual := s.solveOne(p, rhs, domain)
		if iters > iterations {
			iterations = iters
		}
		if residual > s.Accuracy {
			converged = false
			if residual > worst {
				worst = residual
			}
		}
		copy(pressure.BatchSlice(b), p.Data())
	}

	if !converged {
		return pressure, iterations, &fluid.ConvergenceError{
			Solver:     s.Name(),
			Iterations: iterations,
			Residual:   worst,
			Accuracy:   s.Accuracy,
		}
	}
	return pressure, iterations, nil
}

// solveOne runs CG on a batch-1 system in place, returning the iteration
// count and the final max-norm residual.
func (s *ConjugateGradient) solveOne(p, rhs *fluid.ScalarField, domain *fluid.DomainState) (int, float64) {
	residual := rhs.Sub(domain.ApplyOperator(p))
	res := residual.MaxAbs()
	if res <= s.Accuracy {
		return 0, res
	}

	direction := residual.Clone()
	sigma := floats.Dot(residual.Data(), residual.Data())

	for k := 1; k <= s.MaxIterations; k++ {
		q := domain.ApplyOperator(direction)
		denom := floats.Dot(direction.Data(), q.Data())
		if denom == 0 || math.IsNaN(denom) {
			return k, res
		}
		alpha := sigma / denom
		floats.AddScaled(p.Data(), alpha, direction.Data())
		floats.AddScaled(residual.Data(), -alpha, q.Data())

		res = residual.MaxAbs()
		if res <= s.Accuracy {
			return k, res
		}

		sigmaNext := floats.Dot(residual.Data(), residual.Data())
		beta := sigmaNext / sigma
		sigma = sigmaNext
		floats.Scale(beta, direction.Data())
		floats.Add(direction.Data(), residual.Data())
	}
	return s.MaxIterations, res
}
