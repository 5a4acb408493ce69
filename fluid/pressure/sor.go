package pressure

import (
	"math"

	"github.com/smoke-sim/smoke-sim/fluid"
)

// DefaultRelaxation is the over-relaxation factor for SOR sweeps.
const DefaultRelaxation = 1.9

// SOR solves the masked pressure system with successive over-relaxation
// (Gauss-Seidel sweeps scaled by a relaxation factor). Slower than CG on
// large grids but simple and robust; useful as a cross-check.
type SOR struct {
	Accuracy      float64
	MaxIterations int // sweeps
	Relaxation    float64
}

func NewSOR(accuracy float64, maxIterations int) *SOR {
	if accuracy <= 0 {
		accuracy = fluid.DefaultAccuracy
	}
	if maxIterations <= 0 {
		maxIterations = fluid.DefaultMaxIterations
	}
	return &SOR{Accuracy: accuracy, MaxIterations: maxIterations, Relaxation: DefaultRelaxation}
}

func (s *SOR) Name() string { return "sor" }

func (s *SOR) Solve(divergence *fluid.ScalarField, domain *fluid.DomainState, guess *fluid.ScalarField) (*fluid.ScalarField, int, error) {
	res := divergence.Resolution()
	rank := len(res)
	accessible := domain.Accessible()
	diag := domain.OperatorDiagonal()
	open := domain.Domain().Boundary() == fluid.Open

	pressure := fluid.NewScalarField(divergence.Batch(), res)
	iterations := 0
	worst := 0.0
	converged := true

	idx := make([]int, rank)
	nb := make([]int, rank)
	for b := 0; b < divergence.Batch(); b++ {
		p := fluid.NewScalarField(1, res)
		if guess != nil {
			copy(p.Data(), guess.BatchSlice(b))
			p = p.MulMask(accessible)
		}
		rhs := fluid.NewScalarField(1, res)
		copy(rhs.Data(), divergence.BatchSlice(b))
		rhs = rhs.Scale(-1).MulMask(accessible)

		residual := math.Inf(1)
		sweeps := 0
		for sweeps < s.MaxIterations && residual > s.Accuracy {
			sweeps++
			residual = 0
			for i := range idx {
				idx[i] = 0
			}
			for {
				if accessible.At(0, idx) != 0 {
					// Apply one Gauss-Seidel update with the masked operator
					// row: sum over face neighbors of w*(p_c - p_n), outside
					// cells reading zero pressure.
					center := p.At(0, idx)
					acc := 0.0
					for axis := 0; axis < rank; axis++ {
						for _, dir := range [2]int{-1, 1} {
							copy(nb, idx)
							nb[axis] += dir
							inside := nb[axis] >= 0 && nb[axis] < res[axis]
							switch {
							case inside && accessible.At(0, nb) != 0:
								acc += center - p.At(0, nb)
							case !inside && open:
								acc += center
							}
						}
					}
					r := rhs.At(0, idx) - acc
					if a := math.Abs(r); a > residual {
						residual = a
					}
					p.Set(0, idx, center+s.Relaxation*r/diag.At(0, idx))
				}
				if !nextIndexSOR(idx, res) {
					break
				}
			}
		}
		if sweeps > iterations {
			iterations = sweeps
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

// nextIndexSOR advances a row-major multi-index, returning false after the
// last cell.
func nextIndexSOR(idx, res []int) bool {
	for axis := len(idx) - 1; axis >= 0; axis-- {
		idx[axis]++
		if idx[axis] < res[axis] {
			return true
		}
		idx[axis] = 0
	}
	return false
}
