package fluid

import "fmt"

// PressureSolver solves the pressure Poisson system for the projection step.
// Solve receives the divergence on the scalar grid, the domain masks, and an
// optional initial guess; it returns the pressure, the iteration count, and
// an error. On convergence failure the error is a *ConvergenceError and the
// partial pressure is still returned for diagnostics. The residual the solver
// drives below its accuracy is the post-correction divergence, so a
// successful solve bounds the divergence of the projected velocity.
type PressureSolver interface {
	Name() string
	Solve(divergence *ScalarField, domain *DomainState, guess *ScalarField) (*ScalarField, int, error)
}

// Solver defaults used when an engine is constructed without an explicit
// solver.
const (
	DefaultSolverName    = "cg"
	DefaultAccuracy      = 1e-3
	DefaultMaxIterations = 2000
)

// NewPressureSolverFunc constructs a registered pressure solver by name. It
// is set by fluid/pressure's init(), which breaks the import cycle between
// this package (interface owner) and the implementations. Production code
// imports fluid/pressure directly; engine construction fails with ErrNoSolver
// if nothing registered it and no solver was supplied.
var NewPressureSolverFunc func(name string, accuracy float64, maxIterations int) (PressureSolver, error)

func defaultPressureSolver() (PressureSolver, error) {
	if NewPressureSolverFunc == nil {
		return nil, ErrNoSolver
	}
	return NewPressureSolverFunc(DefaultSolverName, DefaultAccuracy, DefaultMaxIterations)
}

// PressureInput is the tagged argument of Smoke.SolvePressure: a precomputed
// divergence field, a staggered velocity, or a cell-centered velocity to take
// the divergence of. The explicit tag replaces shape-based inference of what
// the caller passed.
type PressureInput struct {
	divergence *ScalarField
	velocity   *StaggeredField
	centered   []*ScalarField
}

// RawDivergence tags a cell-centered divergence field.
func RawDivergence(f *ScalarField) PressureInput {
	return PressureInput{divergence: f}
}

// VelocityInput tags a staggered velocity; its MAC divergence is taken.
func VelocityInput(v *StaggeredField) PressureInput {
	return PressureInput{velocity: v}
}

// CenteredVelocity tags a cell-centered vector field, one component per axis
// on the scalar grid; its central-difference divergence is taken.
func CenteredVelocity(components []*ScalarField) PressureInput {
	return PressureInput{centered: components}
}

func (in PressureInput) divergenceField() (*ScalarField, error) {
	switch {
	case in.divergence != nil:
		return in.divergence, nil
	case in.velocity != nil:
		return in.velocity.Divergence(), nil
	case in.centered != nil:
		return CenteredDivergence(in.centered)
	default:
		return nil, fmt.Errorf("%w: empty pressure input", ErrConfig)
	}
}
