package fluid

import (
	"errors"
	"fmt"
)

// Domain errors for engine construction and the pressure solve.
var (
	// ErrConfig indicates invalid engine configuration, such as a gravity
	// vector whose length does not match the domain rank.
	ErrConfig = errors.New("fluid: invalid configuration")

	// ErrNoConvergence indicates the pressure solver exhausted its iteration
	// budget before reaching the requested accuracy.
	ErrNoConvergence = errors.New("fluid: pressure solve did not converge")

	// ErrUnsupported indicates an operation that is not implemented, such as
	// reconstructing an engine from a serialized config map.
	ErrUnsupported = errors.New("fluid: operation not supported")

	// ErrNoSolver indicates no pressure solver implementation has been
	// registered. Importing fluid/pressure registers the defaults.
	ErrNoSolver = errors.New("fluid: no pressure solver registered")
)

// ConvergenceError reports a failed pressure solve with the last residual and
// iteration count, so an imprecise-but-finished solve is distinguishable from
// one that hit its budget.
type ConvergenceError struct {
	Solver     string
	Iterations int
	Residual   float64
	Accuracy   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%v: %s stopped after %d iterations, residual %.3e exceeds accuracy %.3e",
		ErrNoConvergence, e.Solver, e.Iterations, e.Residual, e.Accuracy)
}

func (e *ConvergenceError) Unwrap() error {
	return ErrNoConvergence
}
