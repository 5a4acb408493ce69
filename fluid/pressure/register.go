// register.go wires this package's solver constructors into the fluid
// package's registration variable (NewPressureSolverFunc). This init() runs
// when any package imports fluid/pressure, breaking the import cycle between
// fluid/ (interface owner) and fluid/pressure/ (implementations). Production
// code imports fluid/pressure directly; engine tests that need a concrete
// solver live in the external fluid_test package for the same reason.
package pressure

import (
	"fmt"

	"github.com/smoke-sim/smoke-sim/fluid"
)

func init() {
	fluid.NewPressureSolverFunc = New
}

// ValidSolvers is the set of recognized solver names. The empty name selects
// the default (conjugate gradient).
var ValidSolvers = map[string]bool{"": true, "cg": true, "sor": true}

// New constructs a solver by name. Zero accuracy or iteration cap select the
// fluid package defaults.
func New(name string, accuracy float64, maxIterations int) (fluid.PressureSolver, error) {
	switch name {
	case "", "cg":
		return NewConjugateGradient(accuracy, maxIterations), nil
	case "sor":
		return NewSOR(accuracy, maxIterations), nil
	default:
		return nil, fmt.Errorf("unknown pressure solver %q", name)
	}
}
