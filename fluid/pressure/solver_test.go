package pressure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoke-sim/smoke-sim/fluid"
)

// testSystem builds an open 8x8 domain with a solid 2x2 block and a
// deterministic divergence field supported on accessible cells.
func testSystem(t *testing.T) (*fluid.DomainState, *fluid.ScalarField) {
	t.Helper()
	res := []int{8, 8}
	obstacle := fluid.NewScalarField(1, res)
	for i := 3; i < 5; i++ {
		for j := 3; j < 5; j++ {
			obstacle.Set(0, []int{i, j}, 1)
		}
	}
	domain := fluid.NewDomainState(fluid.NewDomain(res, fluid.Open), obstacle)

	div := fluid.NewScalarField(1, res)
	data := div.Data()
	for i := range data {
		data[i] = float64((i*13+5)%9)*0.25 - 1.0
	}
	return domain, div.MulMask(domain.Accessible())
}

// residual of the solved system: M p should equal -div on accessible cells.
func maxResidual(domain *fluid.DomainState, p, div *fluid.ScalarField) float64 {
	return domain.ApplyOperator(p).Add(div.MulMask(domain.Accessible())).MaxAbs()
}

func TestConjugateGradient_SolvesMaskedSystem(t *testing.T) {
	domain, div := testSystem(t)
	solver := NewConjugateGradient(1e-8, 5000)

	p, iters, err := solver.Solve(div, domain, nil)
	require.NoError(t, err)
	assert.Positive(t, iters)
	assert.Less(t, maxResidual(domain, p, div), 1e-7)

	// solid cells carry no pressure
	assert.Equal(t, 0.0, p.At(0, []int{3, 3}))
	assert.Equal(t, 0.0, p.At(0, []int{4, 4}))
}

func TestSOR_SolvesMaskedSystem(t *testing.T) {
	domain, div := testSystem(t)
	solver := NewSOR(1e-8, 5000)

	p, sweeps, err := solver.Solve(div, domain, nil)
	require.NoError(t, err)
	assert.Positive(t, sweeps)
	assert.Less(t, maxResidual(domain, p, div), 1e-6)
	assert.Equal(t, 0.0, p.At(0, []int{3, 4}))
}

// With an open boundary the system has a unique solution, so both solvers
// must land on the same pressure.
func TestSolvers_AgreeOnUniqueSolution(t *testing.T) {
	domain, div := testSystem(t)

	pCG, _, err := NewConjugateGradient(1e-9, 10000).Solve(div, domain, nil)
	require.NoError(t, err)
	pSOR, _, err := NewSOR(1e-9, 10000).Solve(div, domain, nil)
	require.NoError(t, err)

	assert.InDeltaSlice(t, pCG.Data(), pSOR.Data(), 1e-5)
}

func TestConjugateGradient_GuessAtSolutionConvergesImmediately(t *testing.T) {
	domain, div := testSystem(t)
	solver := NewConjugateGradient(1e-6, 5000)

	p, _, err := solver.Solve(div, domain, nil)
	require.NoError(t, err)

	_, iters, err := solver.Solve(div, domain, p)
	require.NoError(t, err)
	assert.Zero(t, iters)
}

func TestConjugateGradient_ZeroDivergence(t *testing.T) {
	domain, _ := testSystem(t)
	zero := fluid.NewScalarField(1, []int{8, 8})

	p, iters, err := NewConjugateGradient(1e-6, 100).Solve(zero, domain, nil)
	require.NoError(t, err)
	assert.Zero(t, iters)
	assert.Equal(t, 0.0, p.MaxAbs())
}

func TestSolvers_BatchedIndependently(t *testing.T) {
	domain, div := testSystem(t)
	batched := fluid.NewScalarField(2, []int{8, 8})
	copy(batched.BatchSlice(1), div.Data())

	p, _, err := NewConjugateGradient(1e-8, 5000).Solve(batched, domain, nil)
	require.NoError(t, err)

	single, _, err := NewConjugateGradient(1e-8, 5000).Solve(div, domain, nil)
	require.NoError(t, err)

	// batch 0 had zero divergence, batch 1 matches the standalone solve
	assert.Equal(t, 0.0, floatsMaxAbs(p.BatchSlice(0)))
	assert.InDeltaSlice(t, single.Data(), p.BatchSlice(1), 1e-6)
}

func TestSOR_ConvergenceFailure(t *testing.T) {
	domain, div := testSystem(t)
	solver := NewSOR(1e-12, 1)

	p, sweeps, err := solver.Solve(div, domain, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, fluid.ErrNoConvergence)
	assert.NotNil(t, p, "partial pressure is still returned")
	assert.Equal(t, 1, sweeps)

	var convErr *fluid.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "sor", convErr.Solver)
	assert.Greater(t, convErr.Residual, convErr.Accuracy)
}

func TestConstructorDefaults(t *testing.T) {
	cg := NewConjugateGradient(0, 0)
	assert.Equal(t, fluid.DefaultAccuracy, cg.Accuracy)
	assert.Equal(t, fluid.DefaultMaxIterations, cg.MaxIterations)

	sor := NewSOR(0, -1)
	assert.Equal(t, fluid.DefaultAccuracy, sor.Accuracy)
	assert.Equal(t, fluid.DefaultMaxIterations, sor.MaxIterations)
	assert.Equal(t, DefaultRelaxation, sor.Relaxation)
}

func TestNew_ByName(t *testing.T) {
	cg, err := New("cg", 1e-4, 10)
	require.NoError(t, err)
	assert.Equal(t, "cg", cg.Name())

	sor, err := New("sor", 1e-4, 10)
	require.NoError(t, err)
	assert.Equal(t, "sor", sor.Name())

	def, err := New("", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "cg", def.Name())

	_, err = New("jacobi", 1e-4, 10)
	assert.ErrorContains(t, err, "unknown pressure solver")
}

func TestRegistration_WiresDefaultSolver(t *testing.T) {
	assert.NotNil(t, fluid.NewPressureSolverFunc)
}

func floatsMaxAbs(data []float64) float64 {
	m := 0.0
	for _, v := range data {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}
