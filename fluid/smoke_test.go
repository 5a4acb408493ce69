package fluid_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoke-sim/smoke-sim/fluid"
	"github.com/smoke-sim/smoke-sim/fluid/pressure"
)

func newEngine(t *testing.T, res []int, cfg fluid.SmokeConfig, world *fluid.World) *fluid.Smoke {
	t.Helper()
	engine, err := fluid.NewSmoke(fluid.NewDomain(res, fluid.Open), world, cfg)
	require.NoError(t, err)
	return engine
}

func TestNewSmoke_GravityBroadcast(t *testing.T) {
	engine := newEngine(t, []int{4, 4, 4}, fluid.SmokeConfig{DT: 1, Gravity: []float64{-3}}, nil)
	assert.Equal(t, []float64{-3, 0, 0}, engine.Gravity())
}

func TestNewSmoke_GravityDefault(t *testing.T) {
	engine := newEngine(t, []int{4, 4}, fluid.SmokeConfig{DT: 1}, nil)
	assert.Equal(t, []float64{fluid.DefaultGravity, 0}, engine.Gravity())
}

func TestNewSmoke_GravityLengthMismatch(t *testing.T) {
	_, err := fluid.NewSmoke(fluid.NewDomain([]int{4, 4, 4}, fluid.Open), nil, fluid.SmokeConfig{
		DT:      1,
		Gravity: []float64{-9.81, 0},
	})
	assert.ErrorIs(t, err, fluid.ErrConfig)
}

func TestNewSmoke_DefaultSolverIsCG(t *testing.T) {
	engine := newEngine(t, []int{4, 4}, fluid.SmokeConfig{DT: 1}, nil)
	assert.Equal(t, "cg", engine.Solver().Name())
}

func TestShape_ZeroState(t *testing.T) {
	engine := newEngine(t, []int{3, 5}, fluid.DefaultSmokeConfig(), nil)
	state := engine.Shape(2)
	assert.Equal(t, 2, state.Density().Batch())
	assert.Equal(t, []int{3, 5}, state.Density().Resolution())
	assert.Equal(t, []int{4, 5}, state.Velocity().Component(0).Resolution())
	assert.Equal(t, 0.0, state.Density().MaxAbs())
	assert.Equal(t, 0.0, state.Velocity().MaxAbs())
}

// Scenario: an empty domain is a fixed point of the pipeline.
func TestStep_ZeroStateStaysZero(t *testing.T) {
	engine := newEngine(t, []int{16, 16}, fluid.DefaultSmokeConfig(), nil)
	state, err := engine.Step(engine.Shape(1))
	require.NoError(t, err)
	assert.Equal(t, 0.0, state.Density().MaxAbs())
	assert.Equal(t, 0.0, state.Velocity().MaxAbs())
}

// Scenario: a single hot cell starts a plume aligned with the gravity axis.
func TestStep_BuoyantPlume(t *testing.T) {
	cfg := fluid.DefaultSmokeConfig()
	cfg.Solver = pressure.NewConjugateGradient(1e-6, 10000)
	engine := newEngine(t, []int{16, 16}, cfg, nil)

	state := engine.Shape(1)
	state.Density().Set(0, []int{8, 8}, 1)

	next, err := engine.Step(state)
	require.NoError(t, err)

	// density only moved by advection, and the velocity it saw was zero
	assert.InDelta(t, 1.0, next.Density().At(0, []int{8, 8}), 1e-12)

	// upward flow through the hot cell's faces (gravity is negative along
	// axis 0, so buoyancy pushes toward +axis0)
	up := next.Velocity().Component(0)
	assert.Greater(t, up.At(0, []int{8, 8}), 0.1)
	assert.Greater(t, up.At(0, []int{9, 8}), 0.1)

	// far corner stays quiet up to the projection's reach
	assert.Less(t, mathAbs(up.At(0, []int{0, 0})), 0.02)
	assert.Less(t, mathAbs(next.Velocity().Component(1).At(0, []int{0, 15})), 0.02)

	// projected velocity is divergence-free within tolerance
	div := next.Velocity().Divergence().MulMask(engine.DomainState().Accessible())
	assert.Less(t, div.MaxAbs(), 1e-5)
}

func TestStep_MassConservation(t *testing.T) {
	cfg := fluid.DefaultSmokeConfig()
	cfg.ConserveDensity = true
	engine := newEngine(t, []int{12, 12}, cfg, nil)

	state := engine.Shape(1)
	for i := 4; i < 8; i++ {
		for j := 4; j < 8; j++ {
			state.Density().Set(0, []int{i, j}, 1)
		}
	}
	state.Velocity().Component(0).Fill(0.4)
	state.Velocity().Component(1).Fill(-0.6)

	before := state.Density().Total(0)
	next, err := engine.Step(state)
	require.NoError(t, err)
	assert.InDelta(t, before, next.Density().Total(0), 1e-9)
}

func TestStep_Deterministic(t *testing.T) {
	build := func() (*fluid.Smoke, *fluid.SmokeState) {
		world := fluid.NewWorld()
		world.AddObstacle(fluid.Sphere{Center: []float64{4, 4}, Radius: 1.5})
		world.AddInflow(fluid.Box{Lower: []float64{9, 2}, Upper: []float64{11, 4}}, 0.3)
		engine := newEngine(t, []int{12, 12}, fluid.DefaultSmokeConfig(), world)
		state := engine.Shape(1)
		state.Density().Set(0, []int{6, 6}, 1)
		state.Velocity().Component(1).Fill(0.2)
		return engine, state
	}
	e1, s1 := build()
	e2, s2 := build()

	o1, err := e1.Step(s1)
	require.NoError(t, err)
	o2, err := e2.Step(s2)
	require.NoError(t, err)

	assert.Equal(t, o1.Density().Data(), o2.Density().Data())
	for axis := 0; axis < 2; axis++ {
		assert.Equal(t, o1.Velocity().Component(axis).Data(), o2.Velocity().Component(axis).Data())
	}
}

func TestDivergenceFree_ProjectionCorrectness(t *testing.T) {
	world := fluid.NewWorld()
	world.AddObstacle(fluid.Sphere{Center: []float64{8, 8}, Radius: 2.5})
	engine := newEngine(t, []int{16, 16}, fluid.DefaultSmokeConfig(), world)

	state := engine.Shape(1)
	for axis := 0; axis < 2; axis++ {
		data := state.Velocity().Component(axis).Data()
		for i := range data {
			data[i] = float64((i*7+axis*3)%11)*0.2 - 1.0
		}
	}

	projected, err := engine.DivergenceFree(state)
	require.NoError(t, err)
	div := projected.Velocity().Divergence().MulMask(engine.DomainState().Accessible())
	assert.Less(t, div.MaxAbs(), fluid.DefaultAccuracy)
	// density untouched by the projection
	assert.Equal(t, state.Density().Data(), projected.Density().Data())
}

func TestDivergenceFree_Idempotent(t *testing.T) {
	cfg := fluid.DefaultSmokeConfig()
	cfg.Solver = pressure.NewConjugateGradient(1e-8, 20000)
	engine := newEngine(t, []int{12, 12}, cfg, nil)

	state := engine.Shape(1)
	data := state.Velocity().Component(0).Data()
	for i := range data {
		data[i] = float64(i%5)*0.3 - 0.6
	}

	once, err := engine.DivergenceFree(state)
	require.NoError(t, err)
	twice, err := engine.DivergenceFree(once)
	require.NoError(t, err)
	for axis := 0; axis < 2; axis++ {
		assert.InDeltaSlice(t, once.Velocity().Component(axis).Data(), twice.Velocity().Component(axis).Data(), 1e-3)
	}
}

func TestStep_SolverConvergenceFailureSurfaces(t *testing.T) {
	cfg := fluid.DefaultSmokeConfig()
	cfg.Solver = pressure.NewConjugateGradient(1e-12, 1)
	engine := newEngine(t, []int{8, 8}, cfg, nil)

	state := engine.Shape(1)
	state.Velocity().Component(0).Set(0, []int{4, 4}, 1)

	_, err := engine.Step(state)
	require.Error(t, err)
	assert.ErrorIs(t, err, fluid.ErrNoConvergence)

	var convErr *fluid.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, 1, convErr.Iterations)
	assert.Greater(t, convErr.Residual, convErr.Accuracy)

	// diagnostics are recorded even for the failed attempt
	assert.Equal(t, 1, engine.LastIterations())
	assert.NotNil(t, engine.LastPressure())
}

func TestSolvePressure_RawAndVelocityInputsAgree(t *testing.T) {
	engine := newEngine(t, []int{10, 10}, fluid.DefaultSmokeConfig(), nil)
	v := fluid.NewStaggeredField(1, []int{10, 10})
	v.Component(0).Set(0, []int{5, 5}, 1)
	v.Component(1).Set(0, []int{3, 2}, -0.5)

	fromVelocity, err := engine.SolvePressure(fluid.VelocityInput(v), nil)
	require.NoError(t, err)
	fromRaw, err := engine.SolvePressure(fluid.RawDivergence(v.Divergence()), nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, fromVelocity.Data(), fromRaw.Data(), 1e-9)
	assert.Positive(t, engine.LastIterations())
}

func TestSolvePressure_CenteredVelocityInput(t *testing.T) {
	engine := newEngine(t, []int{8, 8}, fluid.DefaultSmokeConfig(), nil)
	u := fluid.NewScalarField(1, []int{8, 8})
	u.Set(0, []int{4, 4}, 1)
	v := fluid.NewScalarField(1, []int{8, 8})

	p, err := engine.SolvePressure(fluid.CenteredVelocity([]*fluid.ScalarField{u, v}), nil)
	require.NoError(t, err)
	assert.Positive(t, p.MaxAbs())

	_, err = engine.SolvePressure(fluid.CenteredVelocity([]*fluid.ScalarField{u}), nil)
	assert.ErrorIs(t, err, fluid.ErrConfig)
}

func TestSolvePressure_EmptyInput(t *testing.T) {
	engine := newEngine(t, []int{4, 4}, fluid.DefaultSmokeConfig(), nil)
	_, err := engine.SolvePressure(fluid.PressureInput{}, nil)
	assert.ErrorIs(t, err, fluid.ErrConfig)
}

func TestStep_DomainCacheFollowsGeometryVersion(t *testing.T) {
	world := fluid.NewWorld()
	engine := newEngine(t, []int{8, 8}, fluid.DefaultSmokeConfig(), world)
	state := engine.Shape(1)

	before := engine.DomainState()
	state, err := engine.Step(state)
	require.NoError(t, err)
	assert.Same(t, before, engine.DomainState(), "no geometry change, cache must be reused")

	world.AddObstacle(fluid.Box{Lower: []float64{3, 3}, Upper: []float64{5, 5}})
	_, err = engine.Step(state)
	require.NoError(t, err)
	rebuilt := engine.DomainState()
	assert.NotSame(t, before, rebuilt)
	assert.Equal(t, 0.0, rebuilt.Accessible().At(0, []int{3, 3}))
}

func TestSerialize_DescribesConfig(t *testing.T) {
	cfg := fluid.SmokeConfig{DT: 0.5, Gravity: []float64{-1}, BuoyancyFactor: 0.2, ConserveDensity: true}
	engine := newEngine(t, []int{8, 6}, cfg, nil)

	m := engine.Serialize()
	assert.Equal(t, "smoke", m["type"])
	assert.Equal(t, "Smoke", m["class"])
	assert.Equal(t, 2, m["rank"])
	assert.Equal(t, []float64{-1, 0}, m["gravity"])
	assert.Equal(t, 0.2, m["buoyancy_factor"])
	assert.Equal(t, true, m["conserve_density"])
	assert.Equal(t, "cg", m["solver"])
	domain := m["domain"].(map[string]any)
	assert.Equal(t, []int{8, 6}, domain["resolution"])
	assert.Equal(t, "open", domain["boundary"])
}

// Scenario: reconstructing an engine from its config map always fails.
func TestDeserializeSmoke_AlwaysUnsupported(t *testing.T) {
	engine := newEngine(t, []int{4, 4}, fluid.DefaultSmokeConfig(), nil)

	_, err := fluid.DeserializeSmoke(engine.Serialize())
	assert.ErrorIs(t, err, fluid.ErrUnsupported)

	_, err = fluid.DeserializeSmoke(nil)
	assert.ErrorIs(t, err, fluid.ErrUnsupported)

	_, err = fluid.DeserializeSmoke(map[string]any{"type": "smoke"})
	assert.True(t, errors.Is(err, fluid.ErrUnsupported))
}

func TestRunner_RecordsMetrics(t *testing.T) {
	engine := newEngine(t, []int{8, 8}, fluid.DefaultSmokeConfig(), nil)
	state := engine.Shape(1)
	state.Density().Set(0, []int{4, 4}, 1)

	runner := fluid.NewRunner(engine)
	final, err := runner.Run(state, 3)
	require.NoError(t, err)
	require.NotNil(t, final)
	require.Len(t, runner.Metrics.Steps, 3)
	assert.Equal(t, 2, runner.Metrics.Steps[2].Step)
	assert.Less(t, runner.Metrics.MaxDivergence(), fluid.DefaultAccuracy)
}

func mathAbs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
