package fluid

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Physics is the capability an engine exposes to callers: advance a state by
// one step, build a zero initial state, and describe its configuration.
// Smoke is the one concrete implementation, selected at construction time.
type Physics interface {
	Step(state *SmokeState) (*SmokeState, error)
	Shape(batchSize int) *SmokeState
	Serialize() map[string]any
}

// Default physics constants, matching the usual smoke setup.
const (
	DefaultDT             = 1.0
	DefaultGravity        = -9.81
	DefaultBuoyancyFactor = 0.1
)

// SmokeConfig groups the engine parameters for NewSmoke.
type SmokeConfig struct {
	DT float64 // integration time step
	// Gravity is the per-axis gravity vector. nil means the default scalar
	// gravity; a single element is broadcast to [g, 0, ..., 0]; an explicit
	// vector must have rank elements.
	Gravity         []float64
	BuoyancyFactor  float64
	ConserveDensity bool           // renormalize density after advection
	Solver          PressureSolver // nil selects the registered default (CG, accuracy 1e-3)
}

// DefaultSmokeConfig returns the standard parameters: dt 1.0, scalar gravity
// -9.81, buoyancy factor 0.1, density conservation off.
func DefaultSmokeConfig() SmokeConfig {
	return SmokeConfig{
		DT:             DefaultDT,
		Gravity:        []float64{DefaultGravity},
		BuoyancyFactor: DefaultBuoyancyFactor,
	}
}

// Smoke advances smoke states through the fixed operator pipeline
// advect → inflow → buoyancy → friction → divergence-free projection.
// Configuration is immutable after construction; the only mutable engine
// state is the cached DomainState (replaced wholesale on geometry change) and
// the last-solve diagnostics.
type Smoke struct {
	domain          Domain
	world           *World
	dt              float64
	gravity         []float64
	buoyancyFactor  float64
	conserveDensity bool
	solver          PressureSolver

	domainState   *DomainState
	domainVersion uint64

	lastPressure   *ScalarField
	lastIterations int
}

// NewSmoke builds a smoke engine over a domain and world. A gravity vector
// whose length matches neither 1 nor the domain rank is a construction
// failure; a nil solver selects the registered default.
func NewSmoke(domain Domain, world *World, cfg SmokeConfig) (*Smoke, error) {
	rank := domain.Rank()
	if rank == 0 {
		return nil, fmt.Errorf("%w: domain has no spatial axes", ErrConfig)
	}
	if world == nil {
		world = NewWorld()
	}

	var gravity []float64
	switch {
	case cfg.Gravity == nil:
		gravity = broadcastGravity(DefaultGravity, rank)
	case len(cfg.Gravity) == 1:
		gravity = broadcastGravity(cfg.Gravity[0], rank)
	case len(cfg.Gravity) == rank:
		gravity = append([]float64(nil), cfg.Gravity...)
	default:
		return nil, fmt.Errorf("%w: gravity has %d components, domain rank is %d",
			ErrConfig, len(cfg.Gravity), rank)
	}

	solver := cfg.Solver
	if solver == nil {
		var err error
		if solver, err = defaultPressureSolver(); err != nil {
			return nil, err
		}
	}

	s := &Smoke{
		domain:          domain,
		world:           world,
		dt:              cfg.DT,
		gravity:         gravity,
		buoyancyFactor:  cfg.BuoyancyFactor,
		conserveDensity: cfg.ConserveDensity,
		solver:          solver,
	}
	s.refreshDomain()
	logrus.Debugf("smoke engine: rank=%d resolution=%v boundary=%s dt=%g gravity=%v solver=%s",
		rank, domain.Resolution(), domain.Boundary(), s.dt, s.gravity, solver.Name())
	return s, nil
}

// broadcastGravity expands a scalar to [g, 0, ..., 0] of the given rank.
func broadcastGravity(g float64, rank int) []float64 {
	out := make([]float64, rank)
	out[0] = g
	return out
}

func (s *Smoke) Domain() Domain { return s.domain }
func (s *Smoke) World() *World { return s.world }
func (s *Smoke) DT() float64 { return s.dt }
func (s *Smoke) BuoyancyFactor() float64 { return s.buoyancyFactor }
func (s *Smoke) ConservesDensity() bool { return s.conserveDensity }
func (s *Smoke) Solver() PressureSolver { return s.solver }
func (s *Smoke) DomainState() *DomainState { return s.domainState }

// Gravity returns a copy of the rank-length gravity vector.
func (s *Smoke) Gravity() []float64 {
	return append([]float64(nil), s.gravity...)
}

// LastPressure returns the pressure field of the most recent solve attempt,
// successful or not. Diagnostic only; it does not feed subsequent steps.
func (s *Smoke) LastPressure() *ScalarField { return s.lastPressure }

// LastIterations returns the iteration count of the most recent solve attempt.
func (s *Smoke) LastIterations() int { return s.lastIterations }

// Shape builds the all-zero initial state for the engine's grid.
func (s *Smoke) Shape(batchSize int) *SmokeState {
	res := s.domain.resolution
	return NewSmokeState(NewScalarField(batchSize, res), NewStaggeredField(batchSize, res))
}

// refreshDomain rebuilds the cached DomainState if the world's geometry
// version advanced since the last build.
func (s *Smoke) refreshDomain() {
	if s.domainState != nil && s.world.Version() == s.domainVersion {
		return
	}
	s.domainState = NewDomainState(s.domain, s.world.ObstacleMask(s.domain.resolution))
	s.domainVersion = s.world.Version()
	logrus.Debugf("smoke engine: rebuilt domain state at geometry version %d", s.domainVersion)
}

// Step advances the state by one time step through the ordered stage list.
// Advection runs first so sources and forces act on transported fields;
// Friction reapplies boundary conditions after forcing so the pressure solve
// sees boundary-consistent velocity; the projection runs last so the next
// step's advection receives a divergence-free field.
func (s *Smoke) Step(state *SmokeState) (*SmokeState, error) {
	s.refreshDomain()
	stages := []struct {
		name string
		fn   func(*SmokeState) (*SmokeState, error)
	}{
		{"advect", s.Advect},
		{"inflow", s.Inflow},
		{"buoyancy", s.Buoyancy},
		{"friction", s.Friction},
		{"divergence_free", s.DivergenceFree},
	}
	var err error
	for _, stage := range stages {
		if state, err = stage.fn(state); err != nil {
			return nil, fmt.Errorf("%s stage: %w", stage.name, err)
		}
	}
	return state, nil
}

// Advect transports density and velocity semi-Lagrangially through the
// current velocity. With density conservation enabled, the advected density
// is rescaled to the pre-advection total per batch entry.
func (s *Smoke) Advect(state *SmokeState) (*SmokeState, error) {
	density := state.velocity.AdvectScalar(state.density, s.dt)
	velocity := state.velocity.AdvectSelf(s.dt)
	if s.conserveDensity {
		density = density.NormalizeTo(state.density)
	}
	return NewSmokeState(density, velocity), nil
}

// Inflow adds rate*dt to density inside the world's inflow regions.
func (s *Smoke) Inflow(state *SmokeState) (*SmokeState, error) {
	rates := s.world.InflowField(s.domain.resolution)
	density := state.density.Clone()
	for b := 0; b < density.batch; b++ {
		floats.AddScaled(density.BatchSlice(b), s.dt, rates.BatchSlice(0))
	}
	return NewSmokeState(density, state.velocity), nil
}

// Buoyancy adds the density-proportional velocity contribution
// density * gravity * buoyancyFactor * (-1) * dt, resampled to faces.
func (s *Smoke) Buoyancy(state *SmokeState) (*SmokeState, error) {
	factor := make([]float64, len(s.gravity))
	for i, g := range s.gravity {
		factor[i] = -g * s.buoyancyFactor * s.dt
	}
	dv, err := StaggeredFromScalar(state.density, factor)
	if err != nil {
		return nil, err
	}
	return NewSmokeState(state.density, state.velocity.Add(dv)), nil
}

// Friction reapplies the hard boundary conditions to velocity.
func (s *Smoke) Friction(state *SmokeState) (*SmokeState, error) {
	velocity := s.domainState.WithHardBoundaryConditions(state.velocity)
	// TODO: per-material friction multipliers from world geometry; until then
	// this stage is boundary-condition enforcement only.
	return NewSmokeState(state.density, velocity), nil
}

// SolvePressure runs the pressure solver on a tagged input, normalizing a
// velocity input to its divergence first. The last pressure and iteration
// count are recorded as diagnostics whether or not the solve succeeded.
func (s *Smoke) SolvePressure(in PressureInput, guess *ScalarField) (*ScalarField, error) {
	s.refreshDomain()
	divergence, err := in.divergenceField()
	if err != nil {
		return nil, err
	}
	pressure, iterations, err := s.solver.Solve(divergence, s.domainState, guess)
	s.lastPressure, s.lastIterations = pressure, iterations
	if err != nil {
		return pressure, fmt.Errorf("solving pressure: %w", err)
	}
	logrus.Debugf("smoke engine: pressure solved in %d iterations", iterations)
	return pressure, nil
}

// DivergenceFree projects the velocity onto its divergence-free part: hard
// boundary conditions, pressure solve on the MAC divergence, then subtraction
// of the boundary-conditioned pressure gradient. Density is unchanged.
func (s *Smoke) DivergenceFree(state *SmokeState) (*SmokeState, error) {
	velocity := s.domainState.WithHardBoundaryConditions(state.velocity)
	pressure, err := s.SolvePressure(VelocityInput(velocity), nil)
	if err != nil {
		return nil, err
	}
	gradient := s.domainState.WithHardBoundaryConditions(StaggeredGradient(pressure))
	return NewSmokeState(state.density, velocity.Sub(gradient)), nil
}

// Serialize returns a descriptive config map for the engine. It is not a
// round-trippable encoding; see DeserializeSmoke.
func (s *Smoke) Serialize() map[string]any {
	return map[string]any{
		"type":   "smoke",
		"class":  "Smoke",
		"module": "github.com/smoke-sim/smoke-sim/fluid",
		"rank":   s.domain.Rank(),
		"domain": map[string]any{
			"resolution": s.domain.Resolution(),
			"boundary":   s.domain.Boundary().String(),
		},
		"gravity":          s.Gravity(),
		"buoyancy_factor":  s.buoyancyFactor,
		"conserve_density": s.conserveDensity,
		"solver":           s.solver.Name(),
	}
}

// DeserializeSmoke would rebuild an engine from a Serialize map. It always
// fails with ErrUnsupported; reconstruct engines through NewSmoke instead.
func DeserializeSmoke(config map[string]any) (*Smoke, error) {
	return nil, fmt.Errorf("%w: deserializing a smoke engine from a config map", ErrUnsupported)
}
