// Package scenario loads simulation scenarios from YAML documents and builds
// the corresponding engine, world, and initial state.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/smoke-sim/smoke-sim/fluid"
	"github.com/smoke-sim/smoke-sim/fluid/pressure"
)

// Scenario is a complete simulation description. Nil pointer fields mean
// "not set in YAML" and fall back to the fluid package defaults.
type Scenario struct {
	Domain    DomainSpec   `yaml:"domain"`
	Physics   PhysicsSpec  `yaml:"physics"`
	Solver    SolverSpec   `yaml:"solver"`
	Obstacles []ShapeSpec  `yaml:"obstacles"`
	Inflows   []InflowSpec `yaml:"inflows"`
	Density   []BlobSpec   `yaml:"density"`
	Steps     int          `yaml:"steps"`
	BatchSize int          `yaml:"batch_size"`
}

// DomainSpec describes the grid.
type DomainSpec struct {
	Resolution []int  `yaml:"resolution"`
	Boundary   string `yaml:"boundary"`
}

// PhysicsSpec holds the engine constants.
type PhysicsSpec struct {
	DT              *float64  `yaml:"dt"`
	Gravity         []float64 `yaml:"gravity"`
	BuoyancyFactor  *float64  `yaml:"buoyancy_factor"`
	ConserveDensity bool      `yaml:"conserve_density"`
}

// SolverSpec selects and tunes the pressure solver.
type SolverSpec struct {
	Name          string  `yaml:"name"`
	Accuracy      float64 `yaml:"accuracy"`
	MaxIterations int     `yaml:"max_iterations"`
}

// ShapeSpec describes a geometry in grid units: a box (lower/upper) or a
// sphere (center/radius).
type ShapeSpec struct {
	Shape  string    `yaml:"shape"`
	Lower  []float64 `yaml:"lower"`
	Upper  []float64 `yaml:"upper"`
	Center []float64 `yaml:"center"`
	Radius float64   `yaml:"radius"`
}

// InflowSpec is a shape with a density injection rate.
type InflowSpec struct {
	ShapeSpec `yaml:",inline"`
	Rate      float64 `yaml:"rate"`
}

// BlobSpec is a shape with an initial density value.
type BlobSpec struct {
	ShapeSpec `yaml:",inline"`
	Value     float64 `yaml:"value"`
}

// Load reads and parses a YAML scenario file and validates it.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a YAML scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the document for structural errors before anything is
// built.
func (sc *Scenario) Validate() error {
	if len(sc.Domain.Resolution) == 0 {
		return fmt.Errorf("domain resolution must not be empty")
	}
	rank := len(sc.Domain.Resolution)
	for i, r := range sc.Domain.Resolution {
		if r <= 0 {
			return fmt.Errorf("domain resolution axis %d must be positive, got %d", i, r)
		}
	}
	if _, err := fluid.ParseBoundaryType(sc.Domain.Boundary); err != nil {
		return err
	}
	if g := sc.Physics.Gravity; len(g) != 0 && len(g) != 1 && len(g) != rank {
		return fmt.Errorf("gravity must have 1 or %d components, got %d", rank, len(g))
	}
	if !pressure.ValidSolvers[sc.Solver.Name] {
		return fmt.Errorf("unknown pressure solver %q", sc.Solver.Name)
	}
	if sc.Steps < 0 {
		return fmt.Errorf("steps must be non-negative, got %d", sc.Steps)
	}
	if sc.BatchSize < 0 {
		return fmt.Errorf("batch_size must be non-negative, got %d", sc.BatchSize)
	}
	for i, sp := range sc.Obstacles {
		if err := sp.validate(rank); err != nil {
			return fmt.Errorf("obstacle %d: %w", i, err)
		}
	}
	for i, in := range sc.Inflows {
		if err := in.validate(rank); err != nil {
			return fmt.Errorf("inflow %d: %w", i, err)
		}
		if in.Rate < 0 {
			return fmt.Errorf("inflow %d: rate must be non-negative, got %f", i, in.Rate)
		}
	}
	for i, blob := range sc.Density {
		if err := blob.validate(rank); err != nil {
			return fmt.Errorf("density blob %d: %w", i, err)
		}
	}
	return nil
}

func (sp ShapeSpec) validate(rank int) error {
	switch sp.Shape {
	case "box":
		if len(sp.Lower) != rank || len(sp.Upper) != rank {
			return fmt.Errorf("box needs %d-component lower and upper bounds", rank)
		}
		for i := range sp.Lower {
			if sp.Lower[i] > sp.Upper[i] {
				return fmt.Errorf("box lower exceeds upper on axis %d", i)
			}
		}
	case "sphere":
		if len(sp.Center) != rank {
			return fmt.Errorf("sphere needs a %d-component center", rank)
		}
		if sp.Radius <= 0 {
			return fmt.Errorf("sphere radius must be positive, got %f", sp.Radius)
		}
	default:
		return fmt.Errorf("unknown shape %q", sp.Shape)
	}
	return nil
}

func (sp ShapeSpec) geometry() fluid.Geometry {
	if sp.Shape == "box" {
		return fluid.Box{Lower: sp.Lower, Upper: sp.Upper}
	}
	return fluid.Sphere{Center: sp.Center, Radius: sp.Radius}
}

// Build constructs the world, engine, and initial state the scenario
// describes. The returned state has the density blobs applied.
func (sc *Scenario) Build() (*fluid.Smoke, *fluid.SmokeState, error) {
	boundary, err := fluid.ParseBoundaryType(sc.Domain.Boundary)
	if err != nil {
		return nil, nil, err
	}
	domain := fluid.NewDomain(sc.Domain.Resolution, boundary)

	world := fluid.NewWorld()
	for _, sp := range sc.Obstacles {
		world.AddObstacle(sp.geometry())
	}
	for _, in := range sc.Inflows {
		world.AddInflow(in.geometry(), in.Rate)
	}

	solver, err := pressure.New(sc.Solver.Name, sc.Solver.Accuracy, sc.Solver.MaxIterations)
	if err != nil {
		return nil, nil, err
	}

	cfg := fluid.DefaultSmokeConfig()
	cfg.Solver = solver
	cfg.ConserveDensity = sc.Physics.ConserveDensity
	if sc.Physics.DT != nil {
		cfg.DT = *sc.Physics.DT
	}
	if sc.Physics.BuoyancyFactor != nil {
		cfg.BuoyancyFactor = *sc.Physics.BuoyancyFactor
	}
	if len(sc.Physics.Gravity) != 0 {
		cfg.Gravity = sc.Physics.Gravity
	}

	smoke, err := fluid.NewSmoke(domain, world, cfg)
	if err != nil {
		return nil, nil, err
	}

	batch := sc.BatchSize
	if batch == 0 {
		batch = 1
	}
	state := smoke.Shape(batch)
	for _, blob := range sc.Density {
		paintBlob(state.Density(), blob)
	}
	return smoke, state, nil
}

// paintBlob sets the blob's value at every cell whose center lies inside the
// blob geometry, across all batch entries.
func paintBlob(density *fluid.ScalarField, blob BlobSpec) {
	res := density.Resolution()
	geom := blob.geometry()
	idx := make([]int, len(res))
	pos := make([]float64, len(res))
	for {
		for i, v := range idx {
			pos[i] = float64(v) + 0.5
		}
		if geom.Contains(pos) {
			for b := 0; b < density.Batch(); b++ {
				density.Set(b, idx, blob.Value)
			}
		}
		done := true
		for axis := len(idx) - 1; axis >= 0; axis-- {
			idx[axis]++
			if idx[axis] < res[axis] {
				done = false
				break
			}
			idx[axis] = 0
		}
		if done {
			break
		}
	}
}
