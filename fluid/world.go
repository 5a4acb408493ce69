package fluid

// Geometry is a rasterizable shape in grid units. Positions passed to
// Contains are cell centers (index + 0.5 along each axis).
type Geometry interface {
	Contains(pos []float64) bool
}

// Box is an axis-aligned box [Lower, Upper) in grid units.
type Box struct {
	Lower []float64
	Upper []float64
}

func (b Box) Contains(pos []float64) bool {
	for i, p := range pos {
		if p < b.Lower[i] || p >= b.Upper[i] {
			return false
		}
	}
	return true
}

// Sphere is a ball around Center with the given Radius, in grid units.
type Sphere struct {
	Center []float64
	Radius float64
}

func (s Sphere) Contains(pos []float64) bool {
	d2 := 0.0
	for i, p := range pos {
		d := p - s.Center[i]
		d2 += d * d
	}
	return d2 <= s.Radius*s.Radius
}

// Inflow is a source region that injects density at a constant rate.
type Inflow struct {
	Geometry Geometry
	Rate     float64
}

// World holds the scene geometry the engine reads: solid obstacles and inflow
// regions. Obstacle edits advance a monotonic geometry version; the engine
// compares the version at the start of each step and rebuilds its cached
// DomainState only when it advanced. Inflow edits do not touch the version
// because the domain masks depend only on obstacles.
type World struct {
	obstacles []Geometry
	inflows   []Inflow
	version   uint64
}

func NewWorld() *World {
	return &World{version: 1}
}

// Version returns the current geometry version.
func (w *World) Version() uint64 { return w.version }

// AddObstacle adds a solid region and advances the geometry version.
func (w *World) AddObstacle(g Geometry) {
	w.obstacles = append(w.obstacles, g)
	w.version++
}

// ClearObstacles removes all solid regions and advances the geometry version.
func (w *World) ClearObstacles() {
	w.obstacles = nil
	w.version++
}

// AddInflow adds a density source region.
func (w *World) AddInflow(g Geometry, rate float64) {
	w.inflows = append(w.inflows, Inflow{Geometry: g, Rate: rate})
}

// ObstacleMask rasterizes the obstacles to a {0,1} field on the scalar grid
// (batch 1): 1 where a cell center lies inside any obstacle.
func (w *World) ObstacleMask(resolution []int) *ScalarField {
	return rasterize(resolution, func(pos []float64) float64 {
		for _, g := range w.obstacles {
			if g.Contains(pos) {
				return 1
			}
		}
		return 0
	})
}

// InflowField rasterizes the inflow regions to a rate field on the scalar
// grid (batch 1): the summed rate of all regions covering each cell center.
func (w *World) InflowField(resolution []int) *ScalarField {
	return rasterize(resolution, func(pos []float64) float64 {
		rate := 0.0
		for _, in := range w.inflows {
			if in.Geometry.Contains(pos) {
				rate += in.Rate
			}
		}
		return rate
	})
}

func rasterize(resolution []int, sample func(pos []float64) float64) *ScalarField {
	out := NewScalarField(1, resolution)
	idx := make([]int, len(resolution))
	pos := make([]float64, len(resolution))
	for {
		for i, v := range idx {
			pos[i] = float64(v) + 0.5
		}
		out.Set(0, idx, sample(pos))
		if !nextIndex(idx, resolution) {
			break
		}
	}
	return out
}
