package fluid

import "fmt"

// BoundaryType selects the treatment of the outermost grid faces.
type BoundaryType int

const (
	// Open boundaries let flow leave the grid; outside cells behave as
	// accessible with zero pressure (Dirichlet).
	Open BoundaryType = iota
	// Closed boundaries are solid walls; no flow crosses the domain faces.
	Closed
)

func (b BoundaryType) String() string {
	switch b {
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("boundary(%d)", int(b))
	}
}

// ParseBoundaryType maps a config name to a BoundaryType.
func ParseBoundaryType(name string) (BoundaryType, error) {
	switch name {
	case "", "open":
		return Open, nil
	case "closed":
		return Closed, nil
	default:
		return Open, fmt.Errorf("%w: unknown boundary type %q", ErrConfig, name)
	}
}

// Domain describes the fixed rectangular grid: spatial extents and boundary
// topology. The rank is the number of spatial axes; axis 0 is the gravity
// axis by convention.
type Domain struct {
	resolution []int
	boundary   BoundaryType
}

func NewDomain(resolution []int, boundary BoundaryType) Domain {
	res := make([]int, len(resolution))
	copy(res, resolution)
	return Domain{resolution: res, boundary: boundary}
}

func (d Domain) Rank() int              { return len(d.resolution) }
func (d Domain) Boundary() BoundaryType { return d.boundary }

// Resolution returns a copy of the grid extents.
func (d Domain) Resolution() []int {
	out := make([]int, len(d.resolution))
	copy(out, d.resolution)
	return out
}

// DomainState is the cached, derived view of which cells are fluid. It is
// rebuilt wholesale when the world's geometry version advances and reused
// unchanged across steps otherwise; instances are never edited in place.
type DomainState struct {
	domain     Domain
	active     *ScalarField // {0,1}, batch 1
	accessible *ScalarField // {0,1}, batch 1
}

// NewDomainState derives the masks from an obstacle mask on the scalar grid:
// active = accessible = 1 - obstacle.
func NewDomainState(domain Domain, obstacleMask *ScalarField) *DomainState {
	mask := NewScalarField(1, domain.resolution).Fill(1)
	if obstacleMask != nil {
		mask = mask.Sub(obstacleMask)
	}
	return &DomainState{domain: domain, active: mask, accessible: mask}
}

func (ds *DomainState) Domain() Domain           { return ds.domain }
func (ds *DomainState) Active() *ScalarField     { return ds.active }
func (ds *DomainState) Accessible() *ScalarField { return ds.accessible }

// accessibleAt reports the accessibility of a cell index that may lie outside
// the grid: open boundaries treat outside cells as accessible, closed ones as
// solid.
func (ds *DomainState) accessibleAt(idx []int) float64 {
	for i, v := range idx {
		if v < 0 || v >= ds.domain.resolution[i] {
			if ds.domain.boundary == Open {
				return 1
			}
			return 0
		}
	}
	return ds.accessible.At(0, idx)
}

// WithHardBoundaryConditions returns the velocity with every face that would
// carry flow into a non-accessible cell (or through a closed domain wall)
// zeroed. Applying it twice is the same as applying it once.
func (ds *DomainState) WithHardBoundaryConditions(v *StaggeredField) *StaggeredField {
	out := v.Clone()
	rank := ds.domain.Rank()
	lower := make([]int, rank)
	for axis, c := range out.components {
		faceRes := c.resolution
		idx := make([]int, rank)
		for {
			copy(lower, idx)
			lower[axis]--
			w := ds.accessibleAt(lower) * ds.accessibleAt(idx)
			if w == 0 {
				for b := 0; b < c.batch; b++ {
					c.Set(b, idx, 0)
				}
			}
			if !nextIndex(idx, faceRes) {
				break
			}
		}
	}
	return out
}

// ApplyOperator applies the masked pressure Poisson operator in its positive
// definite form: for an accessible cell, sum over face neighbors of
// w * (p(cell) - p(neighbor)) with w the neighbor's accessibility and
// out-of-grid pressure zero; non-accessible cells pass through unchanged so
// the system stays nonsingular with their pressure pinned at the masked
// right-hand side. This is exactly the operator obtained by chaining the MAC
// divergence, the staggered gradient, and the hard boundary conditions, which
// is what makes the projection residual equal the post-correction divergence.
func (ds *DomainState) ApplyOperator(p *ScalarField) *ScalarField {
	out := NewScalarField(p.batch, p.resolution)
	rank := ds.domain.Rank()
	idx := make([]int, rank)
	nb := make([]int, rank)
	for b := 0; b < p.batch; b++ {
		for i := range idx {
			idx[i] = 0
		}
		for {
			if ds.accessible.At(0, idx) == 0 {
				out.Set(b, idx, p.At(b, idx))
			} else {
				center := p.At(b, idx)
				acc := 0.0
				for axis := 0; axis < rank; axis++ {
					for _, dir := range [2]int{-1, 1} {
						copy(nb, idx)
						nb[axis] += dir
						w := ds.accessibleAt(nb)
						if w == 0 {
							continue
						}
						pn := 0.0
						if nb[axis] >= 0 && nb[axis] < p.resolution[axis] {
							pn = p.At(b, nb)
						}
						acc += w * (center - pn)
					}
				}
				out.Set(b, idx, acc)
			}
			if !nextIndex(idx, p.resolution) {
				break
			}
		}
	}
	return out
}

// OperatorDiagonal returns the diagonal of ApplyOperator's matrix (batch 1):
// the accessible-neighbor count per accessible cell, 1 elsewhere. Relaxation
// solvers divide by it.
func (ds *DomainState) OperatorDiagonal() *ScalarField {
	out := NewScalarField(1, ds.domain.resolution)
	rank := ds.domain.Rank()
	idx := make([]int, rank)
	nb := make([]int, rank)
	for {
		if ds.accessible.At(0, idx) == 0 {
			out.Set(0, idx, 1)
		} else {
			d := 0.0
			for axis := 0; axis < rank; axis++ {
				for _, dir := range [2]int{-1, 1} {
					copy(nb, idx)
					nb[axis] += dir
					d += ds.accessibleAt(nb)
				}
			}
			if d == 0 {
				d = 1 // isolated cell, nothing to relax
			}
			out.Set(0, idx, d)
		}
		if !nextIndex(idx, ds.domain.resolution) {
			break
		}
	}
	return out
}
