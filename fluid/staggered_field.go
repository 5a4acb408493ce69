package fluid

import "fmt"

// StaggeredField is a vector field in Marker-And-Cell layout: one component
// per spatial axis, sampled at the face centers normal to that axis. The
// component for axis i has one extra sample along axis i relative to the
// scalar grid, so faces on both domain boundaries are represented.
//
// Positions are measured in grid units: the scalar cell with index j has its
// center at j+0.5 along each axis, and the component-i face with index k sits
// at coordinate k along axis i (between the cells k-1 and k).
type StaggeredField struct {
	resolution []int
	components []*ScalarField
}

// NewStaggeredField allocates a zero-valued staggered field over the given
// scalar-grid resolution.
func NewStaggeredField(batch int, resolution []int) *StaggeredField {
	res := make([]int, len(resolution))
	copy(res, resolution)
	comps := make([]*ScalarField, len(res))
	for i := range comps {
		comps[i] = NewScalarField(batch, faceResolution(res, i))
	}
	return &StaggeredField{resolution: res, components: comps}
}

// StaggeredFromComponents rebuilds a staggered field from per-axis component
// fields, in axis order. The component count must equal the rank and each
// component must carry the MAC face resolution for its axis.
func StaggeredFromComponents(resolution []int, components []*ScalarField) (*StaggeredField, error) {
	if len(components) != len(resolution) {
		return nil, fmt.Errorf("%w: %d velocity components for rank %d", ErrConfig, len(components), len(resolution))
	}
	res := make([]int, len(resolution))
	copy(res, resolution)
	comps := make([]*ScalarField, len(res))
	for i, c := range components {
		if !equalInts(c.resolution, faceResolution(res, i)) {
			return nil, fmt.Errorf("%w: component %d has resolution %v, want %v",
				ErrConfig, i, c.resolution, faceResolution(res, i))
		}
		comps[i] = c
	}
	return &StaggeredField{resolution: res, components: comps}, nil
}

func (v *StaggeredField) Batch() int { return v.components[0].batch }
func (v *StaggeredField) Rank() int  { return len(v.resolution) }

// Resolution returns a copy of the underlying scalar-grid extents.
func (v *StaggeredField) Resolution() []int {
	out := make([]int, len(v.resolution))
	copy(out, v.resolution)
	return out
}

// Component returns the face-sampled field for one axis.
func (v *StaggeredField) Component(axis int) *ScalarField { return v.components[axis] }

// Components returns the per-axis component fields in axis order.
func (v *StaggeredField) Components() []*ScalarField {
	out := make([]*ScalarField, len(v.components))
	copy(out, v.components)
	return out
}

func (v *StaggeredField) Clone() *StaggeredField {
	out := &StaggeredField{resolution: v.Resolution(), components: make([]*ScalarField, len(v.components))}
	for i, c := range v.components {
		out.components[i] = c.Clone()
	}
	return out
}

// Add returns v + w componentwise.
func (v *StaggeredField) Add(w *StaggeredField) *StaggeredField {
	out := v.Clone()
	for i := range out.components {
		out.components[i] = out.components[i].Add(w.components[i])
	}
	return out
}

// Sub returns v - w componentwise.
func (v *StaggeredField) Sub(w *StaggeredField) *StaggeredField {
	out := v.Clone()
	for i := range out.components {
		out.components[i] = out.components[i].Sub(w.components[i])
	}
	return out
}

// Scale returns c * v componentwise.
func (v *StaggeredField) Scale(c float64) *StaggeredField {
	out := v.Clone()
	for i := range out.components {
		out.components[i] = out.components[i].Scale(c)
	}
	return out
}

// MaxAbs returns the largest absolute component sample.
func (v *StaggeredField) MaxAbs() float64 {
	m := 0.0
	for _, c := range v.components {
		if a := c.MaxAbs(); a > m {
			m = a
		}
	}
	return m
}

// Divergence computes the MAC divergence on the scalar grid: for each cell,
// the net outflow across its faces, summed over axes.
func (v *StaggeredField) Divergence() *ScalarField {
	out := NewScalarField(v.Batch(), v.resolution)
	idx := make([]int, len(v.resolution))
	upper := make([]int, len(v.resolution))
	for b := 0; b < out.batch; b++ {
		for i := range idx {
			idx[i] = 0
		}
		for {
			div := 0.0
			for axis, c := range v.components {
				copy(upper, idx)
				upper[axis]++
				div += c.At(b, upper) - c.At(b, idx)
			}
			out.Set(b, idx, div)
			if !nextIndex(idx, v.resolution) {
				break
			}
		}
	}
	return out
}

// SampleVelocity interpolates all components at a world position, writing the
// result into out (length rank).
func (v *StaggeredField) SampleVelocity(b int, pos []float64, out []float64) {
	comp := make([]float64, len(pos))
	for axis, c := range v.components {
		for j := range pos {
			if j == axis {
				comp[j] = pos[j]
			} else {
				comp[j] = pos[j] - 0.5
			}
		}
		out[axis] = c.Sample(b, comp)
	}
}

// AdvectScalar transports a cell-centered field through v for one time step
// by semi-Lagrangian backtracing: each cell center is traced backward along
// the velocity and the source field resampled at the traced-back position.
func (v *StaggeredField) AdvectScalar(s *ScalarField, dt float64) *ScalarField {
	out := NewScalarField(s.batch, s.resolution)
	rank := len(s.resolution)
	idx := make([]int, rank)
	pos := make([]float64, rank)
	vel := make([]float64, rank)
	src := make([]float64, rank)
	for b := 0; b < s.batch; b++ {
		for i := range idx {
			idx[i] = 0
		}
		for {
			for i := range idx {
				pos[i] = float64(idx[i]) + 0.5
			}
			v.SampleVelocity(b, pos, vel)
			for i := range idx {
				src[i] = pos[i] - dt*vel[i] - 0.5
			}
			out.Set(b, idx, s.Sample(b, src))
			if !nextIndex(idx, s.resolution) {
				break
			}
		}
	}
	return out
}

// AdvectSelf transports the velocity field through itself (semi-Lagrangian
// self-advection): each face sample is traced backward along the full
// velocity and its own component resampled there.
func (v *StaggeredField) AdvectSelf(dt float64) *StaggeredField {
	out := NewStaggeredField(v.Batch(), v.resolution)
	rank := len(v.resolution)
	pos := make([]float64, rank)
	vel := make([]float64, rank)
	src := make([]float64, rank)
	for axis, c := range v.components {
		faceRes := c.resolution
		idx := make([]int, rank)
		for b := 0; b < c.batch; b++ {
			for i := range idx {
				idx[i] = 0
			}
			for {
				for i := range idx {
					if i == axis {
						pos[i] = float64(idx[i])
					} else {
						pos[i] = float64(idx[i]) + 0.5
					}
				}
				v.SampleVelocity(b, pos, vel)
				for i := range idx {
					if i == axis {
						src[i] = pos[i] - dt*vel[i]
					} else {
						src[i] = pos[i] - dt*vel[i] - 0.5
					}
				}
				out.components[axis].Set(b, idx, c.Sample(b, src))
				if !nextIndex(idx, faceRes) {
					break
				}
			}
		}
	}
	return out
}

// StaggeredGradient computes the staggered gradient of a cell-centered field:
// the component-i value at a face is the difference of the field across that
// face. Cells outside the grid are taken as zero; boundary faces are handled
// by the hard boundary conditions downstream.
func StaggeredGradient(p *ScalarField) *StaggeredField {
	out := NewStaggeredField(p.batch, p.resolution)
	rank := len(p.resolution)
	lower := make([]int, rank)
	for axis, c := range out.components {
		faceRes := c.resolution
		idx := make([]int, rank)
		for b := 0; b < p.batch; b++ {
			for i := range idx {
				idx[i] = 0
			}
			for {
				hi := 0.0
				if idx[axis] < p.resolution[axis] {
					hi = p.At(b, idx)
				}
				lo := 0.0
				if idx[axis] > 0 {
					copy(lower, idx)
					lower[axis]--
					lo = p.At(b, lower)
				}
				c.Set(b, idx, hi-lo)
				if !nextIndex(idx, faceRes) {
					break
				}
			}
		}
	}
	return out
}

// StaggeredFromScalar resamples a cell-centered field to faces and scales the
// component for each axis by a per-axis factor. Face values are the mean of
// the two adjacent cells, with cells outside the grid taken as zero. Used to
// turn density into a buoyancy velocity contribution.
func StaggeredFromScalar(s *ScalarField, factor []float64) (*StaggeredField, error) {
	if len(factor) != len(s.resolution) {
		return nil, fmt.Errorf("%w: %d factors for rank %d", ErrConfig, len(factor), len(s.resolution))
	}
	out := NewStaggeredField(s.batch, s.resolution)
	rank := len(s.resolution)
	lower := make([]int, rank)
	for axis, c := range out.components {
		if factor[axis] == 0 {
			continue
		}
		faceRes := c.resolution
		idx := make([]int, rank)
		for b := 0; b < s.batch; b++ {
			for i := range idx {
				idx[i] = 0
			}
			for {
				hi := 0.0
				if idx[axis] < s.resolution[axis] {
					hi = s.At(b, idx)
				}
				lo := 0.0
				if idx[axis] > 0 {
					copy(lower, idx)
					lower[axis]--
					lo = s.At(b, lower)
				}
				c.Set(b, idx, 0.5*(hi+lo)*factor[axis])
				if !nextIndex(idx, faceRes) {
					break
				}
			}
		}
	}
	return out, nil
}
