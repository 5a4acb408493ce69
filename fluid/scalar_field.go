package fluid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ScalarField is a cell-centered numeric field over a regular grid, with a
// leading batch dimension: shape (batch, *resolution). Density and pressure
// are ScalarFields, as are the {0,1} domain masks. Values are general scalars;
// non-negativity is not enforced.
//
// Fields are treated as immutable by the engine: every operation returns a new
// field. Set is available for building initial conditions and test fixtures.
type ScalarField struct {
	batch      int
	resolution []int
	strides    []int
	cells      int
	data       []float64
}

// NewScalarField allocates a zero-valued field.
func NewScalarField(batch int, resolution []int) *ScalarField {
	res := make([]int, len(resolution))
	copy(res, resolution)
	cells := cellCount(res)
	return &ScalarField{
		batch:      batch,
		resolution: res,
		strides:    gridStrides(res),
		cells:      cells,
		data:       make([]float64, batch*cells),
	}
}

func (f *ScalarField) Batch() int { return f.batch }
func (f *ScalarField) Rank() int  { return len(f.resolution) }

// Resolution returns a copy of the spatial extents.
func (f *ScalarField) Resolution() []int {
	out := make([]int, len(f.resolution))
	copy(out, f.resolution)
	return out
}

// Data exposes the backing slice, batch-major then row-major spatial.
func (f *ScalarField) Data() []float64 { return f.data }

// BatchSlice returns the backing slice of one batch entry.
func (f *ScalarField) BatchSlice(b int) []float64 {
	return f.data[b*f.cells : (b+1)*f.cells]
}

func (f *ScalarField) At(b int, idx []int) float64 {
	return f.data[b*f.cells+gridOffset(idx, f.strides)]
}

func (f *ScalarField) Set(b int, idx []int, v float64) {
	f.data[b*f.cells+gridOffset(idx, f.strides)] = v
}

func (f *ScalarField) Clone() *ScalarField {
	out := NewScalarField(f.batch, f.resolution)
	copy(out.data, f.data)
	return out
}

// Fill sets every cell of every batch entry to v.
func (f *ScalarField) Fill(v float64) *ScalarField {
	for i := range f.data {
		f.data[i] = v
	}
	return f
}

// Add returns f + g.
func (f *ScalarField) Add(g *ScalarField) *ScalarField {
	out := f.Clone()
	floats.Add(out.data, g.data)
	return out
}

// Sub returns f - g.
func (f *ScalarField) Sub(g *ScalarField) *ScalarField {
	out := f.Clone()
	floats.Sub(out.data, g.data)
	return out
}

// Scale returns c * f.
func (f *ScalarField) Scale(c float64) *ScalarField {
	out := f.Clone()
	floats.Scale(c, out.data)
	return out
}

// AddScaled returns f + c*g.
func (f *ScalarField) AddScaled(c float64, g *ScalarField) *ScalarField {
	out := f.Clone()
	floats.AddScaled(out.data, c, g.data)
	return out
}

// MulMask returns f with every batch entry multiplied elementwise by a
// batch-1 mask field of the same resolution.
func (f *ScalarField) MulMask(mask *ScalarField) *ScalarField {
	out := f.Clone()
	for b := 0; b < out.batch; b++ {
		dst := out.BatchSlice(b)
		floats.Mul(dst, mask.data[:mask.cells])
	}
	return out
}

// Total returns the sum over all cells of one batch entry (the discrete
// integral, with unit cell volume).
func (f *ScalarField) Total(b int) float64 {
	return floats.Sum(f.BatchSlice(b))
}

// NormalizeTo rescales each batch entry so its total matches the total of the
// corresponding entry in ref. Entries with a zero total are left unchanged.
func (f *ScalarField) NormalizeTo(ref *ScalarField) *ScalarField {
	out := f.Clone()
	for b := 0; b < out.batch; b++ {
		cur := out.Total(b)
		if cur == 0 {
			continue
		}
		floats.Scale(ref.Total(b)/cur, out.BatchSlice(b))
	}
	return out
}

// CenteredDivergence computes the divergence of a cell-centered vector field,
// one component per axis on the scalar grid, by central differences. Boundary
// cells fall back to one-sided differences. Component count must equal the
// rank and all components must share batch and resolution.
func CenteredDivergence(components []*ScalarField) (*ScalarField, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: centered velocity has no components", ErrConfig)
	}
	first := components[0]
	rank := first.Rank()
	if len(components) != rank {
		return nil, fmt.Errorf("%w: centered velocity needs %d components, got %d", ErrConfig, rank, len(components))
	}
	for axis, c := range components {
		if c.batch != first.batch || !equalInts(c.resolution, first.resolution) {
			return nil, fmt.Errorf("%w: centered velocity component %d has mismatched shape", ErrConfig, axis)
		}
	}

	div := NewScalarField(first.batch, first.resolution)
	idx := make([]int, rank)
	nb := make([]int, rank)
	for b := 0; b < first.batch; b++ {
		for i := range idx {
			idx[i] = 0
		}
		for {
			acc := 0.0
			for axis, c := range components {
				copy(nb, idx)
				hi := idx[axis] + 1
				if hi > first.resolution[axis]-1 {
					hi = first.resolution[axis] - 1
				}
				lo := idx[axis] - 1
				if lo < 0 {
					lo = 0
				}
				if hi == lo {
					continue
				}
				nb[axis] = hi
				upper := c.At(b, nb)
				nb[axis] = lo
				lower := c.At(b, nb)
				acc += (upper - lower) / float64(hi-lo)
			}
			div.Set(b, idx, acc)
			if !nextIndex(idx, first.resolution) {
				break
			}
		}
	}
	return div, nil
}

// MaxAbs returns the largest absolute value across all batches and cells.
func (f *ScalarField) MaxAbs() float64 {
	m := 0.0
	for _, v := range f.data {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Sample evaluates the field at a continuous index position by multilinear
// interpolation, clamping to the grid. pos is in index coordinates of this
// field's own grid (0 .. res-1 along each axis); callers account for any
// cell-center or face-center offsets.
func (f *ScalarField) Sample(b int, pos []float64) float64 {
	rank := len(f.resolution)
	base := b * f.cells

	lo := make([]int, rank)
	hi := make([]int, rank)
	frac := make([]float64, rank)
	for i := range f.resolution {
		p := math.Min(math.Max(pos[i], 0), float64(f.resolution[i]-1))
		l := int(math.Floor(p))
		if l > f.resolution[i]-2 {
			l = f.resolution[i] - 2
		}
		if l < 0 {
			l = 0
		}
		lo[i] = l
		hi[i] = l + 1
		if hi[i] > f.resolution[i]-1 {
			hi[i] = f.resolution[i] - 1
		}
		frac[i] = p - float64(l)
	}

	val := 0.0
	for corner := 0; corner < 1<<rank; corner++ {
		w := 1.0
		off := 0
		for i := 0; i < rank; i++ {
			if corner&(1<<i) != 0 {
				w *= frac[i]
				off += hi[i] * f.strides[i]
			} else {
				w *= 1 - frac[i]
				off += lo[i] * f.strides[i]
			}
		}
		if w != 0 {
			val += w * f.data[base+off]
		}
	}
	return val
}
