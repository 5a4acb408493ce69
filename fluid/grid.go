package fluid

// Row-major index helpers shared by the field types. Spatial axes are ordered
// axis 0 first (the gravity axis by convention), last axis contiguous.

// cellCount returns the number of cells in a grid of the given resolution.
func cellCount(res []int) int {
	n := 1
	for _, r := range res {
		n *= r
	}
	return n
}

// gridStrides returns row-major strides for the given resolution.
func gridStrides(res []int) []int {
	s := make([]int, len(res))
	acc := 1
	for i := len(res) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= res[i]
	}
	return s
}

// gridOffset returns the flat offset of a multi-index.
func gridOffset(idx, strides []int) int {
	off := 0
	for i, v := range idx {
		off += v * strides[i]
	}
	return off
}

// nextIndex advances idx through the grid in row-major order. It returns
// false once the last cell has been passed. Start from the all-zero index.
func nextIndex(idx, res []int) bool {
	for axis := len(idx) - 1; axis >= 0; axis-- {
		idx[axis]++
		if idx[axis] < res[axis] {
			return true
		}
		idx[axis] = 0
	}
	return false
}

// faceResolution returns the resolution of the staggered component normal to
// the given axis: one extra sample along its own axis (MAC layout).
func faceResolution(res []int, axis int) []int {
	out := make([]int, len(res))
	copy(out, res)
	out[axis]++
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
