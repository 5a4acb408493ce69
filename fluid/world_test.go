package fluid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorld_VersionAdvancesOnObstacleEdits(t *testing.T) {
	w := NewWorld()
	v0 := w.Version()

	w.AddInflow(Box{Lower: []float64{0, 0}, Upper: []float64{1, 1}}, 0.5)
	assert.Equal(t, v0, w.Version(), "inflow edits must not invalidate the domain cache")

	w.AddObstacle(Sphere{Center: []float64{2, 2}, Radius: 1})
	assert.Equal(t, v0+1, w.Version())

	w.ClearObstacles()
	assert.Equal(t, v0+2, w.Version())
}

func TestWorld_ObstacleMask(t *testing.T) {
	w := NewWorld()
	w.AddObstacle(Box{Lower: []float64{0, 0}, Upper: []float64{1, 2}})
	mask := w.ObstacleMask([]int{3, 3})
	assert.Equal(t, 1.0, mask.At(0, []int{0, 0}))
	assert.Equal(t, 1.0, mask.At(0, []int{0, 1}))
	assert.Equal(t, 0.0, mask.At(0, []int{0, 2}))
	assert.Equal(t, 0.0, mask.At(0, []int{1, 0}))
}

func TestWorld_InflowFieldSumsRates(t *testing.T) {
	w := NewWorld()
	region := Box{Lower: []float64{0, 0}, Upper: []float64{1, 1}}
	w.AddInflow(region, 0.25)
	w.AddInflow(region, 0.5)
	rates := w.InflowField([]int{2, 2})
	assert.Equal(t, 0.75, rates.At(0, []int{0, 0}))
	assert.Equal(t, 0.0, rates.At(0, []int{1, 1}))
}

func TestSphere_Contains(t *testing.T) {
	s := Sphere{Center: []float64{1, 1}, Radius: 1}
	assert.True(t, s.Contains([]float64{1, 1}))
	assert.True(t, s.Contains([]float64{1.5, 1}))
	assert.False(t, s.Contains([]float64{2.5, 1}))
}
