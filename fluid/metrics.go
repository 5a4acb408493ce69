package fluid

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// StepMetrics records the diagnostics of one completed step.
type StepMetrics struct {
	Step             int
	SolverIterations int
	MaxDivergence    float64 // post-projection, accessible cells only
	DensityTotal     float64 // batch entry 0
	Elapsed          time.Duration
}

// Metrics accumulates per-step records across a run.
type Metrics struct {
	Steps []StepMetrics
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Record(sm StepMetrics) {
	m.Steps = append(m.Steps, sm)
}

type number interface {
	int | int64 | float64
}

// mean returns the arithmetic mean of a data list, 0 for an empty list.
func mean[T number](data []T) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	return sum / float64(len(data))
}

// percentile returns the p-th percentile of a sorted data list by linear
// interpolation between ranks.
func percentile[T number](sorted []T, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := p / 100.0 * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= n {
		return float64(sorted[lower])
	}
	frac := rank - float64(lower)
	return float64(sorted[lower]) + float64(sorted[upper]-sorted[lower])*frac
}

// MeanIterations returns the average solver iteration count per step.
func (m *Metrics) MeanIterations() float64 {
	data := make([]int, len(m.Steps))
	for i, s := range m.Steps {
		data[i] = s.SolverIterations
	}
	return mean(data)
}

// MaxDivergence returns the worst post-projection divergence across steps.
func (m *Metrics) MaxDivergence() float64 {
	worst := 0.0
	for _, s := range m.Steps {
		if s.MaxDivergence > worst {
			worst = s.MaxDivergence
		}
	}
	return worst
}

// Log writes a run summary at info level.
func (m *Metrics) Log() {
	if len(m.Steps) == 0 {
		logrus.Info("no steps recorded")
		return
	}
	elapsed := make([]float64, len(m.Steps))
	var total time.Duration
	for i, s := range m.Steps {
		elapsed[i] = float64(s.Elapsed.Microseconds())
		total += s.Elapsed
	}
	sorted := append([]float64(nil), elapsed...)
	sort.Float64s(sorted)
	last := m.Steps[len(m.Steps)-1]
	logrus.Infof("steps=%d wall=%s mean_step=%.0fus p95_step=%.0fus mean_solver_iters=%.1f max_divergence=%.3e density_total=%.6g",
		len(m.Steps), total, mean(elapsed), percentile(sorted, 95), m.MeanIterations(), m.MaxDivergence(), last.DensityTotal)
}
