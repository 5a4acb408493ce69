package fluid

import "fmt"

// SmokeState is an immutable snapshot of the simulated fields at one step:
// density on cell centers, velocity on staggered faces. Steps replace the
// whole state; nothing mutates it in place, so states are freely shareable.
type SmokeState struct {
	density  *ScalarField
	velocity *StaggeredField
}

// NewSmokeState wraps a density and velocity pair. The caller is responsible
// for consistent shapes; see Smoke.Shape for building a matching zero state.
func NewSmokeState(density *ScalarField, velocity *StaggeredField) *SmokeState {
	return &SmokeState{density: density, velocity: velocity}
}

func (s *SmokeState) Density() *ScalarField     { return s.density }
func (s *SmokeState) Velocity() *StaggeredField { return s.velocity }

// Reassemble maps a flat field list back into a SmokeState. Returned by
// Disassemble alongside the fields.
type Reassemble func(fields []*ScalarField) (*SmokeState, error)

// Disassemble flattens the state into its underlying fields, ordered
// [density, velocity axis 0, velocity axis 1, ...], plus a function that
// rebuilds an equivalent state from any same-length, same-shaped list.
// Generic numeric tooling can thus operate on flat field lists without
// knowing the state structure.
func (s *SmokeState) Disassemble() ([]*ScalarField, Reassemble) {
	fields := append([]*ScalarField{s.density}, s.velocity.Components()...)
	resolution := s.velocity.Resolution()
	reassemble := func(in []*ScalarField) (*SmokeState, error) {
		if len(in) != len(fields) {
			return nil, fmt.Errorf("%w: got %d fields, want %d", ErrConfig, len(in), len(fields))
		}
		velocity, err := StaggeredFromComponents(resolution, in[1:])
		if err != nil {
			return nil, err
		}
		return NewSmokeState(in[0], velocity), nil
	}
	return fields, reassemble
}
