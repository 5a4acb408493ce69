// Package fluid provides the core grid smoke simulation engine.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - scalar_field.go / staggered_field.go: grid-sampled fields (cell-centered
//     scalars, MAC-staggered velocities) and their stencil operations
//   - smoke.go: the per-step operator pipeline
//     (advect → inflow → buoyancy → friction → divergence-free projection)
//   - domain.go: domain masks and hard boundary-condition enforcement
//
// # Architecture
//
// The fluid package defines interfaces and the engine; implementations live in
// sub-packages:
//   - fluid/pressure/: Poisson solvers for the projection step (conjugate
//     gradient, SOR relaxation)
//   - fluid/scenario/: YAML scenario loading and engine construction
//
// Sub-packages register their implementations via init() functions that set
// package-level factory variables (NewPressureSolverFunc).
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Physics: step a state forward, build an initial state, describe config
//   - PressureSolver: solve the masked pressure Poisson system
//   - Geometry: rasterizable obstacle/inflow shapes on the World
package fluid
