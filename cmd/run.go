package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/smoke-sim/smoke-sim/fluid"
	"github.com/smoke-sim/smoke-sim/fluid/pressure"
	"github.com/smoke-sim/smoke-sim/fluid/scenario"
)

var (
	// CLI flags for the simulation run
	logLevel     string    // Log verbosity level
	scenarioPath string    // YAML scenario file; overrides the direct flags below
	resolution   []int     // Grid resolution per axis
	boundary     string    // Boundary type (open, closed)
	dt           float64   // Integration time step
	gravity      []float64 // Gravity vector (single value is broadcast to axis 0)
	buoyancy     float64   // Buoyancy factor
	conserve     bool      // Conserve total density across advection
	solverName   string    // Pressure solver (cg, sor)
	accuracy     float64   // Pressure solver accuracy
	maxIters     int       // Pressure solver iteration cap
	steps        int       // Number of steps to simulate
	batchSize    int       // Number of independent simulations to batch
)

// runCmd executes the simulation using a scenario file or the direct flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the smoke simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		engine, state, nSteps, err := buildRun(cmd)
		if err != nil {
			logrus.Fatalf("unable to set up simulation: %v", err)
		}

		logrus.Infof("Starting simulation: resolution=%v steps=%d solver=%s",
			engine.Domain().Resolution(), nSteps, engine.Solver().Name())
		startTime := time.Now()

		runner := fluid.NewRunner(engine)
		if _, err := runner.Run(state, nSteps); err != nil {
			logrus.Fatalf("simulation failed: %v", err)
		}
		runner.Metrics.Log()

		logrus.Infof("Simulation complete in %s.", time.Since(startTime))
	},
}

// buildRun constructs the engine and initial state from the scenario file if
// one was given, otherwise from the direct flags.
func buildRun(cmd *cobra.Command) (*fluid.Smoke, *fluid.SmokeState, int, error) {
	if scenarioPath != "" {
		sc, err := scenario.Load(scenarioPath)
		if err != nil {
			return nil, nil, 0, err
		}
		engine, state, err := sc.Build()
		if err != nil {
			return nil, nil, 0, err
		}
		nSteps := sc.Steps
		if cmd.Flags().Changed("steps") {
			nSteps = steps
		}
		return engine, state, nSteps, nil
	}

	solver, err := pressure.New(solverName, accuracy, maxIters)
	if err != nil {
		return nil, nil, 0, err
	}
	boundaryType, err := fluid.ParseBoundaryType(boundary)
	if err != nil {
		return nil, nil, 0, err
	}
	engine, err := fluid.NewSmoke(fluid.NewDomain(resolution, boundaryType), fluid.NewWorld(), fluid.SmokeConfig{
		DT:              dt,
		Gravity:         gravity,
		BuoyancyFactor:  buoyancy,
		ConserveDensity: conserve,
		Solver:          solver,
	})
	if err != nil {
		return nil, nil, 0, err
	}
	return engine, engine.Shape(batchSize), steps, nil
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&scenarioPath, "config", "", "YAML scenario file (overrides the direct flags)")

	// Grid and physics configs
	runCmd.Flags().IntSliceVar(&resolution, "resolution", []int{64, 64}, "Comma-separated grid resolution per axis")
	runCmd.Flags().StringVar(&boundary, "boundary", "open", "Boundary type (open, closed)")
	runCmd.Flags().Float64Var(&dt, "dt", fluid.DefaultDT, "Integration time step")
	runCmd.Flags().Float64SliceVar(&gravity, "gravity", []float64{fluid.DefaultGravity}, "Gravity vector; a single value is broadcast to axis 0")
	runCmd.Flags().Float64Var(&buoyancy, "buoyancy-factor", fluid.DefaultBuoyancyFactor, "Buoyancy factor")
	runCmd.Flags().BoolVar(&conserve, "conserve-density", false, "Renormalize density after advection")

	// Pressure solver configs
	runCmd.Flags().StringVar(&solverName, "solver", fluid.DefaultSolverName, "Pressure solver (cg, sor)")
	runCmd.Flags().Float64Var(&accuracy, "accuracy", fluid.DefaultAccuracy, "Pressure solver accuracy")
	runCmd.Flags().IntVar(&maxIters, "max-iterations", fluid.DefaultMaxIterations, "Pressure solver iteration cap")

	// Run configs
	runCmd.Flags().IntVar(&steps, "steps", 100, "Number of steps to simulate")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 1, "Number of independent simulations to batch")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
