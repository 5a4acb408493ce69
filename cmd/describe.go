package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smoke-sim/smoke-sim/fluid"
	_ "github.com/smoke-sim/smoke-sim/fluid/pressure" // register default solver
	"github.com/smoke-sim/smoke-sim/fluid/scenario"
)

var describeScenarioPath string

// describeCmd prints the engine configuration a scenario resolves to, as YAML
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the resolved engine configuration",
	Run: func(cmd *cobra.Command, args []string) {
		var engine *fluid.Smoke
		if describeScenarioPath != "" {
			sc, err := scenario.Load(describeScenarioPath)
			if err != nil {
				logrus.Fatalf("unable to load scenario: %v", err)
			}
			if engine, _, err = sc.Build(); err != nil {
				logrus.Fatalf("unable to build scenario: %v", err)
			}
		} else {
			var err error
			engine, err = fluid.NewSmoke(fluid.NewDomain([]int{64, 64}, fluid.Open), fluid.NewWorld(), fluid.DefaultSmokeConfig())
			if err != nil {
				logrus.Fatalf("unable to build default engine: %v", err)
			}
		}
		out, err := yaml.Marshal(engine.Serialize())
		if err != nil {
			logrus.Fatalf("unable to encode configuration: %v", err)
		}
		fmt.Print(string(out))
	},
}

func init() {
	describeCmd.Flags().StringVar(&describeScenarioPath, "config", "", "YAML scenario file")
	rootCmd.AddCommand(describeCmd)
}
