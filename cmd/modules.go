package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/perimeterwatch/sigcor/internal/sensor"
)

// modulesCmd represents the modules command
var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List available module types and configured modules",
	RunE:  runModules,
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}

func runModules(cmd *cobra.Command, args []string) error {
	fmt.Printf("Available module types: %s\n", strings.Join(sensor.Available(), ", "))

	logger := newCommandLogger("[modules] ")
	orch, cleanup, err := buildPipeline(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	configured := orch.Integrator().List()
	if len(configured) == 0 {
		fmt.Println("No modules configured")
		return nil
	}
	fmt.Printf("Configured modules: %s\n", strings.Join(configured, ", "))
	return nil
}
