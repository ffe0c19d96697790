package cmd

import (
	"fmt"

	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize stagewatch configuration",
	Long: `Create a new stagewatch configuration file at ~/.config/stagewatch/config.yml
with the default stage table and an example service. Edit this file to add
your services and their per-stage checks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(forceInit); err != nil {
			return err
		}

		path, _ := config.GetConfigPath()

		if forceInit {
			fmt.Printf("✓ Configuration reset at %s\n", path)
		} else {
			fmt.Printf("✓ Configuration initialized at %s\n", path)
		}

		fmt.Println("\nEdit the config file to add your services, then run:")
		fmt.Println("  stagewatch          # dashboard")
		fmt.Println("  stagewatch watch    # headless with Prometheus metrics")

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite existing configuration")
	rootCmd.AddCommand(initCmd)
}
