package cmd

import (
	"fmt"
	"os"

	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var serviceListCmd = &cobra.Command{
	Use:   "service:list",
	Short: "List all configured services",
	Long:  `Display all services currently configured in stagewatch with the check used in each stage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if len(cfg.Services) == 0 {
			fmt.Println("No services configured yet.")
			fmt.Println("\nAdd a service with:")
			fmt.Println("  stagewatch service:add --name <name> --stage startup --url <url>")
			return nil
		}

		fmt.Printf("Configured services (%d):\n\n", len(cfg.Services))

		table := tablewriter.NewWriter(os.Stdout)
		table.Append([]string{"Service", "Initialization", "Startup", "Warming", "Operational"})
		for _, svc := range cfg.Services {
			row := []string{svc.Name}
			for _, chk := range svc.Checks() {
				row = append(row, chk.Summary())
			}
			table.Append(row)
		}
		table.Render()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceListCmd)
}
