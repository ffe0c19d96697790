package cmd

import (
	"fmt"

	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/spf13/cobra"
)

var serviceShowCmd = &cobra.Command{
	Use:   "service:show <name>",
	Short: "Show details of a specific service",
	Long: `Display the per-stage check configuration for a specific service.

Example:
  stagewatch service:show api`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		found := cfg.FindService(args[0])
		if found == nil {
			return fmt.Errorf("service '%s' not found", args[0])
		}

		fmt.Printf("Service: %s\n", found.Name)
		fmt.Println("─────────────────────────────────────")

		for i, chk := range found.Checks() {
			stage := monitor.HealthStage(i)
			if chk == nil {
				fmt.Printf("%-16s (none, passes by default)\n", stage.String()+":")
				continue
			}

			fmt.Printf("%-16s %s\n", stage.String()+":", chk.Summary())
			if chk.Method != "" && chk.URL != "" {
				fmt.Printf("  Method:          %s\n", chk.Method)
			}
			if chk.ExpectedStatus > 0 {
				fmt.Printf("  Expected Status: %d\n", chk.ExpectedStatus)
			}
			if chk.Auth != nil && chk.Auth.Type != "" {
				fmt.Printf("  Auth:            %s\n", chk.Auth.Type)
			}
			if chk.LatencyThreshold > 0 {
				fmt.Printf("  Latency Limit:   %dms\n", chk.LatencyThreshold)
			}
			for key, value := range chk.Headers {
				fmt.Printf("  Header:          %s: %s\n", key, value)
			}
			for _, a := range chk.JSONAssertions {
				fmt.Printf("  Assert:          %s %s %v\n", a.Path, a.Operator, a.Value)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceShowCmd)
}
