package cmd

import (
	"fmt"
	"strconv"

	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Show the effective stage table",
	Long:  `Display the duration, uptime boundary, check interval and failure tolerance of every stage after config overrides are applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadOrInitConfig()
		if err != nil {
			return err
		}

		opts, err := monitor.OptionsFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("invalid monitor settings: %w", err)
		}
		mon, err := monitor.New(opts)
		if err != nil {
			return err
		}

		stages := mon.Stages()
		data := pterm.TableData{{"Stage", "Duration", "Ends At", "Interval", "Max Failures", "Check"}}
		for _, s := range monitor.AllStages() {
			sc := stages[s]
			duration, boundary := "-", "-"
			if s != monitor.StageOperational {
				duration = sc.Duration.String()
				boundary = stages.Boundary(s).String()
			}
			data = append(data, []string{
				s.String(),
				duration,
				boundary,
				sc.CheckInterval.String(),
				strconv.Itoa(sc.MaxFailures),
				sc.CheckFunctionName,
			})
		}

		pterm.DefaultSection.Println("Stages")
		return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}
