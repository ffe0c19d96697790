package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/juststeveking/stagewatch/internal/logger"
	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var checkStage string

var checkCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Run a service's stage checks once",
	Long: `Run the checks configured for a service once and print the results.
Without --stage every stage check runs in order. Nothing is recorded.

Example:
  stagewatch check api
  stagewatch check api --stage warming`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		svc := cfg.FindService(args[0])
		if svc == nil {
			return fmt.Errorf("service '%s' not found", args[0])
		}

		stages := monitor.AllStages()
		if checkStage != "" {
			s, err := monitor.ParseStage(checkStage)
			if err != nil {
				return err
			}
			stages = []monitor.HealthStage{s}
		}

		single := &config.Config{
			Timeout:       cfg.Timeout,
			RetryAttempts: cfg.RetryAttempts,
			Stages:        cfg.Stages,
			Adaptive:      cfg.Adaptive,
			Rules:         cfg.Rules,
			Services:      []config.Service{*svc},
		}
		mon, builder, err := newMonitor(single, logger.NewWithWriter(cmd.ErrOrStderr(), zapcore.WarnLevel))
		if err != nil {
			return err
		}
		defer builder.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		cmd.SilenceUsage = true

		checks := svc.Checks()
		data := pterm.TableData{{"Stage", "Check", "Result", "Duration", "Error"}}
		failed := 0
		for _, s := range stages {
			result, err := mon.Probe(ctx, svc.Name, s)
			if err != nil {
				return err
			}

			status := pterm.Green("pass")
			if !result.Success {
				status = pterm.Red("fail")
				failed++
			}
			data = append(data, []string{
				s.String(),
				checks[s].Summary(),
				status,
				fmt.Sprintf("%.1fms", result.CheckDurationMs),
				result.ErrorMessage,
			})
		}

		if err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render(); err != nil {
			return err
		}

		if failed > 0 {
			pterm.Error.Printfln("%s: %d of %d checks failed", svc.Name, failed, len(stages))
			return fmt.Errorf("%d checks failed", failed)
		}
		pterm.Success.Printfln("%s: all %d checks passed", svc.Name, len(stages))

		return nil
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkStage, "stage", "s", "", "only run this stage's check")
	rootCmd.AddCommand(checkCmd)
}
