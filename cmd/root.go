package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/juststeveking/stagewatch/internal/logger"
	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/juststeveking/stagewatch/internal/notify"
	"github.com/juststeveking/stagewatch/internal/tui"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stagewatch",
	Short: "Stage-aware health monitoring for services that take time to start",
	Long: `Stagewatch follows each service through four startup stages:
initialization, startup, warming and operational. Every stage runs its own
check at its own pace, tolerates a different number of failures, and the
check interval adapts to how the service is behaving.

Configure your services and their per-stage checks in a single config file,
then launch stagewatch to watch them come up in a live dashboard.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			os.Setenv(config.EnvConfigPath, configPath)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadOrInitConfig()
		if err != nil {
			return err
		}

		if len(cfg.Services) == 0 {
			return fmt.Errorf("no services configured (run 'stagewatch service:add' to add one)")
		}

		// The dashboard owns the terminal so logs go to a file
		logCfg := cfg.Logging
		if logCfg.Path == "" {
			path, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			logCfg.Path = filepath.Join(filepath.Dir(path), "stagewatch.log")
		}
		log, err := logger.New(logCfg)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer log.Sync()

		feed := tui.NewFeed(256)
		observers := []monitor.Observer{feed}
		if cfg.Notifications.Enabled {
			observers = append(observers, notify.NewNotifier(true))
		}

		mon, builder, err := newMonitor(cfg, log, observers...)
		if err != nil {
			return err
		}
		defer builder.Close()
		defer mon.StopMonitoring()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		mon.StartAll()

		model := tui.NewModel(mon, feed, cfg, builder, cancel)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/stagewatch/config.yml)")
}
