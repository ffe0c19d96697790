package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/juststeveking/stagewatch/internal/logger"
	"github.com/juststeveking/stagewatch/internal/metrics"
	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/juststeveking/stagewatch/internal/notify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var metricsListen string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor services without the dashboard",
	Long: `Run the staged monitor in the foreground, logging every check result and
exposing Prometheus metrics. Suited to running under a process supervisor.

Example:
  stagewatch watch --metrics :9469`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadOrInitConfig()
		if err != nil {
			return err
		}
		if len(cfg.Services) == 0 {
			return fmt.Errorf("no services configured (run 'stagewatch service:add' to add one)")
		}

		log, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer log.Sync()

		var observers []monitor.Observer
		if cfg.Notifications.Enabled {
			observers = append(observers, notify.NewNotifier(true))
		}

		mon, builder, err := newMonitor(cfg, log, observers...)
		if err != nil {
			return err
		}
		defer builder.Close()

		listen := cfg.Metrics.Listen
		if cmd.Flags().Changed("metrics") || listen == "" {
			listen = metricsListen
		}

		var srv *metrics.Server
		if listen != "off" {
			collector := metrics.NewCollector(mon)
			mon.AddObserver(collector)

			srv = metrics.NewServer(listen, metrics.NewRegistry(collector), log)
			addr, err := srv.Start()
			if err != nil {
				return err
			}
			log.Info("metrics server listening", zap.String("addr", addr.String()))
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		mon.StartAll()
		log.Info("monitoring started", zap.Strings("services", mon.Services()))

		<-ctx.Done()

		log.Info("shutting down")
		mon.StopMonitoring()
		if srv != nil {
			if err := srv.Stop(); err != nil {
				log.Warn("metrics server shutdown", zap.Error(err))
			}
		}

		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&metricsListen, "metrics", config.DefaultMetricsListen, "metrics listen address (\"off\" disables)")
	rootCmd.AddCommand(watchCmd)
}
