package cmd

import (
	"fmt"

	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/spf13/cobra"
)

var (
	serviceName           string
	serviceStage          string
	serviceType           string
	serviceURL            string
	servicePID            int
	serviceContainer      string
	serviceHealthEndpoint string
	serviceMethod         string
	serviceExpectedStatus int
	serviceHeaders        map[string]string
	serviceLatency        int
)

var serviceAddCmd = &cobra.Command{
	Use:   "service:add",
	Short: "Add a service or a stage check to your configuration",
	Long: `Add a service to your stagewatch configuration, or set one stage check of
an existing service. Run it once per stage you want to check; stages without
a check pass by default.

Examples:
  stagewatch service:add --name api --stage initialization --type process --pid 4242
  stagewatch service:add --name api --stage startup --type tcp --url localhost:8080
  stagewatch service:add --name api --stage warming --url http://localhost:8080 --health-endpoint /ready
  stagewatch service:add --name db --stage startup --type container --container postgres`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serviceName == "" {
			return fmt.Errorf("service name is required (--name)")
		}

		stage, err := monitor.ParseStage(serviceStage)
		if err != nil {
			return err
		}

		chk := &config.Check{
			Type:             serviceType,
			URL:              serviceURL,
			HealthEndpoint:   serviceHealthEndpoint,
			Method:           serviceMethod,
			ExpectedStatus:   serviceExpectedStatus,
			Headers:          serviceHeaders,
			LatencyThreshold: serviceLatency,
			PID:              servicePID,
			Container:        serviceContainer,
		}
		if err := chk.Validate(); err != nil {
			return err
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		action := "Added service"
		if existing := cfg.FindService(serviceName); existing != nil {
			if err := existing.SetCheck(int(stage), chk); err != nil {
				return err
			}
			action = "Updated service"
		} else {
			svc := config.Service{Name: serviceName}
			if err := svc.SetCheck(int(stage), chk); err != nil {
				return err
			}
			if err := cfg.AddService(svc); err != nil {
				return err
			}
		}

		if err := config.SaveConfig(cfg); err != nil {
			return err
		}

		path, _ := config.GetConfigPath()
		fmt.Printf("✓ %s '%s' (%s: %s) in %s\n", action, serviceName, stage, chk.Summary(), path)

		return nil
	},
}

func init() {
	serviceAddCmd.Flags().StringVarP(&serviceName, "name", "n", "", "service name (required)")
	serviceAddCmd.Flags().StringVarP(&serviceStage, "stage", "s", "startup", "stage the check runs in (initialization, startup, warming, operational)")
	serviceAddCmd.Flags().StringVar(&serviceType, "type", "http", "check type (http, tcp, tls, dns, latency, process, container)")
	serviceAddCmd.Flags().StringVarP(&serviceURL, "url", "u", "", "URL or host:port for network checks")
	serviceAddCmd.Flags().IntVar(&servicePID, "pid", 0, "process id for process checks")
	serviceAddCmd.Flags().StringVar(&serviceContainer, "container", "", "container id or name for container checks")
	serviceAddCmd.Flags().StringVar(&serviceHealthEndpoint, "health-endpoint", "", "health check endpoint path")
	serviceAddCmd.Flags().StringVar(&serviceMethod, "method", "GET", "HTTP method for health check")
	serviceAddCmd.Flags().IntVar(&serviceExpectedStatus, "expected-status", 200, "expected HTTP status code")
	serviceAddCmd.Flags().StringToStringVar(&serviceHeaders, "headers", nil, "HTTP headers (key=value)")
	serviceAddCmd.Flags().IntVar(&serviceLatency, "latency-threshold", 0, "latency threshold in ms for latency checks")

	serviceAddCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(serviceAddCmd)
}
