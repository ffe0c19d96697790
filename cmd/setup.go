package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/juststeveking/stagewatch/internal/monitor"
	"go.uber.org/zap"
)

// loadOrInitConfig loads the config file, creating the default one on first run
func loadOrInitConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config: %w (run 'stagewatch init' to create one)", err)
	}

	fmt.Println("Config not found, creating default config...")
	if err := config.InitConfig(false); err != nil {
		return nil, fmt.Errorf("failed to create default config: %w", err)
	}
	cfg, err = config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config after creation: %w", err)
	}
	return cfg, nil
}

// newMonitor builds a monitor from cfg and registers every configured service
func newMonitor(cfg *config.Config, log *zap.Logger, observers ...monitor.Observer) (*monitor.Monitor, *monitor.Builder, error) {
	opts, err := monitor.OptionsFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid monitor settings: %w", err)
	}
	opts.Logger = log
	opts.Observers = observers

	mon, err := monitor.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create monitor: %w", err)
	}

	builder, err := monitor.NewBuilder(cfg)
	if err != nil {
		return nil, nil, err
	}

	for _, svc := range cfg.Services {
		sc, err := builder.Service(svc)
		if err != nil {
			builder.Close()
			return nil, nil, err
		}
		if err := mon.Register(sc); err != nil {
			builder.Close()
			return nil, nil, err
		}
	}

	return mon, builder, nil
}
