package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juststeveking/stagewatch/internal/clock"
	"github.com/juststeveking/stagewatch/internal/config"
)

// Builder turns configured checks into CheckFuncs
type Builder struct {
	checkers   map[string]Checker
	retries    int
	retryDelay time.Duration
	clock      clock.Clock
	docker     ContainerInspector
	newDocker  func() (ContainerInspector, error)
}

const defaultRetryDelay = time.Second

// NewBuilder creates the stock checkers using the config timeout
func NewBuilder(cfg *config.Config) (*Builder, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	return &Builder{
		checkers: map[string]Checker{
			config.CheckHTTP:    NewHTTPChecker(timeout),
			config.CheckTCP:     NewTCPChecker(timeout),
			config.CheckTLS:     NewTLSChecker(timeout),
			config.CheckDNS:     NewDNSChecker(),
			config.CheckLatency: NewLatencyChecker(timeout),
		},
		retries:    cfg.RetryAttempts,
		retryDelay: defaultRetryDelay,
		clock:      clock.Real(),
		newDocker: func() (ContainerInspector, error) {
			return NewDockerInspector()
		},
	}, nil
}

// WithContainerInspector sets the client used by container checks
func (b *Builder) WithContainerInspector(ci ContainerInspector) *Builder {
	b.docker = ci
	return b
}

// WithClock sets the clock retries wait on
func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// Close releases pooled HTTP connections
func (b *Builder) Close() {
	for _, c := range b.checkers {
		if closer, ok := c.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

// Build converts one configured check
func (b *Builder) Build(chk config.Check) (CheckFunc, error) {
	if err := chk.Validate(); err != nil {
		return nil, err
	}

	var fn CheckFunc
	switch typ := strings.ToLower(chk.Type); typ {
	case config.CheckProcess:
		fn = CreateProcessHealthCheck(PIDProcess(chk.PID))
	case config.CheckContainer:
		if b.docker == nil {
			ci, err := b.newDocker()
			if err != nil {
				return nil, err
			}
			b.docker = ci
		}
		fn = CreateProcessHealthCheck(ContainerProcess{Client: b.docker, ID: chk.Container})
	default:
		if typ == "" {
			typ = config.CheckHTTP
		}
		checker := b.checkers[typ]
		fn = func(ctx context.Context) error {
			return checker.Check(ctx, chk)
		}
	}

	return WithRetry(fn, b.retries, b.retryDelay, b.clock), nil
}

// Service converts a configured service into a ServiceConfig
func (b *Builder) Service(svc config.Service) (ServiceConfig, error) {
	out := ServiceConfig{Name: svc.Name}
	for i, chk := range svc.Checks() {
		if chk == nil {
			continue
		}
		fn, err := b.Build(*chk)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("service '%s' %s: %w", svc.Name, HealthStage(i), err)
		}
		out.Checks[i] = fn
	}
	return out, nil
}

// OptionsFromConfig maps the config file onto monitor options
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return Options{}, err
	}

	var stages StageTable
	for i, s := range []config.Stage{cfg.Stages.Initialization, cfg.Stages.Startup, cfg.Stages.Warming, cfg.Stages.Operational} {
		if stages[i].Duration, err = config.ParseDuration(s.Duration, 0); err != nil {
			return Options{}, err
		}
		if stages[i].CheckInterval, err = config.ParseDuration(s.CheckInterval, 0); err != nil {
			return Options{}, err
		}
		stages[i].MaxFailures = s.MaxFailures
	}

	slowStart, err := config.ParseDuration(cfg.Adaptive.SlowStartAfter, 0)
	if err != nil {
		return Options{}, err
	}

	rules := make([]Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, Rule{Name: r.Name, When: r.When, Multiplier: r.Multiplier})
	}

	return Options{
		Stages: stages,
		Adaptive: AdaptiveConfig{
			FailureThreshold: cfg.Adaptive.FailureThreshold,
			RecentWindow:     cfg.Adaptive.RecentWindow,
			SlowStartAfter:   slowStart,
			SlowStartGrace:   cfg.Adaptive.SlowStartGrace,
		},
		Rules:        rules,
		HistorySize:  cfg.HistorySize,
		CheckTimeout: timeout,
	}, nil
}
