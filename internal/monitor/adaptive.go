package monitor

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// AdaptiveConfig tunes how check intervals and grace react to history
type AdaptiveConfig struct {
	// FailureThreshold is the failure count that doubles the interval.
	FailureThreshold int

	// RecentWindow is how many trailing results count as recent.
	RecentWindow int

	// SlowStartAfter is the uptime after which a service still initializing
	// is granted SlowStartGrace.
	SlowStartAfter time.Duration
	SlowStartGrace float64
}

// DefaultAdaptiveConfig returns the stock adaptive rules
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		FailureThreshold: 5,
		RecentWindow:     10,
		SlowStartAfter:   60 * time.Second,
		SlowStartGrace:   1.5,
	}
}

// Rule is an operator supplied interval rule. When is an expr boolean
// expression over RuleEnv.
type Rule struct {
	Name       string
	When       string
	Multiplier float64
}

// RuleEnv is the data a rule expression can reference
type RuleEnv struct {
	Stage          string
	StageIndex     int
	FailureCount   int
	RecentFailures int
	UptimeSeconds  float64
	StageSeconds   float64
	Grace          float64
}

type compiledRule struct {
	Rule
	program *vm.Program
}

// RuleEngine computes effective check intervals and grace multipliers
type RuleEngine struct {
	cfg   AdaptiveConfig
	rules []compiledRule
}

const backoffMultiplier = 2.0

// NewRuleEngine compiles the extra rules and fills config defaults
func NewRuleEngine(cfg AdaptiveConfig, rules []Rule) (*RuleEngine, error) {
	def := DefaultAdaptiveConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = def.RecentWindow
	}
	if cfg.SlowStartAfter <= 0 {
		cfg.SlowStartAfter = def.SlowStartAfter
	}
	if cfg.SlowStartGrace < 1 {
		cfg.SlowStartGrace = def.SlowStartGrace
	}

	engine := &RuleEngine{cfg: cfg}
	for _, r := range rules {
		if r.Multiplier < 1 {
			return nil, fmt.Errorf("rule '%s': multiplier must be >= 1", r.Name)
		}
		program, err := expr.Compile(r.When, expr.Env(RuleEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule '%s': %w", r.Name, err)
		}
		engine.rules = append(engine.rules, compiledRule{Rule: r, program: program})
	}

	return engine, nil
}

// Config returns the effective adaptive config
func (e *RuleEngine) Config() AdaptiveConfig {
	return e.cfg
}

// Multiplier returns the interval multiplier for env and the names of the
// rules that produced it. Matching rules never compound: the largest wins.
func (e *RuleEngine) Multiplier(env RuleEnv) (float64, []string) {
	m := 1.0
	var matched []string

	if env.FailureCount >= e.cfg.FailureThreshold || env.RecentFailures >= e.cfg.FailureThreshold {
		m = backoffMultiplier
		matched = append(matched, "failure-backoff")
	}
	if env.StageIndex == int(StageOperational) && env.RecentFailures == 0 {
		m = backoffMultiplier
		matched = append(matched, "stable-backoff")
	}

	for _, r := range e.rules {
		out, err := expr.Run(r.program, env)
		if err != nil {
			continue
		}
		if ok, _ := out.(bool); ok {
			matched = append(matched, r.Name)
			if r.Multiplier > m {
				m = r.Multiplier
			}
		}
	}

	return m, matched
}

// Interval scales the stage base interval by the rule multiplier. Grace only
// widens the failure threshold, so the interval never exceeds base times the
// largest matching multiplier.
func (e *RuleEngine) Interval(base time.Duration, env RuleEnv) time.Duration {
	m, _ := e.Multiplier(env)
	return time.Duration(float64(base) * m)
}

// Grace returns the grace multiplier for a service. A service that is still
// initializing after SlowStartAfter is granted SlowStartGrace once.
func (e *RuleEngine) Grace(current float64, stage HealthStage, uptime time.Duration) float64 {
	if current < 1 {
		current = 1
	}
	if stage == StageInitialization && uptime > e.cfg.SlowStartAfter && current < e.cfg.SlowStartGrace {
		return e.cfg.SlowStartGrace
	}
	return current
}
