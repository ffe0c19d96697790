package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, rules ...Rule) *RuleEngine {
	t.Helper()
	e, err := NewRuleEngine(AdaptiveConfig{}, rules)
	require.NoError(t, err)
	return e
}

func TestIntervalFailureBackoff(t *testing.T) {
	e := newTestEngine(t)
	base := 5 * time.Second

	env := RuleEnv{Stage: "startup", StageIndex: int(StageStartup), FailureCount: 5, Grace: 1}
	assert.Equal(t, 2*base, e.Interval(base, env))

	env.FailureCount = 4
	assert.Equal(t, base, e.Interval(base, env))

	env.FailureCount = 0
	env.RecentFailures = 5
	assert.Equal(t, 2*base, e.Interval(base, env))
}

func TestIntervalStableBackoff(t *testing.T) {
	e := newTestEngine(t)
	base := 30 * time.Second

	env := RuleEnv{Stage: "operational", StageIndex: int(StageOperational), Grace: 1}
	assert.Equal(t, 2*base, e.Interval(base, env))

	env.RecentFailures = 1
	env.FailureCount = 1
	assert.Equal(t, base, e.Interval(base, env))
}

func TestIntervalRulesDoNotCompound(t *testing.T) {
	e := newTestEngine(t)
	base := 30 * time.Second

	// failure count from before the window plus a clean window
	env := RuleEnv{Stage: "operational", StageIndex: int(StageOperational), FailureCount: 7, Grace: 1}
	m, matched := e.Multiplier(env)

	assert.Equal(t, 2.0, m)
	assert.ElementsMatch(t, []string{"failure-backoff", "stable-backoff"}, matched)
	assert.Equal(t, 2*base, e.Interval(base, env))
}

func TestIntervalIgnoresGrace(t *testing.T) {
	e := newTestEngine(t)

	env := RuleEnv{Stage: "initialization", StageIndex: int(StageInitialization), Grace: 1.5}
	assert.Equal(t, 2*time.Second, e.Interval(2*time.Second, env))

	env = RuleEnv{Stage: "operational", StageIndex: int(StageOperational), Grace: 1.5}
	assert.Equal(t, time.Minute, e.Interval(30*time.Second, env), "stable backoff stays at 2x after a slow start")
}

func TestExprRules(t *testing.T) {
	e := newTestEngine(t,
		Rule{Name: "slow-warmup", When: "Stage == 'warming' && StageSeconds > 60", Multiplier: 3},
		Rule{Name: "flaky", When: "RecentFailures >= 2", Multiplier: 1.5},
	)

	env := RuleEnv{Stage: "warming", StageIndex: int(StageWarming), StageSeconds: 61, RecentFailures: 2, Grace: 1}
	m, matched := e.Multiplier(env)

	assert.Equal(t, 3.0, m)
	assert.Equal(t, []string{"slow-warmup", "flaky"}, matched)

	env.StageSeconds = 10
	m, _ = e.Multiplier(env)
	assert.Equal(t, 1.5, m)
}

func TestExprRuleLargestMultiplierWins(t *testing.T) {
	e := newTestEngine(t, Rule{Name: "gentle", When: "FailureCount > 0", Multiplier: 1.2})

	env := RuleEnv{Stage: "startup", StageIndex: int(StageStartup), FailureCount: 6, Grace: 1}
	m, _ := e.Multiplier(env)
	assert.Equal(t, 2.0, m)
}

func TestNewRuleEngineRejectsBadRules(t *testing.T) {
	_, err := NewRuleEngine(AdaptiveConfig{}, []Rule{{Name: "typo", When: "Stge == 'warming'", Multiplier: 2}})
	assert.Error(t, err)

	_, err = NewRuleEngine(AdaptiveConfig{}, []Rule{{Name: "number", When: "FailureCount + 1", Multiplier: 2}})
	assert.Error(t, err)

	_, err = NewRuleEngine(AdaptiveConfig{}, []Rule{{Name: "shrink", When: "true", Multiplier: 0.5}})
	assert.Error(t, err)
}

func TestGrace(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, 1.0, e.Grace(1, StageInitialization, 30*time.Second))
	assert.Equal(t, 1.0, e.Grace(1, StageInitialization, 60*time.Second))
	assert.Equal(t, 1.5, e.Grace(1, StageInitialization, 61*time.Second))
	assert.Equal(t, 1.5, e.Grace(1.5, StageInitialization, 10*time.Minute), "grace must not compound")
	assert.Equal(t, 1.0, e.Grace(1, StageStartup, 10*time.Minute))
	assert.Equal(t, 1.0, e.Grace(0, StageStartup, 0), "grace never drops below 1")
}
