package notify

import (
	"testing"

	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/stretchr/testify/assert"
)

type sent struct {
	title, message string
}

func capture(t *testing.T) *[]sent {
	t.Helper()
	var got []sent
	orig := send
	send = func(title, message string) {
		got = append(got, sent{title, message})
	}
	t.Cleanup(func() { send = orig })
	return &got
}

func TestNotifierDisabled(t *testing.T) {
	got := capture(t)
	n := NewNotifier(false)

	n.OnThresholdExceeded(monitor.StatusRecord{Name: "api"})
	n.OnStageChange("api", monitor.StageWarming, monitor.StageOperational)

	assert.Empty(t, *got)
}

func TestNotifierThresholdAndRecovery(t *testing.T) {
	got := capture(t)
	n := NewNotifier(true)

	status := monitor.StatusRecord{
		Name:         "api",
		Stage:        monitor.StageStartup,
		FailureCount: 10,
		LastResult:   &monitor.HealthCheckResult{ErrorMessage: "connection refused"},
	}
	n.OnThresholdExceeded(status)

	// failures after the alert stay quiet
	n.OnCheck(status, monitor.HealthCheckResult{Stage: monitor.StageStartup})
	n.OnCheck(status, monitor.HealthCheckResult{Stage: monitor.StageStartup, Success: true})
	n.OnCheck(status, monitor.HealthCheckResult{Stage: monitor.StageStartup, Success: true})

	if assert.Len(t, *got, 2) {
		assert.Equal(t, "⚠️  api - Failing in startup", (*got)[0].title)
		assert.Equal(t, "10 failures in startup: connection refused", (*got)[0].message)
		assert.Equal(t, "✅ api - Recovered", (*got)[1].title)
	}
}

func TestNotifierOperational(t *testing.T) {
	got := capture(t)
	n := NewNotifier(true)

	n.OnStageChange("api", monitor.StageInitialization, monitor.StageStartup)
	n.OnStageChange("api", monitor.StageWarming, monitor.StageOperational)

	if assert.Len(t, *got, 1) {
		assert.Equal(t, "🚀 api - Operational", (*got)[0].title)
	}
}

func TestNotifierUnregisterClearsAlert(t *testing.T) {
	got := capture(t)
	n := NewNotifier(true)

	n.OnThresholdExceeded(monitor.StatusRecord{Name: "api"})
	n.OnUnregister("api")
	n.OnCheck(monitor.StatusRecord{Name: "api"}, monitor.HealthCheckResult{Success: true})

	assert.Len(t, *got, 1)
}
