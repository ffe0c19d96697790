package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func status(name string, stage monitor.HealthStage, success bool) statusMsg {
	result := monitor.HealthCheckResult{Stage: stage, Success: success, Timestamp: time.Now()}
	if !success {
		result.ErrorMessage = "connection refused"
	}
	return statusMsg{
		status: monitor.StatusRecord{
			Name:             name,
			Stage:            stage,
			FailureThreshold: 10,
			CheckInterval:    5 * time.Second,
			GraceMultiplier:  1,
			LastResult:       &result,
		},
		result: result,
	}
}

func TestUpdateAppliesStatus(t *testing.T) {
	m := NewModel(nil, NewFeed(4), nil, nil, nil)

	m = update(t, m, status("api", monitor.StageStartup, true))
	m = update(t, m, status("db", monitor.StageInitialization, false))
	require.Len(t, m.services, 2)

	api := m.services[0]
	assert.Equal(t, monitor.StageStartup, api.Stage)
	assert.True(t, api.Healthy)
	assert.Equal(t, 10, api.MaxFailures)

	db := m.services[1]
	assert.False(t, db.Healthy)
	assert.Equal(t, "connection refused", db.Error)

	// a later update replaces the entry
	m = update(t, m, status("api", monitor.StageWarming, true))
	require.Len(t, m.services, 2)
	assert.Equal(t, monitor.StageWarming, m.services[0].Stage)

	failing, starting, operational := m.groupServices()
	assert.Len(t, failing, 1)
	assert.Len(t, starting, 1)
	assert.Empty(t, operational)
}

func TestUpdateRemovesService(t *testing.T) {
	m := NewModel(nil, NewFeed(4), nil, nil, nil)
	m = update(t, m, status("api", monitor.StageStartup, true))
	m = update(t, m, status("db", monitor.StageStartup, true))
	m.selectedIndex = 1

	m = update(t, m, removedMsg("db"))
	require.Len(t, m.services, 1)
	assert.Equal(t, "api", m.services[0].Name)
	assert.Equal(t, 0, m.selectedIndex)
}

func TestUpdateStageChangeFlashes(t *testing.T) {
	m := NewModel(nil, NewFeed(4), nil, nil, nil)
	m = update(t, m, stageMsg{service: "api", from: monitor.StageWarming, to: monitor.StageOperational})
	assert.Equal(t, "api: warming → operational", m.flash)
}

func TestSelectionWraps(t *testing.T) {
	m := NewModel(nil, nil, nil, nil, nil)
	for _, name := range []string{"a", "b", "c"} {
		m = update(t, m, status(name, monitor.StageStartup, true))
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, "c", m.getSelectedName())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, "b", m.getSelectedName())
}

func TestFeedDropsWhenFull(t *testing.T) {
	f := NewFeed(1)
	f.OnStageChange("api", monitor.StageInitialization, monitor.StageStartup)
	f.OnUnregister("api")

	msg := waitForEvents(f)()
	assert.IsType(t, stageMsg{}, msg)
	assert.Empty(t, f.ch)
}

func TestViewShowsStages(t *testing.T) {
	m := NewModel(nil, nil, nil, nil, nil)
	m.width = 120
	assert.Contains(t, m.View(), "Waiting for health checks")

	m = update(t, m, status("api", monitor.StageWarming, true))
	view := m.View()
	assert.Contains(t, view, "api")
	assert.Contains(t, view, "warming")
	assert.Contains(t, view, "0/10 failures")
	assert.Contains(t, view, "Starting (1)")
}

func TestServiceFromForm(t *testing.T) {
	svc, err := serviceFromForm(FormData{
		Name:           " api ",
		Stage:          "warming",
		Type:           config.CheckHTTP,
		Target:         "http://localhost:8080",
		HealthEndpoint: "/ready",
		Method:         "GET",
		ExpectedStatus: "204",
		AuthType:       "bearer",
		AuthToken:      "${API_TOKEN}",
		Headers:        "X-Env:prod, X-Trace : on",
		JSONAssertions: "status:ok:==,db.pool:4:>",
	})
	require.NoError(t, err)

	assert.Equal(t, "api", svc.Name)
	assert.Nil(t, svc.Basic)
	require.NotNil(t, svc.Ready)
	assert.Equal(t, 204, svc.Ready.ExpectedStatus)
	assert.Equal(t, "${API_TOKEN}", svc.Ready.Auth.Token)
	assert.Equal(t, map[string]string{"X-Env": "prod", "X-Trace": "on"}, svc.Ready.Headers)
	assert.Equal(t, []config.JSONAssertion{
		{Path: "status", Value: "ok", Operator: "=="},
		{Path: "db.pool", Value: 4.0, Operator: ">"},
	}, svc.Ready.JSONAssertions)

	svc, err = serviceFromForm(FormData{Name: "worker", Stage: "initialization", Type: config.CheckProcess, Target: "4242"})
	require.NoError(t, err)
	require.NotNil(t, svc.Process)
	assert.Equal(t, 4242, svc.Process.PID)

	_, err = serviceFromForm(FormData{Name: "worker", Stage: "initialization", Type: config.CheckProcess, Target: "abc"})
	assert.Error(t, err)

	_, err = serviceFromForm(FormData{Stage: "startup", Type: config.CheckTCP, Target: "db:5432"})
	assert.Error(t, err)

	_, err = serviceFromForm(FormData{Name: "db", Stage: "startup", Type: config.CheckTCP})
	assert.Error(t, err)
}

func TestParseJSONValueFromTUI(t *testing.T) {
	assert.Equal(t, true, parseJSONValueFromTUI("true"))
	assert.Equal(t, false, parseJSONValueFromTUI(" false "))
	assert.Equal(t, 3.5, parseJSONValueFromTUI("3.5"))
	assert.Equal(t, "ok", parseJSONValueFromTUI("ok"))
}
