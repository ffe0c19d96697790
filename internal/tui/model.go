package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/juststeveking/stagewatch/internal/monitor"
)

// Model represents the TUI application state
type Model struct {
	services      []ServiceState
	width         int
	height        int
	lastUpdate    time.Time
	quitting      bool
	monitor       *monitor.Monitor
	monitorCancel func()
	feed          *Feed
	cfg           *config.Config
	builder       *monitor.Builder
	spinners      map[string]spinner.Model
	selectedIndex int
	showDetail    bool
	detailName    string
	flash         string
	flashTime     time.Time

	// Form state
	form     *huh.Form
	showForm bool
	formData *FormData
}

// FormData holds the data for the add service form
type FormData struct {
	Name           string
	Stage          string
	Type           string
	Target         string // URL, pid or container id depending on Type
	Method         string
	ExpectedStatus string
	HealthEndpoint string
	AuthType       string
	AuthToken      string
	AuthUsername   string
	AuthPassword   string
	Headers        string // Formatted as key:value,key:value
	JSONAssertions string // Formatted as path:value:operator,path:value:operator
}

// ServiceState is the dashboard view of one monitored service
type ServiceState struct {
	Name              string
	Stage             monitor.HealthStage
	FailureCount      int
	MaxFailures       int
	Interval          time.Duration
	Grace             float64
	Uptime            time.Duration
	LastChecked       time.Time
	Checked           bool
	Healthy           bool
	ThresholdExceeded bool
	Error             string
	LastDuration      time.Duration
	IsChecking        bool
	Checks            []string
}

// NewModel creates a new TUI model. The feed must be registered as an
// observer on m before monitoring starts.
func NewModel(m *monitor.Monitor, feed *Feed, cfg *config.Config, builder *monitor.Builder, cancel func()) Model {
	return Model{
		services:      make([]ServiceState, 0),
		monitor:       m,
		monitorCancel: cancel,
		feed:          feed,
		cfg:           cfg,
		builder:       builder,
		lastUpdate:    time.Now(),
		spinners:      make(map[string]spinner.Model),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvents(m.feed),
		snapshot(m.monitor),
		tea.EnterAltScreen,
		doTick(),
	)
}

// tickMsg is sent on every tick
type tickMsg time.Time

// doTick returns a command that waits for the next tick
func doTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// snapshotMsg carries the status of every registered service
type snapshotMsg []monitor.StatusRecord

// snapshot reads the current status of all services
func snapshot(mon *monitor.Monitor) tea.Cmd {
	if mon == nil {
		return nil
	}
	return func() tea.Msg {
		var out snapshotMsg
		for _, name := range mon.Services() {
			if s, ok := mon.Status(name); ok {
				out = append(out, s)
			}
		}
		return out
	}
}

// checkDoneMsg is sent when a manual check finishes
type checkDoneMsg struct {
	name   string
	result monitor.HealthCheckResult
	err    error
}

// checkNow runs an immediate check for name
func checkNow(mon *monitor.Monitor, name string) tea.Cmd {
	return func() tea.Msg {
		result, err := mon.CheckNow(context.Background(), name)
		return checkDoneMsg{name: name, result: result, err: err}
	}
}
