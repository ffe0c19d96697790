package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/juststeveking/stagewatch/internal/monitor"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Always update window size
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
	}

	// Feed events keep flowing while the form or detail view is open
	switch msg := msg.(type) {
	case statusMsg:
		m.applyStatus(msg.status, msg.result)
		return m, waitForEvents(m.feed)
	case stageMsg:
		m.setFlash(fmt.Sprintf("%s: %s → %s", msg.service, msg.from, msg.to))
		return m, waitForEvents(m.feed)
	case removedMsg:
		m.removeService(string(msg))
		return m, waitForEvents(m.feed)
	case snapshotMsg:
		for _, s := range msg {
			m.applyStatus(s, derefResult(s.LastResult))
		}
		return m, nil
	}

	// Handle form updates if form is active
	if m.showForm {
		if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
			m.showForm = false
			m.form = nil
			return m, nil
		}

		form, cmd := m.form.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.form = f
		}

		switch m.form.State {
		case huh.StateCompleted:
			if err := m.addService(*m.formData); err != nil {
				m.setFlash("✗ " + err.Error())
			}
			m.showForm = false
			m.form = nil
		case huh.StateAborted:
			m.showForm = false
			m.form = nil
		}
		return m, cmd
	}

	// Handle detail modal interactions
	if m.showDetail {
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch msg.String() {
			case "esc", "enter":
				m.showDetail = false
				return m, nil
			}
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.monitorCancel != nil {
				m.monitorCancel()
			}
			return m, tea.Quit
		case "n":
			if m.cfg == nil || m.builder == nil {
				return m, nil
			}
			m.showForm = true
			m.initAddServiceForm()
			return m, m.form.Init()
		case "enter":
			if len(m.services) > 0 {
				m.detailName = m.getSelectedName()
				m.showDetail = true
			}
		case "c":
			if name := m.getSelectedName(); name != "" && m.monitor != nil {
				m.markChecking(name)
				return m, tea.Batch(checkNow(m.monitor, name), m.spinners[name].Tick)
			}
		case "x":
			if name := m.getSelectedName(); name != "" {
				m.deleteService(name)
			}
		case "left", "h", "up", "k", "shift+tab":
			m.moveSelection(-1)
		case "right", "l", "down", "j", "tab":
			m.moveSelection(1)
		}

	case checkDoneMsg:
		m.stopChecking(msg.name)
		if msg.err != nil {
			m.setFlash("✗ " + msg.err.Error())
		} else if s, ok := m.monitor.Status(msg.name); ok {
			m.applyStatus(s, msg.result)
		}

	case spinner.TickMsg:
		// Update all active spinners
		var cmds []tea.Cmd
		for name, s := range m.spinners {
			updated, cmd := s.Update(msg)
			m.spinners[name] = updated
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case tickMsg:
		m.lastUpdate = time.Time(msg)
		return m, tea.Batch(snapshot(m.monitor), doTick())
	}

	return m, nil
}

// applyStatus updates or adds the dashboard entry for a service
func (m *Model) applyStatus(status monitor.StatusRecord, result monitor.HealthCheckResult) {
	svc := ServiceState{
		Name:              status.Name,
		Stage:             status.Stage,
		FailureCount:      status.FailureCount,
		MaxFailures:       status.FailureThreshold,
		Interval:          status.CheckInterval,
		Grace:             status.GraceMultiplier,
		Uptime:            time.Duration(status.UptimeSeconds * float64(time.Second)),
		LastChecked:       status.LastCheck,
		Checked:           status.LastResult != nil,
		Healthy:           status.Healthy(),
		ThresholdExceeded: status.ThresholdExceeded,
		Checks:            m.buildCheckLabels(status.Name),
	}
	if svc.Checked {
		svc.Error = result.ErrorMessage
		svc.LastDuration = time.Duration(result.CheckDurationMs * float64(time.Millisecond))
	}

	for i := range m.services {
		if m.services[i].Name == status.Name {
			svc.IsChecking = m.services[i].IsChecking
			m.services[i] = svc
			return
		}
	}
	m.services = append(m.services, svc)
	m.clampSelection()
}

func (m *Model) removeService(name string) {
	for i := range m.services {
		if m.services[i].Name == name {
			m.services = append(m.services[:i], m.services[i+1:]...)
			break
		}
	}
	delete(m.spinners, name)
	m.clampSelection()
}

// markChecking shows a spinner on the service card
func (m *Model) markChecking(name string) {
	for i := range m.services {
		if m.services[i].Name == name {
			m.services[i].IsChecking = true
		}
	}
	if _, exists := m.spinners[name]; !exists {
		s := spinner.New()
		s.Spinner = spinner.MiniDot
		s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")) // Gold
		m.spinners[name] = s
	}
}

func (m *Model) stopChecking(name string) {
	for i := range m.services {
		if m.services[i].Name == name {
			m.services[i].IsChecking = false
		}
	}
	delete(m.spinners, name)
}

func (m *Model) setFlash(msg string) {
	m.flash = msg
	m.flashTime = time.Now()
}

// addService saves the form as a new service and starts monitoring it
func (m *Model) addService(fd FormData) error {
	svc, err := serviceFromForm(fd)
	if err != nil {
		return err
	}
	if err := m.cfg.AddService(svc); err != nil {
		return err
	}
	if err := config.SaveConfig(m.cfg); err != nil {
		return err
	}

	sc, err := m.builder.Service(svc)
	if err != nil {
		return err
	}
	if err := m.monitor.Register(sc); err != nil {
		return err
	}
	if err := m.monitor.StartMonitoring(svc.Name); err != nil {
		return err
	}

	if s, ok := m.monitor.Status(svc.Name); ok {
		m.applyStatus(s, monitor.HealthCheckResult{})
	}
	m.setFlash("✓ added " + svc.Name)
	return nil
}

// deleteService unregisters the service and removes it from the config file
func (m *Model) deleteService(name string) {
	if m.monitor != nil {
		m.monitor.Unregister(name)
	}
	m.removeService(name)

	if m.cfg != nil {
		if err := m.cfg.RemoveService(name); err == nil {
			if err := config.SaveConfig(m.cfg); err != nil {
				m.setFlash("✗ " + err.Error())
				return
			}
		}
	}
	m.setFlash("removed " + name)
}

// initAddServiceForm initializes the form for adding a new service
func (m *Model) initAddServiceForm() {
	m.formData = &FormData{
		Stage:          monitor.StageStartup.String(),
		Type:           config.CheckHTTP,
		Method:         "GET",
		ExpectedStatus: "200",
	}

	stageOptions := make([]huh.Option[string], 0, monitor.NumStages)
	for _, s := range monitor.AllStages() {
		stageOptions = append(stageOptions, huh.NewOption(s.String(), s.String()))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Service Name").
				Value(&m.formData.Name),
			huh.NewSelect[string]().
				Title("Stage").
				Options(stageOptions...).
				Value(&m.formData.Stage),
			huh.NewSelect[string]().
				Title("Check Type").
				Options(
					huh.NewOption("HTTP", config.CheckHTTP),
					huh.NewOption("TCP", config.CheckTCP),
					huh.NewOption("TLS", config.CheckTLS),
					huh.NewOption("DNS", config.CheckDNS),
					huh.NewOption("Latency", config.CheckLatency),
					huh.NewOption("Process (pid)", config.CheckProcess),
					huh.NewOption("Docker container", config.CheckContainer),
				).
				Value(&m.formData.Type),
			huh.NewInput().
				Title("Target").
				Description("URL or host:port, pid for process, id for container").
				Value(&m.formData.Target),
		).Title("Service Details (Esc to cancel)"),
		huh.NewGroup(
			huh.NewInput().
				Title("Health Endpoint (optional)").
				Value(&m.formData.HealthEndpoint),
			huh.NewSelect[string]().
				Title("HTTP Method").
				Options(
					huh.NewOption("GET", "GET"),
					huh.NewOption("HEAD", "HEAD"),
					huh.NewOption("POST", "POST"),
				).
				Value(&m.formData.Method),
			huh.NewInput().
				Title("Expected Status Code").
				Value(&m.formData.ExpectedStatus),
			huh.NewSelect[string]().
				Title("Auth Type").
				Options(
					huh.NewOption("None", ""),
					huh.NewOption("Bearer Token", "bearer"),
					huh.NewOption("Basic Auth", "basic"),
				).
				Value(&m.formData.AuthType),
			huh.NewInput().
				Title("Bearer Token (if using bearer auth)").
				Value(&m.formData.AuthToken),
			huh.NewInput().
				Title("Username (if using basic auth)").
				Value(&m.formData.AuthUsername),
			huh.NewInput().
				Title("Password (if using basic auth)").
				Value(&m.formData.AuthPassword),
		).Title("HTTP Options (Optional)"),
		huh.NewGroup(
			huh.NewInput().
				Title("Custom Headers (key:value,key:value)").
				Value(&m.formData.Headers),
			huh.NewInput().
				Title("JSON Assertions (path:value:operator,...)").
				Description("Example: status:ok:==,uptime:0:>").
				Value(&m.formData.JSONAssertions),
		).Title("Advanced (Optional)"),
	).WithTheme(huh.ThemeCatppuccin()).WithWidth(80).WithShowHelp(true)
}

// serviceFromForm builds a service with a single check in the chosen stage
func serviceFromForm(fd FormData) (config.Service, error) {
	name := strings.TrimSpace(fd.Name)
	if name == "" {
		return config.Service{}, errors.New("service name is required")
	}
	stage, err := monitor.ParseStage(fd.Stage)
	if err != nil {
		return config.Service{}, err
	}

	chk := &config.Check{Type: fd.Type}
	target := strings.TrimSpace(fd.Target)
	switch fd.Type {
	case config.CheckProcess:
		pid, err := strconv.Atoi(target)
		if err != nil {
			return config.Service{}, fmt.Errorf("invalid pid %q", target)
		}
		chk.PID = pid
	case config.CheckContainer:
		chk.Container = target
	default:
		chk.URL = target
		chk.HealthEndpoint = fd.HealthEndpoint
		chk.Method = fd.Method
		chk.ExpectedStatus, _ = strconv.Atoi(fd.ExpectedStatus)
		if fd.AuthType != "" {
			chk.Auth = &config.Auth{
				Type:     fd.AuthType,
				Token:    fd.AuthToken,
				Username: fd.AuthUsername,
				Password: fd.AuthPassword,
			}
		}
		if fd.Headers != "" {
			chk.Headers = parseHeadersFromTUI(fd.Headers)
		}
		if fd.JSONAssertions != "" {
			chk.JSONAssertions = parseJSONAssertionsFromTUI(fd.JSONAssertions)
		}
	}
	if err := chk.Validate(); err != nil {
		return config.Service{}, err
	}

	svc := config.Service{Name: name}
	if err := svc.SetCheck(int(stage), chk); err != nil {
		return config.Service{}, err
	}
	return svc, nil
}

// parseHeadersFromTUI parses headers from TUI format (key:value,key:value)
func parseHeadersFromTUI(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}

	for _, pair := range strings.Split(headerStr, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(kv) == 2 {
			headers[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return headers
}

// parseJSONAssertionsFromTUI parses JSON assertions from TUI format (path:value:operator,...)
func parseJSONAssertionsFromTUI(assertionStr string) []config.JSONAssertion {
	var assertions []config.JSONAssertion
	if assertionStr == "" {
		return assertions
	}

	for _, pair := range strings.Split(assertionStr, ",") {
		parts := strings.Split(strings.TrimSpace(pair), ":")
		if len(parts) >= 3 {
			assertions = append(assertions, config.JSONAssertion{
				Path:     parts[0],
				Value:    parseJSONValueFromTUI(parts[1]),
				Operator: parts[2],
			})
		}
	}
	return assertions
}

// parseJSONValueFromTUI attempts to parse a string into a JSON-compatible value
func parseJSONValueFromTUI(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "true" {
		return true
	}
	if s == "false" {
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// buildCheckLabels returns short labels for the configured stage checks
func (m *Model) buildCheckLabels(name string) []string {
	if m.cfg == nil {
		return nil
	}
	svc := m.cfg.FindService(name)
	if svc == nil {
		return nil
	}

	var labels []string
	for i, chk := range svc.Checks() {
		if chk == nil {
			continue
		}
		typ := strings.ToUpper(chk.Type)
		if typ == "" {
			typ = "HTTP"
		}
		if len(chk.JSONAssertions) > 0 {
			typ += "+JSON"
		}
		labels = append(labels, fmt.Sprintf("%s:%s", stageAbbrev(monitor.HealthStage(i)), typ))
	}
	return labels
}

func stageAbbrev(s monitor.HealthStage) string {
	switch s {
	case monitor.StageInitialization:
		return "init"
	case monitor.StageStartup:
		return "start"
	case monitor.StageWarming:
		return "warm"
	default:
		return "op"
	}
}

// moveSelection moves the selected index with wrap-around
func (m *Model) moveSelection(delta int) {
	if len(m.services) == 0 {
		return
	}
	m.selectedIndex = (m.selectedIndex + delta) % len(m.services)
	if m.selectedIndex < 0 {
		m.selectedIndex += len(m.services)
	}
}

// getSelectedName returns the currently selected service name
func (m *Model) getSelectedName() string {
	if len(m.services) == 0 {
		return ""
	}
	if m.selectedIndex >= len(m.services) {
		m.selectedIndex = len(m.services) - 1
	}
	return m.services[m.selectedIndex].Name
}

// clampSelection ensures selection stays within range
func (m *Model) clampSelection() {
	if len(m.services) == 0 {
		m.selectedIndex = 0
		return
	}
	if m.selectedIndex >= len(m.services) {
		m.selectedIndex = len(m.services) - 1
	}
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
}
