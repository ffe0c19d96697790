package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/juststeveking/stagewatch/internal/monitor"
)

// Feed forwards monitor events to the Bubble Tea program. Events are
// dropped when the buffer is full; the periodic snapshot catches the view up.
type Feed struct {
	ch chan tea.Msg
}

var _ monitor.Observer = (*Feed)(nil)

// NewFeed creates a feed with the given buffer size
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 64
	}
	return &Feed{ch: make(chan tea.Msg, buffer)}
}

// statusMsg wraps a status update produced by a check
type statusMsg struct {
	status monitor.StatusRecord
	result monitor.HealthCheckResult
}

// stageMsg reports a stage transition
type stageMsg struct {
	service  string
	from, to monitor.HealthStage
}

// removedMsg reports an unregistered service
type removedMsg string

func (f *Feed) push(msg tea.Msg) {
	select {
	case f.ch <- msg:
	default:
	}
}

func (f *Feed) OnCheck(status monitor.StatusRecord, result monitor.HealthCheckResult) {
	f.push(statusMsg{status: status, result: result})
}

func (f *Feed) OnStageChange(service string, from, to monitor.HealthStage) {
	f.push(stageMsg{service: service, from: from, to: to})
}

func (f *Feed) OnThresholdExceeded(status monitor.StatusRecord) {
	f.push(statusMsg{status: status, result: derefResult(status.LastResult)})
}

func (f *Feed) OnUnregister(service string) {
	f.push(removedMsg(service))
}

// waitForEvents listens for the next feed event
func waitForEvents(f *Feed) tea.Cmd {
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		return <-f.ch
	}
}

func derefResult(r *monitor.HealthCheckResult) monitor.HealthCheckResult {
	if r == nil {
		return monitor.HealthCheckResult{}
	}
	return *r
}
