package notify

import (
	"fmt"
	"sync"

	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/martinlindhe/notify"
)

const appName = "Stagewatch"

// send delivers a desktop notification. Tests replace it.
var send = func(title, message string) {
	notify.Notify(appName, title, message, "")
}

// Notifier sends desktop notifications for monitoring events
type Notifier struct {
	enabled bool

	mu       sync.Mutex
	alerting map[string]bool
}

var _ monitor.Observer = (*Notifier)(nil)

// NewNotifier creates a new notifier instance
func NewNotifier(enabled bool) *Notifier {
	return &Notifier{
		enabled:  enabled,
		alerting: make(map[string]bool),
	}
}

// OnThresholdExceeded alerts when a service crosses its stage failure limit
func (n *Notifier) OnThresholdExceeded(status monitor.StatusRecord) {
	if !n.enabled {
		return
	}

	n.mu.Lock()
	n.alerting[status.Name] = true
	n.mu.Unlock()

	title := fmt.Sprintf("⚠️  %s - Failing in %s", status.Name, status.Stage)
	message := fmt.Sprintf("%d failures in %s", status.FailureCount, status.Stage)
	if status.LastResult != nil && status.LastResult.ErrorMessage != "" {
		message = fmt.Sprintf("%s: %s", message, status.LastResult.ErrorMessage)
	}
	send(title, message)
}

// OnCheck sends a recovery notice for the first passing check after an alert
func (n *Notifier) OnCheck(status monitor.StatusRecord, result monitor.HealthCheckResult) {
	if !n.enabled || !result.Success {
		return
	}

	n.mu.Lock()
	wasAlerting := n.alerting[status.Name]
	delete(n.alerting, status.Name)
	n.mu.Unlock()

	if wasAlerting {
		send(fmt.Sprintf("✅ %s - Recovered", status.Name),
			fmt.Sprintf("Check passed in %s after %.0fs uptime", result.Stage, status.UptimeSeconds))
	}
}

// OnStageChange announces services reaching the operational stage
func (n *Notifier) OnStageChange(service string, _, to monitor.HealthStage) {
	if !n.enabled || to != monitor.StageOperational {
		return
	}
	send(fmt.Sprintf("🚀 %s - Operational", service), "Service completed its startup stages")
}

func (n *Notifier) OnUnregister(service string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.alerting, service)
}
