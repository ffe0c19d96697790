package monitor

import (
	"context"
	"sync"
	"time"
)

// CheckFunc probes a service. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Checks holds one optional check per stage
type Checks [NumStages]CheckFunc

// ServiceConfig identifies a service and the check used in each stage.
// A nil check passes by default.
type ServiceConfig struct {
	Name   string
	Checks Checks
}

// serviceState is the mutable per-service record. Its fields are only touched
// with Monitor.mu held. checkMu serializes check cycles so a manual check never
// overlaps a scheduled one.
type serviceState struct {
	checkMu sync.Mutex

	startTime         time.Time
	stage             HealthStage
	stageEnteredAt    time.Time
	failureCount      int
	lastCheck         time.Time
	history           []HealthCheckResult
	grace             float64
	thresholdExceeded bool
}

func newServiceState(now time.Time) *serviceState {
	return &serviceState{
		startTime:      now,
		stage:          StageInitialization,
		stageEnteredAt: now,
		grace:          1.0,
	}
}

func (s *serviceState) record(result HealthCheckResult, limit int) {
	s.lastCheck = result.Timestamp
	s.history = append(s.history, result)
	if limit > 0 && len(s.history) > limit {
		s.history = append(s.history[:0:0], s.history[len(s.history)-limit:]...)
	}
}

// recentFailures counts failed results among the last window entries
func (s *serviceState) recentFailures(window int) int {
	start := len(s.history) - window
	if start < 0 {
		start = 0
	}
	n := 0
	for _, r := range s.history[start:] {
		if !r.Success {
			n++
		}
	}
	return n
}

func (s *serviceState) lastResult() *HealthCheckResult {
	if len(s.history) == 0 {
		return nil
	}
	r := s.history[len(s.history)-1]
	return &r
}
