package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// cycleEvents collects what happened while processing one result so that
// logging and observers run after the lock is released.
type cycleEvents struct {
	status     StatusRecord
	result     HealthCheckResult
	threshold  int
	escalated  bool
	crossed    bool
	transition bool
	from, to   HealthStage
	matched    []string
	observers  []Observer
}

// cycle runs the current stage check and records its result. ok is false
// when the service went away or ctx was cancelled; the result is then discarded.
func (m *Monitor) cycle(ctx context.Context, name string, st *serviceState, runID string) (HealthCheckResult, time.Duration, bool) {
	ev, ok := m.checkAndProcess(ctx, name, st)
	if !ok {
		return HealthCheckResult{}, 0, false
	}
	m.emit(name, runID, ev)

	return ev.result, ev.status.CheckInterval, true
}

// checkAndProcess runs one check and applies its result while holding the
// service's check lock.
func (m *Monitor) checkAndProcess(ctx context.Context, name string, st *serviceState) (cycleEvents, bool) {
	st.checkMu.Lock()
	defer st.checkMu.Unlock()

	m.mu.Lock()
	cfg, registered := m.services[name]
	if !registered || m.states[name] != st || ctx.Err() != nil {
		m.mu.Unlock()
		return cycleEvents{}, false
	}
	stage := st.stage
	m.mu.Unlock()

	result := m.execute(ctx, cfg, stage)

	return m.process(ctx, name, st, result)
}

// execute invokes the check for stage. A missing check passes.
func (m *Monitor) execute(ctx context.Context, cfg ServiceConfig, stage HealthStage) HealthCheckResult {
	start := m.clock.Now()
	result := HealthCheckResult{Stage: stage, Timestamp: start}

	check := cfg.Checks[stage]
	if check == nil {
		result.Success = true
		return result
	}

	began := time.Now()
	err := m.invoke(ctx, cfg.Name, stage, check)
	result.CheckDurationMs = float64(time.Since(began).Microseconds()) / 1000

	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}
	result.Success = true
	return result
}

// invoke calls check, converting errors and panics into a CheckExecutionError
func (m *Monitor) invoke(ctx context.Context, service string, stage HealthStage, check CheckFunc) (err error) {
	if m.checkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.checkTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = &CheckExecutionError{Service: service, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if cerr := check(ctx); cerr != nil {
		return &CheckExecutionError{Service: service, Stage: stage, Err: cerr}
	}
	return nil
}

// process applies a result to the service state atomically
func (m *Monitor) process(ctx context.Context, name string, st *serviceState, result HealthCheckResult) (cycleEvents, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil || m.states[name] != st {
		return cycleEvents{}, false
	}

	now := m.clock.Now()
	ev := cycleEvents{result: result, observers: m.observers}

	st.record(result, m.historySize)

	if !result.Success {
		st.failureCount++
		ev.threshold = effectiveThreshold(m.stages[st.stage].MaxFailures, st.grace)
		if st.failureCount >= ev.threshold {
			ev.escalated = true
			if !st.thresholdExceeded {
				st.thresholdExceeded = true
				ev.crossed = true
			}
		}
	}

	uptime := now.Sub(st.startTime)
	if result.Success && result.Stage == st.stage && CalculateStage(uptime, m.stages) > st.stage {
		ev.transition = true
		ev.from = st.stage
		st.stage++
		ev.to = st.stage
		st.stageEnteredAt = now
		st.failureCount = 0
		st.thresholdExceeded = false
	}

	st.grace = m.rules.Grace(st.grace, st.stage, uptime)
	_, ev.matched = m.rules.Multiplier(m.ruleEnvLocked(st, now))
	ev.status = m.statusLocked(name, st, now)

	return ev, true
}

// emit is the failure handler and event fan-out for one processed result
func (m *Monitor) emit(name, runID string, ev cycleEvents) {
	log := m.logger.With(
		zap.String("service", name),
		zap.String("stage", ev.result.Stage.String()),
	)
	if runID != "" {
		log = log.With(zap.String("run_id", runID))
	}

	if !ev.result.Success {
		fields := []zap.Field{
			zap.Int("failure_count", ev.status.FailureCount),
			zap.Int("max_failures", ev.threshold),
			zap.String("error", ev.result.ErrorMessage),
		}
		if ev.escalated {
			log.Error("health check failure threshold exceeded", fields...)
		} else {
			log.Warn("health check failed", fields...)
		}
	} else {
		log.Debug("health check passed",
			zap.Float64("duration_ms", ev.result.CheckDurationMs),
			zap.Duration("next_interval", ev.status.CheckInterval),
			zap.Strings("rules", ev.matched),
		)
	}

	if ev.transition {
		log.Info("stage advanced",
			zap.String("from", ev.from.String()),
			zap.String("to", ev.to.String()),
			zap.Float64("uptime_seconds", ev.status.UptimeSeconds),
		)
	}

	for _, o := range ev.observers {
		o.OnCheck(ev.status, ev.result)
		if ev.transition {
			o.OnStageChange(name, ev.from, ev.to)
		}
		if ev.crossed {
			o.OnThresholdExceeded(ev.status)
		}
	}
}

// effectiveThreshold scales maxFailures by the grace multiplier
func effectiveThreshold(maxFailures int, grace float64) int {
	if grace < 1 {
		grace = 1
	}
	t := int(math.Ceil(float64(maxFailures) * grace))
	if t < 1 {
		t = 1
	}
	return t
}
