package monitor

import "time"

// HealthCheckResult represents the outcome of a single stage check
type HealthCheckResult struct {
	Stage           HealthStage
	Success         bool
	ErrorMessage    string
	CheckDurationMs float64
	Timestamp       time.Time
}

// StatusRecord is a point-in-time view of a registered service
type StatusRecord struct {
	Name              string
	Stage             HealthStage
	FailureCount      int
	FailureThreshold  int
	UptimeSeconds     float64
	GraceMultiplier   float64
	CheckInterval     time.Duration
	StartedAt         time.Time
	LastCheck         time.Time
	LastResult        *HealthCheckResult
	Monitoring        bool
	ThresholdExceeded bool
	RunID             string
}

// Healthy reports whether the most recent check passed
func (s StatusRecord) Healthy() bool {
	return s.LastResult != nil && s.LastResult.Success
}
