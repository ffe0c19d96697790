package monitor

import (
	"fmt"
	"strings"
	"time"
)

// HealthStage is one of the ordered phases a monitored service passes through
type HealthStage int

const (
	StageInitialization HealthStage = iota
	StageStartup
	StageWarming
	StageOperational
)

// NumStages is the number of health stages
const NumStages = 4

var stageNames = [NumStages]string{"initialization", "startup", "warming", "operational"}

var stageCheckNames = [NumStages]string{"process_check", "basic_health_check", "ready_check", "full_health_check"}

func (s HealthStage) String() string {
	if s < 0 || int(s) >= NumStages {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage parses a stage name such as "warming"
func ParseStage(name string) (HealthStage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stageNames {
		if n == name {
			return HealthStage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// AllStages returns every stage in progression order
func AllStages() []HealthStage {
	return []HealthStage{StageInitialization, StageStartup, StageWarming, StageOperational}
}

// StageConfig holds the timing and tolerance of one stage.
// A zero Duration means the stage never ends.
type StageConfig struct {
	Duration          time.Duration
	CheckInterval     time.Duration
	MaxFailures       int
	CheckFunctionName string
}

// StageTable maps every stage to its config
type StageTable [NumStages]StageConfig

// DefaultStages returns the stock stage timings: 30s, 60s and 90s for the
// first three stages, after which a service is operational.
func DefaultStages() StageTable {
	return StageTable{
		StageInitialization: {Duration: 30 * time.Second, CheckInterval: 2 * time.Second, MaxFailures: 15, CheckFunctionName: stageCheckNames[StageInitialization]},
		StageStartup:        {Duration: 60 * time.Second, CheckInterval: 5 * time.Second, MaxFailures: 10, CheckFunctionName: stageCheckNames[StageStartup]},
		StageWarming:        {Duration: 90 * time.Second, CheckInterval: 10 * time.Second, MaxFailures: 5, CheckFunctionName: stageCheckNames[StageWarming]},
		StageOperational:    {CheckInterval: 30 * time.Second, MaxFailures: 3, CheckFunctionName: stageCheckNames[StageOperational]},
	}
}

// withDefaults fills zero fields from DefaultStages
func (t StageTable) withDefaults() StageTable {
	def := DefaultStages()
	for i := range t {
		if t[i].CheckInterval <= 0 {
			t[i].CheckInterval = def[i].CheckInterval
		}
		if t[i].MaxFailures <= 0 {
			t[i].MaxFailures = def[i].MaxFailures
		}
		if t[i].CheckFunctionName == "" {
			t[i].CheckFunctionName = def[i].CheckFunctionName
		}
		if t[i].Duration <= 0 && HealthStage(i) != StageOperational {
			t[i].Duration = def[i].Duration
		}
	}
	return t
}

// Boundary returns the uptime at which stage s ends
func (t StageTable) Boundary(s HealthStage) time.Duration {
	var total time.Duration
	for i := StageInitialization; i <= s && i < StageOperational; i++ {
		total += t[i].Duration
	}
	return total
}

// CalculateStage maps elapsed uptime to the stage a service should be in
func CalculateStage(uptime time.Duration, t StageTable) HealthStage {
	for _, s := range []HealthStage{StageInitialization, StageStartup, StageWarming} {
		if uptime < t.Boundary(s) {
			return s
		}
	}
	return StageOperational
}
