package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateStage(t *testing.T) {
	stages := DefaultStages()

	tests := []struct {
		uptime time.Duration
		want   HealthStage
	}{
		{0, StageInitialization},
		{25 * time.Second, StageInitialization},
		{30*time.Second - time.Millisecond, StageInitialization},
		{30 * time.Second, StageStartup},
		{45 * time.Second, StageStartup},
		{90 * time.Second, StageWarming},
		{120 * time.Second, StageWarming},
		{180 * time.Second, StageOperational},
		{300 * time.Second, StageOperational},
		{24 * time.Hour, StageOperational},
	}

	for _, tt := range tests {
		t.Run(tt.uptime.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateStage(tt.uptime, stages))
		})
	}
}

func TestCalculateStageIsMonotonic(t *testing.T) {
	stages := DefaultStages()
	prev := StageInitialization
	for s := time.Duration(0); s <= 400*time.Second; s += time.Second {
		got := CalculateStage(s, stages)
		require.GreaterOrEqual(t, got, prev, "stage regressed at %s", s)
		prev = got
	}
}

func TestCalculateStageCustomTable(t *testing.T) {
	stages := StageTable{
		StageInitialization: {Duration: time.Second},
		StageStartup:        {Duration: 2 * time.Second},
		StageWarming:        {Duration: 3 * time.Second},
	}.withDefaults()

	assert.Equal(t, 6*time.Second, stages.Boundary(StageWarming))
	assert.Equal(t, StageStartup, CalculateStage(1500*time.Millisecond, stages))
	assert.Equal(t, StageOperational, CalculateStage(6*time.Second, stages))
}

func TestStageTableDefaults(t *testing.T) {
	stages := StageTable{}.withDefaults()

	assert.Equal(t, DefaultStages(), stages)
	assert.Equal(t, 10, stages[StageStartup].MaxFailures)
	assert.Equal(t, "ready_check", stages[StageWarming].CheckFunctionName)
	assert.Zero(t, stages[StageOperational].Duration)
}

func TestParseStage(t *testing.T) {
	for _, s := range AllStages() {
		got, err := ParseStage(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := ParseStage(" Warming ")
	require.NoError(t, err)
	assert.Equal(t, StageWarming, got)

	_, err = ParseStage("retired")
	assert.Error(t, err)
	assert.Equal(t, "stage(7)", HealthStage(7).String())
}
