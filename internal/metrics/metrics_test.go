package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSource map[string]monitor.StatusRecord

func (s staticSource) Services() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}

func (s staticSource) Status(name string) (monitor.StatusRecord, bool) {
	r, ok := s[name]
	return r, ok
}

func TestCollectorCountsChecks(t *testing.T) {
	c := NewCollector(nil)

	status := monitor.StatusRecord{Name: "api", Stage: monitor.StageStartup}
	c.OnCheck(status, monitor.HealthCheckResult{Stage: monitor.StageStartup, Success: true, CheckDurationMs: 12})
	c.OnCheck(status, monitor.HealthCheckResult{Stage: monitor.StageStartup, Success: false, CheckDurationMs: 3})
	c.OnCheck(status, monitor.HealthCheckResult{Stage: monitor.StageStartup, Success: false, CheckDurationMs: 3})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.checksTotal.WithLabelValues("api", "startup", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.checksTotal.WithLabelValues("api", "startup", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.checkDuration))
}

func TestCollectorStageAndThresholdEvents(t *testing.T) {
	c := NewCollector(nil)

	c.OnStageChange("api", monitor.StageInitialization, monitor.StageStartup)
	c.OnThresholdExceeded(monitor.StatusRecord{Name: "api", Stage: monitor.StageStartup})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageTransitions.WithLabelValues("api", "startup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.thresholdExceeded.WithLabelValues("api", "startup")))
}

func TestCollectorServiceState(t *testing.T) {
	source := staticSource{
		"api": {Name: "api", Stage: monitor.StageWarming, FailureCount: 2, CheckInterval: 20 * time.Second, GraceMultiplier: 1.5, UptimeSeconds: 120},
		"db":  {Name: "db", Stage: monitor.StageOperational, GraceMultiplier: 1, CheckInterval: time.Minute},
	}
	c := NewCollector(source)

	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	expected := `
# HELP stagewatch_service_stage Current stage of each service (0=initialization, 3=operational)
# TYPE stagewatch_service_stage gauge
stagewatch_service_stage{service="api"} 2
stagewatch_service_stage{service="db"} 3
# HELP stagewatch_service_check_interval_seconds Current adaptive check interval of each service
# TYPE stagewatch_service_check_interval_seconds gauge
stagewatch_service_check_interval_seconds{service="api"} 20
stagewatch_service_check_interval_seconds{service="db"} 60
`
	err := testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"stagewatch_service_stage", "stagewatch_service_check_interval_seconds")
	require.NoError(t, err)

	delete(source, "db")
	count, err := testutil.GatherAndCount(registry, "stagewatch_service_stage")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollectorUnregisterDropsSeries(t *testing.T) {
	c := NewCollector(nil)

	c.OnCheck(monitor.StatusRecord{Name: "api"}, monitor.HealthCheckResult{Success: true})
	c.OnCheck(monitor.StatusRecord{Name: "db"}, monitor.HealthCheckResult{Success: true})
	c.OnStageChange("api", monitor.StageInitialization, monitor.StageStartup)
	require.Equal(t, 2, testutil.CollectAndCount(c.checksTotal))

	c.OnUnregister("api")

	assert.Equal(t, 1, testutil.CollectAndCount(c.checksTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(c.stageTransitions))
}

func TestServerExposesMetrics(t *testing.T) {
	c := NewCollector(nil)
	c.OnCheck(monitor.StatusRecord{Name: "api"}, monitor.HealthCheckResult{Success: true})

	srv := NewServer("127.0.0.1:0", NewRegistry(c), zap.NewNop())
	addr, err := srv.Start()
	require.NoError(t, err)
	defer srv.Stop()

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `stagewatch_checks_total{result="success",service="api",stage="initialization"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
