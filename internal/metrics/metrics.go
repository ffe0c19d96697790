package metrics

import (
	"github.com/juststeveking/stagewatch/internal/monitor"
	"github.com/prometheus/client_golang/prometheus"
)

// StatusSource is the read side of the monitor used at scrape time
type StatusSource interface {
	Services() []string
	Status(name string) (monitor.StatusRecord, bool)
}

// Collector exports monitoring events and service state to Prometheus.
// It is both a prometheus.Collector and a monitor.Observer.
type Collector struct {
	source StatusSource

	// Event metrics
	checksTotal       *prometheus.CounterVec
	checkDuration     *prometheus.HistogramVec
	stageTransitions  *prometheus.CounterVec
	thresholdExceeded *prometheus.CounterVec

	// State metrics, refreshed on every scrape
	serviceStage    *prometheus.GaugeVec
	serviceFailures *prometheus.GaugeVec
	serviceInterval *prometheus.GaugeVec
	serviceGrace    *prometheus.GaugeVec
	serviceUptime   *prometheus.GaugeVec
}

var _ monitor.Observer = (*Collector)(nil)

// NewCollector creates a collector reading state from source
func NewCollector(source StatusSource) *Collector {
	return &Collector{
		source: source,
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagewatch_checks_total",
				Help: "Total number of health checks by service, stage and result",
			},
			[]string{"service", "stage", "result"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagewatch_check_duration_seconds",
				Help:    "Duration of health checks by service and stage",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "stage"},
		),
		stageTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagewatch_stage_transitions_total",
				Help: "Total number of stage transitions by service and target stage",
			},
			[]string{"service", "to"},
		),
		thresholdExceeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagewatch_threshold_exceeded_total",
				Help: "Number of times a service crossed its stage failure threshold",
			},
			[]string{"service", "stage"},
		),
		serviceStage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stagewatch_service_stage",
				Help: "Current stage of each service (0=initialization, 3=operational)",
			},
			[]string{"service"},
		),
		serviceFailures: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stagewatch_service_failures",
				Help: "Failures recorded in the current stage of each service",
			},
			[]string{"service"},
		),
		serviceInterval: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stagewatch_service_check_interval_seconds",
				Help: "Current adaptive check interval of each service",
			},
			[]string{"service"},
		),
		serviceGrace: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stagewatch_service_grace_multiplier",
				Help: "Grace multiplier applied to failure thresholds",
			},
			[]string{"service"},
		),
		serviceUptime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stagewatch_service_uptime_seconds",
				Help: "Seconds since the service was registered",
			},
			[]string{"service"},
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.checksTotal.Describe(ch)
	c.checkDuration.Describe(ch)
	c.stageTransitions.Describe(ch)
	c.thresholdExceeded.Describe(ch)
	c.serviceStage.Describe(ch)
	c.serviceFailures.Describe(ch)
	c.serviceInterval.Describe(ch)
	c.serviceGrace.Describe(ch)
	c.serviceUptime.Describe(ch)
}

// Collect implements prometheus.Collector and refreshes state gauges from the monitor.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.collectServiceState()

	c.checksTotal.Collect(ch)
	c.checkDuration.Collect(ch)
	c.stageTransitions.Collect(ch)
	c.thresholdExceeded.Collect(ch)
	c.serviceStage.Collect(ch)
	c.serviceFailures.Collect(ch)
	c.serviceInterval.Collect(ch)
	c.serviceGrace.Collect(ch)
	c.serviceUptime.Collect(ch)
}

func (c *Collector) collectServiceState() {
	if c.source == nil {
		return
	}

	c.serviceStage.Reset()
	c.serviceFailures.Reset()
	c.serviceInterval.Reset()
	c.serviceGrace.Reset()
	c.serviceUptime.Reset()

	for _, name := range c.source.Services() {
		status, ok := c.source.Status(name)
		if !ok {
			continue
		}
		c.serviceStage.WithLabelValues(name).Set(float64(status.Stage))
		c.serviceFailures.WithLabelValues(name).Set(float64(status.FailureCount))
		c.serviceInterval.WithLabelValues(name).Set(status.CheckInterval.Seconds())
		c.serviceGrace.WithLabelValues(name).Set(status.GraceMultiplier)
		c.serviceUptime.WithLabelValues(name).Set(status.UptimeSeconds)
	}
}

// OnCheck counts the check and observes its duration
func (c *Collector) OnCheck(status monitor.StatusRecord, result monitor.HealthCheckResult) {
	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	stage := result.Stage.String()
	c.checksTotal.WithLabelValues(status.Name, stage, outcome).Inc()
	c.checkDuration.WithLabelValues(status.Name, stage).Observe(result.CheckDurationMs / 1000)
}

func (c *Collector) OnStageChange(service string, _, to monitor.HealthStage) {
	c.stageTransitions.WithLabelValues(service, to.String()).Inc()
}

func (c *Collector) OnThresholdExceeded(status monitor.StatusRecord) {
	c.thresholdExceeded.WithLabelValues(status.Name, status.Stage.String()).Inc()
}

// OnUnregister drops every series of the service
func (c *Collector) OnUnregister(service string) {
	labels := prometheus.Labels{"service": service}
	c.checksTotal.DeletePartialMatch(labels)
	c.checkDuration.DeletePartialMatch(labels)
	c.stageTransitions.DeletePartialMatch(labels)
	c.thresholdExceeded.DeletePartialMatch(labels)
}
