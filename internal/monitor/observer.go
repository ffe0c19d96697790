package monitor

// Observer receives monitoring events. Methods are called from monitoring
// goroutines without the monitor lock held and must not block for long.
type Observer interface {
	OnCheck(status StatusRecord, result HealthCheckResult)
	OnStageChange(service string, from, to HealthStage)
	OnThresholdExceeded(status StatusRecord)
	OnUnregister(service string)
}

// NopObserver implements Observer with no-ops. Embed it to override a subset.
type NopObserver struct{}

func (NopObserver) OnCheck(StatusRecord, HealthCheckResult)        {}
func (NopObserver) OnStageChange(string, HealthStage, HealthStage) {}
func (NopObserver) OnThresholdExceeded(StatusRecord)               {}
func (NopObserver) OnUnregister(string)                            {}
