package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juststeveking/stagewatch/internal/clock"
	"go.uber.org/zap"
)

// Options configures a Monitor. Zero values select defaults.
type Options struct {
	Stages       StageTable
	Adaptive     AdaptiveConfig
	Rules        []Rule
	HistorySize  int
	CheckTimeout time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
	Observers    []Observer
}

const defaultHistorySize = 100

// Monitor runs one monitoring goroutine per registered service
type Monitor struct {
	stages       StageTable
	rules        *RuleEngine
	historySize  int
	checkTimeout time.Duration
	clock        clock.Clock
	logger       *zap.Logger

	mu        sync.Mutex
	services  map[string]ServiceConfig
	states    map[string]*serviceState
	tasks     map[string]*task
	observers []Observer
	running   bool
}

type task struct {
	runID  string
	state  *serviceState
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *task) stop() {
	t.cancel()
	<-t.done
}

// New creates a monitor with no registered services
func New(opts Options) (*Monitor, error) {
	rules, err := NewRuleEngine(opts.Adaptive, opts.Rules)
	if err != nil {
		return nil, err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	historySize := opts.HistorySize
	if historySize <= 0 {
		historySize = defaultHistorySize
	}

	return &Monitor{
		stages:       opts.Stages.withDefaults(),
		rules:        rules,
		historySize:  historySize,
		checkTimeout: opts.CheckTimeout,
		clock:        clk,
		logger:       log.With(zap.String("component", "monitor")),
		services:     make(map[string]ServiceConfig),
		states:       make(map[string]*serviceState),
		tasks:        make(map[string]*task),
		observers:    append([]Observer(nil), opts.Observers...),
	}, nil
}

// Stages returns the effective stage table
func (m *Monitor) Stages() StageTable {
	return m.stages
}

// AddObserver subscribes o to monitoring events
func (m *Monitor) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Register adds a service with fresh state. Registering an existing name
// replaces its config and state and restarts its monitoring task if any.
func (m *Monitor) Register(cfg ServiceConfig) error {
	if cfg.Name == "" {
		return errors.New("service name is required")
	}

	m.mu.Lock()
	old, monitored := m.tasks[cfg.Name]
	m.services[cfg.Name] = cfg
	m.states[cfg.Name] = newServiceState(m.clock.Now())
	if monitored {
		m.spawnLocked(cfg.Name)
	}
	m.mu.Unlock()

	if monitored {
		old.stop()
	}

	m.logger.Info("service registered", zap.String("service", cfg.Name), zap.Bool("restarted", monitored))
	return nil
}

// Unregister stops monitoring the service and removes all of its state.
// Unknown names are ignored.
func (m *Monitor) Unregister(name string) {
	m.mu.Lock()
	_, known := m.services[name]
	t := m.tasks[name]
	delete(m.services, name)
	delete(m.states, name)
	delete(m.tasks, name)
	observers := m.observers
	m.mu.Unlock()

	if t != nil {
		t.stop()
	}
	if !known {
		return
	}

	for _, o := range observers {
		o.OnUnregister(name)
	}
	m.logger.Info("service unregistered", zap.String("service", name))
}

// StartMonitoring spawns the monitoring goroutine for a registered service.
// It is a no-op for services that are already monitored.
func (m *Monitor) StartMonitoring(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.services[name]; !ok {
		return notRegistered(name)
	}
	if _, ok := m.tasks[name]; !ok {
		m.spawnLocked(name)
	}
	m.running = true
	return nil
}

// StartAll starts monitoring every registered service
func (m *Monitor) StartAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range m.services {
		if _, ok := m.tasks[name]; !ok {
			m.spawnLocked(name)
		}
	}
	m.running = true
}

// StopMonitoring cancels every monitoring goroutine and waits for them to exit.
// Calling it when nothing is running is safe.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = make(map[string]*task)
	m.running = false
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t *task) {
			defer wg.Done()
			t.stop()
		}(t)
	}
	wg.Wait()

	if len(tasks) > 0 {
		m.logger.Info("monitoring stopped", zap.Int("tasks", len(tasks)))
	}
}

// IsRunning reports whether monitoring has been started and not stopped
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Monitoring reports whether the named service has a monitoring goroutine
func (m *Monitor) Monitoring(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[name]
	return ok
}

// TaskCount returns the number of monitoring goroutines
func (m *Monitor) TaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Services returns the registered service names in sorted order
func (m *Monitor) Services() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns the current status of a service, or false if it is unknown
func (m *Monitor) Status(name string) (StatusRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[name]
	if !ok {
		return StatusRecord{}, false
	}
	return m.statusLocked(name, st, m.clock.Now()), true
}

// History returns a copy of the service's check history, oldest first
func (m *Monitor) History(name string) []HealthCheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[name]
	if !ok {
		return nil
	}
	return append([]HealthCheckResult(nil), st.history...)
}

// CheckNow runs one check cycle for the service synchronously
func (m *Monitor) CheckNow(ctx context.Context, name string) (HealthCheckResult, error) {
	m.mu.Lock()
	st, ok := m.states[name]
	m.mu.Unlock()
	if !ok {
		return HealthCheckResult{}, notRegistered(name)
	}

	result, _, ok := m.cycle(ctx, name, st, "")
	if !ok {
		if err := ctx.Err(); err != nil {
			return HealthCheckResult{}, err
		}
		return HealthCheckResult{}, notRegistered(name)
	}
	return result, nil
}

// Probe runs the service's check for stage once without touching its state
func (m *Monitor) Probe(ctx context.Context, name string, stage HealthStage) (HealthCheckResult, error) {
	if stage < StageInitialization || stage > StageOperational {
		return HealthCheckResult{}, fmt.Errorf("invalid stage %d", int(stage))
	}

	m.mu.Lock()
	cfg, ok := m.services[name]
	m.mu.Unlock()
	if !ok {
		return HealthCheckResult{}, notRegistered(name)
	}
	return m.execute(ctx, cfg, stage), nil
}

func (m *Monitor) spawnLocked(name string) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		runID:  uuid.New().String(),
		state:  m.states[name],
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.tasks[name] = t
	go m.run(ctx, name, t)
}

// run checks the service until ctx is cancelled. Checks never overlap.
func (m *Monitor) run(ctx context.Context, name string, t *task) {
	defer close(t.done)

	log := m.logger.With(zap.String("service", name), zap.String("run_id", t.runID))
	log.Debug("monitoring started")
	defer log.Debug("monitoring finished")

	for {
		_, interval, ok := m.cycle(ctx, name, t.state, t.runID)
		if !ok {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(interval):
		}
	}
}

func (m *Monitor) statusLocked(name string, st *serviceState, now time.Time) StatusRecord {
	rec := StatusRecord{
		Name:              name,
		Stage:             st.stage,
		FailureCount:      st.failureCount,
		FailureThreshold:  effectiveThreshold(m.stages[st.stage].MaxFailures, st.grace),
		UptimeSeconds:     now.Sub(st.startTime).Seconds(),
		GraceMultiplier:   st.grace,
		CheckInterval:     m.intervalLocked(st, now),
		StartedAt:         st.startTime,
		LastCheck:         st.lastCheck,
		LastResult:        st.lastResult(),
		ThresholdExceeded: st.thresholdExceeded,
	}
	if t, ok := m.tasks[name]; ok {
		rec.Monitoring = true
		rec.RunID = t.runID
	}
	return rec
}

func (m *Monitor) ruleEnvLocked(st *serviceState, now time.Time) RuleEnv {
	return RuleEnv{
		Stage:          st.stage.String(),
		StageIndex:     int(st.stage),
		FailureCount:   st.failureCount,
		RecentFailures: st.recentFailures(m.rules.Config().RecentWindow),
		UptimeSeconds:  now.Sub(st.startTime).Seconds(),
		StageSeconds:   now.Sub(st.stageEnteredAt).Seconds(),
		Grace:          st.grace,
	}
}

func (m *Monitor) intervalLocked(st *serviceState, now time.Time) time.Duration {
	return m.rules.Interval(m.stages[st.stage].CheckInterval, m.ruleEnvLocked(st, now))
}
