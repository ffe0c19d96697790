package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juststeveking/stagewatch/internal/logger"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeout       = "5s"
	DefaultRetryAttempts = 1
	DefaultHistorySize   = 100
	DefaultMetricsListen = ":9469"
)

// Check types understood by the monitor
const (
	CheckHTTP      = "http"
	CheckTCP       = "tcp"
	CheckTLS       = "tls"
	CheckDNS       = "dns"
	CheckLatency   = "latency"
	CheckProcess   = "process"
	CheckContainer = "container"
)

// EnvConfigPath overrides the default config location when set
const EnvConfigPath = "STAGEWATCH_CONFIG"

// Config represents the stagewatch configuration
type Config struct {
	Timeout       string        `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	HistorySize   int           `yaml:"history_size,omitempty"`
	Stages        Stages        `yaml:"stages,omitempty"`
	Adaptive      Adaptive      `yaml:"adaptive,omitempty"`
	Rules         []Rule        `yaml:"rules,omitempty"`
	Logging       logger.Config `yaml:"logging,omitempty"`
	Metrics       Metrics       `yaml:"metrics,omitempty"`
	Notifications Notifications `yaml:"notifications,omitempty"`
	Services      []Service     `yaml:"services"`
}

// Stage overrides the timing of one monitoring stage. Empty fields keep the defaults.
type Stage struct {
	Duration      string `yaml:"duration,omitempty"`
	CheckInterval string `yaml:"check_interval,omitempty"`
	MaxFailures   int    `yaml:"max_failures,omitempty"`
}

// Stages holds per-stage overrides in progression order
type Stages struct {
	Initialization Stage `yaml:"initialization,omitempty"`
	Startup        Stage `yaml:"startup,omitempty"`
	Warming        Stage `yaml:"warming,omitempty"`
	Operational    Stage `yaml:"operational,omitempty"`
}

// Adaptive tunes the interval and grace rules
type Adaptive struct {
	FailureThreshold int     `yaml:"failure_threshold,omitempty"`
	RecentWindow     int     `yaml:"recent_window,omitempty"`
	SlowStartAfter   string  `yaml:"slow_start_after,omitempty"`
	SlowStartGrace   float64 `yaml:"slow_start_grace,omitempty"`
}

// Rule is an operator-defined interval rule evaluated with expr
type Rule struct {
	Name       string  `yaml:"name"`
	When       string  `yaml:"when"`       // e.g. "Stage == 'warming' && RecentFailures > 2"
	Multiplier float64 `yaml:"multiplier"` // applied to the stage interval when When is true
}

// Metrics configures the Prometheus endpoint of the watch command
type Metrics struct {
	Listen string `yaml:"listen,omitempty"`
}

// Notifications toggles desktop alerts
type Notifications struct {
	Enabled bool `yaml:"enabled"`
}

// Auth represents authentication configuration for a check
type Auth struct {
	Type     string `yaml:"type,omitempty"` // "bearer", "basic", or empty
	Token    string `yaml:"token,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// JSONAssertion represents a JSON path assertion
type JSONAssertion struct {
	Path     string      `yaml:"path"`     // JSON path (e.g., "status.database" or "data[0].healthy")
	Value    interface{} `yaml:"value"`    // Expected value to match
	Operator string      `yaml:"operator"` // "==", "!=", ">", "<", ">=", "<=", "contains"
}

// Check describes a single probe used for one stage
type Check struct {
	Type             string            `yaml:"type"`
	URL              string            `yaml:"url,omitempty"`
	HealthEndpoint   string            `yaml:"health_endpoint,omitempty"`
	Method           string            `yaml:"method,omitempty"`
	ExpectedStatus   int               `yaml:"expected_status,omitempty"`
	Headers          map[string]string `yaml:"headers,omitempty"`
	Auth             *Auth             `yaml:"auth,omitempty"`
	JSONAssertions   []JSONAssertion   `yaml:"json_assertions,omitempty"`
	TLSWarningDays   int               `yaml:"tls_warning_days,omitempty"`
	LatencyThreshold int               `yaml:"latency_threshold_ms,omitempty"`
	PID              int               `yaml:"pid,omitempty"`
	Container        string            `yaml:"container,omitempty"`
}

// Service represents a service to monitor. Each check belongs to one stage.
type Service struct {
	Name    string `yaml:"name"`
	Process *Check `yaml:"process,omitempty"`
	Basic   *Check `yaml:"basic,omitempty"`
	Ready   *Check `yaml:"ready,omitempty"`
	Full    *Check `yaml:"full,omitempty"`
}

// Checks returns the service checks in stage order. Missing checks are nil.
func (s Service) Checks() [4]*Check {
	return [4]*Check{s.Process, s.Basic, s.Ready, s.Full}
}

// SetCheck sets the check for the stage at index i (0 is initialization)
func (s *Service) SetCheck(i int, c *Check) error {
	switch i {
	case 0:
		s.Process = c
	case 1:
		s.Basic = c
	case 2:
		s.Ready = c
	case 3:
		s.Full = c
	default:
		return fmt.Errorf("invalid stage index %d", i)
	}
	return nil
}

// Summary describes the check target in one line, e.g. "tcp db:5432"
func (c *Check) Summary() string {
	if c == nil {
		return "-"
	}
	switch typ := c.typeOrDefault(); typ {
	case CheckProcess:
		return fmt.Sprintf("process pid %d", c.PID)
	case CheckContainer:
		return "container " + c.Container
	default:
		return typ + " " + c.URL + c.HealthEndpoint
	}
}

// GetConfigPath returns the path to the global config file
func GetConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "stagewatch", "config.yml"), nil
}

// InitConfig creates the config directory and file with default content
func InitConfig(force bool) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig reads and parses the config file
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom reads and parses the config file at path
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes the config back to the file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// AddService adds a new service to the config
func (c *Config) AddService(service Service) error {
	if service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.FindService(service.Name) != nil {
		return fmt.Errorf("service with name '%s' already exists", service.Name)
	}

	c.Services = append(c.Services, service)
	return nil
}

// RemoveService removes a service by name from the config
func (c *Config) RemoveService(name string) error {
	for i, s := range c.Services {
		if s.Name == name {
			c.Services = append(c.Services[:i], c.Services[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("service '%s' not found", name)
}

// FindService returns the named service or nil
func (c *Config) FindService(name string) *Service {
	for i := range c.Services {
		if c.Services[i].Name == name {
			return &c.Services[i]
		}
	}
	return nil
}

// TimeoutDuration returns the per-check timeout
func (c *Config) TimeoutDuration() (time.Duration, error) {
	return ParseDuration(c.Timeout, 5*time.Second)
}

// Validate reports the first structural problem in the config
func (c *Config) Validate() error {
	if _, err := c.TimeoutDuration(); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}

	stages := []struct {
		name  string
		stage Stage
	}{
		{"initialization", c.Stages.Initialization},
		{"startup", c.Stages.Startup},
		{"warming", c.Stages.Warming},
		{"operational", c.Stages.Operational},
	}
	for _, s := range stages {
		if _, err := ParseDuration(s.stage.Duration, 0); err != nil {
			return fmt.Errorf("stages.%s.duration: %w", s.name, err)
		}
		if _, err := ParseDuration(s.stage.CheckInterval, 0); err != nil {
			return fmt.Errorf("stages.%s.check_interval: %w", s.name, err)
		}
		if s.stage.MaxFailures < 0 {
			return fmt.Errorf("stages.%s.max_failures must not be negative", s.name)
		}
	}

	if _, err := ParseDuration(c.Adaptive.SlowStartAfter, 0); err != nil {
		return fmt.Errorf("adaptive.slow_start_after: %w", err)
	}
	if c.Adaptive.SlowStartGrace != 0 && c.Adaptive.SlowStartGrace < 1 {
		return fmt.Errorf("adaptive.slow_start_grace must be >= 1")
	}

	for _, r := range c.Rules {
		if strings.TrimSpace(r.When) == "" {
			return fmt.Errorf("rule '%s' has no condition", r.Name)
		}
		if r.Multiplier < 1 {
			return fmt.Errorf("rule '%s' multiplier must be >= 1", r.Name)
		}
	}

	seen := make(map[string]bool)
	for _, s := range c.Services {
		if s.Name == "" {
			return fmt.Errorf("service without a name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate service '%s'", s.Name)
		}
		seen[s.Name] = true

		for _, chk := range s.Checks() {
			if chk == nil {
				continue
			}
			if err := chk.Validate(); err != nil {
				return fmt.Errorf("service '%s': %w", s.Name, err)
			}
		}
	}

	return nil
}

// Validate checks that the fields required by the check type are present
func (c *Check) Validate() error {
	switch strings.ToLower(c.Type) {
	case CheckHTTP, CheckTCP, CheckTLS, CheckDNS, CheckLatency, "":
		if c.URL == "" {
			return fmt.Errorf("%s check requires a url", c.typeOrDefault())
		}
	case CheckProcess:
		if c.PID <= 0 {
			return fmt.Errorf("process check requires a pid")
		}
	case CheckContainer:
		if c.Container == "" {
			return fmt.Errorf("container check requires a container id or name")
		}
	default:
		return fmt.Errorf("unknown check type: %s", c.Type)
	}
	return nil
}

func (c *Check) typeOrDefault() string {
	if c.Type == "" {
		return CheckHTTP
	}
	return strings.ToLower(c.Type)
}

// ParseDuration parses s, returning fallback when s is empty
func ParseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// getDefaultConfig returns the default configuration as YAML
func getDefaultConfig() string {
	return fmt.Sprintf(`# stagewatch configuration
timeout: %s
retry_attempts: %d
history_size: %d

# Services move through four stages as their uptime grows.
stages:
  initialization: {duration: 30s, check_interval: 2s, max_failures: 15}
  startup:        {duration: 60s, check_interval: 5s, max_failures: 10}
  warming:        {duration: 90s, check_interval: 10s, max_failures: 5}
  operational:    {check_interval: 30s, max_failures: 3}

adaptive:
  failure_threshold: 5
  recent_window: 10
  slow_start_after: 60s
  slow_start_grace: 1.5

metrics:
  listen: "%s"

notifications:
  enabled: false

services:
  - name: example-api
    basic:
      type: tcp
      url: localhost:8080
    ready:
      type: http
      url: http://localhost:8080
      health_endpoint: /ready
    full:
      type: http
      url: http://localhost:8080
      health_endpoint: /health
      expected_status: 200
`, DefaultTimeout, DefaultRetryAttempts, DefaultHistorySize, DefaultMetricsListen)
}

// ResolveEnv replaces environment variable placeholders with actual values
// Supports ${VAR_NAME} syntax
func ResolveEnv(value string) string {
	return os.ExpandEnv(strings.NewReplacer(
		"${", "$",
		"}", "",
	).Replace(value))
}
