package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigOperations(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv(EnvConfigPath, "")

	// Test InitConfig
	if err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	configPath := filepath.Join(tmpHome, ".config", "stagewatch", "config.yml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	if err := InitConfig(false); err == nil {
		t.Error("Expected InitConfig to refuse overwriting without force")
	}

	// Test LoadConfig
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Stages.Startup.MaxFailures != 10 {
		t.Errorf("Expected startup max_failures 10, got %d", cfg.Stages.Startup.MaxFailures)
	}

	// Test AddService
	newService := Service{
		Name:    "worker",
		Process: &Check{Type: CheckProcess, PID: 1},
	}
	if err := cfg.AddService(newService); err != nil {
		t.Errorf("AddService failed: %v", err)
	}
	if err := cfg.AddService(newService); err == nil {
		t.Error("Expected duplicate AddService to fail")
	}

	if len(cfg.Services) != 2 { // Default config has 1 service
		t.Errorf("Expected 2 services, got %d", len(cfg.Services))
	}

	// Test SaveConfig
	if err := SaveConfig(cfg); err != nil {
		t.Errorf("SaveConfig failed: %v", err)
	}

	cfg2, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg2.Services) != 2 {
		t.Errorf("Expected 2 services after reload, got %d", len(cfg2.Services))
	}
	if svc := cfg2.FindService("worker"); svc == nil || svc.Process == nil || svc.Process.PID != 1 {
		t.Errorf("Expected worker process check to survive reload, got %+v", svc)
	}

	// Test RemoveService
	if err := cfg.RemoveService("worker"); err != nil {
		t.Errorf("RemoveService failed: %v", err)
	}
	if len(cfg.Services) != 1 {
		t.Errorf("Expected 1 service after remove, got %d", len(cfg.Services))
	}
	if err := cfg.RemoveService("worker"); err == nil {
		t.Error("Expected removing a missing service to fail")
	}
}

func TestConfigPathOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	t.Setenv(EnvConfigPath, path)

	got, err := GetConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Errorf("Expected %s, got %s", path, got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{Services: []Service{{
				Name:  "api",
				Basic: &Check{Type: CheckTCP, URL: "localhost:80"},
			}}},
		},
		{
			name:    "bad timeout",
			cfg:     Config{Timeout: "soon"},
			wantErr: true,
		},
		{
			name:    "bad stage interval",
			cfg:     Config{Stages: Stages{Warming: Stage{CheckInterval: "-1s"}}},
			wantErr: true,
		},
		{
			name:    "duplicate service",
			cfg:     Config{Services: []Service{{Name: "a"}, {Name: "a"}}},
			wantErr: true,
		},
		{
			name:    "unknown check type",
			cfg:     Config{Services: []Service{{Name: "a", Full: &Check{Type: "ftp", URL: "x"}}}},
			wantErr: true,
		},
		{
			name:    "process without pid",
			cfg:     Config{Services: []Service{{Name: "a", Process: &Check{Type: CheckProcess}}}},
			wantErr: true,
		},
		{
			name:    "container without id",
			cfg:     Config{Services: []Service{{Name: "a", Process: &Check{Type: CheckContainer}}}},
			wantErr: true,
		},
		{
			name:    "grace below one",
			cfg:     Config{Adaptive: Adaptive{SlowStartGrace: 0.5}},
			wantErr: true,
		},
		{
			name:    "rule without condition",
			cfg:     Config{Rules: []Rule{{Name: "r", Multiplier: 2}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("", 3*time.Second)
	if err != nil || d != 3*time.Second {
		t.Errorf("Expected fallback 3s, got %v (%v)", d, err)
	}

	d, err = ParseDuration("250ms", 0)
	if err != nil || d != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v (%v)", d, err)
	}

	if _, err := ParseDuration("later", 0); err == nil {
		t.Error("Expected error for invalid duration")
	}
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "world")

	val := ResolveEnv("hello ${TEST_VAR}")
	if val != "hello world" {
		t.Errorf("Expected 'hello world', got '%s'", val)
	}
}

func TestServiceSetCheck(t *testing.T) {
	var svc Service
	chk := &Check{Type: CheckTCP, URL: "db:5432"}

	if err := svc.SetCheck(2, chk); err != nil {
		t.Fatalf("SetCheck() error = %v", err)
	}
	if svc.Ready != chk {
		t.Error("Expected check in the warming slot")
	}
	if got := svc.Checks()[2].Summary(); got != "tcp db:5432" {
		t.Errorf("Summary() = %q", got)
	}
	if err := svc.SetCheck(4, chk); err == nil {
		t.Error("Expected error for out of range stage")
	}

	var missing *Check
	if got := missing.Summary(); got != "-" {
		t.Errorf("Summary() of nil check = %q", got)
	}
	if got := (&Check{Type: CheckProcess, PID: 42}).Summary(); got != "process pid 42" {
		t.Errorf("Summary() = %q", got)
	}
}
