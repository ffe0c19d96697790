package monitor

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/juststeveking/stagewatch/internal/config"
)

func TestHTTPChecker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	checker := NewHTTPChecker(1 * time.Second)
	defer checker.Close()

	chk := config.Check{
		Type:           config.CheckHTTP,
		URL:            ts.URL,
		HealthEndpoint: "/health",
		ExpectedStatus: 200,
	}

	if err := checker.Check(context.Background(), chk); err != nil {
		t.Errorf("Expected check to pass, got %v", err)
	}

	// Wrong endpoint
	chk.HealthEndpoint = "/wrong"
	if err := checker.Check(context.Background(), chk); err == nil {
		t.Error("Expected check to fail for wrong endpoint")
	}

	// Wrong status code expectation
	chk.HealthEndpoint = "/health"
	chk.ExpectedStatus = 201
	err := checker.Check(context.Background(), chk)
	if err == nil || !strings.Contains(err.Error(), "expected 201, got 200") {
		t.Errorf("Expected status mismatch error, got %v", err)
	}
}

func TestHTTPCheckerWithHeadersAndAuth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Custom") != "value" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	checker := NewHTTPChecker(1 * time.Second)
	defer checker.Close()

	t.Setenv("STAGEWATCH_TEST_TOKEN", "secret-token")

	chk := config.Check{
		URL:     ts.URL,
		Headers: map[string]string{"X-Custom": "value"},
		Auth: &config.Auth{
			Type:  "bearer",
			Token: "${STAGEWATCH_TEST_TOKEN}",
		},
	}

	if err := checker.Check(context.Background(), chk); err != nil {
		t.Errorf("Expected check to pass with headers and auth, got %v", err)
	}

	chk.Auth.Token = "wrong"
	if err := checker.Check(context.Background(), chk); err == nil {
		t.Error("Expected check to fail with wrong token")
	}
}

func TestHTTPCheckerWithBasicAuth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != "testuser" || password != "testpass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	checker := NewHTTPChecker(1 * time.Second)
	defer checker.Close()

	chk := config.Check{
		URL: ts.URL,
		Auth: &config.Auth{
			Type:     "basic",
			Username: "testuser",
			Password: "testpass",
		},
	}

	if err := checker.Check(context.Background(), chk); err != nil {
		t.Errorf("Expected check to pass with basic auth, got %v", err)
	}
}

func TestHTTPCheckerJSONAssertions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","db":{"connected":true,"pool":8},"version":"1.4.2"}`))
	}))
	defer ts.Close()

	checker := NewHTTPChecker(1 * time.Second)
	defer checker.Close()

	tests := []struct {
		name       string
		assertions []config.JSONAssertion
		wantErr    bool
	}{
		{"equals string", []config.JSONAssertion{{Path: "status", Value: "ok"}}, false},
		{"equals bool", []config.JSONAssertion{{Path: "db.connected", Operator: "==", Value: true}}, false},
		{"greater than", []config.JSONAssertion{{Path: "db.pool", Operator: ">", Value: 4}}, false},
		{"less than fails", []config.JSONAssertion{{Path: "db.pool", Operator: "<", Value: 4}}, true},
		{"contains", []config.JSONAssertion{{Path: "version", Operator: "contains", Value: "1.4"}}, false},
		{"not equals", []config.JSONAssertion{{Path: "status", Operator: "!=", Value: "degraded"}}, false},
		{"missing path", []config.JSONAssertion{{Path: "cache.hits", Value: 1}}, true},
		{"unknown operator", []config.JSONAssertion{{Path: "status", Operator: "~=", Value: "ok"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chk := config.Check{URL: ts.URL, JSONAssertions: tt.assertions}
			err := checker.Check(context.Background(), chk)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTCPChecker(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	checker := NewTCPChecker(1 * time.Second)

	chk := config.Check{Type: config.CheckTCP, URL: l.Addr().String()}

	if err := checker.Check(context.Background(), chk); err != nil {
		t.Errorf("Expected check to pass, got %v", err)
	}

	// Closed port
	l.Close()
	if err := checker.Check(context.Background(), chk); err == nil {
		t.Error("Expected check to fail for closed port")
	}
}

func TestLatencyChecker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(50 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	checker := NewLatencyChecker(1 * time.Second)
	defer checker.Close()

	chk := config.Check{Type: config.CheckLatency, URL: ts.URL, LatencyThreshold: 1000}
	if err := checker.Check(context.Background(), chk); err != nil {
		t.Errorf("Expected check to pass, got %v", err)
	}

	chk.HealthEndpoint = "/slow"
	chk.LatencyThreshold = 10
	err := checker.Check(context.Background(), chk)
	if err == nil || !strings.Contains(err.Error(), "exceeds threshold") {
		t.Errorf("Expected latency error, got %v", err)
	}
}

func TestDNSChecker(t *testing.T) {
	checker := NewDNSChecker()

	chk := config.Check{Type: config.CheckDNS, URL: "http://127.0.0.1:8080/health"}
	if err := checker.Check(context.Background(), chk); err != nil {
		t.Errorf("Expected IP literal to resolve, got %v", err)
	}
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		raw, port, want string
	}{
		{"localhost:8080", "", "localhost:8080"},
		{"https://example.com/health", "443", "example.com:443"},
		{"https://example.com:8443", "443", "example.com:8443"},
		{"tcp://db.internal:5432/", "", "db.internal:5432"},
	}

	for _, tt := range tests {
		if got := hostPort(tt.raw, tt.port); got != tt.want {
			t.Errorf("hostPort(%q, %q) = %q, want %q", tt.raw, tt.port, got, tt.want)
		}
	}
}
