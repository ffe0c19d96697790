package monitor

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/tidwall/gjson"
)

// Checker performs one kind of configured probe
type Checker interface {
	Check(ctx context.Context, check config.Check) error
}

// HTTPChecker performs HTTP-based health checks
type HTTPChecker struct {
	client *http.Client
}

// NewHTTPChecker creates a new HTTP checker
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse // Don't follow redirects
			},
		},
	}
}

// Close closes the HTTP client's connection pool
func (h *HTTPChecker) Close() {
	if h.client != nil {
		h.client.CloseIdleConnections()
	}
}

// Check performs an HTTP health check
func (h *HTTPChecker) Check(ctx context.Context, check config.Check) error {
	req, err := newCheckRequest(ctx, check)
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	expectedStatus := check.ExpectedStatus
	if expectedStatus == 0 {
		expectedStatus = http.StatusOK
	}
	if resp.StatusCode != expectedStatus {
		return fmt.Errorf("expected %d, got %d", expectedStatus, resp.StatusCode)
	}

	if len(check.JSONAssertions) > 0 {
		return validateJSONAssertions(string(body), check.JSONAssertions)
	}
	return nil
}

// newCheckRequest builds the request with headers and auth applied
func newCheckRequest(ctx context.Context, check config.Check) (*http.Request, error) {
	url := check.URL
	if check.HealthEndpoint != "" {
		url = strings.TrimRight(url, "/") + check.HealthEndpoint
	}

	method := check.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range check.Headers {
		req.Header.Set(key, config.ResolveEnv(value))
	}

	if check.Auth != nil {
		switch strings.ToLower(check.Auth.Type) {
		case "bearer":
			if token := config.ResolveEnv(check.Auth.Token); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		case "basic":
			username := config.ResolveEnv(check.Auth.Username)
			password := config.ResolveEnv(check.Auth.Password)
			if username != "" && password != "" {
				req.SetBasicAuth(username, password)
			}
		}
	}

	return req, nil
}

// validateJSONAssertions checks JSON assertions against the response body
func validateJSONAssertions(body string, assertions []config.JSONAssertion) error {
	for _, assertion := range assertions {
		value := gjson.Get(body, assertion.Path)

		if !value.Exists() {
			return fmt.Errorf("JSON path '%s' not found in response", assertion.Path)
		}

		if !compareValue(value, assertion.Value, assertion.Operator) {
			return fmt.Errorf("JSON assertion failed: %s %s %v, got %v", assertion.Path, assertion.Operator, assertion.Value, value.Value())
		}
	}
	return nil
}

// compareValue compares a gjson.Result with an expected value using the operator
func compareValue(actual gjson.Result, expected interface{}, operator string) bool {
	switch strings.ToLower(operator) {
	case "==", "equals", "":
		return jsonValueEquals(actual, expected)
	case "!=", "not_equals":
		return !jsonValueEquals(actual, expected)
	case ">", "<", ">=", "<=":
		v, ok := toFloat(expected)
		if !ok {
			return false
		}
		a := actual.Float()
		switch operator {
		case ">":
			return a > v
		case "<":
			return a < v
		case ">=":
			return a >= v
		default:
			return a <= v
		}
	case "contains":
		if v, ok := expected.(string); ok {
			return strings.Contains(actual.String(), v)
		}
		return false
	default:
		return false
	}
}

func jsonValueEquals(actual gjson.Result, expected interface{}) bool {
	switch v := expected.(type) {
	case string:
		return actual.String() == v
	case bool:
		return actual.Bool() == v
	case nil:
		return actual.Type == gjson.Null
	default:
		f, ok := toFloat(expected)
		return ok && actual.Float() == f
	}
}

// toFloat accepts the numeric types yaml.v3 decodes into
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// TCPChecker performs TCP connection checks
type TCPChecker struct {
	timeout time.Duration
}

// NewTCPChecker creates a new TCP checker
func NewTCPChecker(timeout time.Duration) *TCPChecker {
	return &TCPChecker{timeout: timeout}
}

// Check verifies the address accepts TCP connections
func (t *TCPChecker) Check(ctx context.Context, check config.Check) error {
	dialer := &net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostPort(check.URL, ""))
	if err != nil {
		return fmt.Errorf("connection refused: %w", err)
	}
	return conn.Close()
}

// TLSChecker checks TLS certificate expiry
type TLSChecker struct {
	timeout time.Duration
}

// NewTLSChecker creates a new TLS checker
func NewTLSChecker(timeout time.Duration) *TLSChecker {
	return &TLSChecker{timeout: timeout}
}

// Check performs a TLS certificate expiry check
func (t *TLSChecker) Check(ctx context.Context, check config.Check) error {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.timeout},
		Config:    &tls.Config{MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", hostPort(check.URL, "443"))
	if err != nil {
		return fmt.Errorf("TLS connection failed: %w", err)
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return fmt.Errorf("no certificates found")
	}

	cert := certs[0]
	if time.Now().After(cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", cert.NotAfter.Format("2006-01-02"))
	}

	warningDays := check.TLSWarningDays
	if warningDays == 0 {
		warningDays = 30
	}
	expiryDays := int(time.Until(cert.NotAfter).Hours() / 24)
	if expiryDays < warningDays {
		return fmt.Errorf("certificate expires in %d days (warning threshold: %d days)", expiryDays, warningDays)
	}
	return nil
}

// DNSChecker checks DNS resolution
type DNSChecker struct {
	resolver *net.Resolver
}

// NewDNSChecker creates a new DNS checker
func NewDNSChecker() *DNSChecker {
	return &DNSChecker{resolver: &net.Resolver{PreferGo: true}}
}

// Check resolves the host part of the check URL
func (d *DNSChecker) Check(ctx context.Context, check config.Check) error {
	host, _, err := net.SplitHostPort(hostPort(check.URL, "0"))
	if err != nil {
		return fmt.Errorf("invalid host %q: %w", check.URL, err)
	}

	ips, err := d.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("DNS resolution failed: %w", err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("no IP addresses found for %s", host)
	}
	return nil
}

// LatencyChecker fails when a request takes longer than the threshold
type LatencyChecker struct {
	client *http.Client
}

// NewLatencyChecker creates a new latency checker
func NewLatencyChecker(timeout time.Duration) *LatencyChecker {
	return &LatencyChecker{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Close closes the HTTP client
func (l *LatencyChecker) Close() {
	if l.client != nil {
		l.client.CloseIdleConnections()
	}
}

// Check performs an HTTP latency check
func (l *LatencyChecker) Check(ctx context.Context, check config.Check) error {
	req, err := newCheckRequest(ctx, check)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := l.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	thresholdMs := int64(check.LatencyThreshold)
	if thresholdMs == 0 {
		thresholdMs = 5000
	}
	if elapsed.Milliseconds() > thresholdMs {
		return fmt.Errorf("latency %dms exceeds threshold of %dms", elapsed.Milliseconds(), thresholdMs)
	}
	return nil
}

// hostPort strips any scheme and path from raw and adds defaultPort when
// no port is present
func hostPort(raw, defaultPort string) string {
	host := raw
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	if defaultPort != "" {
		if _, _, err := net.SplitHostPort(host); err != nil {
			host = net.JoinHostPort(host, defaultPort)
		}
	}
	return host
}
