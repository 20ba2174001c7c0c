//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DeBrosOfficial/tidewave/pkg/config"
)

const (
	// EnvGatewayURL points the suite at a running tidewave process.
	EnvGatewayURL = "TIDEWAVE_E2E_URL"

	defaultGatewayURL = "http://127.0.0.1:4000"
)

// GetGatewayURL returns the base URL of the server under test, prefix included.
func GetGatewayURL() string {
	base := strings.TrimSuffix(os.Getenv(EnvGatewayURL), "/")
	if base == "" {
		base = defaultGatewayURL
	}
	return base + config.DefaultPrefix
}

// GetSecret returns the shared secret the server was started with. Empty
// means the server is expected to run with local_dev.
func GetSecret() string {
	return os.Getenv(config.DefaultSecretEnv)
}

// SkipIfMissingGateway skips the test if the server is not reachable.
func SkipIfMissingGateway(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, GetGatewayURL()+"/config", nil)
	if err != nil {
		t.Skip("Gateway not accessible; tests skipped")
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Skip("Gateway not accessible; tests skipped")
		return
	}
	resp.Body.Close()
}

// SkipIfNoSecret skips tests that only make sense when auth is enforced.
func SkipIfNoSecret(t *testing.T) {
	t.Helper()
	if GetSecret() == "" {
		t.Skipf("%s not set; auth tests skipped", config.DefaultSecretEnv)
	}
}

// NewHTTPClient creates an HTTP client for gateway requests
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// HTTPRequest is a helper for making authenticated HTTP requests
type HTTPRequest struct {
	Method   string
	URL      string
	Body     interface{}
	Headers  map[string]string
	Timeout  time.Duration
	SkipAuth bool
}

// Do executes an HTTP request and returns the response body
func (hr *HTTPRequest) Do(ctx context.Context) ([]byte, *http.Response, error) {
	if hr.Timeout == 0 {
		hr.Timeout = 30 * time.Second
	}

	var reqBody io.Reader
	switch b := hr.Body.(type) {
	case nil:
	case []byte:
		reqBody = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, hr.Method, hr.URL, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range hr.Headers {
		req.Header.Set(k, v)
	}
	if hr.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if !hr.SkipAuth {
		if secret := GetSecret(); secret != "" {
			req.Header.Set("Authorization", "Bearer "+secret)
		}
	}

	resp, err := NewHTTPClient(hr.Timeout).Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to read response: %w", err)
	}
	return respBody, resp, nil
}

// DecodeJSON unmarshals response body into v
func DecodeJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
