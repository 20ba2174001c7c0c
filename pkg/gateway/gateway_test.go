package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeBrosOfficial/tidewave/pkg/config"
	"github.com/DeBrosOfficial/tidewave/pkg/gateway/ctxkeys"
	"github.com/DeBrosOfficial/tidewave/pkg/shell"
	"github.com/DeBrosOfficial/tidewave/pkg/tier"
)

const (
	testSecretEnv = "TIDEWAVE_GATEWAY_TEST_SECRET"
	testSecret    = "s3cret-token"
)

// framed sets X-Frame-Options like a typical web framework would.
func framed(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(FrameOptionsHeader, "SAMEORIGIN")
		w.Header().Set("X-Handled-Path", r.URL.Path)
		_, _ = io.WriteString(w, body)
	}
}

type gatewayOpt func(*config.Config)

func newGateway(t *testing.T, delegate http.Handler, opts ...gatewayOpt) *Gateway {
	t.Helper()
	t.Setenv(testSecretEnv, testSecret)
	cfg := config.DefaultConfig()
	cfg.SecretEnv = testSecretEnv
	cfg.ProjectName = "shop"
	cfg.Team = map[string]string{"id": "acme"}
	cfg.ProjectRoot = t.TempDir()
	for _, o := range opts {
		o(cfg)
	}
	if delegate == nil {
		delegate = framed("delegate")
	}
	return New(nil, cfg, framed("downstream"), delegate)
}

func request(method, path, remote, token string, body io.Reader) *http.Request {
	r := httptest.NewRequest(method, path, body)
	r.RemoteAddr = remote
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func serve(g http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, r)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestPassThroughStripsFrameOptions(t *testing.T) {
	g := newGateway(t, nil)
	// Out of scope: no auth, no origin check.
	rec := serve(g, request(http.MethodGet, "/products", "203.0.113.9:4000", "", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "downstream", rec.Body.String())
	assert.Empty(t, rec.Header().Get(FrameOptionsHeader))
	assert.Equal(t, "/products", rec.Header().Get("X-Handled-Path"))
}

func TestPrefixBoundary(t *testing.T) {
	g := newGateway(t, nil)
	rec := serve(g, request(http.MethodGet, "/tidewavex/config", "127.0.0.1:1", "", nil))
	assert.Equal(t, "downstream", rec.Body.String())
}

func TestStripsHeaderWhenHandlerWritesNothing(t *testing.T) {
	t.Setenv(testSecretEnv, testSecret)
	cfg := config.DefaultConfig()
	silent := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(FrameOptionsHeader, "DENY")
	})
	g := New(nil, cfg, silent, nil)

	rec := serve(g, request(http.MethodGet, "/", "127.0.0.1:1", "", nil))
	assert.Empty(t, rec.Result().Header.Get(FrameOptionsHeader))
}

func TestDelegateReceivesInScopeRequests(t *testing.T) {
	var gotPath, gotID string
	delegate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotID = ctxkeys.RequestID(r.Context())
		framed("delegate")(w, r)
	})
	g := newGateway(t, delegate)

	r := request(http.MethodPost, "/tidewave/mcp", "127.0.0.1:1", testSecret, strings.NewReader("{}"))
	r.Header.Set(RequestIDHeader, "abc-123")
	rec := serve(g, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "delegate", rec.Body.String())
	assert.Equal(t, "/tidewave/mcp", gotPath)
	assert.Equal(t, "abc-123", gotID)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.Empty(t, rec.Header().Get(FrameOptionsHeader))
}

func TestWrongMethodOnDirectRouteGoesToDelegate(t *testing.T) {
	g := newGateway(t, nil)
	rec := serve(g, request(http.MethodGet, "/tidewave/shell", "127.0.0.1:1", testSecret, nil))
	assert.Equal(t, "delegate", rec.Body.String())
}

func TestDelegatePanicIsRecovered(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	g := newGateway(t, boom)
	rec := serve(g, request(http.MethodGet, "/tidewave/anything", "127.0.0.1:1", testSecret, nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthentication(t *testing.T) {
	g := newGateway(t, nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"correct token", "Bearer " + testSecret, http.StatusOK},
		{"lowercase scheme", "bearer " + testSecret, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"token prefix", "Bearer " + testSecret[:4], http.StatusUnauthorized},
		{"wrong scheme", "Basic " + testSecret, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := request(http.MethodGet, "/tidewave/config", "127.0.0.1:1", "", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := serve(g, r)
			require.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusUnauthorized {
				return
			}
			body := decodeJSON(t, rec)
			assert.Equal(t, "Unauthorized", body["error"])
			assert.Contains(t, body["hint"], testSecretEnv)
			assert.NotEmpty(t, body["request_id"])
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestAuthenticationWithoutConfiguredSecret(t *testing.T) {
	g := newGateway(t, nil)
	g.secret = ""
	rec := serve(g, request(http.MethodGet, "/tidewave/config", "127.0.0.1:1", "anything", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLocalDevBypassesAuth(t *testing.T) {
	g := newGateway(t, nil, func(c *config.Config) { c.LocalDev = true })
	rec := serve(g, request(http.MethodGet, "/tidewave/config", "127.0.0.1:1", "", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOriginCheck(t *testing.T) {
	g := newGateway(t, nil)

	for _, remote := range []string{"127.0.0.1:5000", "127.8.9.10:5000", "[::1]:5000", "[::ffff:127.0.0.1]:5000"} {
		rec := serve(g, request(http.MethodGet, "/tidewave/config", remote, testSecret, nil))
		assert.Equal(t, http.StatusOK, rec.Code, remote)
	}

	for _, remote := range []string{"192.168.1.100:5000", "[2001:db8::1]:5000", "garbage"} {
		rec := serve(g, request(http.MethodGet, "/tidewave/config", remote, testSecret, nil))
		require.Equal(t, http.StatusForbidden, rec.Code, remote)
		body := decodeJSON(t, rec)
		assert.Equal(t, "Forbidden", body["error"])
		assert.Contains(t, body["message"], "allow_remote_access")
	}
}

func TestOriginCheckIgnoresForwardingHeaders(t *testing.T) {
	g := newGateway(t, nil)
	r := request(http.MethodGet, "/tidewave/config", "192.168.1.100:5000", testSecret, nil)
	r.Header.Set("X-Forwarded-For", "127.0.0.1")
	assert.Equal(t, http.StatusForbidden, serve(g, r).Code)
}

func TestAllowRemoteAccess(t *testing.T) {
	g := newGateway(t, nil, func(c *config.Config) { c.AllowRemoteAccess = true })
	rec := serve(g, request(http.MethodGet, "/tidewave/config", "192.168.1.100:5000", testSecret, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthCheckedBeforeOrigin(t *testing.T) {
	g := newGateway(t, nil)
	rec := serve(g, request(http.MethodGet, "/tidewave/config", "192.168.1.100:5000", "", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfigEndpoint(t *testing.T) {
	g := newGateway(t, nil, func(c *config.Config) { c.Tier = tier.Readonly })
	r := request(http.MethodGet, "/tidewave/config", "127.0.0.1:1", testSecret, nil)
	r.Header.Set(RequestIDHeader, "req-42")
	rec := serve(g, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeJSON(t, rec)
	assert.Equal(t, "shop", body["project_name"])
	assert.Equal(t, "go", body["framework_type"])
	assert.Equal(t, Version, body["tidewave_version"])
	assert.Equal(t, map[string]any{"id": "acme"}, body["team"])
	assert.Equal(t, "readonly", body["mode"])
	assert.Equal(t, "req-42", body["request_id"])
}

func TestGeneratedRequestID(t *testing.T) {
	g := newGateway(t, nil)
	r := request(http.MethodGet, "/tidewave/config", "127.0.0.1:1", testSecret, nil)
	r.Header.Set(RequestIDHeader, "has spaces in it")
	rec := serve(g, r)

	id := rec.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, decodeJSON(t, rec)["request_id"])
}

func shellRequest(body string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	return request(http.MethodPost, "/tidewave/shell", "127.0.0.1:1", testSecret, rd)
}

func TestShellValidation(t *testing.T) {
	g := newGateway(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", shell.MsgBodyRequired},
		{"blank", "   \n", shell.MsgBodyRequired},
		{"not json", "echo hi", shell.MsgInvalidJSON},
		{"no command", `{"cmd":["ls"]}`, shell.MsgCommandRequired},
		{"empty command", `{"command":[]}`, shell.MsgCommandRequired},
		{"command not array", `{"command":"ls"}`, shell.MsgCommandRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(g, shellRequest(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
		})
	}
}

func TestShellSafetyBlock(t *testing.T) {
	g := newGateway(t, nil)
	rec := serve(g, shellRequest(`{"command":["rm","-rf","/"]}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, decodeJSON(t, rec)["message"], "safety")
}

func TestShellRequiresFullTier(t *testing.T) {
	for _, tr := range []tier.Tier{tier.Readonly, tier.Local, tier.Tier("bogus")} {
		g := newGateway(t, nil, func(c *config.Config) { c.Tier = tr })
		rec := serve(g, shellRequest(`{"command":["echo","hi"]}`))
		require.Equal(t, http.StatusForbidden, rec.Code, tr)
		body := decodeJSON(t, rec)
		assert.Equal(t, "Forbidden", body["error"])
		assert.Contains(t, body["message"], `"full"`)
	}
}

func TestShellStreamsFrames(t *testing.T) {
	g := newGateway(t, nil)
	srv := httptest.NewServer(g)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/tidewave/shell",
		bytes.NewBufferString(`{"command":["sh","-c","echo hi"]}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ShellContentType, resp.Header.Get("Content-Type"))
	assert.Empty(t, resp.Header.Get(FrameOptionsHeader))

	var out bytes.Buffer
	st, err := shell.Copy(&out, resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out.String())
	assert.Equal(t, 0, st.Status)
}

func TestShellBodyTooLarge(t *testing.T) {
	g := newGateway(t, nil, func(c *config.Config) { c.Shell.MaxBodyBytes = 16 })
	rec := serve(g, shellRequest(`{"command":["echo","this is far too long"]}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestShellBodyReadFailure(t *testing.T) {
	g := newGateway(t, nil)
	r := request(http.MethodPost, "/tidewave/shell", "127.0.0.1:5555", testSecret, iotest.ErrReader(io.ErrUnexpectedEOF))
	rec := serve(g, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Failed to read request body", rec.Body.String())
}
