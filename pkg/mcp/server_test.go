package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mackerelio/go-osstat/loadavg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeBrosOfficial/tidewave/pkg/tier"
)

type rpcReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *ResponseError  `json:"error"`
}

func fakeStats() (*SystemStats, error) {
	cpu := 12.5
	return &SystemStats{
		Memory:  &MemoryStats{Total: 8 << 30, Used: 2 << 30, Free: 6 << 30},
		Load:    &loadavg.Stats{Loadavg1: 0.5, Loadavg5: 0.25, Loadavg15: 0.125},
		Uptime:  90 * time.Minute,
		CPUUsed: &cpu,
	}, nil
}

func newTestServer(t *testing.T, tr tier.Tier) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "log"), 0o755))
	return NewServer(nil, Options{
		Prefix:         "/tidewave",
		Version:        "test",
		Tier:           tr,
		AppLog:         filepath.Join(root, "log", "development.log"),
		JobFailuresLog: filepath.Join(root, "log", "job_failures.log"),
		ProjectRoot:    root,
		Stats:          fakeStats,
	}), root
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, rpcReply) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tidewave/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var reply rpcReply
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply), rec.Body.String())
	}
	return rec, reply
}

func callTool(t *testing.T, h http.Handler, name string, args any) (rpcReply, CallToolResult) {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	require.NoError(t, err)
	_, reply := post(t, h, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":`+string(params)+`}`)
	var res CallToolResult
	if reply.Error == nil {
		require.NoError(t, json.Unmarshal(reply.Result, &res))
	}
	return reply, res
}

func toolNames(t *testing.T, h http.Handler) []string {
	t.Helper()
	_, reply := post(t, h, `{"jsonrpc":"2.0","id":"a","method":"tools/list"}`)
	require.Nil(t, reply.Error)
	var out struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &out))
	names := make([]string, len(out.Tools))
	for i, tl := range out.Tools {
		names[i] = tl.Name
	}
	return names
}

func TestInitializeIssuesSession(t *testing.T) {
	srv, _ := newTestServer(t, tier.Full)
	rec, reply := post(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)

	require.Nil(t, reply.Error)
	_, err := uuid.Parse(rec.Header().Get(SessionHeader))
	assert.NoError(t, err)
	assert.Contains(t, string(reply.Result), ProtocolVersion)
	assert.EqualValues(t, 1, reply.ID)
}

func TestNotificationHasNoBody(t *testing.T) {
	srv, _ := newTestServer(t, tier.Full)
	rec, _ := post(t, srv, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestParseAndMethodErrors(t *testing.T) {
	srv, _ := newTestServer(t, tier.Full)

	_, reply := post(t, srv, `{not json`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeParseError, reply.Error.Code)

	_, reply = post(t, srv, `{"jsonrpc":"2.0","id":2,"method":"resources/list"}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeMethodNotFound, reply.Error.Code)

	_, reply = post(t, srv, `{"jsonrpc":"1.0","id":3,"method":"ping"}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeInvalidRequest, reply.Error.Code)
}

func TestOtherPathsAreNotFound(t *testing.T) {
	srv, _ := newTestServer(t, tier.Full)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tidewave/elsewhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tidewave/mcp", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestToolsListFollowsTier(t *testing.T) {
	full, _ := newTestServer(t, tier.Full)
	assert.Equal(t, []string{tier.OpGetLogs, tier.OpGetJobFailures, tier.OpGetSystemStats, tier.OpReadProjectFile},
		toolNames(t, full))

	ro, _ := newTestServer(t, tier.Readonly)
	assert.Equal(t, []string{tier.OpGetLogs, tier.OpGetJobFailures, tier.OpGetSystemStats}, toolNames(t, ro))

	unknown, _ := newTestServer(t, tier.Tier("admin"))
	assert.Empty(t, toolNames(t, unknown))
}

func TestCallDisallowedToolIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t, tier.Readonly)
	reply, _ := callTool(t, srv, tier.OpReadProjectFile, map[string]any{"path": "go.mod"})
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeMethodNotFound, reply.Error.Code)

	reply, _ = callTool(t, srv, "no_such_tool", nil)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeMethodNotFound, reply.Error.Code)
}

func TestGetLogs(t *testing.T) {
	srv, root := newTestServer(t, tier.Readonly)

	_, res := callTool(t, srv, tier.OpGetLogs, map[string]any{})
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "Log file not found")

	logPath := filepath.Join(root, "log", "development.log")
	content := "Started GET /\nCompleted 200 OK\nStarted POST /orders\nCompleted 500 Internal Server Error\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0o644))

	_, res = callTool(t, srv, tier.OpGetLogs, map[string]any{"tail": 2})
	assert.Equal(t, "Started POST /orders\nCompleted 500 Internal Server Error", res.Content[0].Text)

	_, res = callTool(t, srv, tier.OpGetLogs, map[string]any{"grep": "started"})
	assert.Equal(t, "Started GET /\nStarted POST /orders", res.Content[0].Text)

	_, res = callTool(t, srv, tier.OpGetLogs, map[string]any{"grep": "nomatch"})
	assert.Contains(t, res.Content[0].Text, "No matching")
}

func TestGetJobFailures(t *testing.T) {
	srv, root := newTestServer(t, tier.Full)
	content := strings.Join([]string{
		"[JOB_FAILURE] 2024-01-15T10:00:00Z RuntimeError id=1 job=MailerJob",
		"Message: smtp down",
		"[JOB_FAILURE] 2024-01-15T11:00:00Z KeyError id=2 job=ImportJob",
		"Message: missing key",
		"Backtrace:",
		"  app/jobs/import_job.rb:4",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "log", "job_failures.log"), []byte(content), 0o644))

	_, res := callTool(t, srv, tier.OpGetJobFailures, map[string]any{"limit": 5})
	require.False(t, res.IsError)
	text := res.Content[0].Text
	assert.Contains(t, text, "2 job failure(s)")
	assert.Less(t, strings.Index(text, "ImportJob"), strings.Index(text, "MailerJob"))

	_, res = callTool(t, srv, tier.OpGetJobFailures, map[string]any{"grep": "smtp"})
	assert.Contains(t, res.Content[0].Text, "1 job failure(s)")
	assert.NotContains(t, res.Content[0].Text, "ImportJob")
}

func TestGetSystemStats(t *testing.T) {
	srv, _ := newTestServer(t, tier.Readonly)
	_, res := callTool(t, srv, tier.OpGetSystemStats, nil)
	require.False(t, res.IsError)
	text := res.Content[0].Text
	assert.Contains(t, text, "Memory: 2.0 GiB used / 8.0 GiB total (25.0%)")
	assert.Contains(t, text, "CPU: 12.5%")
	assert.Contains(t, text, "Load average: 0.50 0.25 0.12")
	assert.Contains(t, text, "Uptime: 1h30m0s")
}

func TestReadProjectFile(t *testing.T) {
	srv, root := newTestServer(t, tier.Full)
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	_, res := callTool(t, srv, tier.OpReadProjectFile, map[string]any{"path": "main.go", "line_offset": 2, "count": 1})
	require.False(t, res.IsError, res.Content[0].Text)
	assert.Equal(t, "     3\tfunc main() {}", res.Content[0].Text)

	_, res = callTool(t, srv, tier.OpReadProjectFile, map[string]any{"path": "../outside.txt"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "outside the project root")

	_, res = callTool(t, srv, tier.OpReadProjectFile, map[string]any{"path": "/etc/passwd"})
	assert.True(t, res.IsError)

	_, res = callTool(t, srv, tier.OpReadProjectFile, map[string]any{})
	assert.True(t, res.IsError)
}

func TestResolveInRootRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "link")))

	_, err := resolveInRoot(root, "link")
	assert.Error(t, err)

	_, err = resolveInRoot(root, "sub/../file")
	assert.NoError(t, err)
}
