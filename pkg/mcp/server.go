// Package mcp serves the gateway's default delegate: a JSON-RPC 2.0 endpoint
// exposing introspection tools filtered by capability tier.
package mcp

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/gateway/ctxkeys"
	"github.com/DeBrosOfficial/tidewave/pkg/httputil"
	"github.com/DeBrosOfficial/tidewave/pkg/logging"
	"github.com/DeBrosOfficial/tidewave/pkg/logtail"
	"github.com/DeBrosOfficial/tidewave/pkg/tier"
)

// SessionHeader carries the session id issued by initialize.
const SessionHeader = "Mcp-Session-Id"

// Options configures a Server.
type Options struct {
	Prefix         string
	ServerName     string
	Version        string
	Tier           tier.Tier
	AppLog         string
	JobFailuresLog string
	ProjectRoot    string
	MaxBodyBytes   int64

	// Stats overrides the host statistics source; nil reads the OS.
	Stats StatsFunc
}

// Server answers JSON-RPC requests on <prefix>/mcp.
type Server struct {
	opts   Options
	logger *logging.ColoredLogger
	tools  map[string]toolEntry
	tailer *logtail.Tailer
	since  *logtail.SinceParser
	router chi.Router
}

// NewServer builds the server and its tool table.
func NewServer(logger *logging.ColoredLogger, opts Options) *Server {
	logger = logging.OrNop(logger)
	if opts.ServerName == "" {
		opts.ServerName = "tidewave"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Stats == nil {
		opts.Stats = ReadSystemStats
	}
	s := &Server{
		opts:   opts,
		logger: logger,
		tailer: logtail.NewTailer(logger),
		since:  logtail.NewSinceParser(logger),
	}
	s.tools = s.buildTools()

	r := chi.NewRouter()
	r.Post(strings.TrimSuffix(opts.Prefix, "/")+"/mcp", s.handleRPC)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Tools returns the definitions visible at the configured tier.
func (s *Server) Tools() []Tool {
	ops := tier.Filter(s.opts.Tier, s.declared(), s.logger)
	out := make([]Tool, 0, len(ops))
	for _, op := range ops {
		out = append(out, s.tools[op.Name].def)
	}
	return out
}

// declared is the operation table restricted to what this server implements.
func (s *Server) declared() []tier.Operation {
	ops := make([]tier.Operation, 0, len(tier.Operations))
	for _, op := range tier.Operations {
		if _, ok := s.tools[op.Name]; ok {
			ops = append(ops, op)
		}
	}
	return ops
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r, s.opts.MaxBodyBytes)
	if err != nil {
		httputil.WriteJSON(w, http.StatusOK, rpcError(nil, CodeInvalidRequest, err.Error()))
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSON(w, http.StatusOK, rpcError(nil, CodeParseError, "Parse error"))
		return
	}

	// Notifications get no response body.
	if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if req.Method == "initialize" {
		w.Header().Set(SessionHeader, uuid.NewString())
	}
	httputil.WriteJSON(w, http.StatusOK, s.handleRequest(r, req))
}

func (s *Server) handleRequest(r *http.Request, req JSONRPCRequest) JSONRPCResponse {
	fields := append(ctxkeys.LogFields(r.Context()), zap.String("method", req.Method))
	s.logger.ComponentDebug(logging.ComponentTools, "rpc request", fields...)

	if req.JSONRPC != "2.0" {
		return rpcError(req.ID, CodeInvalidRequest, "Invalid Request")
	}

	resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    s.opts.ServerName,
				"version": s.opts.Version,
			},
		}

	case "ping":
		resp.Result = map[string]any{}

	case "tools/list":
		resp.Result = map[string]any{"tools": s.Tools()}

	case "tools/call":
		var call CallToolRequest
		if err := json.Unmarshal(req.Params, &call); err != nil {
			return rpcError(req.ID, CodeInvalidParams, "Invalid params")
		}
		entry, ok := s.tools[call.Name]
		if !ok || !tier.Allows(s.opts.Tier, s.declared(), call.Name, s.logger) {
			s.logger.ComponentWarn(logging.ComponentTools, "tool not available",
				append(fields, zap.String("tool", call.Name), zap.String("tier", string(s.opts.Tier)))...)
			return rpcError(req.ID, CodeMethodNotFound, "tool not found: "+call.Name)
		}
		s.logger.ComponentInfo(logging.ComponentTools, "tool call",
			append(fields, zap.String("tool", call.Name))...)
		resp.Result = entry.call(r, call.Arguments)

	default:
		s.logger.ComponentDebug(logging.ComponentTools, "unknown method", fields...)
		return rpcError(req.ID, CodeMethodNotFound, "Method not found")
	}
	return resp
}
