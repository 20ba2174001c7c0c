package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/gateway/ctxkeys"
	"github.com/DeBrosOfficial/tidewave/pkg/logging"
	"github.com/DeBrosOfficial/tidewave/pkg/logtail"
	"github.com/DeBrosOfficial/tidewave/pkg/tier"
)

const (
	defaultLogTail     = 100
	defaultJobFailures = 10
)

type toolEntry struct {
	def  Tool
	call func(r *http.Request, args json.RawMessage) CallToolResult
}

func (s *Server) buildTools() map[string]toolEntry {
	return map[string]toolEntry{
		tier.OpGetLogs: {
			def: Tool{
				Name:        tier.OpGetLogs,
				Description: "Return the most recent lines of the application log, optionally filtered by a case-insensitive pattern and a start time.",
				InputSchema: schema(map[string][2]string{
					"tail":  {"integer", "Number of lines to return (default 100)"},
					"grep":  {"string", "Regular expression to match, case-insensitive"},
					"since": {"string", "Relative (30m, 2h, 1d, 1w) or absolute timestamp"},
				}),
			},
			call: s.getLogs,
		},
		tier.OpGetJobFailures: {
			def: Tool{
				Name:        tier.OpGetJobFailures,
				Description: "Return the most recent background job failures, newest first.",
				InputSchema: schema(map[string][2]string{
					"limit": {"integer", "Number of failures to return (default 10)"},
					"grep":  {"string", "Pattern matched against job, error class, message, queue, arguments and backtrace"},
					"since": {"string", "Relative (30m, 2h, 1d, 1w) or absolute timestamp"},
				}),
			},
			call: s.getJobFailures,
		},
		tier.OpGetSystemStats: {
			def: Tool{
				Name:        tier.OpGetSystemStats,
				Description: "Report host memory usage, load averages, uptime and CPU usage.",
				InputSchema: schema(nil),
			},
			call: s.getSystemStats,
		},
		tier.OpReadProjectFile: {
			def: Tool{
				Name:        tier.OpReadProjectFile,
				Description: "Read lines from a file inside the project root.",
				InputSchema: schema(map[string][2]string{
					"path":        {"string", "Path relative to the project root"},
					"line_offset": {"integer", "First line to return, 0-based (default 0)"},
					"count":       {"integer", "Number of lines to return (default 200)"},
				}),
			},
			call: s.readProjectFile,
		},
	}
}

type logArgs struct {
	Tail  int    `json:"tail"`
	Limit int    `json:"limit"`
	Grep  string `json:"grep"`
	Since string `json:"since"`
}

func decodeArgs(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (s *Server) logFilter(n int, a logArgs) logtail.Filter {
	f := logtail.Filter{Max: n, Pattern: a.Grep}
	if cutoff, ok := s.since.Parse(a.Since); ok {
		f.Since = cutoff
	}
	return f
}

func (s *Server) getLogs(r *http.Request, raw json.RawMessage) CallToolResult {
	var a logArgs
	if err := decodeArgs(raw, &a); err != nil {
		return errorResult(fmt.Sprintf("Invalid arguments: %v", err))
	}
	n := a.Tail
	if n <= 0 {
		n = defaultLogTail
	}

	res, err := s.tailer.Tail(s.opts.AppLog, s.logFilter(n, a))
	if err != nil {
		s.logger.ComponentError(logging.ComponentLogs, "failed to read log",
			append(ctxkeys.LogFields(r.Context()), zap.String("path", s.opts.AppLog), zap.Error(err))...)
		return errorResult(fmt.Sprintf("Error reading log: %v", err))
	}
	if res.Notice != "" {
		return textResult(res.Notice)
	}
	if len(res.Lines) == 0 {
		return textResult("No matching log lines found.")
	}
	return textResult(strings.Join(res.Lines, "\n"))
}

func (s *Server) getJobFailures(r *http.Request, raw json.RawMessage) CallToolResult {
	var a logArgs
	if err := decodeArgs(raw, &a); err != nil {
		return errorResult(fmt.Sprintf("Invalid arguments: %v", err))
	}
	n := a.Limit
	if n <= 0 {
		n = defaultJobFailures
	}

	res, err := s.tailer.TailRecords(s.opts.JobFailuresLog, s.logFilter(n, a), true)
	if err != nil {
		s.logger.ComponentError(logging.ComponentLogs, "failed to read job failures",
			append(ctxkeys.LogFields(r.Context()), zap.String("path", s.opts.JobFailuresLog), zap.Error(err))...)
		return errorResult(fmt.Sprintf("Error reading job failures: %v", err))
	}
	if res.Notice != "" {
		return textResult(res.Notice)
	}
	if len(res.Records) == 0 {
		return textResult("No job failures found.")
	}

	blocks := make([]string, len(res.Records))
	for i := range res.Records {
		blocks[i] = res.Records[i].String()
	}
	return textResult(fmt.Sprintf("%d job failure(s), newest first:\n\n%s",
		len(blocks), strings.Join(blocks, "\n\n")))
}

func (s *Server) getSystemStats(r *http.Request, _ json.RawMessage) CallToolResult {
	st, err := s.opts.Stats()
	if err != nil {
		s.logger.ComponentWarn(logging.ComponentTools, "system stats incomplete",
			append(ctxkeys.LogFields(r.Context()), zap.Error(err))...)
	}
	if st == nil {
		return errorResult(fmt.Sprintf("Error reading system stats: %v", err))
	}
	return textResult(st.String())
}
