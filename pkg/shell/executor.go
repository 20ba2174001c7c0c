// Package shell runs a single command and streams its output as framed
// chunks: zero or more DATA chunks followed by exactly one STATUS chunk.
package shell

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/errors"
	"github.com/DeBrosOfficial/tidewave/pkg/gateway/ctxkeys"
	"github.com/DeBrosOfficial/tidewave/pkg/logging"
)

const (
	// DefaultMaxOutputBytes is the cumulative output ceiling (100 MiB).
	DefaultMaxOutputBytes int64 = 100 << 20

	// DefaultPollInterval bounds each readiness wait.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultKillGrace is how long a terminated child has before SIGKILL.
	DefaultKillGrace = 5 * time.Second

	// StatusEngineFailure is reported in-band when the engine itself fails.
	StatusEngineFailure = 213

	readBufferSize = 32 << 10
)

// Config tunes an Executor. Zero values take the defaults above.
type Config struct {
	MaxOutputBytes int64
	PollInterval   time.Duration
	KillGrace      time.Duration
	Dir            string
	Env            []string
}

// Executor runs commands. It holds only immutable configuration and is safe
// for concurrent use.
type Executor struct {
	cfg    Config
	logger *logging.ColoredLogger
}

// NewExecutor creates an executor, filling defaults.
func NewExecutor(logger *logging.ColoredLogger, cfg Config) *Executor {
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultKillGrace
	}
	return &Executor{cfg: cfg, logger: logging.OrNop(logger)}
}

// Prepare validates a request body and applies the safety denylist. No
// process is spawned and nothing is written; errors are *errors.ValidationError
// or *errors.SafetyBlockedError.
func (e *Executor) Prepare(ctx context.Context, body []byte) ([]string, error) {
	argv, err := ParseRequest(body)
	if err != nil {
		return nil, err
	}
	if err := CheckSafety(argv); err != nil {
		e.logger.ComponentWarn(logging.ComponentShell, "command blocked by safety check",
			append(ctxkeys.LogFields(ctx), zap.Strings("argv", argv), zap.Error(err))...)
		return nil, err
	}
	return argv, nil
}

// Execute spawns argv and streams its output to cw, always finishing with
// exactly one STATUS chunk. The returned int is the status reported.
// Engine failures (missing executable, pipe errors) become status 213 with
// an error message rather than a Go error, because by the time Execute runs
// the response has been committed.
func (e *Executor) Execute(ctx context.Context, argv []string, cw *ChunkWriter) int {
	fields := ctxkeys.LogFields(ctx)
	e.logger.ComponentInfo(logging.ComponentShell, "executing command",
		append(fields, zap.Strings("argv", argv))...)

	start := time.Now()
	res, err := e.run(argv, cw)
	if err != nil {
		if !errors.IsExecution(err) {
			err = errors.NewExecutionError(argv, err)
		}
		e.logger.ComponentError(logging.ComponentShell, "command execution failed",
			append(fields, zap.Strings("argv", argv), zap.Error(err))...)
		_ = cw.Status(Status{Status: StatusEngineFailure, Error: err.Error()})
		return StatusEngineFailure
	}

	e.logger.ComponentInfo(logging.ComponentShell, "command finished",
		append(fields,
			zap.Strings("argv", argv),
			zap.Int("status", res.status),
			zap.Int64("output_bytes", res.outputBytes),
			zap.Int64("wire_bytes", cw.Written()),
			zap.Bool("truncated", res.truncated),
			zap.Duration("duration", time.Since(start)),
		)...)
	if err := cw.Status(Status{Status: res.status}); err != nil {
		e.logger.ComponentWarn(logging.ComponentShell, "failed to write status chunk",
			append(fields, zap.Error(err))...)
	}
	return res.status
}

// runResult summarizes a completed child.
type runResult struct {
	status      int
	outputBytes int64
	truncated   bool
}

// truncationNotice is the DATA chunk written when the ceiling is reached.
func truncationNotice(limit int64) []byte {
	return []byte(fmt.Sprintf("\n[output truncated: exceeded %d bytes; process terminated]\n", limit))
}
