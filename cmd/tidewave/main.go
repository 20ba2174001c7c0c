package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/DeBrosOfficial/tidewave/pkg/config"
	tperrors "github.com/DeBrosOfficial/tidewave/pkg/errors"
	"github.com/DeBrosOfficial/tidewave/pkg/gateway"
	"github.com/DeBrosOfficial/tidewave/pkg/logging"
	"github.com/DeBrosOfficial/tidewave/pkg/mcp"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Exit(reportBootFailure(os.Stderr, err))
	}
}

// reportBootFailure prints err and returns the process exit code.
// Configuration problems exit with 2 and point at the usual fixes.
func reportBootFailure(w io.Writer, err error) int {
	fmt.Fprintf(w, "tidewave: %v\n", err)
	if tperrors.IsConfig(err) {
		fmt.Fprintln(w, "Run tidewave --help or fix tidewave.yaml.")
		return 2
	}
	return 1
}

func setupLogger(cfg *config.Config) (*logging.ColoredLogger, error) {
	return logging.New(logging.Options{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		OutputFile:   cfg.Logging.OutputFile,
		EnableColors: term.IsTerminal(int(os.Stdout.Fd())),
	})
}

func run(args []string) error {
	cfg, opts, err := parseConfig(args)
	if err != nil {
		return err
	}
	if opts.showHelp {
		return nil
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.ComponentInfo(logging.ComponentConfig, "Loaded configuration",
		zap.String("addr", cfg.ListenAddr),
		zap.String("prefix", cfg.Prefix),
		zap.String("tier", string(cfg.Tier)),
		zap.String("project_root", cfg.ProjectRoot),
		zap.String("upstream", opts.upstream),
	)

	var downstream http.Handler
	if opts.upstream != "" {
		downstream, err = newUpstreamProxy(logger, opts.upstream, opts.upstreamTLS)
		if err != nil {
			return err
		}
	} else {
		downstream = newDemoApp(cfg.ResolvePath(cfg.Logs.AppLog))
	}

	delegate := mcp.NewServer(logger, mcp.Options{
		Prefix:         cfg.Prefix,
		Version:        gateway.Version,
		Tier:           cfg.Tier,
		AppLog:         cfg.ResolvePath(cfg.Logs.AppLog),
		JobFailuresLog: cfg.ResolvePath(cfg.Logs.JobFailuresLog),
		ProjectRoot:    cfg.ProjectRoot,
		MaxBodyBytes:   cfg.Shell.MaxBodyBytes,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gateway.New(logger, cfg, downstream, delegate),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.ComponentInfo(logging.ComponentGeneral, "HTTP server starting",
			zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		logger.ComponentError(logging.ComponentGeneral, "HTTP server error", zap.Error(err))
		return err
	case <-quit:
	}
	logger.ComponentInfo(logging.ComponentGeneral, "Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.ComponentError(logging.ComponentGeneral, "HTTP server shutdown error", zap.Error(err))
	}
	logger.ComponentInfo(logging.ComponentGeneral, "Shutdown complete")
	return nil
}
