package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/DeBrosOfficial/tidewave/pkg/errors"
	"github.com/DeBrosOfficial/tidewave/pkg/tier"
)

// ValidationError represents a single validation error with context.
type ValidationError struct {
	Path    string // e.g., "shell.max_output_bytes"
	Message string // e.g., "must be positive"
	Hint    string // e.g., "allowed values: readonly, full, local"
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s; %s", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate performs comprehensive validation of the entire config.
// It aggregates all errors and returns them, allowing the caller to print all issues at once.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateShell()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

// Check runs Validate and folds any problems into one *errors.ConfigError.
func (c *Config) Check() error {
	errs := c.Validate()
	if len(errs) == 0 {
		return nil
	}
	problems := make([]string, len(errs))
	for i, err := range errs {
		problems[i] = err.Error()
	}
	return errors.NewConfigError(problems)
}

func (c *Config) validateServer() []error {
	var errs []error

	if err := validateHostPort(c.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Path:    "listen_addr",
			Message: err.Error(),
			Hint:    "expected host:port, e.g. :4000 or 127.0.0.1:4000",
		})
	}

	if !strings.HasPrefix(c.Prefix, "/") || len(c.Prefix) < 2 || strings.HasSuffix(c.Prefix, "/") {
		errs = append(errs, ValidationError{
			Path:    "prefix",
			Message: fmt.Sprintf("invalid value %q", c.Prefix),
			Hint:    "must start with / and not end with /",
		})
	}

	if !c.Tier.Valid() {
		errs = append(errs, ValidationError{
			Path:    "tier",
			Message: fmt.Sprintf("invalid value %q", c.Tier),
			Hint:    "allowed values: " + strings.Join(tierNames(), ", "),
		})
	}

	if strings.TrimSpace(c.ProjectRoot) == "" {
		errs = append(errs, ValidationError{Path: "project_root", Message: "must not be empty"})
	}

	for path, v := range map[string]string{
		"logs.app_log":          c.Logs.AppLog,
		"logs.job_failures_log": c.Logs.JobFailuresLog,
	} {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, ValidationError{Path: path, Message: "must not be empty"})
		}
	}

	return errs
}

func (c *Config) validateShell() []error {
	var errs []error
	if c.Shell.MaxOutputBytes <= 0 {
		errs = append(errs, ValidationError{Path: "shell.max_output_bytes", Message: "must be positive"})
	}
	if c.Shell.PollInterval <= 0 {
		errs = append(errs, ValidationError{Path: "shell.poll_interval", Message: "must be positive", Hint: "e.g. 100ms"})
	}
	if c.Shell.MaxBodyBytes <= 0 {
		errs = append(errs, ValidationError{Path: "shell.max_body_bytes", Message: "must be positive"})
	}
	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	log := c.Logging

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[log.Level] {
		errs = append(errs, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("invalid value %q", log.Level),
			Hint:    "allowed values: debug, info, warn, error",
		})
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[log.Format] {
		errs = append(errs, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("invalid value %q", log.Format),
			Hint:    "allowed values: json, console",
		})
	}

	if log.OutputFile != "" && filepath.Base(log.OutputFile) == "." {
		errs = append(errs, ValidationError{
			Path:    "logging.output_file",
			Message: "must name a file",
		})
	}
	return errs
}

func validateHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

func tierNames() []string {
	names := make([]string, len(tier.All))
	for i, t := range tier.All {
		names[i] = string(t)
	}
	return names
}
