package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the base interface for all custom errors in the system.
type Error interface {
	error
	Code() string
	Message() string
	Unwrap() error
}

// BaseError provides a foundation for all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *BaseError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *BaseError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error {
	return e.cause
}

// ValidationError represents a malformed request. The message is shown to
// the client verbatim.
type ValidationError struct {
	*BaseError
	Field string
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		BaseError: &BaseError{code: CodeValidation, message: message},
		Field:     field,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

// UnauthorizedError represents an authentication failure. Hint names what
// the client must configure to authenticate.
type UnauthorizedError struct {
	*BaseError
	Hint string
}

// NewUnauthorizedError creates a new unauthorized error.
func NewUnauthorizedError(message, hint string) *UnauthorizedError {
	if message == "" {
		message = "authentication required"
	}
	return &UnauthorizedError{
		BaseError: &BaseError{code: CodeUnauthorized, message: message},
		Hint:      hint,
	}
}

// ForbiddenError represents an authorization failure (origin or tier).
type ForbiddenError struct {
	*BaseError
	Setting string
}

// NewForbiddenError creates a new forbidden error. setting names the
// configuration knob that would lift the restriction.
func NewForbiddenError(message, setting string) *ForbiddenError {
	if message == "" {
		message = "forbidden"
	}
	return &ForbiddenError{
		BaseError: &BaseError{code: CodeForbidden, message: message},
		Setting:   setting,
	}
}

// SafetyBlockedError is returned when a command matches the denylist.
type SafetyBlockedError struct {
	*BaseError
	Rule    string
	Command string
}

// NewSafetyBlockedError creates a new safety-blocked error.
func NewSafetyBlockedError(rule, command string) *SafetyBlockedError {
	return &SafetyBlockedError{
		BaseError: &BaseError{
			code:    CodeSafetyBlocked,
			message: fmt.Sprintf("command blocked by safety check: %s", rule),
		},
		Rule:    rule,
		Command: command,
	}
}

// ExecutionError represents a failure of the command engine itself, such as
// an executable that cannot be found.
type ExecutionError struct {
	*BaseError
	Argv []string
}

// NewExecutionError creates a new execution error.
func NewExecutionError(argv []string, cause error) *ExecutionError {
	message := "command execution failed"
	if len(argv) > 0 {
		message = fmt.Sprintf("failed to execute %s", argv[0])
	}
	return &ExecutionError{
		BaseError: &BaseError{code: CodeExecution, message: message, cause: cause},
		Argv:      argv,
	}
}

// ConfigError represents one or more invalid configuration values.
type ConfigError struct {
	*BaseError
	Problems []string
}

// NewConfigError creates a config error listing every problem found.
func NewConfigError(problems []string) *ConfigError {
	return &ConfigError{
		BaseError: &BaseError{
			code:    CodeConfig,
			message: "invalid configuration: " + strings.Join(problems, "; "),
		},
		Problems: problems,
	}
}

// Wrap wraps an error with additional context, keeping the code of typed
// errors and marking everything else internal.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	code := CodeInternal
	var e Error
	if errors.As(err, &e) {
		code = e.Code()
	}
	return &BaseError{code: code, message: message, cause: err}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// Newf creates an internal error with a formatted message.
func Newf(format string, args ...interface{}) error {
	return &BaseError{code: CodeInternal, message: fmt.Sprintf(format, args...)}
}
