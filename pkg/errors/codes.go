package errors

// Error codes for categorizing errors.
// These codes map to HTTP status codes in StatusCode.
const (
	// CodeValidation indicates a malformed request.
	CodeValidation = "VALIDATION_ERROR"

	// CodeUnauthorized indicates authentication is required or failed.
	CodeUnauthorized = "UNAUTHORIZED"

	// CodeForbidden indicates the caller is authenticated but not allowed.
	CodeForbidden = "FORBIDDEN"

	// CodeSafetyBlocked indicates a command matched the safety denylist.
	CodeSafetyBlocked = "SAFETY_BLOCKED"

	// CodeExecution indicates the command engine failed to run a process.
	CodeExecution = "EXECUTION_ERROR"

	// CodeConfig indicates invalid configuration.
	CodeConfig = "CONFIG_ERROR"

	// CodeInternal indicates internal errors.
	CodeInternal = "INTERNAL"
)
