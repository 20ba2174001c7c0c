package errors

import "errors"

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsSafetyBlocked checks if an error came from the command denylist.
func IsSafetyBlocked(err error) bool {
	var safetyErr *SafetyBlockedError
	return errors.As(err, &safetyErr)
}

// IsExecution checks if an error is a command engine failure.
func IsExecution(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}

// GetErrorMessage extracts the client-facing message.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Message()
	}
	return err.Error()
}

// IsConfig checks if an error reports invalid configuration.
func IsConfig(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}
