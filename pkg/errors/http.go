package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTPError is the JSON body written for gateway-level failures.
type HTTPError struct {
	Status    int    `json:"-"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusCode returns the HTTP status code for an error.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var (
		validationErr   *ValidationError
		unauthorizedErr *UnauthorizedError
		forbiddenErr    *ForbiddenError
		safetyErr       *SafetyBlockedError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &unauthorizedErr):
		return http.StatusUnauthorized
	case errors.As(err, &forbiddenErr), errors.As(err, &safetyErr):
		return http.StatusForbidden
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return codeToHTTPStatus(customErr.Code())
	}

	return http.StatusInternalServerError
}

func codeToHTTPStatus(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeSafetyBlocked:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTPError converts an error to the gateway's JSON error body.
func ToHTTPError(err error, requestID string) *HTTPError {
	status := StatusCode(err)
	out := &HTTPError{
		Status:    status,
		Error:     http.StatusText(status),
		RequestID: requestID,
	}
	if err == nil {
		return out
	}

	var (
		unauthorizedErr *UnauthorizedError
		customErr       Error
	)
	switch {
	case errors.As(err, &unauthorizedErr):
		out.Hint = unauthorizedErr.Hint
	case errors.As(err, &customErr):
		out.Message = customErr.Message()
	default:
		out.Message = err.Error()
	}
	return out
}

// WriteHTTPError writes an error response to an http.ResponseWriter.
func WriteHTTPError(w http.ResponseWriter, err error, requestID string) {
	httpErr := ToHTTPError(err, requestID)
	w.Header().Set("Content-Type", "application/json")

	var unauthorizedErr *UnauthorizedError
	if errors.As(err, &unauthorizedErr) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="tidewave"`)
	}

	w.WriteHeader(httpErr.Status)
	_ = json.NewEncoder(w).Encode(httpErr)
}
