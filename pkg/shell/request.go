package shell

import (
	"bytes"
	"encoding/json"

	"github.com/DeBrosOfficial/tidewave/pkg/errors"
)

// Validation messages returned verbatim to the client.
const (
	MsgBodyRequired    = "Command body is required"
	MsgInvalidJSON     = "Invalid JSON in request body"
	MsgCommandRequired = "Command field is required"
)

// Request is the body of a shell request.
type Request struct {
	Command []string `json:"command"`
}

// ParseRequest validates a shell request body and returns its argv.
// The three failure modes are checked in order: empty body, malformed JSON,
// missing or empty command array.
func ParseRequest(body []byte) ([]string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.NewValidationError("", MsgBodyRequired)
	}
	if !json.Valid(body) {
		return nil, errors.NewValidationError("", MsgInvalidJSON)
	}

	var raw struct {
		Command json.RawMessage `json:"command"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw.Command) == 0 {
		return nil, errors.NewValidationError("command", MsgCommandRequired)
	}
	var argv []string
	if err := json.Unmarshal(raw.Command, &argv); err != nil || len(argv) == 0 || argv[0] == "" {
		return nil, errors.NewValidationError("command", MsgCommandRequired)
	}
	return argv, nil
}
