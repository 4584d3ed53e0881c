package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// TransportError is an HTTP-level failure: a non-2xx status from a
// provider, or the polling loop exhausting its transient-failure budget.
// It keeps the upstream body verbatim for the diagnostic surface.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, e.Body)
}

// LogicalError is a provider-reported failure inside a 2xx exchange: a
// terminal non-success job status, or an explicit error field in the
// response body. StatusCode is a synthetic 500 when the provider gives no
// HTTP code of its own.
type LogicalError struct {
	StatusCode int
	Message    string
	Payload    json.RawMessage
}

func (e *LogicalError) Error() string {
	return fmt.Sprintf("provider reported failure (HTTP %d): %s", e.StatusCode, e.Message)
}

// NewLogicalError builds a LogicalError, defaulting the status to 500 and
// keeping the raw payload for diagnostics.
func NewLogicalError(statusCode int, message string, payload []byte) *LogicalError {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	return &LogicalError{
		StatusCode: statusCode,
		Message:    message,
		Payload:    json.RawMessage(payload),
	}
}

// Diagnostic renders the status code and body carried by a classified
// error, pretty-printing JSON payloads. Returns "" for errors that carry
// no diagnostic payload.
func Diagnostic(err error) string {
	var transport *TransportError
	if errors.As(err, &transport) {
		return fmt.Sprintf("HTTP %d\n%s", transport.StatusCode, indentJSON([]byte(transport.Body)))
	}
	var logical *LogicalError
	if errors.As(err, &logical) {
		return fmt.Sprintf("HTTP %d\n%s", logical.StatusCode, indentJSON(logical.Payload))
	}
	return ""
}

func indentJSON(body []byte) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return string(body)
	}
	return pretty.String()
}
