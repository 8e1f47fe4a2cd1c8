package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrInvalidLED is returned by CheckLED for values the hardware won't take
var ErrInvalidLED = errors.New("invalid LED setting")

// ErrInvalidMode is returned for unsupported game modes
var ErrInvalidMode = errors.New("invalid game mode")

// StatusError is a non-2xx response from a command endpoint
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// NotFound reports whether the server answered 404
func (e *StatusError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

func newStatusError(op string, resp *http.Response) *StatusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
}

// errorMessage pulls a message out of {"error": ...} or {"detail": ...}
// bodies, falling back to the raw text
func errorMessage(body []byte) string {
	var parsed struct {
		Error  string          `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if len(parsed.Detail) > 0 {
			var s string
			if json.Unmarshal(parsed.Detail, &s) == nil {
				return s
			}
			return string(parsed.Detail)
		}
	}
	return strings.TrimSpace(string(body))
}
