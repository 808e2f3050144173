package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var ErrEmptyToken = errors.New("login response carried no token")

// RemoteError is a non-2xx answer from the backend.
type RemoteError struct {
	Method string
	Path   string
	Status int
	// Message is the backend's own error text; empty when it gave none.
	Message string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, msg)
}

// Detail is the text pages show to the operator.
func (e *RemoteError) Detail() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d %s", e.Status, http.StatusText(e.Status))
}

// IsStatus reports whether err is a RemoteError with the given status.
func IsStatus(err error, status int) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == status
}

// ErrorMessage is what pages render for a failed call: the backend's
// message when there is one, the transport error otherwise.
func ErrorMessage(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Detail()
	}
	return err.Error()
}

const maxErrorBody = 64 << 10

func newRemoteError(method, path string, resp *http.Response) *RemoteError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RemoteError{
		Method:  method,
		Path:    path,
		Status:  resp.StatusCode,
		Message: errorBodyMessage(body),
	}
}

// errorBodyMessage extracts the "error" field, which the backend sends
// either as a string or as an object with a message.
func errorBodyMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(envelope.Error, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &obj); err == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}
