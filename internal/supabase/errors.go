package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrNotConfigured reports a client constructed without a project URL or anon key.
	ErrNotConfigured = errors.New("supabase: url and anon key are required")
	// ErrNetworkFailure wraps transport level failures (DNS, refused connections, timeouts).
	ErrNetworkFailure = errors.New("supabase: network failure")
	// ErrNoSession is returned by operations that need a signed-in user.
	ErrNoSession = errors.New("supabase: no active session")
)

// ErrorKind classifies backend rejections.
type ErrorKind int

const (
	// KindBackend covers server side failures and unexpected statuses.
	KindBackend ErrorKind = iota
	// KindValidation covers rejected input such as bad credentials or malformed email addresses.
	KindValidation
)

// APIError is a non-2xx response from the hosted backend. Message is the backend's text, verbatim.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Kind reports whether the rejection is about the caller's input.
func (e *APIError) Kind() ErrorKind {
	if e == nil {
		return KindBackend
	}
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindBackend
	}
}

// IsValidation reports whether err carries a validation APIError.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind() == KindValidation
}

type networkError struct {
	op  string
	err error
}

func (e *networkError) Error() string {
	return fmt.Sprintf("supabase: %s: %v", e.op, e.err)
}

func (e *networkError) Unwrap() []error {
	return []error{ErrNetworkFailure, e.err}
}

func wrapNetwork(op string, err error) error {
	return &networkError{op: op, err: err}
}

// decodeAPIError reads PostgREST ({message, code, details}) and GoTrue ({msg, error_code} or
// {error, error_description}) error bodies.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var payload map[string]any
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		apiErr.Message = firstString(payload, "msg", "message", "error_description", "error")
		apiErr.Code = firstString(payload, "error_code", "code", "error")
	}
	if apiErr.Message == "" {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		apiErr.Message = text
	}
	return apiErr
}

func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
