package nomad

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Sentinel errors for classifying failures with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrDecode            = errors.New("decoding response")
)

// NotFoundError is returned when the API responds with HTTP 404.
type NotFoundError struct {
	Identity string
	Path     string
	Body     string
}

func (e *NotFoundError) Error() string {
	if e.Identity == "" {
		return fmt.Sprintf("%s: not found", e.Path)
	}
	return fmt.Sprintf("%q not found (%s)", e.Identity, e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// APIError is any other non-2xx response. Body holds the full response text.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 200))
}

// InvalidParametersError is raised before a request is sent.
type InvalidParametersError struct {
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return "invalid parameters: " + e.Reason
}

func (e *InvalidParametersError) Is(target error) bool { return target == ErrInvalidParameters }

func invalidParams(format string, args ...any) error {
	return &InvalidParametersError{Reason: fmt.Sprintf(format, args...)}
}

// DecodeError means the server answered 2xx but the body could not be parsed.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decoding response: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// IsNotFound reports whether err is (or wraps) a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidParameters reports whether err was a client-side validation failure.
func IsInvalidParameters(err error) bool {
	return errors.Is(err, ErrInvalidParameters)
}

// IsDecode reports whether err is a decode failure on a successful response.
func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode)
}

// StatusCode returns the HTTP status carried by err, or 0 when there is none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return 404
	}
	return 0
}

// truncate cuts s to at most maxLen bytes without splitting a UTF-8
// sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
