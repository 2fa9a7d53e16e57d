package tokensource

import (
	"errors"
	"fmt"
)

// Error kinds reported by Issue. Match them with errors.Is.
var (
	// ErrNetwork covers connection, TLS and timeout failures.
	ErrNetwork = errors.New("network error")
	// ErrProtocol is returned for non-2xx responses.
	ErrProtocol = errors.New("protocol error")
	// ErrParse is returned when the response has no usable shape.
	ErrParse = errors.New("unusable token response")
	// ErrEmptyToken is returned when the extracted token is empty or a null sentinel.
	ErrEmptyToken = errors.New("empty-or-null-token")
)

// maxErrorBody bounds how much of a response body is kept on an AuthError.
const maxErrorBody = 512

// AuthError describes a failed token issuance.
type AuthError struct {
	// Kind is one of ErrNetwork, ErrProtocol, ErrParse or ErrEmptyToken.
	Kind error
	// StatusCode is set for ErrProtocol.
	StatusCode int
	// Body holds the (truncated) response body when one was received.
	Body string
	// Err is the underlying cause, if any.
	Err error
}

func (e *AuthError) Error() string {
	msg := "token issuance failed: " + e.Kind.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
