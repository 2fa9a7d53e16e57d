package soap

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds, matched with errors.Is.
var (
	// ErrTransportFault is a SOAP fault or an HTTP failure without a usable envelope.
	ErrTransportFault = errors.New("transport fault")
	// ErrAuthRetryExhausted reports a token rejection that survived one renewal.
	ErrAuthRetryExhausted = errors.New("token rejected after renewal")
	// ErrOperationFault is a non-success in-band response code.
	ErrOperationFault = errors.New("operation fault")
	// ErrUnknownOperation is returned for operations missing from the contract.
	ErrUnknownOperation = errors.New("unknown operation")
)

// Error describes a failed invocation.
type Error struct {
	Kind      error
	Operation string
	// Code is the fault code or in-band response code.
	Code    string
	Message string
	// Body is the start of an HTTP error response that carried no SOAP fault.
	Body string
	// StatusCode is the HTTP status, zero if no response was received.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Operation, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": [%s]", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " %s", e.Message)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, " %s", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// authMarkers are substrings of fault messages that signal a token rejection.
// Localized messages such as "Token no valido" match "token".
var authMarkers = []string{CodeInvalidToken, "token"}

// isAuthFault reports whether a SOAP fault message signals a token rejection.
func isAuthFault(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
