package correos

import (
	"fmt"

	"github.com/florianilch/correos-link/internal/soap"
)

// Response codes reported in CodRespuesta.
const (
	CodeSuccess         = "00"
	CodeInternalError   = "15"
	CodeValidationError = "17"
	CodeInvalidToken    = "20"
)

// DescribeCode returns a human-readable description of a response code.
func DescribeCode(code string) string {
	switch code {
	case CodeSuccess:
		return "success"
	case CodeInternalError:
		return "internal service error"
	case CodeValidationError:
		return "validation error"
	case CodeInvalidToken:
		return "invalid token"
	default:
		return "unknown error"
	}
}

// ResponseError is a non-success response code returned by an operation.
type ResponseError struct {
	Operation string
	Code      string
	Message   string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s (code %s)", e.Operation, DescribeCode(e.Code), e.Code)
	}
	return fmt.Sprintf("%s: %s (code %s): %s", e.Operation, DescribeCode(e.Code), e.Code, e.Message)
}

// Unwrap makes ResponseError match soap.ErrOperationFault.
func (e *ResponseError) Unwrap() error {
	return soap.ErrOperationFault
}

// Validation reports whether the service rejected the submitted data.
func (e *ResponseError) Validation() bool {
	return e.Code == CodeValidationError
}
