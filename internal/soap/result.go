package soap

// Response code fields carried by structured responses of the service.
const (
	codeField    = "CodRespuesta"
	messageField = "MensajeRespuesta"
)

// CodeSuccess is the in-band response code of a successful operation.
const CodeSuccess = "00"

// CodeInvalidToken is the in-band response code of a rejected token.
const CodeInvalidToken = "20"

// Result is the outcome of a completed invocation.
type Result interface {
	isResult()
}

// Structured is a successful response with named fields.
type Structured struct {
	Fields Fields
	// Code and Message are empty when the response carries no response code.
	Code    string
	Message string
}

// Opaque is a successful response whose payload is a single scalar value.
type Opaque struct {
	Value string
}

// Fault is a response that reports a non-success in-band response code.
// It is returned as a result, not an error, so callers interpret it.
type Fault struct {
	Operation string
	Code      string
	Message   string
	Fields    Fields
}

func (*Structured) isResult() {}
func (*Opaque) isResult()     {}
func (*Fault) isResult()      {}

// Err converts f into an *Error of kind ErrOperationFault.
func (f *Fault) Err() error {
	return &Error{Kind: ErrOperationFault, Operation: f.Operation, Code: f.Code, Message: f.Message}
}

// Fields is a decoded element tree. Values are string, Fields, []any or nil.
type Fields map[string]any

// String returns the text content of the named child, or "" if absent.
func (f Fields) String(name string) string {
	switch v := f[name].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// Fields returns the named child as a nested tree, or nil.
func (f Fields) Fields(name string) Fields {
	v, _ := f[name].(Fields)
	return v
}

// List returns the named child as a list. A single occurrence is returned
// as a one-element list; absence yields nil.
func (f Fields) List(name string) []any {
	switch v := f[name].(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

// classify turns a decoded response payload into a Result.
func classify(operation string, payload any) Result {
	fields, ok := payload.(Fields)
	if !ok {
		s, _ := payload.(string)
		return &Opaque{Value: s}
	}

	code := fields.String(codeField)
	message := fields.String(messageField)
	if code == "" || code == CodeSuccess {
		return &Structured{Fields: fields, Code: code, Message: message}
	}
	return &Fault{Operation: operation, Code: code, Message: message, Fields: fields}
}
