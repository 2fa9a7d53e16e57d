package soap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds a single SOAP request.
const DefaultTimeout = 30 * time.Second

const (
	maxResponseBody = 16 << 20
	maxFaultMessage = 512
)

const tracerName = "github.com/florianilch/correos-link/internal/soap"

// TokenProvider supplies access tokens and renews rejected ones.
// *tokenstore.Store implements it.
type TokenProvider interface {
	Get(ctx context.Context, forceRefresh bool) (*oauth2.Token, error)
	Renew(ctx context.Context, rejected *oauth2.Token) (*oauth2.Token, error)
}

// Request names an operation and its arguments. Args bind to the declared
// input parameters in order, Named by parameter name.
type Request struct {
	Operation string
	Args      []any
	Named     map[string]any
}

// invocation states, reported in debug logs.
const (
	stateIdle                = "idle"
	stateInvoking            = "invoking"
	stateAuthFailureDetected = "auth_failure_detected"
	stateRenewing            = "renewing"
	stateRetrying            = "retrying"
	stateSuccess             = "success"
	stateNonAuthFailure      = "non_auth_failure"
	stateTerminalFailure     = "terminal_failure"
)

// Option configures a Client.
type Option func(*clientConfig)

// clientConfig holds configuration for New.
type clientConfig struct {
	baseTransport  http.RoundTripper
	timeout        time.Duration
	wsdlURL        string
	contract       *Contract
	retry          bool
	headers        http.Header
	tracerProvider trace.TracerProvider
}

// WithTransport sets a custom base transport. If not provided,
// http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.baseTransport = transport
	}
}

// WithTimeout bounds each SOAP request. Defaults to DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithWSDLURL sets where the contract is loaded from. Defaults to the
// endpoint with a "?wsdl" query.
func WithWSDLURL(wsdlURL string) Option {
	return func(c *clientConfig) {
		if wsdlURL != "" {
			c.wsdlURL = wsdlURL
		}
	}
}

// WithContract uses contract instead of loading the WSDL.
func WithContract(contract *Contract) Option {
	return func(c *clientConfig) {
		c.contract = contract
	}
}

// WithTokenRetry enables or disables the renew-and-retry on token
// rejection. Enabled by default.
func WithTokenRetry(enabled bool) Option {
	return func(c *clientConfig) {
		c.retry = enabled
	}
}

// WithHeader adds a static HTTP header to every SOAP request. Content-Type
// and SOAPAction are always set by the client.
func WithHeader(key, value string) Option {
	return func(c *clientConfig) {
		c.headers.Add(key, value)
	}
}

// WithTracerProvider sets the provider for invocation spans. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *clientConfig) {
		if tp != nil {
			c.tracerProvider = tp
		}
	}
}

// Client invokes operations of one SOAP endpoint. It is safe for concurrent
// use; all invocations share one token provider and one http.Client.
type Client struct {
	endpoint   string
	wsdlURL    string
	tokens     TokenProvider
	httpClient *http.Client
	retry      bool
	headers    http.Header
	tracer     trace.Tracer

	mu       sync.Mutex
	contract *Contract
}

// New creates a Client for endpoint using tokens for authentication.
func New(endpoint string, tokens TokenProvider, opts ...Option) *Client {
	cfg := &clientConfig{
		baseTransport:  http.DefaultTransport,
		timeout:        DefaultTimeout,
		wsdlURL:        endpoint + "?wsdl",
		retry:          true,
		headers:        make(http.Header),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		endpoint: endpoint,
		wsdlURL:  cfg.wsdlURL,
		tokens:   tokens,
		httpClient: &http.Client{
			Timeout:   cfg.timeout,
			Transport: &TokenTransport{Base: cfg.baseTransport},
		},
		retry:    cfg.retry,
		headers:  cfg.headers,
		tracer:   cfg.tracerProvider.Tracer(tracerName),
		contract: cfg.contract,
	}
}

// Contract returns the service contract, loading the WSDL on first use.
// Loading failures are not cached.
func (c *Client) Contract(ctx context.Context) (*Contract, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.contract != nil {
		return c.contract, nil
	}

	contract, err := LoadContract(ctx, c.httpClient, c.wsdlURL)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "service contract loaded",
		"wsdl_url", c.wsdlURL,
		"operations", len(contract.Operations),
		"soap_version", contract.Version.String(),
	)
	c.contract = contract
	return contract, nil
}

// Invoke calls an operation with a valid token. When the service rejects the
// token, Invoke renews it and retries exactly once; the retry outcome is
// final. Non-success response codes other than the token rejection are
// returned as *Fault results.
func (c *Client) Invoke(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	callID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "soap "+req.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "soap"),
			attribute.String("rpc.method", req.Operation),
			attribute.String("correos.call_id", callID),
		),
	)
	defer span.End()

	logger := slog.With("operation", req.Operation, "call_id", callID)

	result, err := c.invoke(ctx, logger, req)
	if err != nil {
		var soapErr *Error
		if errors.As(err, &soapErr) && soapErr.Code != "" {
			span.SetAttributes(attribute.String("correos.response_code", soapErr.Code))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	switch r := result.(type) {
	case *Structured:
		if r.Code != "" {
			span.SetAttributes(attribute.String("correos.response_code", r.Code))
		}
	case *Fault:
		span.SetAttributes(attribute.String("correos.response_code", r.Code))
		span.SetStatus(codes.Error, r.Message)
	}
	return result, nil
}

func (c *Client) invoke(ctx context.Context, logger *slog.Logger, req Request) (Result, error) {
	logger.DebugContext(ctx, "invocation state", "state", stateIdle)

	contract, err := c.Contract(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading service contract: %w", err)
	}
	op, ok := contract.Operation(req.Operation)
	if !ok {
		return nil, &Error{Kind: ErrUnknownOperation, Operation: req.Operation}
	}

	token, err := c.tokens.Get(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%s: obtaining token: %w", op.Name, err)
	}

	logger.DebugContext(ctx, "invocation state", "state", stateInvoking)
	result, err := c.call(ctx, contract, op, req, token)
	if !authRejected(result, err) {
		if err != nil {
			logger.DebugContext(ctx, "invocation state", "state", stateNonAuthFailure, "error", err)
			return nil, err
		}
		logger.DebugContext(ctx, "invocation state", "state", stateSuccess)
		return result, nil
	}

	logger.DebugContext(ctx, "invocation state", "state", stateAuthFailureDetected)
	if !c.retry {
		logger.WarnContext(ctx, "token rejected, retry disabled")
		return result, err
	}

	logger.DebugContext(ctx, "invocation state", "state", stateRenewing)
	token, err = c.tokens.Renew(ctx, token)
	if err != nil {
		logger.DebugContext(ctx, "invocation state", "state", stateTerminalFailure, "error", err)
		return nil, fmt.Errorf("%s: renewing rejected token: %w", op.Name, err)
	}

	logger.DebugContext(ctx, "invocation state", "state", stateRetrying)
	result, err = c.call(ctx, contract, op, req, token)
	if authRejected(result, err) {
		logger.WarnContext(ctx, "token rejected after renewal")
		logger.DebugContext(ctx, "invocation state", "state", stateTerminalFailure)
		return nil, exhausted(op.Name, result, err)
	}
	if err != nil {
		logger.DebugContext(ctx, "invocation state", "state", stateTerminalFailure, "error", err)
		return nil, err
	}

	logger.DebugContext(ctx, "invocation state", "state", stateSuccess)
	return result, nil
}

// call performs one SOAP request with token.
func (c *Client) call(ctx context.Context, contract *Contract, op *Operation, req Request, token *oauth2.Token) (Result, error) {
	env, err := buildEnvelope(contract, op, req, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: encoding request: %w", op.Name, err)
	}

	reqCtx := ctx
	if !env.tokenInBody {
		reqCtx = withToken(ctx, token)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(env.body))
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", op.Name, err)
	}
	for key, values := range c.headers {
		httpReq.Header[key] = slices.Clone(values)
	}
	if contract.Version == SOAP12 {
		httpReq.Header.Set("Content-Type", fmt.Sprintf("application/soap+xml; charset=utf-8; action=%q", op.Action))
	} else {
		httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
		httpReq.Header.Set("SOAPAction", fmt.Sprintf("%q", op.Action))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op.Name, ctxErr)
		}
		return nil, &Error{Kind: ErrTransportFault, Operation: op.Name, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &Error{Kind: ErrTransportFault, Operation: op.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	payload, fault, decodeErr := decodeResponse(body)
	switch {
	case fault != nil:
		return nil, &Error{Kind: ErrTransportFault, Operation: op.Name, StatusCode: resp.StatusCode, Code: fault.Code, Message: fault.Message}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &Error{Kind: ErrTransportFault, Operation: op.Name, StatusCode: resp.StatusCode, Body: truncate(string(body))}
	case decodeErr != nil:
		return nil, &Error{Kind: ErrTransportFault, Operation: op.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", decodeErr)}
	}

	return classify(op.Name, payload), nil
}

// authRejected reports whether an attempt failed because of the token:
// an in-band invalid-token code, or a SOAP fault whose message mentions the
// token. HTTP error bodies and network errors never match.
func authRejected(result Result, err error) bool {
	if f, ok := result.(*Fault); ok {
		return f.Code == CodeInvalidToken
	}
	var soapErr *Error
	if errors.As(err, &soapErr) && soapErr.Kind == ErrTransportFault {
		return soapErr.Code == CodeInvalidToken || (soapErr.Message != "" && isAuthFault(soapErr.Message))
	}
	return false
}

func exhausted(operation string, result Result, err error) error {
	e := &Error{Kind: ErrAuthRetryExhausted, Operation: operation, Err: err}
	if f, ok := result.(*Fault); ok {
		e.Code, e.Message = f.Code, f.Message
	}
	var soapErr *Error
	if errors.As(err, &soapErr) {
		e.Code, e.Message, e.Body, e.StatusCode, e.Err = soapErr.Code, soapErr.Message, soapErr.Body, soapErr.StatusCode, soapErr.Err
	}
	return e
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxFaultMessage {
		return s
	}
	return s[:maxFaultMessage] + "..."
}
