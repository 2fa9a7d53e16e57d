package tokensource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Default issuance settings.
const (
	DefaultTimeout          = 10 * time.Second
	DefaultFallbackLifetime = 300 * time.Second
)

// maxResponseBody bounds how much of the issuer response is read.
const maxResponseBody = 1 << 20

// Credentials identify the account against the authentication endpoint.
type Credentials struct {
	Username string
	Password string
	// System is the client system identifier ("Sistema").
	System string
}

// CredentialsProvider supplies credentials at issuance time.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials is a CredentialsProvider for credentials known up front.
type StaticCredentials Credentials

// Compile-time check to ensure StaticCredentials implements CredentialsProvider
var _ CredentialsProvider = StaticCredentials{}

// Credentials returns c unchanged.
func (c StaticCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials(c), nil
}

// IssuerOption configures an Issuer.
type IssuerOption func(*issuerConfig)

// issuerConfig holds configuration for NewIssuer.
type issuerConfig struct {
	baseTransport    http.RoundTripper
	timeout          time.Duration
	fallbackLifetime time.Duration
	now              func() time.Time
}

// WithTransport sets a custom base transport for issuance requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) IssuerOption {
	return func(c *issuerConfig) {
		c.baseTransport = transport
	}
}

// WithTimeout bounds each issuance request. Defaults to DefaultTimeout.
func WithTimeout(timeout time.Duration) IssuerOption {
	return func(c *issuerConfig) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithFallbackLifetime sets the lifetime assumed for tokens that carry no expiry.
// Defaults to DefaultFallbackLifetime.
func WithFallbackLifetime(lifetime time.Duration) IssuerOption {
	return func(c *issuerConfig) {
		if lifetime > 0 {
			c.fallbackLifetime = lifetime
		}
	}
}

// WithClock overrides the time source used to compute fallback expiries.
func WithClock(now func() time.Time) IssuerOption {
	return func(c *issuerConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// Issuer performs the authentication handshake against the token endpoint.
// It is safe for concurrent use.
type Issuer struct {
	tokenURL         string
	credentials      CredentialsProvider
	httpClient       *http.Client
	fallbackLifetime time.Duration
	now              func() time.Time
}

// NewIssuer creates an Issuer posting credentials to tokenURL.
func NewIssuer(tokenURL string, credentials CredentialsProvider, opts ...IssuerOption) *Issuer {
	cfg := &issuerConfig{
		baseTransport:    http.DefaultTransport,
		timeout:          DefaultTimeout,
		fallbackLifetime: DefaultFallbackLifetime,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Issuer{
		tokenURL:    tokenURL,
		credentials: credentials,
		httpClient: &http.Client{
			Timeout:   cfg.timeout,
			Transport: cfg.baseTransport,
		},
		fallbackLifetime: cfg.fallbackLifetime,
		now:              cfg.now,
	}
}

// credentialsPayload is the fixed request body expected by the endpoint.
type credentialsPayload struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
	Sistema  string `json:"Sistema"`
}

// Issue requests a new token. The returned token has its scheme prefix
// removed and Expiry set from the token's "exp" claim, an "expires_in"
// response field, or the fallback lifetime, in that order.
func (i *Issuer) Issue(ctx context.Context) (*oauth2.Token, error) {
	creds, err := i.credentials.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	payload, err := json.Marshal(credentialsPayload{
		Username: creds.Username,
		Password: creds.Password,
		Sistema:  creds.System,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	issuedAt := i.now()

	slog.DebugContext(ctx, "requesting access token", "url", i.tokenURL, "username", creds.Username, "system", creds.System)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Kind: ErrNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &AuthError{Kind: ErrNetwork, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthError{Kind: ErrProtocol, StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	parsed := newResponse(body)
	accessToken, err := extractToken(parsed)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}
	if exp, ok := claimsExpiry(accessToken); ok {
		token.Expiry = exp
	} else if lifetime, ok := expiresIn(parsed); ok {
		token.Expiry = issuedAt.Add(lifetime)
	} else {
		token.Expiry = issuedAt.Add(i.fallbackLifetime)
	}

	slog.InfoContext(ctx, "access token issued", "expires_at", token.Expiry)

	return token, nil
}
