package app

import (
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/florianilch/correos-link/internal/correos"
	"github.com/florianilch/correos-link/internal/soap"
	"github.com/florianilch/correos-link/internal/tokensource"
	"github.com/florianilch/correos-link/internal/tokenstore"
)

// Option configures an App.
type Option func(*options)

type options struct {
	transport      http.RoundTripper
	tracerProvider trace.TracerProvider
}

// WithTransport routes token and SOAP requests through transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithTracerProvider sets the provider for SOAP invocation spans. Defaults
// to the global provider at the time New is called.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// App wires configuration into the token lifecycle and the shipping service.
type App struct {
	cfg     *Config
	tokens  *tokenstore.Store
	client  *soap.Client
	service *correos.Service
}

// New creates a new App instance. No network or secret storage I/O is
// performed until the first token is needed.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &options{
		transport:      http.DefaultTransport,
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	credentials, err := newCredentials(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials: %w", err)
	}

	issuer := tokensource.NewIssuer(cfg.Auth.TokenURL, credentials,
		tokensource.WithTransport(o.transport),
		tokensource.WithTimeout(cfg.Auth.Timeout),
		tokensource.WithFallbackLifetime(cfg.Auth.FallbackLifetime),
	)

	tokens := tokenstore.New(issuer, tokenstore.WithRefreshBuffer(cfg.Auth.RefreshBuffer))

	soapOpts := []soap.Option{
		soap.WithTransport(o.transport),
		soap.WithTimeout(cfg.SOAP.Timeout),
		soap.WithWSDLURL(cfg.SOAP.WSDLURL),
		soap.WithTokenRetry(!cfg.SOAP.DisableTokenRetry),
		soap.WithTracerProvider(o.tracerProvider),
	}
	for _, key := range slices.Sorted(maps.Keys(cfg.SOAP.Headers)) {
		soapOpts = append(soapOpts, soap.WithHeader(key, cfg.SOAP.Headers[key]))
	}
	client := soap.New(cfg.SOAP.URL, tokens, soapOpts...)

	service := correos.NewService(client, correos.Account{
		ClientCode: cfg.Account.ClientCode,
		UserID:     cfg.Account.UserID,
		ServiceID:  cfg.Account.ServiceID,
	})

	slog.Debug("application configured",
		"token_url", cfg.Auth.TokenURL,
		"soap_url", cfg.SOAP.URL,
		"password_storage", string(cfg.Auth.PasswordStorage),
		"token_retry", !cfg.SOAP.DisableTokenRetry,
	)

	return &App{
		cfg:     cfg,
		tokens:  tokens,
		client:  client,
		service: service,
	}, nil
}

// Config returns the validated configuration.
func (a *App) Config() *Config {
	return a.cfg
}

// Service returns the shipping service.
func (a *App) Service() *correos.Service {
	return a.service
}

// Tokens returns the token store shared by all invocations.
func (a *App) Tokens() *tokenstore.Store {
	return a.tokens
}

// Client returns the SOAP client.
func (a *App) Client() *soap.Client {
	return a.client
}

// newCredentials creates the issuer credentials from application configuration.
// No I/O is performed - the password is read on first issuance.
func newCredentials(cfg AuthConfig) (tokensource.CredentialsProvider, error) {
	if cfg.PasswordStorage == PasswordStorageConfig {
		return tokensource.StaticCredentials{
			Username: cfg.Username,
			Password: cfg.Password,
			System:   cfg.System,
		}, nil
	}

	store, err := cfg.NewPasswordStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create password store: %w", err)
	}

	return NewLazyCredentials(cfg.Username, cfg.System, store)
}
