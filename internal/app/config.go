package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/correos-link/internal/observability"
	"github.com/florianilch/correos-link/internal/secretstore"
	"github.com/florianilch/correos-link/internal/soap"
	"github.com/florianilch/correos-link/internal/tokensource"
	"github.com/florianilch/correos-link/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// PasswordStorageType represents where the account password is kept.
type PasswordStorageType string

const (
	// PasswordStorageConfig takes the password from auth.password.
	PasswordStorageConfig  PasswordStorageType = "config"
	PasswordStorageFile    PasswordStorageType = "file"
	PasswordStorageEnv     PasswordStorageType = "env"
	PasswordStorageKeyring PasswordStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigTokenURL         = "https://servicios.correos.go.cr:447/Token/authenticate"
	DefaultConfigSOAPURL          = "https://amistadpro.correos.go.cr:444/wsAppCorreos.wsAppCorreos.svc"
	DefaultConfigSystem           = "PYMEXPRESS"
	DefaultConfigServiceID        = "73"
	DefaultConfigPasswordStorage  = PasswordStorageFile
	DefaultConfigAuthTimeout      = tokensource.DefaultTimeout
	DefaultConfigRefreshBuffer    = tokenstore.DefaultRefreshBuffer
	DefaultConfigFallbackLifetime = tokensource.DefaultFallbackLifetime
	DefaultConfigSOAPTimeout      = soap.DefaultTimeout
)

// TelemetryConfig selects the OpenTelemetry log exporter.
type TelemetryConfig struct {
	Exporter string `json:"exporter" validate:"omitempty,oneof=none stdout otlp-http otlp-grpc"`
}

// AuthConfig describes how access tokens are obtained.
type AuthConfig struct {
	TokenURL string `json:"token_url" validate:"required,url,startswith=https://"`
	Username string `json:"username" validate:"required"`
	System   string `json:"system" validate:"required"`

	// Password is only read for config storage.
	Password        string              `json:"password,omitempty"`
	PasswordStorage PasswordStorageType `json:"password_storage" validate:"required,oneof=config file env keyring"`

	// Storage-specific settings (mutually exclusive based on PasswordStorage)
	PasswordFile   string `json:"password_file,omitempty"`    // For file storage: path to password file
	PasswordEnvKey string `json:"password_env_key,omitempty"` // For env storage: environment variable name
	KeyringUser    string `json:"keyring_user,omitempty"`     // For keyring storage: user identifier

	Timeout          time.Duration `json:"timeout" validate:"gte=0"`
	RefreshBuffer    time.Duration `json:"refresh_buffer" validate:"gte=0"`
	FallbackLifetime time.Duration `json:"fallback_lifetime" validate:"gte=0"`
}

// NewPasswordStore creates the SecretStore holding the account password.
// Returns nil for config storage.
func (a *AuthConfig) NewPasswordStore() (secretstore.SecretStore, error) {
	switch a.PasswordStorage {
	case PasswordStorageConfig:
		return nil, nil
	case PasswordStorageFile:
		return secretstore.NewFileStore(a.PasswordFile)
	case PasswordStorageEnv:
		return secretstore.NewEnvStore(a.PasswordEnvKey)
	case PasswordStorageKeyring:
		return secretstore.NewKeyringStore(secretstore.DefaultKeyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported password storage: %s", a.PasswordStorage)
	}
}

// SOAPConfig holds the web service endpoint settings.
type SOAPConfig struct {
	URL string `json:"url" validate:"required,url,startswith=https://"`
	// WSDLURL defaults to URL with ?wsdl appended.
	WSDLURL           string        `json:"wsdl_url,omitempty" validate:"omitempty,url"`
	Timeout           time.Duration `json:"timeout" validate:"gte=0"`
	DisableTokenRetry bool          `json:"disable_token_retry"`
	// Headers are added to every SOAP request.
	Headers map[string]string `json:"headers,omitempty" validate:"omitempty,dive,keys,required,endkeys"`
}

// AccountConfig identifies the customer account.
type AccountConfig struct {
	ClientCode string `json:"client_code"`
	UserID     string `json:"user_id"`
	ServiceID  string `json:"service_id" validate:"required"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Auth      AuthConfig      `json:"auth"`
	SOAP      SOAPConfig      `json:"soap"`
	Account   AccountConfig   `json:"account"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = observability.ExporterNone
	}
	if c.Auth.TokenURL == "" {
		c.Auth.TokenURL = DefaultConfigTokenURL
	}
	if c.Auth.System == "" {
		c.Auth.System = DefaultConfigSystem
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = DefaultConfigAuthTimeout
	}
	if c.Auth.RefreshBuffer == 0 {
		c.Auth.RefreshBuffer = DefaultConfigRefreshBuffer
	}
	if c.Auth.FallbackLifetime == 0 {
		c.Auth.FallbackLifetime = DefaultConfigFallbackLifetime
	}
	if c.SOAP.URL == "" {
		c.SOAP.URL = DefaultConfigSOAPURL
	}
	if c.SOAP.Timeout == 0 {
		c.SOAP.Timeout = DefaultConfigSOAPTimeout
	}
	if c.Account.ServiceID == "" {
		c.Account.ServiceID = DefaultConfigServiceID
	}

	if c.Auth.PasswordStorage == "" {
		if c.Auth.Password != "" {
			c.Auth.PasswordStorage = PasswordStorageConfig
		} else {
			c.Auth.PasswordStorage = DefaultConfigPasswordStorage
		}
	}

	// Dynamic defaults based on storage type
	switch c.Auth.PasswordStorage {
	case PasswordStorageFile:
		if c.Auth.PasswordFile == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.password_file required (auto-detect failed: %w)", err)
			}
			c.Auth.PasswordFile = filepath.Join(configDir, "correos-link", "password")
		}
	case PasswordStorageKeyring:
		if c.Auth.KeyringUser == "" {
			c.Auth.KeyringUser = c.Auth.Username
		}
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case PasswordStorageEnv, PasswordStorageConfig:
		// env key and inline password have no sensible default
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.PasswordStorage {
	case PasswordStorageConfig:
		if c.Auth.Password == "" {
			return errors.New("auth.password required for config storage")
		}
	case PasswordStorageFile:
		if c.Auth.PasswordFile == "" {
			return errors.New("auth.password_file required for file storage")
		}
	case PasswordStorageEnv:
		if c.Auth.PasswordEnvKey == "" {
			return errors.New("auth.password_env_key required for env storage")
		}
	case PasswordStorageKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("auth.keyring_user required for keyring storage")
		}
	}

	if c.Auth.Password != "" && c.Auth.PasswordStorage != PasswordStorageConfig {
		return fmt.Errorf("auth.password is ignored with %s storage", c.Auth.PasswordStorage)
	}

	return nil
}

// RequireAccount reports an error when the account fields needed to
// register shipments are missing.
func (c *Config) RequireAccount() error {
	var errs []error
	if c.Account.ClientCode == "" {
		errs = append(errs, errors.New("account.client_code required"))
	}
	if c.Account.UserID == "" {
		errs = append(errs, errors.New("account.user_id required"))
	}
	return errors.Join(errs...)
}
