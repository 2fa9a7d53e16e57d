package app

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/florianilch/correos-link/internal/secretstore"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		Auth: AuthConfig{
			Username:        "ccrWS1",
			PasswordStorage: PasswordStorageFile,
			PasswordFile:    filepath.Join(t.TempDir(), "password"),
		},
		Account: AccountConfig{ClientCode: "397761", UserID: "USR01"},
	}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if cfg.LogFormat != LogFormatText {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.Telemetry.Exporter != "none" {
		t.Errorf("Telemetry.Exporter = %q, want none", cfg.Telemetry.Exporter)
	}
	if cfg.Auth.TokenURL != DefaultConfigTokenURL || cfg.SOAP.URL != DefaultConfigSOAPURL {
		t.Errorf("endpoints = %q, %q", cfg.Auth.TokenURL, cfg.SOAP.URL)
	}
	if cfg.Auth.System != "PYMEXPRESS" || cfg.Account.ServiceID != "73" {
		t.Errorf("system = %q, service = %q", cfg.Auth.System, cfg.Account.ServiceID)
	}
	if cfg.Auth.RefreshBuffer != 60*time.Second || cfg.Auth.FallbackLifetime != 300*time.Second {
		t.Errorf("token lifetimes = %v, %v", cfg.Auth.RefreshBuffer, cfg.Auth.FallbackLifetime)
	}
	if cfg.Auth.Timeout != 10*time.Second || cfg.SOAP.Timeout != 30*time.Second {
		t.Errorf("timeouts = %v, %v", cfg.Auth.Timeout, cfg.SOAP.Timeout)
	}
	if cfg.Auth.PasswordStorage != PasswordStorageFile {
		t.Errorf("PasswordStorage = %q, want file", cfg.Auth.PasswordStorage)
	}
	if !strings.HasSuffix(cfg.Auth.PasswordFile, filepath.Join("correos-link", "password")) {
		t.Errorf("PasswordFile = %q", cfg.Auth.PasswordFile)
	}
}

func TestApplyDefaultsPasswordStorage(t *testing.T) {
	tests := []struct {
		name        string
		auth        AuthConfig
		wantStorage PasswordStorageType
		wantKeyring string
	}{
		{
			name:        "inline password selects config storage",
			auth:        AuthConfig{Password: "secret"},
			wantStorage: PasswordStorageConfig,
		},
		{
			name:        "keyring user defaults to username",
			auth:        AuthConfig{Username: "ccrWS1", PasswordStorage: PasswordStorageKeyring},
			wantStorage: PasswordStorageKeyring,
			wantKeyring: "ccrWS1",
		},
		{
			name:        "explicit keyring user",
			auth:        AuthConfig{Username: "ccrWS1", PasswordStorage: PasswordStorageKeyring, KeyringUser: "ops"},
			wantStorage: PasswordStorageKeyring,
			wantKeyring: "ops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Auth: tt.auth}
			if err := cfg.ApplyDefaults(); err != nil {
				t.Fatalf("ApplyDefaults() error = %v", err)
			}
			if cfg.Auth.PasswordStorage != tt.wantStorage {
				t.Errorf("PasswordStorage = %q, want %q", cfg.Auth.PasswordStorage, tt.wantStorage)
			}
			if cfg.Auth.KeyringUser != tt.wantKeyring {
				t.Errorf("KeyringUser = %q, want %q", cfg.Auth.KeyringUser, tt.wantKeyring)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{
			name:    "missing username",
			modify:  func(c *Config) { c.Auth.Username = "" },
			wantErr: "Username",
		},
		{
			name:    "plain http token endpoint",
			modify:  func(c *Config) { c.Auth.TokenURL = "http://servicios.correos.go.cr/Token/authenticate" },
			wantErr: "TokenURL",
		},
		{
			name:    "plain http soap endpoint",
			modify:  func(c *Config) { c.SOAP.URL = "http://amistadpro.correos.go.cr/svc" },
			wantErr: "URL",
		},
		{
			name:   "static soap headers",
			modify: func(c *Config) { c.SOAP.Headers = map[string]string{"X-Canal": "pymexpress"} },
		},
		{
			name:    "empty soap header name",
			modify:  func(c *Config) { c.SOAP.Headers = map[string]string{"": "x"} },
			wantErr: "Headers",
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "LogFormat",
		},
		{
			name:    "unknown exporter",
			modify:  func(c *Config) { c.Telemetry.Exporter = "zipkin" },
			wantErr: "Exporter",
		},
		{
			name:    "unknown storage",
			modify:  func(c *Config) { c.Auth.PasswordStorage = "vault" },
			wantErr: "PasswordStorage",
		},
		{
			name: "config storage without password",
			modify: func(c *Config) {
				c.Auth.PasswordStorage = PasswordStorageConfig
			},
			wantErr: "auth.password required",
		},
		{
			name: "env storage without key",
			modify: func(c *Config) {
				c.Auth.PasswordStorage = PasswordStorageEnv
			},
			wantErr: "auth.password_env_key required",
		},
		{
			name: "inline password with file storage",
			modify: func(c *Config) {
				c.Auth.Password = "secret"
			},
			wantErr: "ignored",
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.SOAP.Timeout = -time.Second },
			wantErr: "Timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRequireAccount(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.RequireAccount(); err != nil {
		t.Fatalf("RequireAccount() error = %v", err)
	}

	cfg.Account.ClientCode = ""
	cfg.Account.UserID = ""
	err := cfg.RequireAccount()
	if err == nil || !strings.Contains(err.Error(), "client_code") || !strings.Contains(err.Error(), "user_id") {
		t.Errorf("RequireAccount() error = %v, want both fields named", err)
	}
}

func TestNewPasswordStore(t *testing.T) {
	tests := []struct {
		name    string
		auth    AuthConfig
		check   func(secretstore.SecretStore) bool
		wantErr bool
	}{
		{
			name:  "file",
			auth:  AuthConfig{PasswordStorage: PasswordStorageFile, PasswordFile: "/tmp/password"},
			check: func(s secretstore.SecretStore) bool { _, ok := s.(*secretstore.FileStore); return ok },
		},
		{
			name:  "env",
			auth:  AuthConfig{PasswordStorage: PasswordStorageEnv, PasswordEnvKey: "CORREOS_PASSWORD"},
			check: func(s secretstore.SecretStore) bool { _, ok := s.(*secretstore.EnvStore); return ok },
		},
		{
			name:  "keyring",
			auth:  AuthConfig{PasswordStorage: PasswordStorageKeyring, KeyringUser: "ccrWS1"},
			check: func(s secretstore.SecretStore) bool { _, ok := s.(*secretstore.KeyringStore); return ok },
		},
		{
			name:  "config",
			auth:  AuthConfig{PasswordStorage: PasswordStorageConfig},
			check: func(s secretstore.SecretStore) bool { return s == nil },
		},
		{
			name:    "env without key",
			auth:    AuthConfig{PasswordStorage: PasswordStorageEnv},
			wantErr: true,
		},
		{
			name:    "unknown",
			auth:    AuthConfig{PasswordStorage: "vault"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := tt.auth.NewPasswordStore()
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewPasswordStore() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPasswordStore() error = %v", err)
			}
			if !tt.check(store) {
				t.Errorf("NewPasswordStore() = %T", store)
			}
		})
	}
}
